package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "no braces",
			input: "hello there",
			want:  nil,
		},
		{
			name:  "single object with prose",
			input: `Sure! {"agent":"shopping","type":"MESSAGE"} hope that helps`,
			want:  []string{`{"agent":"shopping","type":"MESSAGE"}`},
		},
		{
			name:  "nested braces are kept whole",
			input: `{"a":{"b":{"c":1}}}`,
			want:  []string{`{"a":{"b":{"c":1}}}`},
		},
		{
			name:  "concatenated objects",
			input: "{\"x\":1}\n{\"y\":{\"z\":2}}{\"w\":3}",
			want:  []string{`{"x":1}`, `{"y":{"z":2}}`, `{"w":3}`},
		},
		{
			name:  "unbalanced trailing object dropped",
			input: `{"x":1} {"y":{"z":2}`,
			want:  []string{`{"x":1}`},
		},
		{
			name:  "stray closing brace ignored",
			input: `} {"x":1} }}`,
			want:  []string{`{"x":1}`},
		},
		{
			name:  "invalid json still extracted",
			input: `{not json} {"ok":true}`,
			want:  []string{`{not json}`, `{"ok":true}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.input))
		})
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	inputs := []string{
		`pre {"a":1} mid {"b":{"c":[1,2,{"d":3}]}} post {"e":"f"}`,
		"```json\n{\"agent\":\"cashfree\",\"type\":\"PAYMENT_PROCESSING\"}\n{\"agent\":\"cashfree\",\"type\":\"PAYMENT_RESULT\"}\n```",
		`{}{}{}`,
	}

	for _, input := range inputs {
		first := Extract(input)
		second := Extract(strings.Join(first, "\n"))
		assert.Equal(t, first, second)
	}
}
