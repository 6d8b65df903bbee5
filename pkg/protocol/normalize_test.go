package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSingleObjectRoundTrip(t *testing.T) {
	raw := `{"agent":"shopping","type":"PRODUCT_LIST","text":"Here you go","data":{"products":[{"id":"p-iphone15","price":60000}]}}`

	msgs, outcome := Normalize(raw, Shopping)
	require.Len(t, msgs, 1)
	assert.Equal(t, OutcomeSingle, outcome)

	var want StructuredMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &want))
	assert.Equal(t, want, msgs[0])
}

func TestNormalizeStripsFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"json tagged fence", "```json\n{\"agent\":\"shopping\",\"type\":\"MESSAGE\",\"text\":\"hi\"}\n```"},
		{"bare fence", "```\n{\"agent\":\"shopping\",\"type\":\"MESSAGE\",\"text\":\"hi\"}\n```"},
		{"surrounding whitespace", "  \n```JSON\n{\"agent\":\"shopping\",\"type\":\"MESSAGE\",\"text\":\"hi\"}```  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, outcome := Normalize(tt.raw, Payment)
			require.Len(t, msgs, 1)
			assert.Equal(t, OutcomeSingle, outcome)
			assert.Equal(t, "shopping", msgs[0].Agent)
			assert.Equal(t, "hi", msgs[0].Text)
			assert.NotNil(t, msgs[0].Data)
		})
	}
}

func TestNormalizePairedPaymentMessages(t *testing.T) {
	raw := `{"agent":"cashfree","type":"PAYMENT_PROCESSING","data":{"orderId":"ord_1"}}` + "\n" +
		`{"agent":"cashfree","type":"PAYMENT_RESULT","data":{"orderId":"ord_1","status":"SUCCESS"}}`

	msgs, outcome := Normalize(raw, Payment)
	require.Len(t, msgs, 2)
	assert.Equal(t, OutcomeMulti, outcome)
	assert.Equal(t, TypePaymentProcessing, msgs[0].Type)
	assert.Equal(t, TypePaymentResult, msgs[1].Type)
	assert.Equal(t, "cashfree", msgs[1].Agent)
	assert.Equal(t, Payment, msgs[1].Participant())
	assert.Equal(t, "SUCCESS", msgs[1].Data["status"])
}

func TestNormalizeMultiWithUnparsableCandidate(t *testing.T) {
	raw := `{"agent":"payment","type":"PAYMENT_PROCESSING"} {oops} {"text":"no tags"}`

	msgs, outcome := Normalize(raw, Payment)
	require.Len(t, msgs, 3)
	assert.Equal(t, OutcomeMulti, outcome)

	assert.Equal(t, TypeMessage, msgs[1].Type)
	assert.Equal(t, "{oops}", msgs[1].Text)
	assert.Equal(t, "payment", msgs[1].Agent)
	assert.Empty(t, msgs[1].Data)

	assert.Equal(t, TypeMessage, msgs[2].Type)
	assert.Equal(t, "payment", msgs[2].Agent)
	assert.Equal(t, "no tags", msgs[2].Text)
}

func TestNormalizeFallback(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantText string
	}{
		{"prose", "I can help with that.", "I can help with that."},
		{"empty", "", ""},
		{"whitespace", "   \n\t", ""},
		{"object without tags", `{"text":"hello"}`, `{"text":"hello"}`},
		{"array", `[{"agent":"shopping","type":"MESSAGE"}]`, `[{"agent":"shopping","type":"MESSAGE"}]`},
		{"non-string agent", `{"agent":1,"type":"MESSAGE"}`, `{"agent":1,"type":"MESSAGE"}`},
		{"trailing garbage", `{"agent":"shopping","type":"MESSAGE"} thanks`, `{"agent":"shopping","type":"MESSAGE"} thanks`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, outcome := Normalize(tt.raw, Shopping)
			require.Len(t, msgs, 1)
			assert.Equal(t, OutcomeFallback, outcome)
			assert.Equal(t, "shopping", msgs[0].Agent)
			assert.Equal(t, TypeMessage, msgs[0].Type)
			assert.Equal(t, tt.wantText, msgs[0].Text)
			assert.NotNil(t, msgs[0].Data)
			assert.Empty(t, msgs[0].Data)
		})
	}
}

func TestNormalizeTruncatesFallbackText(t *testing.T) {
	long := strings.Repeat("é", DefaultTextLimit+200)

	msgs, _ := Normalize(long, Payment)
	require.Len(t, msgs, 1)
	assert.Equal(t, DefaultTextLimit, len([]rune(msgs[0].Text)))

	msgs, _ = Normalizer{TextLimit: 10}.Normalize(long, Payment)
	assert.Equal(t, 10, len([]rune(msgs[0].Text)))
}

func TestNormalizePreservesUnknownType(t *testing.T) {
	msgs, _ := Normalize(`{"agent":"shopping","type":"WISHLIST","data":{"ids":["a"]}}`, Shopping)
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageType("WISHLIST"), msgs[0].Type)
	assert.False(t, msgs[0].Type.Known())
}

func TestNormalizeWrapsNonObjectData(t *testing.T) {
	msgs, _ := Normalize(`{"agent":"shopping","type":"MESSAGE","data":[1,2]}`, Shopping)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]any{"value": []any{float64(1), float64(2)}}, msgs[0].Data)
}

func TestNormalizeNeverReturnsEmpty(t *testing.T) {
	inputs := []string{
		"", "{", "}", "{{{", "```", "```json```", "null", "42", `"str"`,
		`{"agent":null,"type":null}`, "{}{", "{}}{}", "\x00\xff", `{"data":null}{"data":7}`,
	}

	for _, input := range inputs {
		msgs, _ := Normalize(input, Payment)
		require.NotEmpty(t, msgs, "input %q", input)
		for _, m := range msgs {
			assert.NotEmpty(t, m.Agent, "input %q", input)
			assert.NotEmpty(t, m.Type, "input %q", input)
			assert.NotNil(t, m.Data, "input %q", input)
		}
	}
}

func TestStructuredMessageJSON(t *testing.T) {
	m := StructuredMessage{Agent: "shopping", Type: TypeMessage, Text: "hi"}
	assert.JSONEq(t, `{"agent":"shopping","type":"MESSAGE","text":"hi","data":{}}`, m.JSON())
}

func TestParseParticipant(t *testing.T) {
	assert.Equal(t, Payment, ParseParticipant("cashfree"))
	assert.Equal(t, Payment, ParseParticipant(" Payment "))
	assert.Equal(t, Shopping, ParseParticipant("shopping"))
	assert.Equal(t, Shopping, ParseParticipant("somebody"))
}
