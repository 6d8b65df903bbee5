package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptAppendDoesNotMutate(t *testing.T) {
	base := NewTranscript().Append(RoleUser, "hi")
	a := base.Append(RoleAssistant, "a")
	b := base.Append(RoleAssistant, "b")

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, "User: hi\nAssistant: a", a.String())
	assert.Equal(t, "User: hi\nAssistant: b", b.String())
}

func TestTranscriptSince(t *testing.T) {
	tr := NewTranscript(Line{RoleUser, "1"}, Line{RoleAssistant, "2"}, Line{RoleUser, "3"})

	assert.Equal(t, []Line{{RoleAssistant, "2"}, {RoleUser, "3"}}, tr.Since(1))
	assert.Nil(t, tr.Since(3))
	assert.Len(t, tr.Since(-1), 3)
}

func TestTranscriptLinesIsCopy(t *testing.T) {
	tr := NewTranscript(Line{RoleUser, "x"})
	lines := tr.Lines()
	lines[0].Text = "changed"

	assert.Equal(t, "User: x", tr.String())
}

func TestEmptyTranscriptString(t *testing.T) {
	assert.Equal(t, "", Transcript{}.String())
}
