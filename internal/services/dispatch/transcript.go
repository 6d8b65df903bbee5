package dispatch

import "strings"

type Role string

const (
	RoleUser      Role = "User"
	RoleAssistant Role = "Assistant"
	RoleSystem    Role = "System"
)

type Line struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func (l Line) String() string {
	return string(l.Role) + ": " + l.Text
}

// Transcript is an append-only conversation record. It is a value: Append
// returns a new transcript and never modifies the receiver, so a copy handed to
// an in-flight call cannot observe later turns.
type Transcript struct {
	lines []Line
}

func NewTranscript(lines ...Line) Transcript {
	return Transcript{}.Extend(lines...)
}

func (t Transcript) Append(role Role, text string) Transcript {
	return t.Extend(Line{Role: role, Text: text})
}

func (t Transcript) Extend(lines ...Line) Transcript {
	if len(lines) == 0 {
		return t
	}
	out := make([]Line, len(t.lines), len(t.lines)+len(lines))
	copy(out, t.lines)
	return Transcript{lines: append(out, lines...)}
}

func (t Transcript) Len() int {
	return len(t.lines)
}

// Lines returns a copy of the recorded lines.
func (t Transcript) Lines() []Line {
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// Since returns the lines appended after the first n.
func (t Transcript) Since(n int) []Line {
	if n < 0 {
		n = 0
	}
	if n >= len(t.lines) {
		return nil
	}
	out := make([]Line, len(t.lines)-n)
	copy(out, t.lines[n:])
	return out
}

func (t Transcript) String() string {
	parts := make([]string, len(t.lines))
	for i, l := range t.lines {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n")
}
