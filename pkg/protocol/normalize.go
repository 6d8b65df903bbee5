package protocol

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultTextLimit bounds the text of a message synthesized from output that
// could not be parsed.
const DefaultTextLimit = 1500

// Outcome describes which path produced a normalized result.
type Outcome string

const (
	OutcomeSingle   Outcome = "single"
	OutcomeMulti    Outcome = "multi"
	OutcomeFallback Outcome = "fallback"
)

var (
	openingFence = regexp.MustCompile("^```(?i:json)?")
	closingFence = regexp.MustCompile("```$")
)

// Normalizer converts raw model output into structured messages.
type Normalizer struct {
	// TextLimit caps the number of characters carried by a fallback message.
	// Zero means DefaultTextLimit.
	TextLimit int
}

// Normalize runs the zero-value Normalizer.
func Normalize(raw string, fallback Participant) ([]StructuredMessage, Outcome) {
	return Normalizer{}.Normalize(raw, fallback)
}

// Normalize never fails: input it cannot interpret becomes a MESSAGE authored
// by fallback, the participant the text was requested from. The returned slice
// always holds at least one message.
func (n Normalizer) Normalize(raw string, fallback Participant) ([]StructuredMessage, Outcome) {
	if !fallback.Valid() {
		fallback = Shopping
	}

	text := StripFences(raw)

	candidates := Extract(text)
	if len(candidates) > 1 {
		out := make([]StructuredMessage, 0, len(candidates))
		for _, c := range candidates {
			msg, ok := decodeCandidate(c, fallback)
			if !ok {
				msg = NewMessage(fallback, TypeMessage, c, nil)
			}
			out = append(out, msg)
		}
		return out, OutcomeMulti
	}

	if msg, ok := decodeWhole(text); ok {
		return []StructuredMessage{msg}, OutcomeSingle
	}

	return []StructuredMessage{NewMessage(fallback, TypeMessage, n.truncate(text), nil)}, OutcomeFallback
}

// StripFences trims whitespace and removes a surrounding markdown code fence.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = openingFence.ReplaceAllString(text, "")
	text = closingFence.ReplaceAllString(strings.TrimSpace(text), "")
	return strings.TrimSpace(text)
}

func (n Normalizer) truncate(s string) string {
	limit := n.TextLimit
	if limit <= 0 {
		limit = DefaultTextLimit
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}

// decodeWhole accepts text only if it is a single JSON object carrying both
// agent and type.
func decodeWhole(text string) (StructuredMessage, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return StructuredMessage{}, false
	}
	agent, okAgent := obj["agent"].(string)
	typ, okType := obj["type"].(string)
	if !okAgent || !okType {
		return StructuredMessage{}, false
	}
	return fromObject(obj, agent, MessageType(typ)), true
}

// decodeCandidate parses one candidate of a multi-object response. Missing
// agent or type are filled from fallback and MESSAGE.
func decodeCandidate(candidate string, fallback Participant) (StructuredMessage, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil || obj == nil {
		return StructuredMessage{}, false
	}
	agent, ok := obj["agent"].(string)
	if !ok || agent == "" {
		agent = string(fallback)
	}
	typ, ok := obj["type"].(string)
	if !ok || typ == "" {
		typ = string(TypeMessage)
	}
	return fromObject(obj, agent, MessageType(typ)), true
}

func fromObject(obj map[string]any, agent string, typ MessageType) StructuredMessage {
	msg := StructuredMessage{Agent: agent, Type: typ, Data: map[string]any{}}

	switch t := obj["text"].(type) {
	case string:
		msg.Text = t
	case nil:
	default:
		if b, err := json.Marshal(t); err == nil {
			msg.Text = string(b)
		}
	}

	switch d := obj["data"].(type) {
	case map[string]any:
		msg.Data = d
	case nil:
	default:
		msg.Data = map[string]any{"value": d}
	}

	return msg
}
