package protocol

// Extract splits text into the top-level JSON object candidates it contains,
// in order of appearance. It is a lexical brace-depth scan: braces inside string
// literals are counted too, a closing brace at depth zero is ignored and an
// unterminated trailing object is dropped. No candidate is parsed.
func Extract(text string) []string {
	var (
		out   []string
		depth int
		start = -1
	)

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, text[start:i+1])
				start = -1
			}
		}
	}

	return out
}
