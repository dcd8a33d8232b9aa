package metadata

// Sanitize removes trailing commas before a closing ']' or '}' outside of
// string literals. Whitespace is preserved, so valid JSON comes back
// unchanged and Sanitize(Sanitize(b)) == Sanitize(b).
func Sanitize(b []byte) []byte {
	out := make([]byte, 0, len(b))
	inString, escaped := false, false
	for i := 0; i < len(b); i++ {
		c := b[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',':
			if trailing(b[i+1:]) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// trailing reports whether rest reaches a closer over only whitespace and
// further commas.
func trailing(rest []byte) bool {
	for _, c := range rest {
		switch c {
		case ' ', '\t', '\n', '\r', ',':
			continue
		case ']', '}':
			return true
		default:
			return false
		}
	}
	return false
}
