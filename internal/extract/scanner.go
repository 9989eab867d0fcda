package extract

// objectSpan is a half-open byte range [Start, End) of one balanced,
// top-level JSON object inside a larger string.
type objectSpan struct {
	Start int
	End   int
}

// scanObjects walks s byte by byte and returns the spans of all balanced
// top-level {...} regions, honoring JSON string literals and escapes so a
// brace inside a quoted value never opens or closes a span. Unterminated
// objects are dropped.
func scanObjects(s string) []objectSpan {
	var spans []objectSpan
	depth := 0
	start := -1
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, objectSpan{Start: start, End: i + 1})
					start = -1
				}
			}
		}
	}

	return spans
}

// firstObjectStart returns the byte offset of the first balanced top-level
// object in s, or -1 when none exists.
func firstObjectStart(s string) int {
	spans := scanObjects(s)
	if len(spans) == 0 {
		return -1
	}
	return spans[0].Start
}
