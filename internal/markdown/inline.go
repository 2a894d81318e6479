package markdown

import "strings"

// parseInline scans a line left to right in a single pass, toggling bold
// and italic state at `**`/`__` and `*`/`_`. Double markers win over
// single ones. Backtick spans become inline code, `~~...~~` strikes, and
// `[text](url)` renders as an underlined colored run. A marker with no
// terminator ahead is emitted as literal text.
func parseInline(line string) []Span {
	var (
		spans  []Span
		buf    strings.Builder
		bold   bool
		italic bool
	)

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		spans = append(spans, Span{Text: buf.String(), Bold: bold, Italic: italic})
		buf.Reset()
	}

	i := 0
	for i < len(line) {
		rest := line[i:]

		switch {
		case strings.HasPrefix(rest, "**") || strings.HasPrefix(rest, "__"):
			marker := rest[:2]
			if bold || strings.Contains(rest[2:], marker) {
				flush()
				bold = !bold
			} else {
				buf.WriteString(marker)
			}
			i += 2

		case rest[0] == '*' || rest[0] == '_':
			marker := rest[:1]
			if italic || strings.Contains(rest[1:], marker) {
				flush()
				italic = !italic
			} else {
				buf.WriteString(marker)
			}
			i++

		case rest[0] == '`':
			end := strings.IndexByte(rest[1:], '`')
			if end < 0 {
				buf.WriteByte('`')
				i++
				break
			}
			flush()
			spans = append(spans, Span{
				Text:   rest[1 : 1+end],
				Bold:   bold,
				Italic: italic,
				Code:   true,
				Color:  codeColor,
			})
			i += end + 2

		case strings.HasPrefix(rest, "~~"):
			end := strings.Index(rest[2:], "~~")
			if end < 0 {
				buf.WriteString("~~")
				i += 2
				break
			}
			flush()
			spans = append(spans, Span{
				Text:   rest[2 : 2+end],
				Bold:   bold,
				Italic: italic,
				Strike: true,
			})
			i += end + 4

		case rest[0] == '[':
			text, advance, ok := cutLink(rest)
			if !ok {
				buf.WriteByte('[')
				i++
				break
			}
			flush()
			spans = append(spans, Span{
				Text:      text,
				Bold:      bold,
				Italic:    italic,
				Underline: true,
				Color:     linkColor,
			})
			i += advance

		default:
			buf.WriteByte(rest[0])
			i++
		}
	}
	flush()

	return spans
}

// cutLink matches a complete `[text](url)` at the start of s and returns
// the link text and the number of bytes consumed
func cutLink(s string) (text string, advance int, ok bool) {
	close := strings.IndexByte(s, ']')
	if close < 0 || close+1 >= len(s) || s[close+1] != '(' {
		return "", 0, false
	}
	end := strings.IndexByte(s[close+2:], ')')
	if end < 0 {
		return "", 0, false
	}
	return s[1:close], close + 2 + end + 1, true
}
