package render

import "strings"

// Span is a styled slice of inline markdown.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Code   bool
}

// ParseInline parses **bold**, *italic*, _italic_ and `code`. Unclosed
// markers are kept literally.
func ParseInline(input string) []Span {
	if input == "" {
		return nil
	}
	var spans []Span
	var buf strings.Builder
	bold, italic, code := false, false, false
	var italicMarker byte

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		spans = append(spans, Span{Text: buf.String(), Bold: bold, Italic: italic, Code: code})
		buf.Reset()
	}

	for i := 0; i < len(input); {
		ch := input[i]
		if ch == '\\' && i+1 < len(input) {
			buf.WriteByte(input[i+1])
			i += 2
			continue
		}
		if ch == '`' {
			if code {
				flush()
				code = false
				i++
				continue
			}
			if strings.Contains(input[i+1:], "`") {
				flush()
				code = true
				i++
				continue
			}
		}
		if !code && ch == '*' && strings.HasPrefix(input[i:], "**") {
			switch {
			case bold:
				flush()
				bold = false
			case strings.Contains(input[i+2:], "**"):
				flush()
				bold = true
			default:
				buf.WriteString("**")
			}
			i += 2
			continue
		}
		if !code && (ch == '*' || ch == '_') {
			if italic && ch == italicMarker {
				flush()
				italic = false
				i++
				continue
			}
			if !italic && strings.IndexByte(input[i+1:], ch) > 0 {
				flush()
				italic = true
				italicMarker = ch
				i++
				continue
			}
		}
		buf.WriteByte(ch)
		i++
	}
	flush()
	return spans
}

// PlainText drops inline markdown markers.
func PlainText(input string) string {
	var b strings.Builder
	for _, line := range strings.Split(input, "\n") {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		for _, span := range ParseInline(line) {
			b.WriteString(span.Text)
		}
	}
	return b.String()
}
