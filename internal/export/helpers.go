package export

import (
	"strings"
)

// Paragraph styles recognized when mapping blocks back to markup
const (
	bulletStyle        = "ListBullet"
	numberedStyle      = "ListNumber"
	listParagraphStyle = "ListParagraph"
	quoteStyle         = "Quote"
)

// escapeHTMLAttr escapes a string for safe HTML embedding
func escapeHTMLAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}

// escapeHTMLText escapes body text, keeping soft breaks as <br>
func escapeHTMLText(s string) string {
	return strings.ReplaceAll(escapeHTMLAttr(s), "\n", "<br>")
}

// sanitizeFilename removes unsafe characters from a filename
func sanitizeFilename(name string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	result := name
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}

	for strings.Contains(result, "__") {
		result = strings.ReplaceAll(result, "__", "_")
	}
	result = strings.Trim(result, "_")

	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
