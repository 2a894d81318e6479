package export

import (
	"fmt"
	"strings"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/section"
)

// MarkdownExporter renders document blocks as markdown
type MarkdownExporter struct{}

// NewMarkdownExporter creates a markdown exporter
func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{}
}

// Export walks the blocks in document order, so content outside any
// section survives the round trip. Heading and list styles map back to
// their markers; everything else renders as plain paragraphs.
func (e *MarkdownExporter) Export(doc *docx.Document, tree *section.Tree) (string, error) {
	var chunks []string
	var list []string
	number := 0

	flushList := func() {
		if len(list) > 0 {
			chunks = append(chunks, strings.Join(list, "\n"))
			list = nil
		}
	}

	for _, b := range doc.Blocks() {
		if b.Kind == docx.KindTable {
			number = 0
			flushList()
			if table := markdownTable(b.TableCells()); table != "" {
				chunks = append(chunks, table)
			}
			continue
		}
		if b.Kind != docx.KindParagraph || strings.TrimSpace(b.Text) == "" {
			number = 0
			flushList()
			continue
		}

		if b.StyleID != numberedStyle {
			number = 0
		}

		switch {
		case b.IsHeading():
			flushList()
			chunks = append(chunks, strings.Repeat("#", b.HeadingLevel)+" "+b.Text)
		case b.StyleID == bulletStyle || b.StyleID == listParagraphStyle:
			list = append(list, "- "+b.Text)
		case b.StyleID == numberedStyle:
			number++
			list = append(list, fmt.Sprintf("%d. %s", number, b.Text))
		case b.StyleID == quoteStyle:
			flushList()
			chunks = append(chunks, "> "+strings.ReplaceAll(b.Text, "\n", "\n> "))
		default:
			flushList()
			chunks = append(chunks, b.Text)
		}
	}
	flushList()

	out := strings.Join(chunks, "\n\n")
	if out != "" {
		out += "\n"
	}
	return out, nil
}

// Name returns the human-readable name of this exporter
func (e *MarkdownExporter) Name() string {
	return "Markdown"
}

// FileExtension returns the file extension for markdown files
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// markdownTable renders cell rows as a pipe table; the first row is the
// header. Pipes and line breaks inside cells are neutralized.
func markdownTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}

	cleaner := strings.NewReplacer("|", "\\|", "\n", " ")

	var sb strings.Builder
	for i, row := range rows {
		sb.WriteString("|")
		for c := 0; c < cols; c++ {
			v := ""
			if c < len(row) {
				v = cleaner.Replace(row[c])
			}
			sb.WriteString(" " + v + " |")
		}
		sb.WriteString("\n")
		if i == 0 {
			sb.WriteString("|" + strings.Repeat(" --- |", cols) + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
