package commit

import (
	"fmt"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/markdown"
)

// Paragraph styles used for rendered list items. Word links these to its
// built-in numbering; documents lacking them get literal prefixes instead.
const (
	bulletStyleID   = "ListBullet"
	numberedStyleID = "ListNumber"
)

// renderBlocks turns converted markdown blocks into document blocks.
// Headings inside generated content become bold, sized paragraphs rather
// than true heading styles: section ids are positional, so a commit must
// never change the document's heading sequence.
func renderBlocks(doc *docx.Document, blocks []markdown.Block) []docx.Block {
	out := make([]docx.Block, 0, len(blocks))
	number := 0

	for _, b := range blocks {
		if b.Type != markdown.Numbered {
			number = 0
		}

		switch b.Type {
		case markdown.Heading:
			out = append(out, doc.RenderParagraph(docx.ParagraphSpec{
				Runs: headingRuns(b),
			}))
		case markdown.Bullet:
			out = append(out, doc.RenderParagraph(docx.ParagraphSpec{
				StyleID:        bulletStyleID,
				FallbackPrefix: "• ",
				Runs:           runsFromSpans(b.Spans),
			}))
		case markdown.Numbered:
			number++
			out = append(out, doc.RenderParagraph(docx.ParagraphSpec{
				StyleID:        numberedStyleID,
				FallbackPrefix: fmt.Sprintf("%d. ", number),
				Runs:           runsFromSpans(b.Spans),
			}))
		case markdown.Quote:
			out = append(out, doc.RenderParagraph(docx.ParagraphSpec{
				QuoteIndent: true,
				Runs:        runsFromSpans(b.Spans),
			}))
		case markdown.Rule:
			out = append(out, doc.RenderParagraph(docx.ParagraphSpec{
				BottomBorder: true,
			}))
		case markdown.Table:
			out = append(out, doc.RenderTable(tableSpec(b.Rows)))
		default: // Paragraph, Code
			out = append(out, doc.RenderParagraph(docx.ParagraphSpec{
				Runs: runsFromSpans(b.Spans),
			}))
		}
	}

	return out
}

// headingRuns styles heading spans bold with a level-scaled font size,
// 16pt for level 1 down to 11pt for level 6.
func headingRuns(b markdown.Block) []docx.Run {
	size := 34 - 2*b.Level
	runs := runsFromSpans(b.Spans)
	for i := range runs {
		runs[i].Props.Bold = true
		runs[i].Props.SizeHalfPoints = size
	}
	return runs
}

func runsFromSpans(spans []markdown.Span) []docx.Run {
	runs := make([]docx.Run, 0, len(spans))
	for _, s := range spans {
		runs = append(runs, docx.Run{
			Text: s.Text,
			Props: docx.RunProps{
				Bold:           s.Bold,
				Italic:         s.Italic,
				Underline:      s.Underline,
				Strike:         s.Strike,
				Mono:           s.Code,
				Highlight:      s.Highlight,
				Color:          s.Color,
				SizeHalfPoints: s.FontSize,
			},
		})
	}
	return runs
}

func tableSpec(rows [][][]markdown.Span) docx.TableSpec {
	out := make([][]docx.TableCell, 0, len(rows))
	for _, row := range rows {
		cells := make([]docx.TableCell, 0, len(row))
		for _, cell := range row {
			cells = append(cells, docx.TableCell{Runs: runsFromSpans(cell)})
		}
		out = append(out, cells)
	}
	return docx.TableSpec{Rows: out}
}
