package export

import (
	"fmt"
	"strings"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/section"
)

// HTMLExporter renders a self-contained HTML page with a table of
// contents and the full document content. The output needs no external
// assets, so it travels as a single file and prints cleanly.
type HTMLExporter struct{}

// NewHTMLExporter creates an HTML exporter
func NewHTMLExporter() *HTMLExporter {
	return &HTMLExporter{}
}

// Export renders the document. Section headings carry their section id
// as the element id so the table of contents can link to them.
func (e *HTMLExporter) Export(doc *docx.Document, tree *section.Tree) (string, error) {
	title := "Document"
	if len(tree.Roots) > 0 {
		title = tree.Roots[0].Title
	}

	anchors := make(map[int]string, len(tree.Flat))
	for _, s := range tree.Flat {
		anchors[s.HeadingBlock] = s.ID
	}

	var toc strings.Builder
	writeTOC(&toc, tree.Roots)

	var body strings.Builder
	writeBody(&body, doc, anchors)

	return fmt.Sprintf(htmlTemplate, escapeHTMLAttr(title), toc.String(), body.String()), nil
}

// Name returns the human-readable name of this exporter
func (e *HTMLExporter) Name() string {
	return "HTML"
}

// FileExtension returns the file extension for HTML files
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

func writeTOC(sb *strings.Builder, sections []*section.Section) {
	if len(sections) == 0 {
		return
	}
	sb.WriteString("<ul>")
	for _, s := range sections {
		sb.WriteString(`<li><a href="#` + s.ID + `">` + escapeHTMLText(s.Title) + `</a>`)
		writeTOC(sb, s.Children)
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul>")
}

// writeBody renders the blocks in document order. Consecutive list
// paragraphs group into one list element.
func writeBody(sb *strings.Builder, doc *docx.Document, anchors map[int]string) {
	listTag := ""

	closeList := func() {
		if listTag != "" {
			sb.WriteString("</" + listTag + ">\n")
			listTag = ""
		}
	}
	openList := func(tag string) {
		if listTag != tag {
			closeList()
			sb.WriteString("<" + tag + ">")
			listTag = tag
		}
	}

	for i, b := range doc.Blocks() {
		if b.Kind == docx.KindTable {
			closeList()
			writeHTMLTable(sb, b.TableCells())
			continue
		}
		if b.Kind != docx.KindParagraph {
			closeList()
			continue
		}

		switch {
		case b.IsHeading():
			closeList()
			level := b.HeadingLevel
			if id, ok := anchors[i]; ok {
				fmt.Fprintf(sb, "<h%d id=%q>%s</h%d>\n", level, id, escapeHTMLText(b.Text), level)
			} else {
				fmt.Fprintf(sb, "<h%d>%s</h%d>\n", level, escapeHTMLText(b.Text), level)
			}
		case b.StyleID == bulletStyle || b.StyleID == listParagraphStyle:
			openList("ul")
			sb.WriteString("<li>" + escapeHTMLText(b.Text) + "</li>")
		case b.StyleID == numberedStyle:
			openList("ol")
			sb.WriteString("<li>" + escapeHTMLText(b.Text) + "</li>")
		case b.StyleID == quoteStyle:
			closeList()
			sb.WriteString("<blockquote><p>" + escapeHTMLText(b.Text) + "</p></blockquote>\n")
		case strings.TrimSpace(b.Text) == "":
			closeList()
		default:
			closeList()
			sb.WriteString("<p>" + escapeHTMLText(b.Text) + "</p>\n")
		}
	}
	closeList()
}

func writeHTMLTable(sb *strings.Builder, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	sb.WriteString("<table>\n")
	for i, row := range rows {
		tag := "td"
		if i == 0 {
			tag = "th"
		}
		sb.WriteString("<tr>")
		for _, cell := range row {
			sb.WriteString("<" + tag + ">" + escapeHTMLText(cell) + "</" + tag + ">")
		}
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</table>\n")
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>
        * {
            box-sizing: border-box;
            margin: 0;
            padding: 0;
        }

        body {
            font-family: system-ui, -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            font-size: 11pt;
            line-height: 1.6;
            color: #1a1a1a;
            background: white;
        }

        .container {
            max-width: 860px;
            margin: 0 auto;
            padding: 32px 24px;
        }

        h1, h2, h3, h4, h5, h6 {
            color: #1e40af;
            margin: 20px 0 10px 0;
            page-break-after: avoid;
        }

        h1 {
            font-size: 18pt;
            padding-bottom: 6px;
            border-bottom: 2px solid #2563eb;
        }

        h2 {
            font-size: 14pt;
            padding-bottom: 4px;
            border-bottom: 1px solid #e2e8f0;
        }

        h3 {
            font-size: 12pt;
            color: #334155;
        }

        p {
            margin: 6px 0;
            word-wrap: break-word;
        }

        ul, ol {
            margin: 6px 0;
            padding-left: 24px;
        }

        li {
            margin: 3px 0;
        }

        blockquote {
            border-left: 3px solid #2563eb;
            background: #f8fafc;
            padding: 8px 12px;
            margin: 10px 0;
            color: #64748b;
        }

        table {
            width: 100%%;
            border-collapse: collapse;
            margin: 10px 0;
            font-size: 10pt;
            page-break-inside: avoid;
        }

        th, td {
            border: 1px solid #e2e8f0;
            padding: 6px 10px;
            text-align: left;
        }

        th {
            background: #f1f5f9;
            font-weight: 600;
            color: #334155;
        }

        tr:nth-child(even) {
            background: #f8fafc;
        }

        .toc {
            background: #f8fafc;
            border: 1px solid #e2e8f0;
            border-radius: 6px;
            padding: 15px 20px;
            margin-bottom: 25px;
        }

        .toc h2 {
            font-size: 12pt;
            border-bottom: 1px solid #e2e8f0;
            padding-bottom: 8px;
            margin: 0 0 12px 0;
        }

        .toc ul {
            list-style: none;
            padding-left: 16px;
        }

        .toc > ul {
            padding-left: 0;
        }

        .toc a {
            color: #2563eb;
            text-decoration: none;
        }

        @media print {
            body {
                -webkit-print-color-adjust: exact;
                print-color-adjust: exact;
            }

            .toc {
                page-break-after: always;
            }

            pre, blockquote, table {
                page-break-inside: avoid;
            }

            p, li {
                orphans: 3;
                widows: 3;
            }
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="toc">
            <h2>Contents</h2>
            %s
        </div>
        <div class="content">
%s
        </div>
    </div>
</body>
</html>`
