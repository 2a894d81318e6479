package docx

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
)

// RunProps are the character-level properties the writer can emit
type RunProps struct {
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	// Highlight is an OOXML highlight color name (yellow, green, cyan, ...)
	Highlight string
	// Color is a hex RRGGBB font color
	Color string
	// SizeHalfPoints sets the font size in half-points (0 = inherit)
	SizeHalfPoints int
	// Mono switches the run to a monospace font
	Mono bool
}

// Run is a styled text span inside a new paragraph
type Run struct {
	Text  string
	Props RunProps
}

// ParagraphSpec describes a paragraph to render
type ParagraphSpec struct {
	// StyleID is an optional paragraph style (Heading1, ListParagraph, ...)
	StyleID string
	// FallbackPrefix is prepended to the text when StyleID is not defined
	// by the package (list markers on style-less documents)
	FallbackPrefix string
	// FallbackBold emboldens all runs when StyleID is not defined (headings)
	FallbackBold bool
	// QuoteIndent indents the paragraph (block quotes)
	QuoteIndent bool
	// BottomBorder draws a bottom border (horizontal rules)
	BottomBorder bool
	Runs         []Run
}

// TableCell is one cell of a rendered table
type TableCell struct {
	Runs []Run
}

// TableSpec describes a grid table to render; Rows[0] is the header row
type TableSpec struct {
	Rows [][]TableCell
}

const monoFont = "Consolas"

// RenderParagraph renders a paragraph spec into a block. Style ids missing
// from the package fall back to a literal prefix and optional bolding so the
// output degrades gracefully on minimal documents.
func (d *Document) RenderParagraph(spec ParagraphSpec) Block {
	styleID := spec.StyleID
	runs := spec.Runs

	if styleID != "" && !d.HasStyle(styleID) {
		styleID = ""
		if spec.FallbackBold {
			for i := range runs {
				runs[i].Props.Bold = true
			}
		}
		if spec.FallbackPrefix != "" {
			runs = append([]Run{{Text: spec.FallbackPrefix}}, runs...)
			if spec.FallbackBold {
				runs[0].Props.Bold = true
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString("<w:p>")

	if styleID != "" || spec.QuoteIndent || spec.BottomBorder {
		buf.WriteString("<w:pPr>")
		if styleID != "" {
			buf.WriteString(`<w:pStyle w:val="`)
			writeEscaped(&buf, styleID)
			buf.WriteString(`"/>`)
		}
		if spec.BottomBorder {
			buf.WriteString(`<w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="auto"/></w:pBdr>`)
		}
		if spec.QuoteIndent {
			buf.WriteString(`<w:ind w:left="720"/>`)
		}
		buf.WriteString("</w:pPr>")
	}

	var text strings.Builder
	for _, r := range runs {
		writeRun(&buf, r)
		text.WriteString(r.Text)
	}
	buf.WriteString("</w:p>")

	return Block{
		Kind:         KindParagraph,
		Raw:          buf.Bytes(),
		StyleID:      styleID,
		Text:         text.String(),
		HeadingLevel: headingLevel(styleID, d.styles),
	}
}

// RenderTable renders a grid table with single borders on every edge
func (d *Document) RenderTable(spec TableSpec) Block {
	cols := 0
	for _, row := range spec.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("<w:tbl><w:tblPr><w:tblW w:w=\"0\" w:type=\"auto\"/>")
	buf.WriteString(`<w:tblBorders>` +
		`<w:top w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:left w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:right w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:insideV w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`</w:tblBorders></w:tblPr>`)

	buf.WriteString("<w:tblGrid>")
	for i := 0; i < cols; i++ {
		buf.WriteString("<w:gridCol/>")
	}
	buf.WriteString("</w:tblGrid>")

	for _, row := range spec.Rows {
		buf.WriteString("<w:tr>")
		for c := 0; c < cols; c++ {
			buf.WriteString("<w:tc><w:p>")
			if c < len(row) {
				for _, r := range row[c].Runs {
					writeRun(&buf, r)
				}
			}
			buf.WriteString("</w:p></w:tc>")
		}
		buf.WriteString("</w:tr>")
	}
	buf.WriteString("</w:tbl>")

	return Block{Kind: KindTable, Raw: buf.Bytes()}
}

// writeRun emits a w:r element. Newlines become w:br and tabs w:tab so the
// original line structure survives in the rendered paragraph.
func writeRun(buf *bytes.Buffer, r Run) {
	buf.WriteString("<w:r>")
	writeRunProps(buf, r.Props)

	lines := strings.Split(r.Text, "\n")
	for li, line := range lines {
		if li > 0 {
			buf.WriteString("<w:br/>")
		}
		segments := strings.Split(line, "\t")
		for si, seg := range segments {
			if si > 0 {
				buf.WriteString("<w:tab/>")
			}
			if seg == "" {
				continue
			}
			if seg != strings.TrimSpace(seg) {
				buf.WriteString(`<w:t xml:space="preserve">`)
			} else {
				buf.WriteString("<w:t>")
			}
			writeEscaped(buf, seg)
			buf.WriteString("</w:t>")
		}
	}
	buf.WriteString("</w:r>")
}

// writeRunProps emits a w:rPr element, or nothing for default-styled runs
func writeRunProps(buf *bytes.Buffer, p RunProps) {
	if p == (RunProps{}) {
		return
	}

	buf.WriteString("<w:rPr>")
	if p.Mono {
		buf.WriteString(`<w:rFonts w:ascii="` + monoFont + `" w:hAnsi="` + monoFont + `" w:cs="` + monoFont + `"/>`)
	}
	if p.Bold {
		buf.WriteString("<w:b/>")
	}
	if p.Italic {
		buf.WriteString("<w:i/>")
	}
	if p.Strike {
		buf.WriteString("<w:strike/>")
	}
	if p.Underline {
		buf.WriteString(`<w:u w:val="single"/>`)
	}
	if p.Color != "" {
		buf.WriteString(`<w:color w:val="`)
		writeEscaped(buf, strings.TrimPrefix(p.Color, "#"))
		buf.WriteString(`"/>`)
	}
	if p.SizeHalfPoints > 0 {
		sz := strconv.Itoa(p.SizeHalfPoints)
		buf.WriteString(`<w:sz w:val="` + sz + `"/><w:szCs w:val="` + sz + `"/>`)
	}
	if p.Highlight != "" {
		buf.WriteString(`<w:highlight w:val="`)
		writeEscaped(buf, p.Highlight)
		buf.WriteString(`"/>`)
	}
	buf.WriteString("</w:rPr>")
}

// writeEscaped writes XML-escaped text. Inputs never contain newlines or
// tabs here; those are handled structurally by writeRun.
func writeEscaped(buf *bytes.Buffer, s string) {
	xml.EscapeText(buf, []byte(s)) // bytes.Buffer never errors
}
