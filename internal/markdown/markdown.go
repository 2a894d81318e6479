// Package markdown converts the restricted markdown dialect produced by
// language models into ordered block descriptors ready for insertion into
// a document. Unsupported constructs pass through as literal text.
package markdown

import (
	"strings"
)

// BlockType discriminates the converted block kinds
type BlockType int

const (
	// Paragraph is a plain text paragraph
	Paragraph BlockType = iota
	// Heading is a heading paragraph with Level 1..6
	Heading
	// Bullet is an unordered list item
	Bullet
	// Numbered is an ordered list item
	Numbered
	// Quote is an indented block quote paragraph
	Quote
	// Code is a fenced code block rendered as one monospace paragraph
	Code
	// Rule is a horizontal rule (empty paragraph with a bottom border)
	Rule
	// Table is a grid table; Rows[0] is the bolded header row
	Table
)

// Span is a styled text run inside a converted block. The configured
// formatting overlay is already merged in.
type Span struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	// Code marks inline code and code block content (monospace)
	Code bool
	// Highlight is an OOXML highlight color name
	Highlight string
	// Color is a hex RRGGBB font color
	Color string
	// FontSize is in half-points (0 = inherit)
	FontSize int
}

// Block is one converted output element
type Block struct {
	Type  BlockType
	Level int    // heading level for Heading blocks
	Spans []Span // inline content for paragraph-like blocks
	// Rows holds table cells as spans; Rows[0] is the header row
	Rows [][][]Span
}

// Formatting is the overlay applied to machine-generated runs.
// Highlight, when set, marks every emitted run; bold, italic and underline
// apply only to runs not already styled by markdown; the font color yields
// to colors set by inline constructs (code, links).
type Formatting struct {
	Highlight string
	Bold      bool
	Italic    bool
	Underline bool
	FontSize  int
	FontColor string
}

// Inline construct colors (hex RRGGBB)
const (
	codeColor = "C7254E"
	linkColor = "0563C1"
)

// Converter turns markdown text into blocks with the overlay applied
type Converter struct {
	formatting Formatting
}

// NewConverter creates a converter with the given formatting overlay
func NewConverter(f Formatting) *Converter {
	return &Converter{formatting: f}
}

// Convert parses text into blocks. Every line is one block; paragraphs
// textually equal to headingText (case-insensitive, after trimming and
// stripping heading markers) are suppressed so chatty models do not
// duplicate the section heading.
func (c *Converter) Convert(text, headingText string) []Block {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	wantHeading := strings.ToLower(strings.TrimSpace(headingText))

	var blocks []Block
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}

		// Fenced code block: collect verbatim until the closing fence
		if strings.HasPrefix(trimmed, "```") {
			var code []string
			j := i + 1
			closed := false
			for ; j < len(lines); j++ {
				if strings.TrimSpace(lines[j]) == "```" {
					closed = true
					break
				}
				code = append(code, lines[j])
			}
			if closed {
				blocks = append(blocks, c.codeBlock(code))
				i = j
				continue
			}
			// Unterminated fence: the marker line is literal text
			blocks = append(blocks, c.literalParagraph(trimmed))
			continue
		}

		// Horizontal rule
		if isRule(trimmed) {
			blocks = append(blocks, Block{Type: Rule})
			continue
		}

		// Table: needs a header row, a separator row and at least one data row
		if strings.Contains(trimmed, "|") {
			rows, consumed, ok := c.parseTable(lines, i)
			if ok {
				blocks = append(blocks, Block{Type: Table, Rows: rows})
				i += consumed - 1
				continue
			}
			// Malformed tables fall through as literal paragraphs
		}

		// Heading
		if level, rest, ok := splitHeading(trimmed); ok {
			if c.suppressed(rest, wantHeading) {
				continue
			}
			spans := c.overlay(parseInline(rest), true)
			blocks = append(blocks, Block{Type: Heading, Level: level, Spans: spans})
			continue
		}

		// Unordered list item
		if rest, ok := cutMarker(trimmed, "* ", "- "); ok {
			blocks = append(blocks, c.spanBlock(Bullet, rest))
			continue
		}

		// Ordered list item
		if rest, ok := cutNumbered(trimmed); ok {
			blocks = append(blocks, c.spanBlock(Numbered, rest))
			continue
		}

		// Block quote
		if rest, ok := cutMarker(trimmed, "> "); ok {
			blocks = append(blocks, c.spanBlock(Quote, rest))
			continue
		}

		// Plain paragraph
		if c.suppressed(trimmed, wantHeading) {
			continue
		}
		blocks = append(blocks, c.paragraph(trimmed))
	}

	return blocks
}

// suppressed reports whether a paragraph restates the section heading
func (c *Converter) suppressed(line, wantHeading string) bool {
	if wantHeading == "" {
		return false
	}
	plain := plainText(parseInline(line))
	return strings.ToLower(strings.TrimSpace(plain)) == wantHeading
}

func (c *Converter) paragraph(line string) Block {
	return c.spanBlock(Paragraph, line)
}

// literalParagraph keeps the line verbatim; inline markers stay as text
func (c *Converter) literalParagraph(line string) Block {
	return Block{Type: Paragraph, Spans: c.overlay([]Span{{Text: line}}, false)}
}

func (c *Converter) spanBlock(t BlockType, line string) Block {
	return Block{Type: t, Spans: c.overlay(parseInline(line), false)}
}

func (c *Converter) codeBlock(lines []string) Block {
	span := Span{Text: strings.Join(lines, "\n"), Code: true, Color: codeColor}
	return Block{Type: Code, Spans: c.overlay([]Span{span}, false)}
}

// overlay merges the configured formatting into parsed spans.
// Heading spans skip the font size and color so the heading style governs.
func (c *Converter) overlay(spans []Span, heading bool) []Span {
	f := c.formatting
	for i := range spans {
		s := &spans[i]
		if f.Highlight != "" {
			s.Highlight = f.Highlight
		}
		if !heading {
			if f.FontSize > 0 {
				s.FontSize = f.FontSize
			}
			if f.FontColor != "" && s.Color == "" {
				s.Color = f.FontColor
			}
		}
		if !s.Bold && !s.Italic && !s.Underline && !s.Strike && !s.Code {
			s.Bold = s.Bold || f.Bold
			s.Italic = s.Italic || f.Italic
			s.Underline = s.Underline || f.Underline
		}
	}
	return spans
}

// parseTable reads consecutive pipe rows starting at index start.
// Returns the cell grid, the number of lines consumed, and whether the
// shape was valid: header, `-`-only separator, and at least one data row.
func (c *Converter) parseTable(lines []string, start int) ([][][]Span, int, bool) {
	end := start
	for end < len(lines) && strings.Contains(strings.TrimSpace(lines[end]), "|") && strings.TrimSpace(lines[end]) != "" {
		end++
	}
	raw := lines[start:end]
	if len(raw) < 3 {
		return nil, 0, false
	}
	if !isSeparatorRow(raw[1]) {
		return nil, 0, false
	}

	header := splitRow(raw[0])
	var rows [][][]Span

	headerCells := make([][]Span, 0, len(header))
	for _, cell := range header {
		spans := c.overlay(parseInline(cell), false)
		for i := range spans {
			spans[i].Bold = true
		}
		headerCells = append(headerCells, spans)
	}
	rows = append(rows, headerCells)

	for _, line := range raw[2:] {
		cells := splitRow(line)
		rowCells := make([][]Span, 0, len(cells))
		for _, cell := range cells {
			rowCells = append(rowCells, c.overlay(parseInline(cell), false))
		}
		rows = append(rows, rowCells)
	}

	return rows, len(raw), true
}

// splitHeading recognizes `#`..`######` followed by a space
func splitHeading(line string) (level int, rest string, ok bool) {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n < 1 || n > 6 || n >= len(line) || line[n] != ' ' {
		return 0, "", false
	}
	return n, strings.TrimSpace(line[n+1:]), true
}

// cutMarker strips the first matching line marker
func cutMarker(line string, markers ...string) (string, bool) {
	for _, m := range markers {
		if strings.HasPrefix(line, m) {
			return strings.TrimSpace(line[len(m):]), true
		}
	}
	return "", false
}

// cutNumbered strips an `N. ` ordered-list marker
func cutNumbered(line string) (string, bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i+1 >= len(line) || line[i] != '.' || line[i+1] != ' ' {
		return "", false
	}
	return strings.TrimSpace(line[i+2:]), true
}

// isRule recognizes ---, *** and ___ with three or more marker characters
func isRule(line string) bool {
	if len(line) < 3 {
		return false
	}
	ch := line[0]
	if ch != '-' && ch != '*' && ch != '_' {
		return false
	}
	for i := 1; i < len(line); i++ {
		if line[i] != ch {
			return false
		}
	}
	return true
}

// isSeparatorRow recognizes a table separator whose cells are `-`-only
func isSeparatorRow(line string) bool {
	cells := splitRow(line)
	if len(cells) == 0 {
		return false
	}
	for _, cell := range cells {
		if cell == "" {
			return false
		}
		for _, r := range cell {
			if r != '-' {
				return false
			}
		}
	}
	return true
}

// splitRow splits a pipe-delimited row into trimmed cells
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// plainText joins span texts
func plainText(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}
