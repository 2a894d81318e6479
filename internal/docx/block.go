package docx

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// BlockKind classifies a top-level body element
type BlockKind int

const (
	// KindParagraph is a w:p element
	KindParagraph BlockKind = iota
	// KindTable is a w:tbl element
	KindTable
	// KindOther covers any other body child (sdt, bookmarks, ...)
	KindOther
)

// Block is one top-level body element kept as raw XML.
// Paragraph blocks carry read-only parsed fields; mutating a block means
// replacing it.
type Block struct {
	Kind BlockKind
	Raw  []byte

	// Paragraph-only fields
	StyleID string
	Text    string
	// HeadingLevel is 1..6 for recognized heading paragraphs, 0 otherwise
	HeadingLevel int
}

// headingStyleRe matches heading style names and ids like "heading 1" or "Heading1"
var headingStyleRe = regexp.MustCompile(`(?i)^heading\s*(\d+)$`)

// newBlock classifies a raw body element and parses paragraph metadata
func newBlock(name string, raw []byte, styles map[string]string) Block {
	b := Block{Raw: raw}
	switch name {
	case "p":
		b.Kind = KindParagraph
		b.StyleID, b.Text = parseParagraph(raw)
		b.HeadingLevel = headingLevel(b.StyleID, styles)
	case "tbl":
		b.Kind = KindTable
	default:
		b.Kind = KindOther
	}
	return b
}

// IsHeading reports whether the block is a recognized heading paragraph
func (b Block) IsHeading() bool {
	return b.HeadingLevel > 0
}

// TableCells extracts the plain text of every cell, row by row. Text of
// nested tables joins into the owning cell. Non-table blocks return nil.
func (b Block) TableCells() [][]string {
	if b.Kind != KindTable {
		return nil
	}

	dec := xml.NewDecoder(bytes.NewReader(b.Raw))

	var rows [][]string
	var row []string
	var cell strings.Builder
	inText := false
	cellDepth := 0

	for {
		tok, err := dec.RawToken()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tc":
				cellDepth++
				if cellDepth == 1 {
					cell.Reset()
				}
			case "t":
				inText = true
			case "tab":
				if cellDepth > 0 {
					cell.WriteByte('\t')
				}
			case "br", "cr":
				if cellDepth > 0 {
					cell.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tc":
				cellDepth--
				if cellDepth == 0 {
					row = append(row, cell.String())
				}
			case "tr":
				if cellDepth == 0 && row != nil {
					rows = append(rows, row)
					row = nil
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && cellDepth > 0 {
				cell.Write(t)
			}
		}
	}

	return rows
}

// headingLevel resolves a paragraph style to a heading level.
// The style name from styles.xml is authoritative when defined; ids of
// styles missing from the package are matched directly as a fallback.
// Levels outside 1..6 are treated as regular content.
func headingLevel(styleID string, styles map[string]string) int {
	if styleID == "" {
		return 0
	}

	candidate := styleID
	if name, ok := styles[styleID]; ok && name != "" {
		candidate = name
	}

	m := headingStyleRe.FindStringSubmatch(candidate)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 6 {
		return 0
	}
	return n
}

// parseParagraph extracts the paragraph style id and concatenated text.
// Text is the joined content of all w:t descendants; w:tab contributes a
// tab and w:br a newline, matching how word processors expose plain text.
func parseParagraph(raw []byte) (styleID, text string) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var sb strings.Builder
	inText := false
	depth := 0
	pPrDepth := -1

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "pPr":
				pPrDepth = depth
			case "pStyle":
				if pPrDepth > 0 && depth == pPrDepth+1 {
					for _, attr := range t.Attr {
						if attr.Name.Local == "val" {
							styleID = attr.Value
						}
					}
				}
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "pPr":
				pPrDepth = -1
			case "t":
				inText = false
			}
			depth--
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return styleID, sb.String()
}

// parseStyles builds the style id to name map from word/styles.xml.
// A missing or malformed styles part yields an empty map; heading detection
// then falls back to matching raw style ids.
func parseStyles(raw []byte) map[string]string {
	styles := make(map[string]string)
	if len(raw) == 0 {
		return styles
	}

	dec := xml.NewDecoder(bytes.NewReader(raw))
	currentID := ""
	depth := 0
	styleDepth := -1

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "style":
				styleDepth = depth
				currentID = ""
				for _, attr := range t.Attr {
					if attr.Name.Local == "styleId" {
						currentID = attr.Value
					}
				}
				if currentID != "" {
					// Register even when the name element is missing
					styles[currentID] = ""
				}
			case "name":
				if currentID != "" && styleDepth > 0 && depth == styleDepth+1 {
					for _, attr := range t.Attr {
						if attr.Name.Local == "val" {
							styles[currentID] = attr.Value
						}
					}
				}
			}
		case xml.EndElement:
			if t.Name.Local == "style" {
				currentID = ""
				styleDepth = -1
			}
			depth--
		}
	}

	return styles
}
