package docx

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strings"
)

// Comment is a reviewer comment anchored to a body paragraph
type Comment struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Date   string `json:"date"`
	Text   string `json:"text"`
	// ParagraphIndex is the body block index carrying the comment reference
	ParagraphIndex int `json:"paragraph_index"`
}

var commentRefRe = regexp.MustCompile(`<w:commentReference[^>]*w:id="([^"]+)"`)

// Comments extracts reviewer comments from word/comments.xml, best-effort.
// Each comment is associated to the paragraph holding its commentReference
// mark; comments without a resolvable anchor are dropped.
func (d *Document) Comments() []Comment {
	var commentsXML []byte
	for _, p := range d.parts {
		if p.name == commentsPart {
			commentsXML = p.data
			break
		}
	}
	if commentsXML == nil {
		return nil
	}

	byID := parseComments(commentsXML)
	if len(byID) == 0 {
		return nil
	}

	var out []Comment
	for i, b := range d.blocks {
		if b.Kind != KindParagraph {
			continue
		}
		for _, m := range commentRefRe.FindAllSubmatch(b.Raw, -1) {
			c, ok := byID[string(m[1])]
			if !ok {
				continue
			}
			c.ParagraphIndex = i
			out = append(out, c)
		}
	}
	return out
}

// parseComments reads (author, date, text) tuples keyed by comment id
func parseComments(raw []byte) map[string]Comment {
	comments := make(map[string]Comment)

	dec := xml.NewDecoder(bytes.NewReader(raw))
	var current *Comment
	var text strings.Builder
	inText := false

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Best-effort: keep whatever parsed cleanly
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "comment":
				c := Comment{}
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "id":
						c.ID = attr.Value
					case "author":
						c.Author = attr.Value
					case "date":
						c.Date = attr.Value
					}
				}
				current = &c
				text.Reset()
			case "t":
				if current != nil {
					inText = true
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "comment":
				if current != nil && current.ID != "" {
					current.Text = strings.TrimSpace(text.String())
					comments[current.ID] = *current
				}
				current = nil
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		}
	}

	return comments
}
