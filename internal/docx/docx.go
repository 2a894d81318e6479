// Package docx implements a block-level OOXML layer for .docx packages.
// A document is opened from its zip container; every part is held verbatim
// except word/document.xml, whose body is split into an ordered slice of
// block elements (paragraphs, tables, anything else) kept as raw XML.
// Mutations are slice operations on the block list; saving reassembles the
// body and rewrites the zip, so untouched parts round-trip byte-identical.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"os"

	"github.com/draftforge/draftforge/pkg/errors"
)

const (
	documentPart = "word/document.xml"
	stylesPart   = "word/styles.xml"
	commentsPart = "word/comments.xml"
)

// part is a single zip entry held verbatim
type part struct {
	name string
	data []byte
}

// Document is an in-memory .docx package with a parsed body
type Document struct {
	path  string
	parts []part // zip entries in original order

	// document.xml split: prefix covers everything up to and including the
	// <w:body> open tag, suffix starts at the trailing sectPr (or </w:body>)
	prefix []byte
	suffix []byte
	blocks []Block

	styles map[string]string // style id -> style name
}

// Open reads a .docx file from disk
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDocumentStorage, "failed to read document file", err)
	}

	doc, err := OpenBytes(data)
	if err != nil {
		return nil, err
	}
	doc.path = path
	return doc, nil
}

// OpenBytes parses a .docx package from memory
func OpenBytes(data []byte) (*Document, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDocumentFormat, "not a valid docx package", err)
	}

	doc := &Document{}
	var documentXML []byte
	var stylesXML []byte

	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDocumentFormat, "failed to open docx part "+f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDocumentFormat, "failed to read docx part "+f.Name, err)
		}

		doc.parts = append(doc.parts, part{name: f.Name, data: content})
		switch f.Name {
		case documentPart:
			documentXML = content
		case stylesPart:
			stylesXML = content
		}
	}

	if documentXML == nil {
		return nil, errors.New(errors.ErrCodeDocumentFormat, "docx package has no word/document.xml")
	}

	doc.styles = parseStyles(stylesXML)

	if err := doc.parseBody(documentXML); err != nil {
		return nil, err
	}
	return doc, nil
}

// parseBody splits the document.xml body into top-level block elements.
// Raw byte slices are taken via decoder offsets so the original markup,
// namespaces included, is preserved exactly.
func (d *Document) parseBody(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))

	depth := 0
	inBody := false
	bodyDepth := 0
	prefixEnd := int64(-1)
	suffixStart := int64(-1)
	blockStart := int64(-1)
	blockName := ""

	for {
		off := dec.InputOffset()
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeDocumentParse, "malformed document.xml", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if !inBody && t.Name.Local == "body" {
				inBody = true
				bodyDepth = depth
				prefixEnd = dec.InputOffset()
				continue
			}
			if inBody && depth == bodyDepth+1 && suffixStart < 0 {
				if t.Name.Local == "sectPr" {
					// Trailing section properties stay with the suffix
					suffixStart = off
				} else if blockStart < 0 {
					blockStart = off
					blockName = t.Name.Local
				}
			}
		case xml.EndElement:
			if inBody && depth == bodyDepth+1 && blockStart >= 0 {
				raw := append([]byte(nil), data[blockStart:dec.InputOffset()]...)
				d.blocks = append(d.blocks, newBlock(blockName, raw, d.styles))
				blockStart = -1
			}
			if inBody && depth == bodyDepth && t.Name.Local == "body" {
				if suffixStart < 0 {
					suffixStart = off
				}
				inBody = false
			}
			depth--
		}
	}

	if prefixEnd < 0 || suffixStart < 0 {
		return errors.New(errors.ErrCodeDocumentParse, "document.xml has no body element")
	}

	d.prefix = append([]byte(nil), data[:prefixEnd]...)
	d.suffix = append([]byte(nil), data[suffixStart:]...)
	return nil
}

// Path returns the on-disk location the document was opened from (empty for in-memory documents)
func (d *Document) Path() string {
	return d.path
}

// SetPath rebinds the document to a storage location
func (d *Document) SetPath(path string) {
	d.path = path
}

// Blocks returns the ordered body blocks. The slice must not be mutated directly.
func (d *Document) Blocks() []Block {
	return d.blocks
}

// BlockCount returns the number of body blocks
func (d *Document) BlockCount() int {
	return len(d.blocks)
}

// Block returns the block at index i
func (d *Document) Block(i int) Block {
	return d.blocks[i]
}

// HasStyle reports whether the package defines the given style id
func (d *Document) HasStyle(styleID string) bool {
	_, ok := d.styles[styleID]
	return ok
}

// StyleName resolves a style id to its display name (empty when unknown)
func (d *Document) StyleName(styleID string) string {
	return d.styles[styleID]
}

// InsertBlocks inserts blocks before index i. i == len(blocks) appends at body end.
func (d *Document) InsertBlocks(i int, blocks []Block) {
	if i < 0 {
		i = 0
	}
	if i > len(d.blocks) {
		i = len(d.blocks)
	}
	out := make([]Block, 0, len(d.blocks)+len(blocks))
	out = append(out, d.blocks[:i]...)
	out = append(out, blocks...)
	out = append(out, d.blocks[i:]...)
	d.blocks = out
}

// RemoveBlocks deletes blocks in the half-open range [from, to)
func (d *Document) RemoveBlocks(from, to int) {
	if from < 0 {
		from = 0
	}
	if to > len(d.blocks) {
		to = len(d.blocks)
	}
	if from >= to {
		return
	}
	d.blocks = append(d.blocks[:from], d.blocks[to:]...)
}

// Bytes reassembles the document and returns the full .docx package
func (d *Document) Bytes() ([]byte, error) {
	var body bytes.Buffer
	body.Write(d.prefix)
	for _, b := range d.blocks {
		body.Write(b.Raw)
	}
	body.Write(d.suffix)

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, p := range d.parts {
		w, err := zw.Create(p.name)
		if err != nil {
			zw.Close()
			return nil, errors.Wrap(errors.ErrCodeDocumentStorage, "failed to write docx part "+p.name, err)
		}
		content := p.data
		if p.name == documentPart {
			content = body.Bytes()
		}
		if _, err := w.Write(content); err != nil {
			zw.Close()
			return nil, errors.Wrap(errors.ErrCodeDocumentStorage, "failed to write docx part "+p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDocumentStorage, "failed to finalize docx package", err)
	}
	return out.Bytes(), nil
}

// Save writes the document back to the path it was opened from
func (d *Document) Save() error {
	if d.path == "" {
		return errors.New(errors.ErrCodeDocumentStorage, "document has no storage path")
	}
	return d.SaveAs(d.path)
}

// SaveAs writes the document to the given path
func (d *Document) SaveAs(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeDocumentStorage, "failed to write document file", err)
	}
	return nil
}
