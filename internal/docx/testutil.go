// Package docx provides test fixture builders for docx-based tests.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// TestItem describes one body paragraph of a built test document
type TestItem struct {
	// Heading is the heading level 1..6, or 0 for a plain content paragraph
	Heading int
	Text    string
	// StyleID overrides the style derived from Heading when non-empty
	StyleID string
	// Comment anchors a reviewer comment to this paragraph
	Comment *TestComment
}

// TestComment is a reviewer comment attached to a TestItem
type TestComment struct {
	ID     string
	Author string
	Date   string
	Text   string
}

// BuildTestDocx assembles a minimal .docx package with the standard heading,
// list and quote styles defined. Intended for tests only.
func BuildTestDocx(items ...TestItem) []byte {
	return buildTestDocx(items, true)
}

// BuildTestDocxNoStyles assembles a .docx package without a styles part,
// exercising the literal-prefix fallbacks. Intended for tests only.
func BuildTestDocxNoStyles(items ...TestItem) []byte {
	return buildTestDocx(items, false)
}

const wNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

func buildTestDocx(items []TestItem, withStyles bool) []byte {
	var body bytes.Buffer
	var comments []TestComment

	for _, item := range items {
		styleID := item.StyleID
		if styleID == "" && item.Heading >= 1 {
			styleID = "Heading" + strconv.Itoa(item.Heading)
		}

		body.WriteString("<w:p>")
		if styleID != "" {
			body.WriteString(`<w:pPr><w:pStyle w:val="` + styleID + `"/></w:pPr>`)
		}
		body.WriteString("<w:r><w:t xml:space=\"preserve\">")
		writeEscaped(&body, item.Text)
		body.WriteString("</w:t></w:r>")
		if item.Comment != nil {
			body.WriteString(`<w:r><w:commentReference w:id="` + item.Comment.ID + `"/></w:r>`)
			comments = append(comments, *item.Comment)
		}
		body.WriteString("</w:p>")
	}

	documentXML := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="` + wNamespace + `"><w:body>` +
		body.String() +
		`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/></w:sectPr></w:body></w:document>`

	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`,
		documentPart: documentXML,
	}

	if withStyles {
		var styles strings.Builder
		styles.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
		styles.WriteString(`<w:styles xmlns:w="` + wNamespace + `">`)
		for i := 1; i <= 6; i++ {
			styles.WriteString(fmt.Sprintf(
				`<w:style w:type="paragraph" w:styleId="Heading%d"><w:name w:val="heading %d"/></w:style>`, i, i))
		}
		styles.WriteString(`<w:style w:type="paragraph" w:styleId="ListParagraph"><w:name w:val="List Paragraph"/></w:style>`)
		styles.WriteString(`<w:style w:type="paragraph" w:styleId="ListBullet"><w:name w:val="List Bullet"/></w:style>`)
		styles.WriteString(`<w:style w:type="paragraph" w:styleId="ListNumber"><w:name w:val="List Number"/></w:style>`)
		styles.WriteString(`<w:style w:type="paragraph" w:styleId="Quote"><w:name w:val="Quote"/></w:style>`)
		styles.WriteString(`</w:styles>`)
		parts[stylesPart] = styles.String()
	}

	if len(comments) > 0 {
		var cx bytes.Buffer
		cx.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
		cx.WriteString(`<w:comments xmlns:w="` + wNamespace + `">`)
		for _, c := range comments {
			cx.WriteString(`<w:comment w:id="` + c.ID + `" w:author="`)
			writeEscaped(&cx, c.Author)
			cx.WriteString(`" w:date="` + c.Date + `"><w:p><w:r><w:t>`)
			writeEscaped(&cx, c.Text)
			cx.WriteString(`</w:t></w:r></w:p></w:comment>`)
		}
		cx.WriteString(`</w:comments>`)
		parts[commentsPart] = cx.String()
	}

	// Stable part order: content types and rels first, then word/ parts
	order := []string{"[Content_Types].xml", "_rels/.rels", documentPart, stylesPart, commentsPart}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, name := range order {
		content, ok := parts[name]
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return out.Bytes()
}
