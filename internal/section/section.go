// Package section builds and maintains the heading tree of a document.
// Sections are spans of non-heading content attached to a heading paragraph;
// the tree mirrors the heading hierarchy and addresses blocks by position so
// it survives reloads.
package section

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/draftforge/draftforge/internal/docx"
)

// PathSeparator joins ancestor heading texts into a section path
const PathSeparator = " > "

// Section is one heading with its attached content span
type Section struct {
	// ID is <document_id>_section_<N> with N the pre-order heading index
	ID string `json:"id"`
	// Hash is the sha256 hex of the full path; it survives reloads as long
	// as the heading ancestry is unchanged
	Hash  string `json:"hash"`
	Level int    `json:"level"`
	Title string `json:"title"`
	// Path is the " > "-joined ancestor heading texts plus the own title
	Path string `json:"path"`

	Parent   *Section   `json:"-"`
	Children []*Section `json:"children,omitempty"`

	// HeadingBlock indexes the heading paragraph in the document block slice
	HeadingBlock int `json:"heading_block"`
	// ContentBlocks indexes the non-heading blocks owned by this section
	ContentBlocks []int `json:"content_blocks,omitempty"`
}

// Tree is the parsed section hierarchy of one document
type Tree struct {
	Roots []*Section
	// Flat is the pre-order traversal, equal to document heading order
	Flat []*Section

	byID map[string]*Section
}

// Parse walks the document blocks and builds the section tree.
// Heading paragraphs open sections; every other block is content for the
// most recently opened section. Content before the first heading is
// discarded. A document without headings yields an empty tree.
func Parse(doc *docx.Document, documentID string) *Tree {
	tree := &Tree{byID: make(map[string]*Section)}

	var stack []*Section
	var current *Section
	seq := 0

	for i, b := range doc.Blocks() {
		if b.Kind == docx.KindParagraph && b.IsHeading() {
			seq++
			s := &Section{
				ID:           fmt.Sprintf("%s_section_%d", documentID, seq),
				Level:        b.HeadingLevel,
				Title:        b.Text,
				HeadingBlock: i,
			}

			// Pop ancestors at the same or deeper level
			for len(stack) > 0 && stack[len(stack)-1].Level >= s.Level {
				stack = stack[:len(stack)-1]
			}

			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				s.Parent = parent
				parent.Children = append(parent.Children, s)
				s.Path = parent.Path + PathSeparator + s.Title
			} else {
				tree.Roots = append(tree.Roots, s)
				s.Path = s.Title
			}
			s.Hash = HashPath(s.Path)

			stack = append(stack, s)
			tree.Flat = append(tree.Flat, s)
			tree.byID[s.ID] = s
			current = s
			continue
		}

		if current != nil {
			current.ContentBlocks = append(current.ContentBlocks, i)
		}
	}

	return tree
}

// HashPath derives the stable section hash from a full path
func HashPath(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Find returns the section with the given id, or nil
func (t *Tree) Find(id string) *Section {
	return t.byID[id]
}

// FindByPath returns the first section with the given full path, or nil.
// Used to re-bind a selection after a reload changed section ids.
func (t *Tree) FindByPath(path string) *Section {
	for _, s := range t.Flat {
		if s.Path == path {
			return s
		}
	}
	return nil
}

// SectionCount returns the number of sections in the tree
func (t *Tree) SectionCount() int {
	return len(t.Flat)
}

// Outline renders the indented pre-order heading list used in prompts
// and exports
func (t *Tree) Outline() string {
	var sb strings.Builder
	for _, s := range t.Flat {
		sb.WriteString(strings.Repeat("  ", s.Level-1))
		sb.WriteString(s.Title)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Ancestors returns the path from the root to the section's parent,
// outermost first
func (s *Section) Ancestors() []*Section {
	var out []*Section
	for p := s.Parent; p != nil; p = p.Parent {
		out = append([]*Section{p}, out...)
	}
	return out
}

// SiblingTitles returns the titles of the other sections sharing this
// section's parent (or the other roots), in document order
func (s *Section) SiblingTitles(t *Tree) []string {
	peers := t.Roots
	if s.Parent != nil {
		peers = s.Parent.Children
	}
	var titles []string
	for _, p := range peers {
		if p != s {
			titles = append(titles, p.Title)
		}
	}
	return titles
}

// ContentText joins the plain text of the section's content blocks.
// Table and other non-paragraph blocks contribute nothing.
func (s *Section) ContentText(doc *docx.Document) string {
	var sb strings.Builder
	for _, i := range s.ContentBlocks {
		if i < 0 || i >= doc.BlockCount() {
			continue
		}
		b := doc.Block(i)
		if b.Kind != docx.KindParagraph {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(b.Text)
	}
	return sb.String()
}

// HasContent reports whether the section has any non-whitespace content
func (s *Section) HasContent(doc *docx.Document) bool {
	return strings.TrimSpace(s.ContentText(doc)) != ""
}
