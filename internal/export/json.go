package export

import (
	"encoding/json"
	"time"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/section"
)

// documentJSON is the top-level JSON export payload
type documentJSON struct {
	SectionCount int           `json:"section_count"`
	ExportedAt   time.Time     `json:"exported_at"`
	Sections     []sectionJSON `json:"sections"`
}

// sectionJSON is one exported section with its nested children
type sectionJSON struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Level    int           `json:"level"`
	Path     string        `json:"path"`
	Content  string        `json:"content,omitempty"`
	Children []sectionJSON `json:"children,omitempty"`
}

// JSONExporter renders the section tree with content as indented JSON
type JSONExporter struct{}

// NewJSONExporter creates a JSON exporter
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export renders the section hierarchy with each section's plain text
func (e *JSONExporter) Export(doc *docx.Document, tree *section.Tree) (string, error) {
	payload := documentJSON{
		SectionCount: tree.SectionCount(),
		ExportedAt:   time.Now().UTC(),
		Sections:     sectionsJSON(doc, tree.Roots),
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Name returns the human-readable name of this exporter
func (e *JSONExporter) Name() string {
	return "JSON"
}

// FileExtension returns the file extension for JSON files
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

func sectionsJSON(doc *docx.Document, sections []*section.Section) []sectionJSON {
	out := make([]sectionJSON, 0, len(sections))
	for _, s := range sections {
		out = append(out, sectionJSON{
			ID:       s.ID,
			Title:    s.Title,
			Level:    s.Level,
			Path:     s.Path,
			Content:  s.ContentText(doc),
			Children: sectionsJSON(doc, s.Children),
		})
	}
	return out
}
