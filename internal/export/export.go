// Package export renders parsed documents into portable formats with
// pluggable exporters.
package export

import (
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

// Format identifies an export output format
type Format string

const (
	// FormatMarkdown renders the document blocks as markdown
	FormatMarkdown Format = "markdown"
	// FormatJSON renders the section tree with content as JSON
	FormatJSON Format = "json"
	// FormatHTML renders a self-contained HTML page
	FormatHTML Format = "html"
	// FormatPDF prints the HTML rendering to PDF via headless Chrome
	FormatPDF Format = "pdf"
)

// Exporter renders a parsed document into one output format
type Exporter interface {
	// Export renders the document to string content
	Export(doc *docx.Document, tree *section.Tree) (string, error)
	// Name returns the human-readable name of the exporter (e.g. "HTML")
	Name() string
	// FileExtension returns the extension for this format (e.g. ".html")
	FileExtension() string
}

// Manager holds the registered exporters
type Manager struct {
	exporters map[Format]Exporter
	mu        sync.RWMutex
}

// NewManager creates a manager with all built-in exporters registered
func NewManager() *Manager {
	m := &Manager{exporters: make(map[Format]Exporter)}
	m.Register(FormatMarkdown, NewMarkdownExporter())
	m.Register(FormatJSON, NewJSONExporter())
	m.Register(FormatHTML, NewHTMLExporter())
	m.Register(FormatPDF, NewPDFExporter())
	return m
}

// Register registers an exporter for a format
func (m *Manager) Register(format Format, e Exporter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exporters[format] = e
	logger.Debug("Registered document exporter",
		zap.String("format", string(format)),
		zap.String("name", e.Name()),
	)
}

// Export renders the document with the exporter registered for format
func (m *Manager) Export(doc *docx.Document, tree *section.Tree, format Format) (string, error) {
	exp, err := m.Get(format)
	if err != nil {
		return "", err
	}

	content, err := exp.Export(doc, tree)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, "failed to export with "+exp.Name()+" exporter", err)
	}
	return content, nil
}

// Get returns the exporter registered for format
func (m *Manager) Get(format Format) (Exporter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exp, ok := m.exporters[format]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeValidation, "unsupported export format: %s", format)
	}
	return exp, nil
}

// SupportedFormats returns all registered formats
func (m *Manager) SupportedFormats() []Format {
	m.mu.RLock()
	defer m.mu.RUnlock()

	formats := make([]Format, 0, len(m.exporters))
	for format := range m.exporters {
		formats = append(formats, format)
	}
	return formats
}

// Filename builds a safe download filename for an exported document.
// base is the stored document name; its extension is replaced.
func (m *Manager) Filename(base string, format Format) string {
	name := sanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		name = "document"
	}

	if exp, err := m.Get(format); err == nil {
		return name + exp.FileExtension()
	}
	return name + ".txt"
}

// ContentType returns the response MIME type for a format
func ContentType(format Format) string {
	switch format {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
