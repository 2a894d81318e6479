package section

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

// TrackingEntry records the edit state of one section, keyed by hash in
// the sidecar so it survives reloads and id changes
type TrackingEntry struct {
	Edited       bool      `json:"edited"`
	LastModified time.Time `json:"last_modified"`
	SectionPath  string    `json:"section_path"`
}

// entry holds one loaded document with its tree and edit tracking.
// The entry lock serializes writers; readers take snapshots under RLock.
type entry struct {
	mu       sync.RWMutex
	doc      *docx.Document
	tree     *Tree
	tracking map[string]TrackingEntry
}

// Manager owns every loaded document keyed by document id
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewManager creates an empty section manager
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// Put registers a parsed document, replacing any previous entry for the id.
// Edit tracking is loaded from the sidecar when one exists on disk.
func (m *Manager) Put(documentID string, doc *docx.Document, tree *Tree) {
	e := &entry{
		doc:      doc,
		tree:     tree,
		tracking: loadTracking(trackingPath(doc.Path())),
	}

	m.mu.Lock()
	m.entries[documentID] = e
	m.mu.Unlock()
}

// Get returns the current document and tree snapshot
func (m *Manager) Get(documentID string) (*docx.Document, *Tree, bool) {
	e := m.entry(documentID)
	if e == nil {
		return nil, nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doc, e.tree, true
}

// Loaded reports whether the document is currently in memory
func (m *Manager) Loaded(documentID string) bool {
	return m.entry(documentID) != nil
}

// DocumentIDs lists the ids of all loaded documents
func (m *Manager) DocumentIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids
}

// EnsureLoaded opens and parses the document from its storage path unless
// it is already in memory
func (m *Manager) EnsureLoaded(documentID, storedPath string) error {
	if m.Loaded(documentID) {
		return nil
	}

	doc, err := docx.Open(storedPath)
	if err != nil {
		return err
	}
	m.Put(documentID, doc, Parse(doc, documentID))
	return nil
}

// FindSection resolves a section id within a document
func (m *Manager) FindSection(documentID, sectionID string) (*Section, error) {
	_, tree, ok := m.Get(documentID)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "document %s not loaded", documentID)
	}
	s := tree.Find(sectionID)
	if s == nil {
		return nil, errors.Newf(errors.ErrCodeSectionNotFound, "section %s not found", sectionID)
	}
	return s, nil
}

// FindSectionByPath resolves a section by its full path, used to re-bind
// a selection after reload
func (m *Manager) FindSectionByPath(documentID, path string) (*Section, error) {
	_, tree, ok := m.Get(documentID)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotFound, "document %s not loaded", documentID)
	}
	s := tree.FindByPath(path)
	if s == nil {
		return nil, errors.Newf(errors.ErrCodeSectionNotFound, "no section with path %q", path)
	}
	return s, nil
}

// WithDocument runs fn under the document's writer lock. When fn returns a
// non-nil tree the entry's tree is replaced, keeping block indexes and the
// in-memory document consistent after a commit.
func (m *Manager) WithDocument(documentID string, fn func(doc *docx.Document, tree *Tree) (*Tree, error)) error {
	e := m.entry(documentID)
	if e == nil {
		return errors.Newf(errors.ErrCodeNotFound, "document %s not loaded", documentID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	newTree, err := fn(e.doc, e.tree)
	if newTree != nil {
		e.tree = newTree
	}
	return err
}

// MarkEdited flags a section as machine-edited and persists the sidecar
func (m *Manager) MarkEdited(documentID, sectionHash, sectionPath string) error {
	e := m.entry(documentID)
	if e == nil {
		return errors.Newf(errors.ErrCodeNotFound, "document %s not loaded", documentID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tracking[sectionHash] = TrackingEntry{
		Edited:       true,
		LastModified: time.Now(),
		SectionPath:  sectionPath,
	}
	return saveTracking(trackingPath(e.doc.Path()), e.tracking)
}

// IsEdited reports the tracked edit state for a section hash
func (m *Manager) IsEdited(documentID, sectionHash string) bool {
	e := m.entry(documentID)
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tracking[sectionHash].Edited
}

// Tracking returns a copy of the document's edit-state map
func (m *Manager) Tracking(documentID string) map[string]TrackingEntry {
	e := m.entry(documentID)
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]TrackingEntry, len(e.tracking))
	for k, v := range e.tracking {
		out[k] = v
	}
	return out
}

// Reload re-parses the document from its storage path. Edit tracking is
// keyed by section hash and survives the rebuild.
func (m *Manager) Reload(documentID string) error {
	e := m.entry(documentID)
	if e == nil {
		return errors.Newf(errors.ErrCodeNotFound, "document %s not loaded", documentID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := docx.Open(e.doc.Path())
	if err != nil {
		return err
	}
	e.doc = doc
	e.tree = Parse(doc, documentID)
	return nil
}

// Remove drops the document from memory and deletes its tracking sidecar
func (m *Manager) Remove(documentID string) {
	m.mu.Lock()
	e, ok := m.entries[documentID]
	delete(m.entries, documentID)
	m.mu.Unlock()

	if !ok {
		return
	}

	e.mu.Lock()
	path := trackingPath(e.doc.Path())
	e.mu.Unlock()

	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove tracking sidecar", zap.String("path", path), zap.Error(err))
	}
}

// entry fetches the entry for a document id under the map lock
func (m *Manager) entry(documentID string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[documentID]
}

// SidecarPath returns the tracking sidecar location for a document path,
// for callers that clean up after an unloaded document.
func SidecarPath(docPath string) string {
	return trackingPath(docPath)
}

// trackingPath derives the sidecar location: a dotfile next to the
// document named .<stem>_tracking.json
func trackingPath(docPath string) string {
	if docPath == "" {
		return ""
	}
	dir := filepath.Dir(docPath)
	base := filepath.Base(docPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "."+stem+"_tracking.json")
}

// loadTracking reads the sidecar, returning an empty map when absent or
// unreadable
func loadTracking(path string) map[string]TrackingEntry {
	tracking := make(map[string]TrackingEntry)
	if path == "" {
		return tracking
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tracking
	}
	if err := json.Unmarshal(data, &tracking); err != nil {
		logger.Warn("Ignoring malformed tracking sidecar", zap.String("path", path), zap.Error(err))
		return make(map[string]TrackingEntry)
	}
	return tracking
}

// saveTracking writes the sidecar atomically: temp file in the same
// directory, then rename
func saveTracking(path string, tracking map[string]TrackingEntry) error {
	if path == "" {
		return errors.New(errors.ErrCodeDocumentStorage, "document has no storage path for tracking sidecar")
	}

	data, err := json.MarshalIndent(tracking, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeDocumentStorage, "failed to encode tracking sidecar", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tracking_*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeDocumentStorage, "failed to create tracking temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(errors.ErrCodeDocumentStorage, "failed to write tracking temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(errors.ErrCodeDocumentStorage, "failed to close tracking temp file", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(errors.ErrCodeDocumentStorage, "failed to replace tracking sidecar", err)
	}
	return nil
}
