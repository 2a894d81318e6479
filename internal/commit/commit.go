// Package commit applies generated content to document sections.
// A commit converts markdown to rich-text blocks, splices them into the
// section's content span under one of three modes, and keeps the on-disk
// package, the in-memory tree and the edit-state sidecar consistent.
package commit

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/markdown"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/section"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

const saveAttempts = 3

// saveRetryDelay is the pause between save attempts when the OS reports
// the file busy. A var so tests can shorten it.
var saveRetryDelay = 200 * time.Millisecond

// Request describes one commit operation
type Request struct {
	DocumentID string
	SectionID  string
	// Content is the markdown produced by the model
	Content string
	Mode    model.GenerationMode
	// BackupOverride answers the ask policy for this commit; the first
	// answer is remembered on the document row
	BackupOverride *bool
	// SkipBackup bypasses the backup policy entirely. Batch jobs back up
	// once before their first commit and skip the rest.
	SkipBackup bool
	// Save persists the package after the edit; callers batching several
	// sections may defer saving
	Save bool
	// SaveAs redirects the save to a new location, used to recover after
	// a failed save reported the file busy
	SaveAs string
}

// Result reports what a commit did
type Result struct {
	SectionID   string `json:"section_id"`
	SectionPath string `json:"section_path"`
	// BlocksAdded is the number of body blocks inserted
	BlocksAdded int    `json:"blocks_added"`
	BackupPath  string `json:"backup_path,omitempty"`
	Saved       bool   `json:"saved"`
}

// Committer owns the commit flow for loaded documents
type Committer struct {
	store     store.Store
	sections  *section.Manager
	converter *markdown.Converter
	backups   *BackupManager
}

// NewCommitter creates a committer
func NewCommitter(s store.Store, sections *section.Manager, converter *markdown.Converter, backups *BackupManager) *Committer {
	return &Committer{
		store:     s,
		sections:  sections,
		converter: converter,
		backups:   backups,
	}
}

// Commit applies content to one section. The heading paragraph is never
// touched; REPLACE and REWORK swap the section's content span, APPEND
// inserts before the next heading (or at body end). The section tree is
// rebuilt in place so block indexes stay valid for the next commit.
func (c *Committer) Commit(ctx context.Context, req Request) (*Result, error) {
	if !model.ValidGenerationMode(string(req.Mode)) {
		return nil, errors.Newf(errors.ErrCodeValidation, "invalid generation mode %q", req.Mode)
	}

	row, err := c.store.Document().GetByID(req.DocumentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.Newf(errors.ErrCodeNotFound, "document %s not found", req.DocumentID)
		}
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to load document", err)
	}

	if err := c.sections.EnsureLoaded(row.ID, row.StoredPath); err != nil {
		return nil, err
	}

	res := &Result{SectionID: req.SectionID}
	var target *section.Section
	rememberChoice := false

	err = c.sections.WithDocument(row.ID, func(doc *docx.Document, tree *section.Tree) (*section.Tree, error) {
		s := tree.Find(req.SectionID)
		if s == nil {
			return nil, errors.Newf(errors.ErrCodeSectionNotFound, "section %s not found", req.SectionID)
		}
		target = s

		if !req.SkipBackup {
			doBackup, remember := resolveBackup(row, req.BackupOverride)
			rememberChoice = remember
			if doBackup && doc.Path() != "" {
				path, err := c.backups.Create(doc.Path())
				if err != nil {
					return nil, err
				}
				res.BackupPath = path
			}
		}

		blocks := renderBlocks(doc, c.converter.Convert(req.Content, s.Title))
		res.BlocksAdded = len(blocks)

		next := nextHeading(doc, s.HeadingBlock)
		switch req.Mode {
		case model.ModeAppend:
			doc.InsertBlocks(next, blocks)
		default: // replace, rework
			doc.RemoveBlocks(s.HeadingBlock+1, next)
			doc.InsertBlocks(s.HeadingBlock+1, blocks)
		}

		// The tree is rebuilt even when the save fails below, keeping it
		// consistent with the mutated in-memory document.
		newTree := section.Parse(doc, row.ID)

		if req.Save {
			if err := c.save(ctx, doc, req.SaveAs); err != nil {
				return newTree, err
			}
			res.Saved = true
		}

		return newTree, nil
	})
	if err != nil {
		return nil, err
	}

	res.SectionPath = target.Path

	// MarkEdited takes the entry lock itself, so it must run after
	// WithDocument has released it.
	if err := c.sections.MarkEdited(row.ID, target.Hash, target.Path); err != nil {
		logger.Warn("Failed to persist edit tracking",
			zap.String("document_id", row.ID),
			zap.String("section_id", req.SectionID),
			zap.Error(err),
		)
	}

	now := time.Now()
	if err := c.store.Document().TouchCommit(row.ID, now); err != nil {
		logger.Warn("Failed to record commit time", zap.String("document_id", row.ID), zap.Error(err))
	}
	if res.BackupPath != "" {
		if err := c.store.Document().TouchBackup(row.ID, now); err != nil {
			logger.Warn("Failed to record backup time", zap.String("document_id", row.ID), zap.Error(err))
		}
	}
	if rememberChoice {
		if err := c.store.Document().UpdateBackupPolicy(row.ID, model.BackupAsk, req.BackupOverride); err != nil {
			logger.Warn("Failed to remember backup choice", zap.String("document_id", row.ID), zap.Error(err))
		}
	}

	logger.Info("Section commit applied",
		zap.String("document_id", row.ID),
		zap.String("section_id", req.SectionID),
		zap.String("mode", string(req.Mode)),
		zap.Int("blocks_added", res.BlocksAdded),
		zap.Bool("saved", res.Saved),
	)

	return res, nil
}

// Save persists the in-memory document under the save retry policy,
// rebinding it to path when given. Used to recover after a commit whose
// auto-save failed with the file busy.
func (c *Committer) Save(ctx context.Context, documentID, path string) error {
	return c.sections.WithDocument(documentID, func(doc *docx.Document, _ *section.Tree) (*section.Tree, error) {
		return nil, c.save(ctx, doc, path)
	})
}

// save writes the package with up to three attempts, then reports the
// file busy with a suggested save-as location.
func (c *Committer) save(ctx context.Context, doc *docx.Document, saveAs string) error {
	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if saveAs != "" {
			if err = doc.SaveAs(saveAs); err == nil {
				doc.SetPath(saveAs)
				return nil
			}
		} else {
			if err = doc.Save(); err == nil {
				return nil
			}
		}

		logger.Warn("Save attempt failed",
			zap.String("path", doc.Path()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == saveAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(errors.ErrCodeFileInUse, "save interrupted", ctx.Err())
		case <-time.After(saveRetryDelay):
		}
	}

	return errors.Wrap(errors.ErrCodeFileInUse, "failed to save document after repeated attempts", err).
		WithDetails(map[string]string{"save_as": suggestSavePath(doc.Path())})
}

// resolveBackup applies the effective policy: the document's remembered
// answer wins, then the request override, then the policy itself. An
// unanswered ask takes the backup. remember is true when the override
// answers an ask for the first time.
func resolveBackup(row *model.Document, override *bool) (doBackup, remember bool) {
	switch row.BackupPolicy {
	case model.BackupAlways:
		return true, false
	case model.BackupNever:
		return false, false
	default:
		if row.BackupChoice != nil {
			return *row.BackupChoice, false
		}
		if override != nil {
			return *override, true
		}
		return true, false
	}
}

// nextHeading returns the index of the first heading block after start,
// or the block count when none follows
func nextHeading(doc *docx.Document, start int) int {
	for i := start + 1; i < doc.BlockCount(); i++ {
		if doc.Block(i).IsHeading() {
			return i
		}
	}
	return doc.BlockCount()
}

// suggestSavePath proposes an alternate location in the same directory
func suggestSavePath(path string) string {
	if path == "" {
		return ""
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+"_recovered"+ext)
}
