package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge/internal/commit"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/llm"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/prompt"
	"github.com/draftforge/draftforge/internal/section"
	pkgerrors "github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
	"github.com/draftforge/draftforge/pkg/telemetry"
)

// Sampling parameter bounds accepted from requests.
const (
	minTemperature = 0.0
	maxTemperature = 2.0
	minMaxTokens   = 100
	maxMaxTokens   = 100000
)

// GenerateRequest describes one synchronous single-section generation.
// Model, Temperature and MaxTokens are optional overrides; nil or empty
// falls back to the principal's stored config, then server defaults.
type GenerateRequest struct {
	DocumentID string `json:"document_id"`
	SectionID  string `json:"section_id"`

	Mode           model.GenerationMode `json:"mode"`
	Model          string               `json:"model,omitempty"`
	Temperature    *float64             `json:"temperature,omitempty"`
	MaxTokens      *int                 `json:"max_tokens,omitempty"`
	PromptTemplate string               `json:"prompt_template,omitempty"`
	Collections    []string             `json:"collections,omitempty"`

	// Save persists the document after the commit; omitted means save.
	Save   *bool  `json:"save,omitempty"`
	SaveAs string `json:"save_as,omitempty"`
	// Backup overrides the document backup policy for this commit.
	Backup *bool `json:"backup,omitempty"`
}

// GenerateResult carries the generated content and its commit outcome.
type GenerateResult struct {
	SectionID  string         `json:"section_id"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Tokens     int            `json:"tokens"`
	DurationMs int64          `json:"duration_ms"`
	Commit     *commit.Result `json:"commit,omitempty"`
}

// Generate runs the single-section path: resolve the section, build the
// prompt, call the model and commit the result under the requested mode.
// It blocks until the content is committed or an error is final.
func (e *Engine) Generate(ctx context.Context, ownerID string, req GenerateRequest) (*GenerateResult, error) {
	if !model.ValidGenerationMode(string(req.Mode)) {
		return nil, pkgerrors.Newf(pkgerrors.ErrCodeValidation, "invalid generation mode %q", req.Mode)
	}
	if err := validateSampling(req.Temperature, req.MaxTokens); err != nil {
		return nil, err
	}
	if _, err := e.loadDocument(req.DocumentID, ownerID); err != nil {
		return nil, err
	}

	settings := e.resolveSettings(ownerID, req.Model, req.Temperature, req.MaxTokens)
	client := e.newClient(settings.endpoint)

	ctx, span := telemetry.StartSpan(ctx, "engine.generate",
		telemetry.WithSectionAttributes(req.SectionID, ""))
	defer span.End()

	start := time.Now()
	out, err := e.generateOne(ctx, client, settings, sectionParams{
		documentID:  req.DocumentID,
		sectionID:   req.SectionID,
		mode:        req.Mode,
		template:    req.PromptTemplate,
		collections: req.Collections,
		save:        req.Save == nil || *req.Save,
		saveAs:      req.SaveAs,
		backup:      req.Backup,
	})
	telemetry.GetMetrics().RecordGeneration(ctx, string(req.Mode), err == nil, time.Since(start).Seconds())
	if err != nil {
		telemetry.SetSpanError(span, err)
		return nil, err
	}
	telemetry.SetSpanOK(span)

	logger.Get().Info("section generated",
		zap.String("document_id", req.DocumentID),
		zap.String("section_id", req.SectionID),
		zap.String("mode", string(req.Mode)),
		zap.Int("tokens", out.tokens),
		zap.Int64("duration_ms", out.durationMs))

	return &GenerateResult{
		SectionID:  req.SectionID,
		Title:      out.title,
		Content:    out.content,
		Tokens:     out.tokens,
		DurationMs: out.durationMs,
		Commit:     out.commit,
	}, nil
}

// sectionParams bundles the inputs of one per-section generation step.
type sectionParams struct {
	documentID  string
	sectionID   string
	mode        model.GenerationMode
	template    string
	collections []string
	// produced maps section ids to content generated earlier in the same
	// job; parent context prefers it over on-disk content
	produced   map[string]string
	save       bool
	saveAs     string
	backup     *bool
	skipBackup bool
}

// sectionOutcome is the successful result of one per-section step.
type sectionOutcome struct {
	title      string
	content    string
	tokens     int
	durationMs int64
	commit     *commit.Result
}

// generateOne runs the per-section pipeline shared by Generate and the
// batch loop. Prompt context is gathered under the document lock; the
// model call runs outside it; the committer takes the lock again itself.
func (e *Engine) generateOne(ctx context.Context, client CompletionClient, s jobSettings, p sectionParams) (*sectionOutcome, error) {
	in, title, err := e.promptInput(p, s.language)
	if err != nil {
		return nil, err
	}

	cres, elapsed, err := e.complete(ctx, client, s, e.prompts.Build(in), p.collections)
	if err != nil {
		return nil, err
	}

	commitRes, err := e.commitGenerated(ctx, p, cres.Content)
	if err != nil {
		return nil, err
	}

	return &sectionOutcome{
		title:      title,
		content:    cres.Content,
		tokens:     cres.TokensUsed,
		durationMs: elapsed.Milliseconds(),
		commit:     commitRes,
	}, nil
}

// complete calls the model and records the request metric.
func (e *Engine) complete(ctx context.Context, client CompletionClient, s jobSettings, promptText string, collections []string) (*llm.CompletionResult, time.Duration, error) {
	start := time.Now()
	res, err := client.Complete(ctx, llm.CompletionRequest{
		Model:       s.model,
		Prompt:      promptText,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		Collections: collections,
	})
	elapsed := time.Since(start)
	telemetry.GetMetrics().RecordLLMRequest(ctx, s.model, err == nil, int64(tokensOf(res)), elapsed.Seconds())
	return res, elapsed, err
}

// commitGenerated feeds generated content to the committer under the
// requested mode.
func (e *Engine) commitGenerated(ctx context.Context, p sectionParams, content string) (*commit.Result, error) {
	return e.committer.Commit(ctx, commit.Request{
		DocumentID:     p.documentID,
		SectionID:      p.sectionID,
		Content:        content,
		Mode:           p.mode,
		BackupOverride: p.backup,
		SkipBackup:     p.skipBackup,
		Save:           p.save,
		SaveAs:         p.saveAs,
	})
}

// promptInput gathers the prompt context for one section under the
// document lock and releases it before any network call.
func (e *Engine) promptInput(p sectionParams, language string) (prompt.Input, string, error) {
	var in prompt.Input
	var title string

	err := e.sections.WithDocument(p.documentID, func(doc *docx.Document, tree *section.Tree) (*section.Tree, error) {
		s := tree.Find(p.sectionID)
		if s == nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrCodeSectionNotFound, "section %s not found", p.sectionID)
		}
		title = s.Title

		var ancestors []string
		for _, a := range s.Ancestors() {
			ancestors = append(ancestors, a.Title)
		}

		in = prompt.Input{
			SectionTitle:   s.Title,
			Ancestors:      ancestors,
			Mode:           p.mode,
			Template:       p.template,
			Outline:        tree.Outline(),
			SiblingTitles:  s.SiblingTitles(tree),
			CurrentContent: s.ContentText(doc),
			Collections:    p.collections,
			Comments:       sectionComments(doc, s),
			Language:       languageName(language),
		}

		if s.Parent != nil {
			in.ParentTitle = s.Parent.Title
			if content, ok := p.produced[s.Parent.ID]; ok {
				in.ParentContent = content
			} else {
				in.ParentContent = s.Parent.ContentText(doc)
			}
		}
		return nil, nil
	})
	return in, title, err
}

// sectionComments collects reviewer comments anchored to the section's
// heading or content blocks. Extraction is best effort; a document
// without a comments part yields nothing.
func sectionComments(doc *docx.Document, s *section.Section) []string {
	comments := doc.Comments()
	if len(comments) == 0 {
		return nil
	}

	owned := make(map[int]bool, len(s.ContentBlocks)+1)
	owned[s.HeadingBlock] = true
	for _, i := range s.ContentBlocks {
		owned[i] = true
	}

	var out []string
	for _, c := range comments {
		if !owned[c.ParagraphIndex] {
			continue
		}
		if c.Author != "" {
			out = append(out, fmt.Sprintf("%s: %s", c.Author, c.Text))
		} else {
			out = append(out, c.Text)
		}
	}
	return out
}

// languageName maps a configured language code to the display name used
// in the prompt instruction; empty input yields no instruction.
func languageName(code string) string {
	if code == "" {
		return ""
	}
	lc, err := config.ParseLanguage(code)
	if err != nil {
		return ""
	}
	return lc.PromptInstruction()
}

func tokensOf(r *llm.CompletionResult) int {
	if r == nil {
		return 0
	}
	return r.TokensUsed
}

func validateSampling(temperature *float64, maxTokens *int) error {
	if temperature != nil && (*temperature < minTemperature || *temperature > maxTemperature) {
		return pkgerrors.Newf(pkgerrors.ErrCodeValidation,
			"temperature must be between %g and %g", minTemperature, maxTemperature)
	}
	if maxTokens != nil && (*maxTokens < minMaxTokens || *maxTokens > maxMaxTokens) {
		return pkgerrors.Newf(pkgerrors.ErrCodeValidation,
			"max_tokens must be between %d and %d", minMaxTokens, maxMaxTokens)
	}
	return nil
}

// loadDocument fetches the document row, enforces ownership and makes
// sure the section tree is in memory.
func (e *Engine) loadDocument(documentID, ownerID string) (*model.Document, error) {
	doc, err := e.store.Document().GetByID(documentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.Newf(pkgerrors.ErrCodeNotFound, "document %s not found", documentID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeDBQuery, "failed to load document", err)
	}
	if ownerID != "" && doc.OwnerID != "" && doc.OwnerID != ownerID {
		return nil, pkgerrors.ErrForbidden("document belongs to another user")
	}
	if err := e.sections.EnsureLoaded(doc.ID, doc.StoredPath); err != nil {
		return nil, err
	}
	return doc, nil
}
