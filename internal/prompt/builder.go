// Package prompt assembles the per-section prompt sent to the language
// model. The builder is pure: identical inputs always yield identical
// output, which the regeneration and model-comparison features rely on.
package prompt

import (
	"fmt"
	"strings"

	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/section"
)

// ParentContentMarker labels the verbatim parent content block
const ParentContentMarker = "PARENT SECTION CONTENT"

// Input carries everything needed to build one section prompt
type Input struct {
	// SectionTitle is the target section's heading text
	SectionTitle string

	// Ancestors holds the ancestor heading texts, outermost first,
	// excluding the section itself
	Ancestors []string

	// Mode selects the operation instructions
	Mode model.GenerationMode

	// Template overrides the master template when non-empty
	Template string

	// Outline is the rendered document outline; empty omits the block
	Outline string

	// ParentTitle and ParentContent feed the alignment block. The block
	// is emitted only when ParentContent is non-empty.
	ParentTitle   string
	ParentContent string

	// SiblingTitles are headings at the same level under the same parent
	SiblingTitles []string

	// CurrentContent is the section's existing text, used by the REWORK
	// and APPEND instructions
	CurrentContent string

	// Collections holds attached knowledge collection names
	Collections []string

	// Comments holds reviewer comments anchored to this section
	Comments []string

	// Language, when set, appends an output-language instruction
	Language string
}

// Builder builds user-role prompts from section context
type Builder struct{}

// NewBuilder creates a new prompt builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles the prompt. Blocks are appended in a fixed order:
// substituted template, outline, parent content with alignment
// instructions, sibling titles, mode instructions, collection guidance,
// reviewer comments, output language.
func (b *Builder) Build(in Input) string {
	template := in.Template
	if template == "" {
		template = DefaultTemplate
	}

	var sb strings.Builder
	sb.WriteString(RenderTemplate(template, in.SectionTitle, strings.Join(in.Ancestors, section.PathSeparator), string(in.Mode)))

	if in.Outline != "" {
		sb.WriteString("\n\n## Document Outline\n\n")
		sb.WriteString(in.Outline)
	}

	if in.ParentContent != "" {
		b.writeParentBlock(&sb, in.ParentTitle, in.ParentContent)
	}

	if len(in.SiblingTitles) > 0 {
		sb.WriteString("\n\n## Sibling Sections\n\n")
		sb.WriteString("The following sections exist at the same level:\n")
		for _, title := range in.SiblingTitles {
			sb.WriteString(fmt.Sprintf("- %s\n", title))
		}
		sb.WriteString("\nKeep this section distinct from its siblings; do not duplicate their coverage.")
	}

	b.writeModeBlock(&sb, in.Mode, in.CurrentContent)

	if len(in.Collections) > 0 {
		sb.WriteString("\n\n## Knowledge Grounding\n\n")
		sb.WriteString(fmt.Sprintf("The following knowledge collections are attached: %s.\n", strings.Join(in.Collections, ", ")))
		sb.WriteString("Ground your writing in the attached collections and prefer their terminology.")
	}

	if len(in.Comments) > 0 {
		sb.WriteString("\n\n## Reviewer Comments\n\n")
		sb.WriteString("Reviewers left the following comments on this section:\n")
		for _, c := range in.Comments {
			sb.WriteString(fmt.Sprintf("- %s\n", c))
		}
		sb.WriteString("\nAddress these comments where they concern the content you write.")
	}

	if in.Language != "" {
		sb.WriteString(fmt.Sprintf("\n\nAll output content MUST be in %s.", in.Language))
	}

	return sb.String()
}

// writeParentBlock emits the parent content verbatim plus the alignment
// instructions that keep child prose coherent with its parent
func (b *Builder) writeParentBlock(sb *strings.Builder, title, content string) {
	sb.WriteString("\n\n## ")
	sb.WriteString(ParentContentMarker)
	if title != "" {
		sb.WriteString(fmt.Sprintf(" (%q)", title))
	}
	sb.WriteString("\n\n")
	sb.WriteString(content)
	sb.WriteString("\n\nAlignment requirements:\n")
	sb.WriteString("1. Expand upon the themes introduced in the parent section.\n")
	sb.WriteString("2. Reuse the parent section's terminology for the same concepts.\n")
	sb.WriteString("3. Reference concepts from the parent section where relevant.\n")
	sb.WriteString("4. Write content that reads as a logical subdivision of the parent.\n")
	sb.WriteString("5. Do not contradict any statement made in the parent section.")
}

// writeModeBlock emits the operation-specific instructions
func (b *Builder) writeModeBlock(sb *strings.Builder, mode model.GenerationMode, current string) {
	switch mode {
	case model.ModeRework:
		sb.WriteString("\n\n## Current Content\n\n")
		sb.WriteString(current)
		sb.WriteString("\n\nRewrite and enhance the content above. Improve clarity, structure and completeness while preserving its factual statements.")
	case model.ModeAppend:
		sb.WriteString("\n\n## Current Content\n\n")
		sb.WriteString(current)
		sb.WriteString("\n\nWrite additional content that extends the content above. Do not repeat what is already written.")
	default:
		sb.WriteString("\n\nWrite the section content from scratch. Any existing content will be replaced.")
	}
}
