package prompt

import "strings"

// Placeholder names recognized in master templates
const (
	PlaceholderSectionName   = "{section_name}"
	PlaceholderParentContext = "{parent_context}"
	PlaceholderOperationMode = "{operation_mode}"
)

// RootContext substitutes for {parent_context} when the section has no ancestors
const RootContext = "Root level"

// DefaultTemplate is the master template used when no override is supplied.
// The placeholders are replaced before any context blocks are appended.
const DefaultTemplate = `You are a professional document writer. Write the body content for the section "{section_name}".

Section location: {parent_context}
Operation: {operation_mode}

Requirements:
- Write well-structured, coherent prose for this section only.
- Use markdown formatting where it helps: **bold**, *italic*, ` + "`code`" + `, lists and tables.
- Do not repeat the section heading in your output.
- Do not write content that belongs to other sections.`

// RenderTemplate substitutes the three placeholders into a master template.
// parentContext is the " > "-joined ancestor path; when empty the
// RootContext marker is used. The mode is substituted uppercased.
func RenderTemplate(template, sectionName, parentContext, mode string) string {
	if parentContext == "" {
		parentContext = RootContext
	}
	r := strings.NewReplacer(
		PlaceholderSectionName, sectionName,
		PlaceholderParentContext, parentContext,
		PlaceholderOperationMode, strings.ToUpper(mode),
	)
	return r.Replace(template)
}
