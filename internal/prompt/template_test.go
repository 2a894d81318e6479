package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	tmpl := "Section {section_name} under {parent_context} mode {operation_mode}"

	out := RenderTemplate(tmpl, "Intro", "Doc > Part", "replace")
	assert.Equal(t, "Section Intro under Doc > Part mode REPLACE", out)
}

func TestRenderTemplate_RootFallback(t *testing.T) {
	out := RenderTemplate("{parent_context}", "Intro", "", "append")
	assert.Equal(t, RootContext, out)
}

func TestRenderTemplate_RepeatedPlaceholders(t *testing.T) {
	out := RenderTemplate("{section_name} and {section_name}", "A", "", "rework")
	assert.Equal(t, "A and A", out)
}

func TestDefaultTemplate_HasAllPlaceholders(t *testing.T) {
	assert.Contains(t, DefaultTemplate, PlaceholderSectionName)
	assert.Contains(t, DefaultTemplate, PlaceholderParentContext)
	assert.Contains(t, DefaultTemplate, PlaceholderOperationMode)
}
