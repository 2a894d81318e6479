package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func convert(t *testing.T, text string) []Block {
	t.Helper()
	return NewConverter(Formatting{}).Convert(text, "")
}

func TestConvert_Paragraph(t *testing.T) {
	blocks := convert(t, "Just some text.")
	require.Len(t, blocks, 1)
	assert.Equal(t, Paragraph, blocks[0].Type)
	require.Len(t, blocks[0].Spans, 1)
	assert.Equal(t, "Just some text.", blocks[0].Spans[0].Text)
}

func TestConvert_BoldRun(t *testing.T) {
	blocks := convert(t, "**x**")
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Spans, 1)
	assert.Equal(t, "x", blocks[0].Spans[0].Text, "bold markers should not appear in text")
	assert.True(t, blocks[0].Spans[0].Bold)
}

func TestConvert_Headings(t *testing.T) {
	blocks := convert(t, "# One\n### Three\n###### Six\n####### Seven")
	require.Len(t, blocks, 4)

	assert.Equal(t, Heading, blocks[0].Type)
	assert.Equal(t, 1, blocks[0].Level)
	assert.Equal(t, "One", blocks[0].Spans[0].Text)

	assert.Equal(t, 3, blocks[1].Level)
	assert.Equal(t, 6, blocks[2].Level)

	assert.Equal(t, Paragraph, blocks[3].Type, "seven hashes is not a heading")
	assert.Equal(t, "####### Seven", blocks[3].Spans[0].Text)
}

func TestConvert_HeadingNeedsSpace(t *testing.T) {
	blocks := convert(t, "#NoSpace")
	require.Len(t, blocks, 1)
	assert.Equal(t, Paragraph, blocks[0].Type)
}

func TestConvert_ListsAndQuote(t *testing.T) {
	blocks := convert(t, "- first\n* second\n1. third\n12. twelfth\n> quoted")
	require.Len(t, blocks, 5)
	assert.Equal(t, Bullet, blocks[0].Type)
	assert.Equal(t, "first", blocks[0].Spans[0].Text)
	assert.Equal(t, Bullet, blocks[1].Type)
	assert.Equal(t, Numbered, blocks[2].Type)
	assert.Equal(t, "third", blocks[2].Spans[0].Text)
	assert.Equal(t, Numbered, blocks[3].Type)
	assert.Equal(t, "twelfth", blocks[3].Spans[0].Text)
	assert.Equal(t, Quote, blocks[4].Type)
	assert.Equal(t, "quoted", blocks[4].Spans[0].Text)
}

func TestConvert_Rule(t *testing.T) {
	blocks := convert(t, "---\n***\n___\n--")
	require.Len(t, blocks, 4)
	assert.Equal(t, Rule, blocks[0].Type)
	assert.Equal(t, Rule, blocks[1].Type)
	assert.Equal(t, Rule, blocks[2].Type)
	assert.Equal(t, Paragraph, blocks[3].Type, "two dashes is not a rule")
}

func TestConvert_CodeBlock(t *testing.T) {
	blocks := convert(t, "```go\nfunc main() {\n\tprintln(1)\n}\n```")
	require.Len(t, blocks, 1)
	assert.Equal(t, Code, blocks[0].Type)
	require.Len(t, blocks[0].Spans, 1)
	span := blocks[0].Spans[0]
	assert.Equal(t, "func main() {\n\tprintln(1)\n}", span.Text)
	assert.True(t, span.Code)
	assert.Equal(t, codeColor, span.Color)
}

func TestConvert_UnterminatedFence(t *testing.T) {
	blocks := convert(t, "```\nno closing fence")
	require.Len(t, blocks, 2)
	assert.Equal(t, Paragraph, blocks[0].Type)
	assert.Equal(t, "```", blocks[0].Spans[0].Text)
	assert.Equal(t, "no closing fence", blocks[1].Spans[0].Text)
}

func TestConvert_HeadingSuppression(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain restatement", "Introduction\ncontent"},
		{"markdown heading", "# Introduction\ncontent"},
		{"case difference", "INTRODUCTION\ncontent"},
		{"bold restatement", "**Introduction**\ncontent"},
		{"padded", "  Introduction  \ncontent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := NewConverter(Formatting{}).Convert(tt.text, "Introduction")
			require.Len(t, blocks, 1, "heading restatement should be suppressed")
			assert.Equal(t, "content", blocks[0].Spans[0].Text)
		})
	}
}

func TestConvert_NoSuppressionWithoutHeading(t *testing.T) {
	blocks := NewConverter(Formatting{}).Convert("Introduction", "")
	require.Len(t, blocks, 1)
}

func TestConvert_SuppressionSkipsLists(t *testing.T) {
	blocks := NewConverter(Formatting{}).Convert("- Introduction", "Introduction")
	require.Len(t, blocks, 1, "list items are never suppressed")
	assert.Equal(t, Bullet, blocks[0].Type)
}

func TestConvert_Table(t *testing.T) {
	text := "| Name | Age |\n| --- | --- |\n| Ada | 36 |\n| Alan | 41 |"
	blocks := convert(t, text)
	require.Len(t, blocks, 1)
	require.Equal(t, Table, blocks[0].Type)
	require.Len(t, blocks[0].Rows, 3, "header plus two data rows")

	header := blocks[0].Rows[0]
	require.Len(t, header, 2)
	assert.Equal(t, "Name", header[0][0].Text)
	assert.True(t, header[0][0].Bold, "header cells are bold")
	assert.True(t, header[1][0].Bold)

	assert.Equal(t, "Ada", blocks[0].Rows[1][0][0].Text)
	assert.False(t, blocks[0].Rows[1][0][0].Bold)
	assert.Equal(t, "41", blocks[0].Rows[2][1][0].Text)
}

func TestConvert_MalformedTable(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no separator", "| a | b |\n| c | d |\n| e | f |"},
		{"separator not dashes", "| a | b |\n| == | == |\n| c | d |"},
		{"no data row", "| a | b |\n| --- | --- |"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := convert(t, tt.text)
			require.NotEmpty(t, blocks)
			for _, b := range blocks {
				assert.Equal(t, Paragraph, b.Type, "malformed tables fall back to literal paragraphs")
			}
		})
	}
}

func TestConvert_BlankLinesSkipped(t *testing.T) {
	blocks := convert(t, "one\n\n\ntwo")
	require.Len(t, blocks, 2)
}

func TestConvert_Overlay(t *testing.T) {
	f := Formatting{Highlight: "yellow", Bold: true, FontSize: 22, FontColor: "333333"}
	blocks := NewConverter(f).Convert("plain *styled* `code`", "")
	require.Len(t, blocks, 1)
	spans := blocks[0].Spans
	require.Len(t, spans, 4)

	assert.Equal(t, "plain ", spans[0].Text)
	assert.True(t, spans[0].Bold, "overlay bold applies to unstyled runs")
	assert.Equal(t, "yellow", spans[0].Highlight)
	assert.Equal(t, 22, spans[0].FontSize)
	assert.Equal(t, "333333", spans[0].Color)

	assert.True(t, spans[1].Italic)
	assert.False(t, spans[1].Bold, "overlay bold yields to markdown styling")
	assert.Equal(t, "yellow", spans[1].Highlight, "highlight marks every run")

	assert.Equal(t, " ", spans[2].Text)
	assert.True(t, spans[2].Bold)

	assert.True(t, spans[3].Code)
	assert.Equal(t, codeColor, spans[3].Color, "inline code keeps its own color")
	assert.Equal(t, "yellow", spans[3].Highlight)
}

func TestConvert_OverlaySkipsHeadingSizing(t *testing.T) {
	f := Formatting{Highlight: "green", FontSize: 22, FontColor: "333333"}
	blocks := NewConverter(f).Convert("# Title", "")
	require.Len(t, blocks, 1)
	span := blocks[0].Spans[0]
	assert.Equal(t, "green", span.Highlight)
	assert.Zero(t, span.FontSize, "heading style governs size")
	assert.Empty(t, span.Color, "heading style governs color")
}

func TestConvert_Empty(t *testing.T) {
	assert.Empty(t, convert(t, ""))
	assert.Empty(t, convert(t, "\n\n  \n"))
}

func TestConvert_CRLF(t *testing.T) {
	blocks := convert(t, "# A\r\nbody\r\n")
	require.Len(t, blocks, 2)
	assert.Equal(t, Heading, blocks[0].Type)
	assert.Equal(t, "body", blocks[1].Spans[0].Text)
}
