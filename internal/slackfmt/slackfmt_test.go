package slackfmt

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuildBlocksChunksLongText(t *testing.T) {
	t.Parallel()

	blocks := BuildBlocks(strings.Repeat("x", 7000))
	// divider, 3000, 3000, 1000, divider
	if len(blocks) != 5 {
		t.Fatalf("len(blocks) = %d, want 5", len(blocks))
	}
	if blocks[0].Type != "divider" || blocks[4].Type != "divider" {
		t.Fatalf("blocks not bracketed by dividers: %q / %q", blocks[0].Type, blocks[4].Type)
	}
	wantLens := []int{3000, 3000, 1000}
	for i, want := range wantLens {
		section := blocks[i+1]
		if section.Type != "section" || section.Text == nil {
			t.Fatalf("blocks[%d] = %+v, want section with text", i+1, section)
		}
		if section.Text.Type != "mrkdwn" {
			t.Fatalf("blocks[%d].Text.Type = %q, want mrkdwn", i+1, section.Text.Type)
		}
		if len(section.Text.Text) != want {
			t.Fatalf("blocks[%d] chunk length = %d, want %d", i+1, len(section.Text.Text), want)
		}
	}
}

func TestBuildBlocksChunksMultibyteText(t *testing.T) {
	t.Parallel()

	// 1201 characters but 3601 bytes: must stay a single section, and a
	// chunk boundary must never land inside a rune.
	blocks := BuildBlocks("a" + strings.Repeat("你", 1200))
	// divider, section, divider
	if len(blocks) != 3 {
		t.Fatalf("len(blocks) = %d, want 3", len(blocks))
	}
	if got := utf8.RuneCountInString(blocks[1].Text.Text); got != 1201 {
		t.Fatalf("section length = %d characters, want 1201", got)
	}

	blocks = BuildBlocks(strings.Repeat("你", 3500))
	// divider, 3000, 500, divider
	if len(blocks) != 4 {
		t.Fatalf("len(blocks) = %d, want 4", len(blocks))
	}
	wantLens := []int{3000, 500}
	for i, want := range wantLens {
		text := blocks[i+1].Text.Text
		if !utf8.ValidString(text) {
			t.Fatalf("blocks[%d] section text is not valid UTF-8", i+1)
		}
		if got := utf8.RuneCountInString(text); got != want {
			t.Fatalf("blocks[%d] chunk length = %d characters, want %d", i+1, got, want)
		}
	}
}

func TestBuildBlocksMultipleTexts(t *testing.T) {
	t.Parallel()

	blocks := BuildBlocks("first", "second")
	// divider, section, divider, section, divider
	if len(blocks) != 5 {
		t.Fatalf("len(blocks) = %d, want 5", len(blocks))
	}
	if blocks[1].Text.Text != "first" || blocks[3].Text.Text != "second" {
		t.Fatalf("sections = %q, %q", blocks[1].Text.Text, blocks[3].Text.Text)
	}
	if blocks[2].Type != "divider" {
		t.Fatalf("blocks[2].Type = %q, want divider between texts", blocks[2].Type)
	}
}

func TestAdjustMarkdownBoldAndHeaders(t *testing.T) {
	t.Parallel()

	got := AdjustMarkdown("# Title\nsome **bold** text")
	if !strings.Contains(got, "*Title*") {
		t.Fatalf("AdjustMarkdown header = %q, want *Title*", got)
	}
	if !strings.Contains(got, "*bold*") || strings.Contains(got, "**bold**") {
		t.Fatalf("AdjustMarkdown bold = %q, want single asterisks", got)
	}
}

func TestAdjustMarkdownBullets(t *testing.T) {
	t.Parallel()

	got := AdjustMarkdown("* one\n* two")
	if got != "• one\n• two" {
		t.Fatalf("AdjustMarkdown() = %q", got)
	}
}

func TestAdjustMarkdownPreservesCodeBlocks(t *testing.T) {
	t.Parallel()

	code := "```\n# not a header\n**not bold**\na | b\n```"
	got := AdjustMarkdown(code + "\nafter **bold**")
	if !strings.Contains(got, code) {
		t.Fatalf("AdjustMarkdown() = %q, want code block untouched", got)
	}
	if !strings.Contains(got, "after *bold*") {
		t.Fatalf("AdjustMarkdown() = %q, want bold rewritten outside code", got)
	}
}

func TestAdjustMarkdownTablePipes(t *testing.T) {
	t.Parallel()

	got := AdjustMarkdown("a | b")
	if got != "a `|` b" {
		t.Fatalf("AdjustMarkdown() = %q", got)
	}
}

func TestAdjustMarkdownEmpty(t *testing.T) {
	t.Parallel()

	if got := AdjustMarkdown(""); got != "" {
		t.Fatalf("AdjustMarkdown(\"\") = %q, want empty", got)
	}
}
