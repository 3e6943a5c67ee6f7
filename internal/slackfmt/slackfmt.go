// Package slackfmt renders reply text as Slack Block Kit messages and
// rewrites generic markdown into Slack's mrkdwn dialect.
package slackfmt

import (
	"fmt"
	"regexp"
	"strings"
)

// Slack rejects section text longer than 3000 characters.
const maxSectionChars = 3000

type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Block struct {
	Type string      `json:"type"`
	Text *TextObject `json:"text,omitempty"`
}

func Divider() Block {
	return Block{Type: "divider"}
}

func Section(text string) Block {
	return Block{Type: "section", Text: &TextObject{Type: "mrkdwn", Text: text}}
}

// BuildBlocks lays out each text as a run of sections preceded by a
// divider, chunked at the section size limit, with one trailing divider.
func BuildBlocks(texts ...string) []Block {
	blocks := make([]Block, 0, len(texts)*2+1)
	for _, text := range texts {
		blocks = append(blocks, Divider())
		for _, chunk := range chunk(text, maxSectionChars) {
			blocks = append(blocks, Section(chunk))
		}
	}
	blocks = append(blocks, Divider())
	return blocks
}

// chunk splits at character boundaries, never mid-rune. The section limit
// counts characters, not bytes.
func chunk(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for len(runes) > size {
		out = append(out, string(runes[:size]))
		runes = runes[size:]
	}
	return append(out, string(runes))
}

var (
	codeBlockPattern = regexp.MustCompile("(?s)```.*?```")
	boldPattern      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	h1Pattern        = regexp.MustCompile(`(?m)^# (.+)$`)
	h2Pattern        = regexp.MustCompile(`(?m)^## (.+)$`)
	h3Pattern        = regexp.MustCompile(`(?m)^### (.+)$`)
	bulletPattern    = regexp.MustCompile(`(?m)^\* (.+)$`)
	pipePattern      = regexp.MustCompile(`\|`)
)

// AdjustMarkdown rewrites generic markdown to mrkdwn. Fenced code blocks
// pass through untouched.
func AdjustMarkdown(markdown string) string {
	if markdown == "" {
		return ""
	}

	codeBlocks := codeBlockPattern.FindAllString(markdown, -1)
	for i, block := range codeBlocks {
		markdown = replaceFirst(markdown, block, placeholder(i))
	}

	markdown = boldPattern.ReplaceAllString(markdown, "*$1*")
	markdown = h1Pattern.ReplaceAllString(markdown, "*$1*")
	markdown = h2Pattern.ReplaceAllString(markdown, "*$1*")
	markdown = h3Pattern.ReplaceAllString(markdown, "*$1*")
	markdown = pipePattern.ReplaceAllString(markdown, "`|`")
	markdown = bulletPattern.ReplaceAllString(markdown, "• $1")

	for i, block := range codeBlocks {
		markdown = replaceFirst(markdown, placeholder(i), block)
	}
	return markdown
}

func placeholder(i int) string {
	return fmt.Sprintf("__CODE_BLOCK_%d__", i)
}

func replaceFirst(s, old, new string) string {
	idx := strings.Index(s, old)
	if idx < 0 {
		return s
	}
	return s[:idx] + new + s[idx+len(old):]
}
