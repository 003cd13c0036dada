package slack

import (
	"strings"

	"github.com/slack-go/slack"
)

// extractMessageText flattens a Slack message into plain text. The first
// non-empty source wins: message text, attachments, blocks, then file names.
func extractMessageText(msg slack.Message) string {
	if text := strings.TrimSpace(msg.Text); text != "" {
		return text
	}

	var parts []string
	for _, a := range msg.Attachments {
		parts = append(parts, attachmentText(a)...)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	for _, block := range msg.Blocks.BlockSet {
		parts = append(parts, blockText(block)...)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}

	for _, f := range msg.Files {
		name := f.Title
		if name == "" {
			name = f.Name
		}
		if name != "" {
			parts = append(parts, "[File: "+name+"]")
		}
	}
	return strings.Join(parts, "\n")
}

func attachmentText(a slack.Attachment) []string {
	var parts []string
	for _, s := range []string{a.Pretext, a.Title, a.Text} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	for _, f := range a.Fields {
		switch {
		case f.Title != "" && f.Value != "":
			parts = append(parts, f.Title+": "+f.Value)
		case f.Value != "":
			parts = append(parts, f.Value)
		}
	}
	if len(parts) == 0 && a.Fallback != "" {
		parts = append(parts, a.Fallback)
	}
	return parts
}

func blockText(block slack.Block) []string {
	var parts []string
	switch b := block.(type) {
	case *slack.HeaderBlock:
		if b.Text != nil && b.Text.Text != "" {
			parts = append(parts, b.Text.Text)
		}
	case *slack.SectionBlock:
		if b.Text != nil && b.Text.Text != "" {
			parts = append(parts, b.Text.Text)
		}
		for _, f := range b.Fields {
			if f != nil && f.Text != "" {
				parts = append(parts, f.Text)
			}
		}
	case *slack.RichTextBlock:
		parts = append(parts, extractRichTextBlock(b)...)
	}
	return parts
}

// extractRichTextBlock renders each top-level rich text element as one or
// more lines: lists become "- " items, quotes "> " lines and preformatted
// text a fenced block.
func extractRichTextBlock(block *slack.RichTextBlock) []string {
	var parts []string
	for _, el := range block.Elements {
		switch e := el.(type) {
		case *slack.RichTextSection:
			if text := sectionText(e.Elements); text != "" {
				parts = append(parts, text)
			}
		case *slack.RichTextList:
			for _, item := range e.Elements {
				if section, ok := item.(*slack.RichTextSection); ok {
					if text := sectionText(section.Elements); text != "" {
						parts = append(parts, "- "+text)
					}
				}
			}
		case *slack.RichTextQuote:
			if text := sectionText(e.Elements); text != "" {
				parts = append(parts, "> "+text)
			}
		case *slack.RichTextPreformatted:
			if text := sectionText(e.Elements); text != "" {
				parts = append(parts, "```\n"+text+"\n```")
			}
		}
	}
	return parts
}

func sectionText(elements []slack.RichTextSectionElement) string {
	var b strings.Builder
	for _, el := range elements {
		switch e := el.(type) {
		case *slack.RichTextSectionTextElement:
			b.WriteString(e.Text)
		case *slack.RichTextSectionLinkElement:
			if e.Text != "" {
				b.WriteString(e.Text)
			} else {
				b.WriteString(e.URL)
			}
		}
	}
	return strings.TrimSpace(b.String())
}
