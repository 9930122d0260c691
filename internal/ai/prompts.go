package ai

import (
	"context"
	"regexp"
	"strings"

	"github.com/nhle/mailtriage/internal/model"
)

// reasoningBlock matches the <think> section some local models emit before
// their answer.
var reasoningBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripReasoning removes reasoning blocks and surrounding whitespace.
func stripReasoning(s string) string {
	return strings.TrimSpace(reasoningBlock.ReplaceAllString(s, ""))
}

const summarizePrompt = "Summarize this email in two or three sentences. " +
	"Reply with the summary only.\n\n"

const replySystemPrompt = "You draft short, polite replies to emails on behalf of the recipient. " +
	"Reply with the email body only, without a subject line or placeholders."

func classifyPrompt() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return "Classify this email into exactly one of these categories: " +
		strings.Join(names, ", ") +
		". Reply with the category name only.\n\n"
}

// Summarize asks the backend for a short summary of text.
func (c *Client) Summarize(ctx context.Context, text string, opts CallOptions) (string, error) {
	out, err := c.Generate(ctx, summarizePrompt+text, opts)
	if err != nil {
		return "", err
	}
	return stripReasoning(out), nil
}

// Classify asks the backend for a category label and returns its raw answer.
func (c *Client) Classify(ctx context.Context, text string, opts CallOptions) (string, error) {
	out, err := c.Generate(ctx, classifyPrompt()+text, opts)
	if err != nil {
		return "", err
	}
	return stripReasoning(out), nil
}

// DraftReply asks the backend, through the chat endpoint, for a reply to the
// given email text.
func (c *Client) DraftReply(ctx context.Context, text string, opts CallOptions) (string, error) {
	out, err := c.Chat(ctx, []Message{
		{Role: RoleSystem, Content: replySystemPrompt},
		{Role: RoleUser, Content: text},
	}, opts)
	if err != nil {
		return "", err
	}
	return stripReasoning(out), nil
}
