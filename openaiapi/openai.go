// Package openaiapi contains a minimal client for the OpenAI chat completions
// API plus the deterministic eligibility filter that decides which comments are
// worth a generation call at all.
package openaiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/replyt/youtubeapi"
)

const defaultBaseURL = "https://api.openai.com"

// Reply is a generated answer to one comment.
type Reply struct {
	Content   string
	Reasoning string
}

// Client calls the chat completions endpoint. ReplyStyle is data, not code: it
// parameterizes the system prompt so tone changes without a redeploy.
type Client struct {
	APIKey     string
	Model      string
	ReplyStyle string
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return defaultBaseURL
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate asks for a reply to the comment. Failures and empty completions are
// returned as errors; the caller records them per comment, never cycle-wide.
func (c *Client) Generate(ctx context.Context, comment youtubeapi.Comment, videoTitle string) (Reply, error) {
	body := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemPrompt()},
			{Role: "user", Content: userPrompt(comment, videoTitle)},
		},
		MaxTokens:   150,
		Temperature: 0.7,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.http().Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Reply{}, fmt.Errorf("read chat completion response: %w", err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Reply{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return Reply{}, fmt.Errorf("chat completion status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return Reply{}, fmt.Errorf("chat completion returned no choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return Reply{}, fmt.Errorf("chat completion returned empty content")
	}
	return Reply{
		Content:   content,
		Reasoning: fmt.Sprintf("Generated %s response for comment by %s", c.ReplyStyle, comment.Author),
	}, nil
}

func (c *Client) systemPrompt() string {
	return fmt.Sprintf(`You are an AI assistant that helps YouTube content creators automatically reply to comments.

MAIN INSTRUCTIONS:
- Reply in the same language as the comment
- Reply style: %s
- Maximum 2-3 sentences
- Always polite and professional
- Don't answer complex technical questions or provide medical/legal advice
- If comment is negative or spam, create short positive response
- Use emojis appropriately to look natural
- Never mention that you are an AI

RESPONSE TYPES BASED ON COMMENT:
- Praise/positive feedback: Say thank you and show appreciation
- Simple questions: Answer briefly or direct to video/description
- Constructive criticism: Accept feedback openly
- Spam/negative: Short positive response, no need to argue
- Simple emoji/reactions: Reply with brief appreciation`, c.ReplyStyle)
}

func userPrompt(comment youtubeapi.Comment, videoTitle string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "COMMENT TO REPLY TO:\nFrom: %s\nContent: %q\nLike count: %d", comment.Author, comment.TextOriginal, comment.LikeCount)
	if videoTitle != "" {
		fmt.Fprintf(&b, "\nVideo Title: %q", videoTitle)
	}
	if comment.ParentID != "" {
		b.WriteString("\n(This is a reply to another comment)")
	}
	b.WriteString("\n\nGenerate appropriate reply:")
	return b.String()
}
