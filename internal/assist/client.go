// Package assist asks an OpenAI-compatible chat-completions endpoint for
// project suggestions.
package assist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	ErrNotConfigured = errors.New("suggestions not configured")
	ErrEmptyReply    = errors.New("chat completions returned no content")
)

type Config struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1.
	BaseURL string
	APIKey  string
	Model   string
}

// ProjectBrief is what the model sees about a project.
type ProjectBrief struct {
	Title       string
	Description string
	Status      string
	Tags        []string
	Prompt      string
}

type Suggestion struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type Client struct {
	cfg Config
	api *openai.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	apiCfg.HTTPClient = httpClient
	return &Client{cfg: cfg, api: openai.NewClientWithConfig(apiCfg)}
}

func (c *Client) Configured() bool {
	return c != nil && c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

const systemPrompt = "You help small teams plan collaborative projects. " +
	"Answer with a short, concrete list of next steps and roles worth recruiting."

// Suggest returns the model's advice for the project.
func (c *Client) Suggest(ctx context.Context, brief ProjectBrief) (Suggestion, error) {
	if !c.Configured() {
		return Suggestion{}, ErrNotConfigured
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: renderBrief(brief)},
		},
		Temperature: 0.4,
		MaxTokens:   600,
	})
	if err != nil {
		return Suggestion{}, fmt.Errorf("call chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Suggestion{}, ErrEmptyReply
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Suggestion{}, ErrEmptyReply
	}

	model := resp.Model
	if model == "" {
		model = c.cfg.Model
	}
	return Suggestion{Text: text, Model: model}, nil
}

func renderBrief(b ProjectBrief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n", b.Title)
	fmt.Fprintf(&sb, "Status: %s\n", b.Status)
	if len(b.Tags) > 0 {
		fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(b.Tags, ", "))
	}
	if b.Description != "" {
		fmt.Fprintf(&sb, "Description:\n%s\n", b.Description)
	}
	if b.Prompt != "" {
		fmt.Fprintf(&sb, "\nQuestion: %s\n", b.Prompt)
	}
	return sb.String()
}
