// Package ai wraps the OpenAI-compatible chat API for content generation
// and receptionist replies.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrDisabled is returned when no API key is configured. Callers either
// surface it or fall back to canned behavior.
var ErrDisabled = errors.New("ai not configured")

// Config holds generation settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client generates portal content through a chat completion API.
type Client struct {
	config Config
	api    *openai.Client
}

// NewClient creates a generation client. A custom BaseURL points the client
// at a compatible local or proxy endpoint.
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	var api *openai.Client
	if config.APIKey != "" {
		clientConfig := openai.DefaultConfig(config.APIKey)
		if config.BaseURL != "" {
			clientConfig.BaseURL = config.BaseURL
		}
		api = openai.NewClientWithConfig(clientConfig)
	}

	return &Client{config: config, api: api}
}

// IsConfigured returns true if an API key is present.
func (c *Client) IsConfigured() bool {
	return c.api != nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c.api == nil {
		return "", ErrDisabled
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ReceptionistReply drafts a short spoken response for an incoming caller.
// The greeting and business description come from the tenant profile.
func (c *Client) ReceptionistReply(ctx context.Context, businessName, greeting, callerStatement string) (string, error) {
	system := fmt.Sprintf(
		"You are a phone receptionist for %s. Greeting: %q. "+
			"Answer in one or two short sentences suitable for text-to-speech. "+
			"Offer to take a message or book an appointment when relevant.",
		businessName, greeting)

	return c.complete(ctx, system, callerStatement)
}

// GeneratedPost is the structured result of blog generation.
type GeneratedPost struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// GenerateBlogPost writes a draft post on the given topic in the tenant's
// voice. The model is asked for JSON; a bare text response falls back to
// using the topic as the title.
func (c *Client) GenerateBlogPost(ctx context.Context, businessName, industry, topic string) (GeneratedPost, error) {
	system := fmt.Sprintf(
		"You write blog posts for %s, a business in the %s industry. "+
			`Respond with a JSON object: {"title": "...", "body": "..."}. `+
			"The body is HTML with <p> and <h2> tags, 400-700 words.",
		businessName, industry)

	raw, err := c.complete(ctx, system, "Write a post about: "+topic)
	if err != nil {
		return GeneratedPost{}, err
	}

	var post GeneratedPost
	if err := json.Unmarshal([]byte(extractJSON(raw)), &post); err != nil || post.Body == "" {
		return GeneratedPost{Title: topic, Body: raw}, nil
	}
	return post, nil
}

// GeneratedNewsletter is the structured result of newsletter generation.
type GeneratedNewsletter struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// GenerateNewsletter summarizes recent post titles into a short update email.
func (c *Client) GenerateNewsletter(ctx context.Context, businessName string, postTitles []string) (GeneratedNewsletter, error) {
	system := fmt.Sprintf(
		"You write a short email newsletter for customers of %s. "+
			`Respond with a JSON object: {"subject": "...", "body": "..."}. `+
			"The body is HTML with <p> tags, under 250 words.",
		businessName)

	user := "Recent updates to cover:\n- " + strings.Join(postTitles, "\n- ")
	raw, err := c.complete(ctx, system, user)
	if err != nil {
		return GeneratedNewsletter{}, err
	}

	var letter GeneratedNewsletter
	if err := json.Unmarshal([]byte(extractJSON(raw)), &letter); err != nil || letter.Body == "" {
		return GeneratedNewsletter{Subject: "Updates from " + businessName, Body: raw}, nil
	}
	return letter, nil
}

// extractJSON strips markdown code fences and surrounding prose so the
// object can be unmarshaled even when the model decorates its output.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
