package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultMaxOutputTokens = 4096
	callTimeout            = 90 * time.Second
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// Options bounds a single generation call.
type Options struct {
	ImageRefs       []string
	MaxOutputTokens int
	Effort          string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

// Generate sends the system instruction and JSON user payload to the model
// and returns the decoded JSON value of its reply. The call is bounded by a
// timeout and retried once; tolerant extraction strips code fences and
// scans for the outermost object before giving up. A nil result with a nil
// error means the model returned noise the caller should absorb with its
// fallback document.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPayload string, opts Options) (any, error) {
	maxTokens := opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}

	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(opts.ImageRefs) == 0 {
		userMsg.Content = userPayload
	} else {
		parts := []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: userPayload},
		}
		for _, ref := range opts.ImageRefs {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: ref},
			})
		}
		userMsg.MultiContent = parts
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			userMsg,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxCompletionTokens: maxTokens,
	}
	if opts.Effort != "" {
		req.ReasoningEffort = opts.Effort
	}

	raw, err := c.completeWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	slog.Debug("LLM response", "len", len(raw))

	parsed, ok := ExtractJSON(raw)
	if !ok {
		slog.Warn("LLM returned non-JSON content", "len", len(raw))
		return nil, nil
	}
	return parsed, nil
}

// completeWithRetry makes the chat call with a bounded timeout and a single
// retry on failure.
func (c *Client) completeWithRetry(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		cancel()
		if err != nil {
			lastErr = err
			slog.Warn("LLM call failed", "attempt", attempt+1, "error", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("LLM returned no choices")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("LLM API call: %w", lastErr)
}

// ExtractJSON attempts tolerant JSON extraction from raw model text: it
// strips markdown code fences, then decodes the text directly, then falls
// back to scanning for the first balanced top-level object.
func ExtractJSON(raw string) (any, bool) {
	text := strings.TrimSpace(raw)
	text = stripFences(text)

	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v, true
	}

	obj := scanObject(text)
	if obj == "" {
		return nil, false
	}
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return nil, false
	}
	return v, true
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// scanObject returns the first balanced {...} span, tracking string
// literals and escapes so braces inside strings don't miscount.
func scanObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
