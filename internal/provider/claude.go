// Package provider implements the LLM backends that answer chat requests,
// plus the shared plumbing (retry, rate limiting, pooled HTTP) they ride on.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"coursechat/internal/domain"
)

const (
	claudeDefaultBaseURL = "https://api.anthropic.com"
	claudeMessagesPath   = "/v1/messages"
	claudeAPIVersion     = "2023-06-01"
	claudeDefaultModel   = "claude-sonnet-4-20250514"

	defaultMaxTokens   = 800
	defaultHTTPTimeout = 120 * time.Second
)

// Claude implements domain.Provider for the Anthropic Messages API.
type Claude struct {
	apiKey string
	model  string
	apiURL string
	client *http.Client
	logger *slog.Logger
}

type ClaudeConfig struct {
	APIKey  string
	Model   string
	BaseURL string // override for tests and proxies
	Logger  *slog.Logger
}

func NewClaude(cfg ClaudeConfig) *Claude {
	if cfg.Model == "" {
		cfg.Model = claudeDefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = claudeDefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Claude{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		apiURL: strings.TrimSuffix(cfg.BaseURL, "/") + claudeMessagesPath,
		client: SharedHTTPClient(defaultHTTPTimeout),
		logger: cfg.Logger,
	}
}

func (c *Claude) Name() string              { return "claude" }
func (c *Claude) SupportsToolCalling() bool { return true }

func (c *Claude) Healthy(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("claude: no API key configured")
	}
	return nil
}

type claudeRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
	System      string       `json:"system,omitempty"`
	Messages    []claudeMsg  `json:"messages"`
	Tools       []claudeTool `json:"tools,omitempty"`
}

type claudeMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []claudeContent
}

type claudeContent struct {
	Type      string `json:"type"` // "text" | "tool_use" | "tool_result"
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`          // for tool_use
	Name      string `json:"name,omitempty"`        // for tool_use
	Input     any    `json:"input,omitempty"`       // for tool_use
	ToolUseID string `json:"tool_use_id,omitempty"` // for tool_result
	Content   string `json:"content,omitempty"`     // for tool_result (nested)
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type claudeResponse struct {
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      claudeUsage     `json:"usage"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (c *Claude) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	// The Messages API takes the system prompt outside the message list, and
	// tool results come back in as user messages with tool_result blocks.
	var systemPrompt string
	var msgs []claudeMsg
	for _, m := range req.Messages {
		switch {
		case m.Role == domain.RoleSystem:
			systemPrompt = m.Content

		case m.Role == domain.RoleTool:
			msgs = append(msgs, claudeMsg{
				Role: domain.RoleUser,
				Content: []claudeContent{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})

		case m.Role == domain.RoleAssistant && len(m.ToolCalls) > 0:
			var blocks []claudeContent
			if m.Content != "" {
				blocks = append(blocks, claudeContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, claudeContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Arguments,
				})
			}
			msgs = append(msgs, claudeMsg{Role: domain.RoleAssistant, Content: blocks})

		default:
			msgs = append(msgs, claudeMsg{Role: m.Role, Content: m.Content})
		}
	}

	body := claudeRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      systemPrompt,
		Messages:    msgs,
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, claudeTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	buildReq := func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", claudeAPIVersion)
		return httpReq, nil
	}

	start := time.Now()
	resp, err := doWithRetry(ctx, c.client, buildReq, c.logger)
	if err != nil {
		return nil, fmt.Errorf("claude request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("claude %d: %s", resp.StatusCode, string(respBody))
	}

	var claudeResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&claudeResp); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	out := &domain.ChatResponse{
		FinishReason: claudeResp.StopReason,
		Usage: domain.Usage{
			PromptTokens:     claudeResp.Usage.InputTokens,
			CompletionTokens: claudeResp.Usage.OutputTokens,
			TotalTokens:      claudeResp.Usage.InputTokens + claudeResp.Usage.OutputTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}

	var textParts []string
	for _, block := range claudeResp.Content {
		switch block.Type {
		case "text":
			textParts = append(textParts, block.Text)
		case "tool_use":
			args, _ := block.Input.(map[string]any)
			if args == nil {
				args = make(map[string]any)
			}
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	out.Content = strings.Join(textParts, "")

	return out, nil
}
