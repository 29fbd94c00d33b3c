// Package agent answers user queries: it drives the model through the
// two-round tool protocol, keeps per-session history, and exposes the
// single Query entry point the transport layers call.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"coursechat/internal/domain"
	"coursechat/internal/metrics"
	"coursechat/internal/tool"
)

const defaultMaxTokens = 800

// Orchestrator drives the model through at most two rounds per query: one
// that may request the search tool and, when it does, one that turns the
// tool result into the final answer. Tools are offered on the first round
// only, so a single tool call per query is a structural property rather
// than a runtime check.
type Orchestrator struct {
	provider  domain.Provider
	tools     *tool.Registry
	model     string
	maxTokens int
	logger    *slog.Logger
}

type OrchestratorConfig struct {
	Provider  domain.Provider
	Tools     *tool.Registry
	Model     string
	MaxTokens int
	Logger    *slog.Logger
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Orchestrator{
		provider:  cfg.Provider,
		tools:     cfg.Tools,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

// ProviderName reports which provider answers queries.
func (o *Orchestrator) ProviderName() string {
	return o.provider.Name()
}

// Answer runs the protocol for one user query. history is the rendered
// recent conversation, "" when there is none. The returned sources describe
// the retrieval hits backing the answer; empty when no search ran.
func (o *Orchestrator) Answer(ctx context.Context, query, history string) (string, []domain.SourceRef, error) {
	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: BuildSystemPrompt(history)},
		{Role: domain.RoleUser, Content: query},
	}

	metrics.LLMRequests.Inc()
	resp, err := o.provider.Chat(ctx, domain.ChatRequest{
		Messages:  messages,
		Tools:     o.tools.GetDefinitions(),
		Model:     o.model,
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		return "", nil, fmt.Errorf("generate: %w", err)
	}
	o.logger.Debug("model round", "round", 1,
		"tool_calls", len(resp.ToolCalls), "latency_ms", resp.LatencyMs)

	if !resp.HasToolCalls() {
		return resp.Content, nil, nil
	}

	tc := resp.ToolCalls[0]
	if len(resp.ToolCalls) > 1 {
		o.logger.Warn("model requested multiple tool calls, honoring the first",
			"count", len(resp.ToolCalls))
	}

	result, sources, execErr := o.tools.Execute(ctx, tc.Name, tc.Arguments)
	if execErr != nil {
		if o.tools.Get(tc.Name) == nil {
			// A name we never registered is a contract violation, not a
			// condition to explain to the model.
			return "", nil, fmt.Errorf("tool dispatch: %w", execErr)
		}
		result = fmt.Sprintf("Tool execution failed: %s", execErr)
		sources = nil
	}

	// The assistant message keeps only the honored call so the following
	// tool result accounts for every requested invocation.
	messages = append(messages,
		domain.Message{Role: domain.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls[:1]},
		domain.Message{Role: domain.RoleTool, Content: result, ToolCallID: tc.ID, ToolName: tc.Name},
	)

	metrics.LLMRequests.Inc()
	final, err := o.provider.Chat(ctx, domain.ChatRequest{
		Messages:  messages,
		Model:     o.model,
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		return "", nil, fmt.Errorf("generate: %w", err)
	}
	if final.HasToolCalls() {
		o.logger.Warn("model requested a tool on the final round, returning its text")
	}
	o.logger.Debug("model round", "round", 2, "latency_ms", final.LatencyMs)

	return final.Content, sources, nil
}
