package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Turn engine throughput and LLM request performance
//   - Tool dispatcher execution patterns and latencies, per tool
//   - Exec engine approval decisions and sandboxed command outcomes
//   - Sub-agent run attempts and outcomes
//   - Rollout append throughput and active session counts
//   - Error rates categorized by type and component
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.SessionStarted()
//	defer metrics.RecordToolExecution("exec", "success", time.Since(start).Seconds())
type Metrics struct {
	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (anthropic|openai|bedrock), model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD tracks estimated cost in USD.
	// Labels: provider, model
	LLMCostUSD *prometheus.CounterVec

	// ContextWindowUsed tracks context window utilization per turn.
	// Labels: provider, model
	// Buckets: 1000, 4000, 8000, 16000, 32000, 64000, 128000
	ContextWindowUsed *prometheus.HistogramVec

	// TurnCounter counts completed turns by outcome.
	// Labels: outcome (completed|aborted|error)
	TurnCounter *prometheus.CounterVec

	// TurnDuration measures end-to-end turn latency in seconds, including
	// every tool round-trip within the turn.
	// Buckets: 0.5s, 1s, 2s, 5s, 10s, 30s, 60s, 120s
	TurnDuration prometheus.Histogram

	// ToolExecutionCounter counts tool invocations by tool name and status.
	// Labels: tool_name, status (success|error|denied)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// ExecApprovalDecisions counts exec-engine safety assessments by
	// decision and whether the command ran.
	// Labels: decision (auto_approve|ask_user|deny), outcome (ran|rejected)
	ExecApprovalDecisions *prometheus.CounterVec

	// SubAgentRunCounter counts sub-agent runs by agent name and outcome.
	// Labels: agent, outcome (success|error|timeout)
	SubAgentRunCounter *prometheus.CounterVec

	// SubAgentRunDuration measures sub-agent run latency in seconds.
	// Labels: agent
	// Buckets: 1s, 5s, 10s, 30s, 60s, 120s, 300s
	SubAgentRunDuration *prometheus.HistogramVec

	// RolloutAppendCounter counts rollout item appends by item type.
	// Labels: item_type (message|function_call|function_call_output|reasoning)
	RolloutAppendCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component (turn|dispatch|execengine|subagent|rollout|mcp), error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge tracking the current number of active
	// conversations this process is driving.
	ActiveSessions prometheus.Gauge

	// SessionDuration measures session lifetime in seconds.
	// Buckets: 60s, 300s, 600s, 1800s, 3600s, 7200s, 14400s, 28800s
	SessionDuration prometheus.Histogram

	// McpToolCallCounter counts calls dispatched to MCP servers.
	// Labels: server, tool, status (success|error)
	McpToolCallCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_cost_usd_total",
				Help: "Estimated LLM API cost in USD",
			},
			[]string{"provider", "model"},
		),

		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_context_window_tokens",
				Help:    "Context window tokens used per turn",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"provider", "model"},
		),

		TurnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_turns_total",
				Help: "Total number of turns by outcome",
			},
			[]string{"outcome"},
		),

		TurnDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentcore_turn_duration_seconds",
				Help:    "End-to-end turn duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ExecApprovalDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_exec_approval_decisions_total",
				Help: "Exec engine safety assessments by decision and outcome",
			},
			[]string{"decision", "outcome"},
		),

		SubAgentRunCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_subagent_runs_total",
				Help: "Total number of sub-agent runs by agent name and outcome",
			},
			[]string{"agent", "outcome"},
		),

		SubAgentRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_subagent_run_duration_seconds",
				Help:    "Duration of sub-agent runs in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"agent"},
		),

		RolloutAppendCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_rollout_appends_total",
				Help: "Total number of rollout items appended by item type",
			},
			[]string{"item_type"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentcore_active_sessions",
				Help: "Current number of active conversations",
			},
		),

		SessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentcore_session_duration_seconds",
				Help:    "Duration of sessions in seconds",
				Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800},
			},
		),

		McpToolCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_mcp_tool_calls_total",
				Help: "Total number of calls dispatched to MCP servers by server, tool, and status",
			},
			[]string{"server", "tool", "status"},
		),
	}
}

// RecordLLMRequest records metrics for an LLM API request.
//
// Example:
//
//	start := time.Now()
//	// ... make LLM request ...
//	metrics.RecordLLMRequest("anthropic", "claude-3-opus", "success", time.Since(start).Seconds(), 100, 500)
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordLLMCost records estimated API cost.
//
// Example:
//
//	metrics.RecordLLMCost("anthropic", "claude-3-opus", 0.015)
func (m *Metrics) RecordLLMCost(provider, model string, costUSD float64) {
	m.LLMCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordContextWindow records context window utilization for a turn.
//
// Example:
//
//	metrics.RecordContextWindow("anthropic", "claude-3-opus", 45000)
func (m *Metrics) RecordContextWindow(provider, model string, tokensUsed int) {
	m.ContextWindowUsed.WithLabelValues(provider, model).Observe(float64(tokensUsed))
}

// RecordTurn records completion of a single turn (spec.md §4.2's one
// model-response-plus-tool-round loop).
//
// Example:
//
//	start := time.Now()
//	// ... run turn ...
//	metrics.RecordTurn("completed", time.Since(start).Seconds())
func (m *Metrics) RecordTurn(outcome string, durationSeconds float64) {
	m.TurnCounter.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// RecordToolExecution records metrics for a tool execution dispatched
// through the tool dispatcher.
//
// Example:
//
//	start := time.Now()
//	// ... execute tool ...
//	metrics.RecordToolExecution("exec", "success", time.Since(start).Seconds())
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordExecApproval records an exec engine safety decision and whether
// the command ultimately ran.
//
// Example:
//
//	metrics.RecordExecApproval("auto_approve", "ran")
//	metrics.RecordExecApproval("ask_user", "rejected")
func (m *Metrics) RecordExecApproval(decision, outcome string) {
	m.ExecApprovalDecisions.WithLabelValues(decision, outcome).Inc()
}

// RecordSubAgentRun records completion of a sub-agent run.
//
// Example:
//
//	start := time.Now()
//	// ... run sub-agent ...
//	metrics.RecordSubAgentRun("code-reviewer", "success", time.Since(start).Seconds())
func (m *Metrics) RecordSubAgentRun(agent, outcome string, durationSeconds float64) {
	m.SubAgentRunCounter.WithLabelValues(agent, outcome).Inc()
	m.SubAgentRunDuration.WithLabelValues(agent).Observe(durationSeconds)
}

// RecordRolloutAppend records a rollout item append by item type.
//
// Example:
//
//	metrics.RecordRolloutAppend("function_call")
func (m *Metrics) RecordRolloutAppend(itemType string) {
	m.RolloutAppendCounter.WithLabelValues(itemType).Inc()
}

// RecordError increments the error counter for a given component and error type.
//
// Example:
//
//	metrics.RecordError("execengine", "sandbox_denied")
//	metrics.RecordError("dispatch", "tool_not_found")
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SessionStarted increments the active sessions gauge.
func (m *Metrics) SessionStarted() {
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active sessions gauge and records session duration.
//
// Example:
//
//	start := time.Now()
//	// ... session lifecycle ...
//	metrics.SessionEnded(time.Since(start).Seconds())
func (m *Metrics) SessionEnded(durationSeconds float64) {
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordMcpToolCall records a call dispatched to an MCP server.
//
// Example:
//
//	metrics.RecordMcpToolCall("filesystem", "read_file", "success")
func (m *Metrics) RecordMcpToolCall(server, tool, status string) {
	m.McpToolCallCounter.WithLabelValues(server, tool, status).Inc()
}
