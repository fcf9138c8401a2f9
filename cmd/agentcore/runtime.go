package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agentcore/coreagent/internal/core/command"
	"github.com/agentcore/coreagent/internal/core/config"
	"github.com/agentcore/coreagent/internal/core/dispatch"
	"github.com/agentcore/coreagent/internal/core/execengine"
	"github.com/agentcore/coreagent/internal/core/mcp"
	"github.com/agentcore/coreagent/internal/core/models"
	"github.com/agentcore/coreagent/internal/core/patch"
	"github.com/agentcore/coreagent/internal/core/providers/anthropic"
	"github.com/agentcore/coreagent/internal/core/providers/bedrock"
	"github.com/agentcore/coreagent/internal/core/providers/openai"
	"github.com/agentcore/coreagent/internal/core/rollout"
	"github.com/agentcore/coreagent/internal/core/rollout/sqlindex"
	"github.com/agentcore/coreagent/internal/core/session"
	"github.com/agentcore/coreagent/internal/core/subagent"
	"github.com/agentcore/coreagent/internal/core/turn"
	"github.com/agentcore/coreagent/internal/observability"
)

// runtime holds every long-lived component a CLI subcommand wires
// together: the failover provider, the tool dispatcher (and the registry
// backing it), and the two hot-reloadable discovery hubs. A single
// session is layered on top per subcommand (buildSession).
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	provider   turn.ProviderImpl
	dispatcher *dispatch.Executor
	cmdHub     *command.Hub
	agentHub   *subagent.Hub
	mcpMgr     *mcp.Manager
	emitter    *deferredEmitter
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	convID     *atomic.Value
	shutdown   func(context.Context) error
}

// instrument wraps a tool Handler so every call records
// observability.Metrics.RecordToolExecution and a trace span under that
// tool's name. Tool-specific outcomes (exec approval decisions, sub-agent
// run outcomes) are recorded deeper in the call chain, where the real
// decision/outcome value is known, not approximated here from err.
func instrument(metrics *observability.Metrics, tracer *observability.Tracer, toolName string, h dispatch.Handler) dispatch.Handler {
	return func(ctx context.Context, sess turn.ApprovalSession, turnCtx models.TurnContext, args json.RawMessage) (string, error) {
		start := time.Now()
		ctx, span := tracer.TraceToolExecution(ctx, toolName)
		out, err := h(ctx, sess, turnCtx, args)
		status := "success"
		if err != nil {
			status = "error"
			tracer.RecordError(span, err)
		}
		span.End()
		metrics.RecordToolExecution(toolName, status, time.Since(start).Seconds())
		return out, err
	}
}

// instrumentedRollout wraps a session.Rollout so every Append records
// observability.Metrics.RecordRolloutAppend under the appended item's type.
type instrumentedRollout struct {
	session.Rollout
	metrics *observability.Metrics
}

func (r instrumentedRollout) Append(item *models.ResponseItem) error {
	err := r.Rollout.Append(item)
	if err == nil {
		r.metrics.RecordRolloutAppend(string(item.Type))
	}
	return err
}

// instrumentedProvider wraps a turn.ProviderImpl so every Stream call
// records observability.Metrics.RecordLLMRequest/RecordContextWindow and
// opens a TraceLLMRequest span, relaying StreamEvents through untouched. It
// also emits a diagnostic ModelUsageEvent per call (a no-op unless a
// listener has opted in via observability.SetDiagnosticsEnabled/
// OnDiagnosticEvent), tagged with whichever conversation is currently
// running against convID.
type instrumentedProvider struct {
	name    string
	impl    turn.ProviderImpl
	metrics *observability.Metrics
	tracer  *observability.Tracer
	convID  *atomic.Value
}

func (p instrumentedProvider) Stream(ctx context.Context, req turn.StreamRequest) (<-chan turn.StreamEvent, error) {
	start := time.Now()
	ctx, span := p.tracer.TraceLLMRequest(ctx, p.name, req.Model)

	ch, err := p.impl.Stream(ctx, req)
	if err != nil {
		p.tracer.RecordError(span, err)
		span.End()
		p.metrics.RecordLLMRequest(p.name, req.Model, "error", time.Since(start).Seconds(), 0, 0)
		return nil, err
	}

	out := make(chan turn.StreamEvent)
	go func() {
		defer close(out)
		defer span.End()
		var inputTokens, outputTokens, cachedTokens int64
		status := "success"
		for ev := range ch {
			if ev.Kind == turn.StreamEventTokenUsage {
				inputTokens, outputTokens, cachedTokens = ev.InputTokens, ev.OutputTokens, ev.CachedTokens
				p.metrics.RecordContextWindow(p.name, req.Model, int(inputTokens+outputTokens))
			}
			out <- ev
		}
		duration := time.Since(start)
		p.metrics.RecordLLMRequest(p.name, req.Model, status, duration.Seconds(), int(inputTokens), int(outputTokens))
		if observability.IsDiagnosticsEnabled() {
			conversationID, _ := p.convID.Load().(string)
			observability.EmitModelUsage(&observability.ModelUsageEvent{
				ConversationID: conversationID,
				Provider:       p.name,
				Model:          req.Model,
				Usage: observability.UsageDetails{
					Input:     inputTokens,
					Output:    outputTokens,
					CacheRead: cachedTokens,
					Total:     inputTokens + outputTokens,
				},
				DurationMs: duration.Milliseconds(),
			})
		}
	}()
	return out, nil
}

func resolveConfigPath() string {
	if strings.TrimSpace(configPath) != "" {
		return configPath
	}
	return config.DefaultPath()
}

// buildRuntime loads configuration and constructs every shared component:
// the provider failover chain, the exec/patch/sub-agent/MCP tool
// registry, and the command/sub-agent discovery hubs. It does not create
// a Session — each subcommand does that itself, since "run" starts a
// fresh one and "resume" replays a prior one's history into it.
func buildRuntime(ctx context.Context, logger *slog.Logger) (*runtime, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("agentcore: load config: %w", err)
	}

	metrics := observability.NewMetrics()
	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:  "agentcore",
		Endpoint:     cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	convID := &atomic.Value{}
	convID.Store("")

	provider, err := buildProvider(ctx, cfg, logger, metrics, tracer, convID)
	if err != nil {
		return nil, err
	}

	registry := dispatch.NewRegistry()

	execPolicy := execengine.ExecPolicy{
		Denylist:        cfg.Exec.Denylist,
		Allowlist:       cfg.Exec.Allowlist,
		SafeBins:        cfg.Exec.SafeBins,
		RequireApproval: cfg.Exec.RequireApproval,
		Default:         execengine.SafetyDecision(cfg.Exec.Default),
	}
	shellHandler := &execengine.ShellHandler{Manager: execengine.NewManager(), Policy: execPolicy}
	if err := registry.Register(dispatch.Tool{
		Spec: turn.ToolSpec{
			Name:        "exec",
			Description: "Run a shell command and capture its output.",
			Parameters: map[string]any{
				"type":     "object",
				"required": []string{"command"},
				"properties": map[string]any{
					"command":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"working_directory": map[string]any{"type": "string"},
					"timeout_ms":        map[string]any{"type": "integer"},
				},
			},
		},
		Handler: instrument(metrics, tracer, "exec", shellHandler.Handle),
	}, nil); err != nil {
		return nil, err
	}

	patchHandler := patch.NewHandler()
	if err := registry.Register(dispatch.Tool{
		Spec: turn.ToolSpec{
			Name:        "apply_patch",
			Description: "Apply a unified-diff-style patch to files on disk.",
			Parameters: map[string]any{
				"type":       "object",
				"required":   []string{"input"},
				"properties": map[string]any{"input": map[string]any{"type": "string"}},
			},
		},
		Handler: instrument(metrics, tracer, "apply_patch", patchHandler.Handle),
	}, nil); err != nil {
		return nil, err
	}

	streamHandler := &execengine.StreamHandler{Manager: shellHandler.Manager}
	if err := registry.Register(dispatch.Tool{
		Spec: turn.ToolSpec{
			Name:        execengine.ExecCommandToolName,
			Description: "Start a long-lived shell command, returning a session id for later write_stdin calls.",
			Parameters: map[string]any{
				"type":     "object",
				"required": []string{"command"},
				"properties": map[string]any{
					"command":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"working_directory": map[string]any{"type": "string"},
					"timeout_ms":        map[string]any{"type": "integer"},
				},
			},
		},
		Handler: instrument(metrics, tracer, execengine.ExecCommandToolName, streamHandler.HandleExecCommand),
	}, nil); err != nil {
		return nil, err
	}
	if err := registry.Register(dispatch.Tool{
		Spec: turn.ToolSpec{
			Name:        execengine.WriteStdinToolName,
			Description: "Write input to a running exec_command session and read back its status and output.",
			Parameters: map[string]any{
				"type":     "object",
				"required": []string{"session_id"},
				"properties": map[string]any{
					"session_id": map[string]any{"type": "string"},
					"chars":      map[string]any{"type": "string"},
				},
			},
		},
		Handler: instrument(metrics, tracer, execengine.WriteStdinToolName, streamHandler.HandleWriteStdin),
	}, nil); err != nil {
		return nil, err
	}

	if err := registry.Register(dispatch.Tool{
		Spec:    viewImageToolSpec(),
		Handler: instrument(metrics, tracer, "view_image", viewImageHandler),
	}, nil); err != nil {
		return nil, err
	}
	if err := registry.Register(dispatch.Tool{
		Spec:    updatePlanToolSpec(),
		Handler: instrument(metrics, tracer, "update_plan", updatePlanHandler),
	}, nil); err != nil {
		return nil, err
	}

	emit := newDeferredEmitter()

	agentHub := subagent.NewHub(subagentSources(cfg), emit.emit, logger)
	runsRegistry := subagent.NewRegistry()
	runner := subagent.NewRunner(provider, registry, runsRegistry, logger)
	agentHandler := subagent.NewHandler(agentHub.Catalog(), runner)
	if err := registry.Register(dispatch.Tool{
		Spec: turn.ToolSpec{
			Name:        subagent.ToolName,
			Description: "Delegate a task to a named sub-agent and wait for its result.",
			Parameters: map[string]any{
				"type":     "object",
				"required": []string{"agent", "task"},
				"properties": map[string]any{
					"agent": map[string]any{"type": "string"},
					"task":  map[string]any{"type": "string"},
				},
			},
		},
		Handler: instrument(metrics, tracer, subagent.ToolName, agentHandler.Handle),
	}, nil); err != nil {
		return nil, err
	}
	if err := registry.Register(dispatch.Tool{
		Spec:    agentHandler.ListSpec(),
		Handler: instrument(metrics, tracer, subagent.ListToolName, agentHandler.HandleList),
	}, nil); err != nil {
		return nil, err
	}
	if err := registry.Register(dispatch.Tool{
		Spec:    agentHandler.DescribeSpec(),
		Handler: instrument(metrics, tracer, subagent.DescribeToolName, agentHandler.HandleDescribe),
	}, nil); err != nil {
		return nil, err
	}

	mcpMgr := mcp.NewManager(cfg.MCP, logger)
	mcpMgr.Start(ctx)
	for _, binding := range mcp.NewHandlers(mcpMgr) {
		bindingName := binding.Spec.Name
		handler := instrument(metrics, tracer, bindingName, binding.Handler)
		if err := registry.Register(dispatch.Tool{Spec: binding.Spec, Handler: handler}, binding.Schema); err != nil {
			logger.Warn("skipping mcp tool with invalid schema", "tool", binding.Spec.Name, "error", err)
		}
	}

	allowAll := func(models.TurnContext, string) bool { return true }
	dispatcher := dispatch.NewExecutor(registry, dispatch.DefaultExecConfig(), allowAll)

	cmdHub := commandHub(cfg, emit.emit, logger)

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		provider:   provider,
		dispatcher: dispatcher,
		cmdHub:     cmdHub,
		agentHub:   agentHub,
		mcpMgr:     mcpMgr,
		emitter:    emit,
		metrics:    metrics,
		tracer:     tracer,
		convID:     convID,
		shutdown:   shutdown,
	}, nil
}

// buildProvider assembles a turn.FailoverProvider from every provider
// cfg.Providers configures, in cfg.Providers.Order. A provider with no
// credentials configured is skipped rather than erroring, so agentcore
// runs with whichever subset of API keys the environment supplies. Each
// adapter is wrapped in instrumentedProvider so LLM request metrics and
// traces are recorded regardless of which backend FailoverProvider picks.
func buildProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, tracer *observability.Tracer, convID *atomic.Value) (turn.ProviderImpl, error) {
	var providers []turn.Provider
	for _, name := range cfg.Providers.Order {
		switch name {
		case "anthropic":
			if cfg.Providers.Anthropic == nil || cfg.Providers.Anthropic.APIKey == "" {
				continue
			}
			p, err := anthropic.New(anthropic.Config{
				APIKey:       cfg.Providers.Anthropic.APIKey,
				BaseURL:      cfg.Providers.Anthropic.BaseURL,
				DefaultModel: cfg.Providers.Anthropic.DefaultModel,
			})
			if err != nil {
				return nil, fmt.Errorf("agentcore: anthropic provider: %w", err)
			}
			providers = append(providers, turn.Provider{Name: "anthropic", Impl: instrumentedProvider{name: "anthropic", impl: p, metrics: metrics, tracer: tracer, convID: convID}})

		case "openai":
			if cfg.Providers.OpenAI == nil || cfg.Providers.OpenAI.APIKey == "" {
				continue
			}
			p, err := openai.New(openai.Config{
				APIKey:       cfg.Providers.OpenAI.APIKey,
				BaseURL:      cfg.Providers.OpenAI.BaseURL,
				DefaultModel: cfg.Providers.OpenAI.DefaultModel,
			})
			if err != nil {
				return nil, fmt.Errorf("agentcore: openai provider: %w", err)
			}
			providers = append(providers, turn.Provider{Name: "openai", Impl: instrumentedProvider{name: "openai", impl: p, metrics: metrics, tracer: tracer, convID: convID}})

		case "bedrock":
			if cfg.Providers.Bedrock == nil {
				continue
			}
			p, err := bedrock.New(ctx, bedrock.Config{
				Region:          cfg.Providers.Bedrock.Region,
				AccessKeyID:     cfg.Providers.Bedrock.AccessKeyID,
				SecretAccessKey: cfg.Providers.Bedrock.SecretAccessKey,
				SessionToken:    cfg.Providers.Bedrock.SessionToken,
				DefaultModel:    cfg.Providers.Bedrock.DefaultModel,
			})
			if err != nil {
				return nil, fmt.Errorf("agentcore: bedrock provider: %w", err)
			}
			providers = append(providers, turn.Provider{Name: "bedrock", Impl: instrumentedProvider{name: "bedrock", impl: p, metrics: metrics, tracer: tracer, convID: convID}})

		default:
			logger.Warn("unknown provider in config, ignoring", "provider", name)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("agentcore: no provider configured (set an API key in %s or the environment)", resolveConfigPath())
	}
	return turn.FailoverProvider{Providers: providers}, nil
}

// newBareSession wires a Runtime's shared components onto a fresh Session
// and starts discovery, but does not touch the rollout: buildSession and
// resumeSession each handle that differently (create-new vs
// append-to-existing).
func (rt *runtime) newBareSession(ctx context.Context, conversationID string) (*session.Session, error) {
	spawner := turn.NewSpawner(rt.provider, rt.dispatcher, rt.logger)

	sess := session.New(spawner, rt.logger)
	if conversationID != "" {
		sess.ConversationID = conversationID
	}
	rt.emitter.attach(sess)

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	sess.Cwd = cwd
	sess.ApprovalPolicy = models.ApprovalOnRequest
	sess.SandboxPolicy = models.SandboxPolicy{
		Mode:          models.SandboxMode(rt.cfg.Sandbox.Mode),
		WritableRoots: rt.cfg.Sandbox.WritableRoots,
		NetworkAccess: rt.cfg.Sandbox.NetworkAccess,
	}
	sess.AgentRegistry = rt.agentHub.Catalog()
	sess.MCP = rt.mcpMgr

	if err := rt.agentHub.EnsureStarted(ctx); err != nil {
		rt.logger.Warn("sub-agent discovery failed to start", "error", err)
	}
	if rt.cmdHub != nil {
		if err := rt.cmdHub.EnsureStarted(ctx); err != nil {
			rt.logger.Warn("command discovery failed to start", "error", err)
		}
	}

	return sess, nil
}

// buildSession creates a fresh Session with a new rollout file.
func (rt *runtime) buildSession(ctx context.Context) (*session.Session, error) {
	sess, err := rt.newBareSession(ctx, "")
	if err != nil {
		return nil, err
	}
	recorder, err := rollout.NewFileRecorder(rolloutPath(rt.cfg, sess.ConversationID), rollout.Header{
		ConversationID: sess.ConversationID,
		Cwd:            sess.Cwd,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("agentcore: open rollout file: %w", err)
	}
	sess.Rollout = instrumentedRollout{Rollout: recorder, metrics: rt.metrics}
	rt.convID.Store(sess.ConversationID)
	return sess, nil
}

// refreshRolloutIndex rebuilds the shared sqlindex entries for one rollout
// file so a future resume can seek directly to a byte offset instead of
// scanning from the start. The index is a pure cache of the JSONL files
// (rollout.RebuildIndex always repopulates it from scratch for this
// conversation), so a failure here is logged and otherwise ignored rather
// than failing the resume.
func (rt *runtime) refreshRolloutIndex(ctx context.Context, path string) {
	idx, err := sqlindex.Open(rolloutIndexPath(rt.cfg))
	if err != nil {
		rt.logger.Warn("rollout index open failed", "error", err)
		return
	}
	defer idx.Close()
	if err := rollout.RebuildIndex(ctx, idx, path); err != nil {
		rt.logger.Warn("rollout index rebuild failed", "path", path, "error", err)
	}
}

// resumeSession rebuilds a Session from a previously recorded rollout
// file: its history is replayed and repaired (session.RepairTranscript),
// and further turns append to the same file rather than starting a new
// one, per spec.md invariant 4 (rollout is the system of record).
func (rt *runtime) resumeSession(ctx context.Context, conversationID string) (*session.Session, error) {
	path := rolloutPath(rt.cfg, conversationID)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("agentcore: open rollout %s: %w", path, err)
	}
	reader, err := rollout.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("agentcore: read rollout %s: %w", path, err)
	}
	items, err := reader.ReadAll()
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("agentcore: replay rollout %s: %w", path, err)
	}

	rt.refreshRolloutIndex(ctx, path)

	sess, err := rt.newBareSession(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	sess.TruncateHistoryTo(session.RepairTranscript(items))

	recorder, err := rollout.OpenFileRecorderForAppend(path, nil)
	if err != nil {
		return nil, fmt.Errorf("agentcore: reopen rollout for append: %w", err)
	}
	sess.Rollout = instrumentedRollout{Rollout: recorder, metrics: rt.metrics}
	rt.convID.Store(sess.ConversationID)
	return sess, nil
}
