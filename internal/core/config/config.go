// Package config loads the on-disk YAML configuration for the agentcore
// runtime: provider credentials/failover order, MCP server list, exec/
// sandbox policy, and rollout storage location. Mirrors the teacher's
// internal/config.Config (struct-per-concern, yaml struct tags, Load
// reading a single file) narrowed to this module's components.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentcore/coreagent/internal/core/mcp"
	"github.com/agentcore/coreagent/internal/core/models"
)

// Config is the root configuration structure, unmarshaled from a single
// YAML file (default path resolved by DefaultPath).
type Config struct {
	Providers ProvidersConfig  `yaml:"providers" json:"providers"`
	MCP       []mcp.ServerConfig `yaml:"mcp" json:"mcp"`
	Exec      ExecPolicyConfig `yaml:"exec" json:"exec"`
	Sandbox   SandboxConfig    `yaml:"sandbox" json:"sandbox"`
	Rollout   RolloutConfig    `yaml:"rollout" json:"rollout"`
	Agents    AgentsConfig     `yaml:"agents" json:"agents"`
	Commands  CommandsConfig   `yaml:"commands" json:"commands"`
	Tracing   TracingConfig    `yaml:"tracing" json:"tracing"`
}

// ProvidersConfig configures the three provider adapters and the order
// FailoverProvider tries them in, mirroring the teacher's
// LLMConfig.{Providers,FallbackChain} shape.
type ProvidersConfig struct {
	// Order lists provider names ("anthropic", "openai", "bedrock") in the
	// order FailoverProvider should try them. Defaults to all three
	// configured providers in the order below if empty.
	Order []string `yaml:"order" json:"order"`

	Anthropic *AnthropicConfig `yaml:"anthropic,omitempty" json:"anthropic,omitempty"`
	OpenAI    *OpenAIConfig    `yaml:"openai,omitempty" json:"openai,omitempty"`
	Bedrock   *BedrockConfig   `yaml:"bedrock,omitempty" json:"bedrock,omitempty"`
}

// AnthropicConfig configures the anthropic provider adapter. APIKey falls
// back to $ANTHROPIC_API_KEY when empty, per the teacher's env-var
// conventions documented in cmd/nexus's usage text.
type AnthropicConfig struct {
	APIKey       string `yaml:"api_key" json:"api_key"`
	BaseURL      string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	DefaultModel string `yaml:"default_model,omitempty" json:"default_model,omitempty"`
}

// OpenAIConfig configures the openai provider adapter.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key" json:"api_key"`
	BaseURL      string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	DefaultModel string `yaml:"default_model,omitempty" json:"default_model,omitempty"`
}

// BedrockConfig configures the bedrock provider adapter.
type BedrockConfig struct {
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty" json:"session_token,omitempty"`
	DefaultModel    string `yaml:"default_model,omitempty" json:"default_model,omitempty"`
}

// ExecPolicyConfig configures the exec engine's safety cascade, mirroring
// execengine.ExecPolicy's fields one-for-one so it can be decoded directly
// from YAML.
type ExecPolicyConfig struct {
	Denylist        []string `yaml:"denylist,omitempty" json:"denylist,omitempty"`
	Allowlist       []string `yaml:"allowlist,omitempty" json:"allowlist,omitempty"`
	SafeBins        []string `yaml:"safe_bins,omitempty" json:"safe_bins,omitempty"`
	RequireApproval []string `yaml:"require_approval,omitempty" json:"require_approval,omitempty"`
	Default         string   `yaml:"default,omitempty" json:"default,omitempty"`
}

// SandboxConfig configures the default sandbox policy applied to new
// sessions, mirroring models.SandboxPolicy.
type SandboxConfig struct {
	Mode          string   `yaml:"mode" json:"mode"`
	WritableRoots []string `yaml:"writable_roots,omitempty" json:"writable_roots,omitempty"`
	NetworkAccess bool     `yaml:"network_access" json:"network_access"`
}

// RolloutConfig configures where rollout files are written.
type RolloutConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// AgentsConfig configures sub-agent discovery roots.
type AgentsConfig struct {
	ProjectDir string `yaml:"project_dir,omitempty" json:"project_dir,omitempty"`
	UserDir    string `yaml:"user_dir,omitempty" json:"user_dir,omitempty"`
}

// CommandsConfig configures command discovery roots.
type CommandsConfig struct {
	ProjectDir string `yaml:"project_dir,omitempty" json:"project_dir,omitempty"`
	UserDir    string `yaml:"user_dir,omitempty" json:"user_dir,omitempty"`
}

// TracingConfig configures the OpenTelemetry exporter, mirroring
// observability.TraceConfig. An empty Endpoint (the default) disables
// export entirely: observability.NewTracer returns a no-op tracer that
// never dials a collector.
type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty"`
}

// DefaultPath returns ~/.agentcore/config.yaml, mirroring the teacher's
// profile.DefaultConfigPath layout.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".agentcore", "config.yaml")
}

// Load reads and parses the YAML file at path, applying defaults for any
// unset fields. A missing file is not an error: Load returns Default()
// with environment-variable API keys applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns a Config with every field at its zero-risk default:
// workspace-write sandbox under the current directory, the teacher's
// safe-bins list, and rollouts under ~/.agentcore/rollouts.
func Default() *Config {
	cfg := &Config{
		Sandbox: SandboxConfig{Mode: string(models.SandboxWorkspaceWrite)},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	if len(cfg.Providers.Order) == 0 {
		cfg.Providers.Order = []string{"anthropic", "openai", "bedrock"}
	}
	if cfg.Agents.ProjectDir == "" {
		cfg.Agents.ProjectDir = filepath.Join(".agentcore", "agents")
	}
	if cfg.Agents.UserDir == "" {
		cfg.Agents.UserDir = filepath.Join(home, ".agentcore", "agents")
	}
	if cfg.Commands.ProjectDir == "" {
		cfg.Commands.ProjectDir = filepath.Join(".agentcore", "commands")
	}
	if cfg.Commands.UserDir == "" {
		cfg.Commands.UserDir = filepath.Join(home, ".agentcore", "commands")
	}
	if len(cfg.Exec.SafeBins) == 0 {
		cfg.Exec.SafeBins = []string{"cat", "head", "tail", "wc", "sort", "uniq", "grep", "ls", "pwd", "echo"}
	}
	if cfg.Exec.Default == "" {
		cfg.Exec.Default = "ask_user"
	}
	if cfg.Sandbox.Mode == "" {
		cfg.Sandbox.Mode = string(models.SandboxWorkspaceWrite)
	}
	if cfg.Rollout.Dir == "" {
		cfg.Rollout.Dir = filepath.Join(home, ".agentcore", "rollouts")
	}
}

// applyEnv fills provider API keys from the environment when the config
// file leaves them blank, matching the teacher's env-var precedence
// (explicit config wins, environment is the fallback).
func applyEnv(cfg *Config) {
	if cfg.Providers.Anthropic == nil {
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			cfg.Providers.Anthropic = &AnthropicConfig{APIKey: key}
		}
	} else if cfg.Providers.Anthropic.APIKey == "" {
		cfg.Providers.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if cfg.Providers.OpenAI == nil {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Providers.OpenAI = &OpenAIConfig{APIKey: key}
		}
	} else if cfg.Providers.OpenAI.APIKey == "" {
		cfg.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.Providers.Bedrock == nil {
		if region := os.Getenv("AWS_REGION"); region != "" {
			cfg.Providers.Bedrock = &BedrockConfig{Region: region}
		}
	}
}

// RetryDelayDefault is the reconnect backoff base every provider adapter
// defaults to when Config doesn't set a per-provider value, kept as one
// constant so cmd/agentcore doesn't repeat the literal.
const RetryDelayDefault = time.Second
