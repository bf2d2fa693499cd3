// Package config loads the assistant's runtime configuration from
// NEXUS_* environment variables, layering env overrides on top of
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration for the assistant core.
type Config struct {
	Bridge   BridgeConfig
	LLM      LLMConfig
	Agent    AgentConfig
	Session  SessionConfig
	Timezone *time.Location
	Paths    PathsConfig
	CLI      CLIConfig
}

// BridgeConfig configures the WebSocket connection to the channel bridge.
type BridgeConfig struct {
	WSURL        string
	SharedSecret string
}

// LLMConfig configures the model router.
type LLMConfig struct {
	APIKey        string
	BaseURL       string
	PrimaryModel  string
	ComplexModel  string
	FallbackModel string
	MaxTokens     int
	Timeout       time.Duration
}

// AgentConfig bounds the ReAct loop.
type AgentConfig struct {
	MaxSteps int
}

// SessionConfig bounds the in-process session window and long-term
// memory retrieval.
type SessionConfig struct {
	WindowTurns       int
	MaxMemorySections int
	MemoryRecentDays  int
}

// PathsConfig holds every directory/file path the assistant reads or
// writes, always resolved to an absolute path.
type PathsConfig struct {
	DBPath       string
	WorkspaceDir string
	MemoriesDir  string
	PromptsDir   string
	SkillsDir    string
}

// CLIConfig configures the console channel.
type CLIConfig struct {
	Enabled bool
	Prompt  string
}

// Defaults returns the configuration's baseline values, applied before
// environment overrides.
func Defaults() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL:       "https://api.openai.com/v1",
			PrimaryModel:  "gpt-4o-mini",
			ComplexModel:  "gpt-4o",
			FallbackModel: "gpt-4o-mini",
			MaxTokens:     2048,
			Timeout:       30 * time.Second,
		},
		Agent: AgentConfig{
			MaxSteps: 8,
		},
		Session: SessionConfig{
			WindowTurns:       20,
			MaxMemorySections: 5,
			MemoryRecentDays:  3,
		},
		Timezone: time.UTC,
		Paths: PathsConfig{
			DBPath:       "nexus.db",
			WorkspaceDir: "workspace",
			MemoriesDir:  "memories",
			PromptsDir:   "prompts",
			SkillsDir:    "skills",
		},
		CLI: CLIConfig{
			Enabled: true,
			Prompt:  "nexus> ",
		},
	}
}

// Load builds a Config from defaults overridden by NEXUS_* environment
// variables, and resolves every path/dir to an absolute path.
func Load() (Config, error) {
	cfg := Defaults()
	applyEnvOverrides(&cfg)

	var err error
	if cfg.Paths.DBPath, err = filepath.Abs(cfg.Paths.DBPath); err != nil {
		return Config{}, fmt.Errorf("config: resolving db path: %w", err)
	}
	if cfg.Paths.WorkspaceDir, err = filepath.Abs(cfg.Paths.WorkspaceDir); err != nil {
		return Config{}, fmt.Errorf("config: resolving workspace dir: %w", err)
	}
	if cfg.Paths.MemoriesDir, err = filepath.Abs(cfg.Paths.MemoriesDir); err != nil {
		return Config{}, fmt.Errorf("config: resolving memories dir: %w", err)
	}
	if cfg.Paths.PromptsDir, err = filepath.Abs(cfg.Paths.PromptsDir); err != nil {
		return Config{}, fmt.Errorf("config: resolving prompts dir: %w", err)
	}
	if cfg.Paths.SkillsDir, err = filepath.Abs(cfg.Paths.SkillsDir); err != nil {
		return Config{}, fmt.Errorf("config: resolving skills dir: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("NEXUS_BRIDGE_WS_URL")); v != "" {
		cfg.Bridge.WSURL = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_BRIDGE_SHARED_SECRET")); v != "" {
		cfg.Bridge.SharedSecret = v
	}

	if v := strings.TrimSpace(os.Getenv("NEXUS_LLM_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_LLM_BASE_URL")); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_LLM_PRIMARY_MODEL")); v != "" {
		cfg.LLM.PrimaryModel = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_LLM_COMPLEX_MODEL")); v != "" {
		cfg.LLM.ComplexModel = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_LLM_FALLBACK_MODEL")); v != "" {
		cfg.LLM.FallbackModel = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_LLM_MAX_TOKENS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxTokens = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_LLM_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.LLM.Timeout = time.Duration(parsed) * time.Second
		}
	}

	if v := strings.TrimSpace(os.Getenv("NEXUS_AGENT_MAX_STEPS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxSteps = parsed
		}
	}

	if v := strings.TrimSpace(os.Getenv("NEXUS_SESSION_WINDOW_TURNS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Session.WindowTurns = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_MAX_MEMORY_SECTIONS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Session.MaxMemorySections = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_MEMORY_RECENT_DAYS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Session.MemoryRecentDays = parsed
		}
	}

	if v := strings.TrimSpace(os.Getenv("NEXUS_TIMEZONE")); v != "" {
		if loc, err := time.LoadLocation(v); err == nil {
			cfg.Timezone = loc
		}
	}

	if v := strings.TrimSpace(os.Getenv("NEXUS_DB_PATH")); v != "" {
		cfg.Paths.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_WORKSPACE_DIR")); v != "" {
		cfg.Paths.WorkspaceDir = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_MEMORIES_DIR")); v != "" {
		cfg.Paths.MemoriesDir = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_PROMPTS_DIR")); v != "" {
		cfg.Paths.PromptsDir = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_SKILLS_DIR")); v != "" {
		cfg.Paths.SkillsDir = v
	}

	if v := strings.TrimSpace(os.Getenv("NEXUS_CLI_ENABLED")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.CLI.Enabled = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEXUS_CLI_PROMPT")); v != "" {
		cfg.CLI.Prompt = v
	}
}

// ValidationError reports every configuration problem found at once,
// rather than failing on the first.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg Config) error {
	var issues []string

	if cfg.LLM.PrimaryModel == "" {
		issues = append(issues, "llm primary model must not be empty")
	}
	if cfg.LLM.MaxTokens <= 0 {
		issues = append(issues, "llm max tokens must be positive")
	}
	if cfg.LLM.Timeout <= 0 {
		issues = append(issues, "llm timeout must be positive")
	}
	if cfg.Agent.MaxSteps <= 0 {
		issues = append(issues, "agent max steps must be positive")
	}
	if cfg.Session.WindowTurns <= 0 {
		issues = append(issues, "session window turns must be positive")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
