// Package config loads the controller's typed configuration from a YAML
// document on disk, translating original_source/config.py's dataclass
// shape (ToolConfig/DefaultsConfig/AppConfig) into Go structs.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ToolConfig is the immutable per-tool template: command templates,
// readiness/resume regexes, and environment overrides.
type ToolConfig struct {
	Name                   string            `yaml:"name"`
	Mode                   string            `yaml:"mode"`
	CmdTemplate            []string          `yaml:"cmd"`
	InteractiveCmdTemplate []string          `yaml:"interactive_cmd"`
	ResumeCmdTemplate      []string          `yaml:"resume_cmd"`
	ImageArgTemplate       []string          `yaml:"image_arg"`
	PromptRegex            string            `yaml:"prompt_regex"`
	ResumeRegex            string            `yaml:"resume_regex"`
	ActivityTokens         []string          `yaml:"activity_tokens"`
	Env                    map[string]string `yaml:"env"`
	AutoCommands           []string          `yaml:"auto_commands"`
	HelpCmdTemplate        []string          `yaml:"help_cmd"`
}

const (
	ModeHeadless    = "headless"
	ModeInteractive = "interactive"
)

// OutputDefaults controls the output pipeline's inline-vs-preview size
// decision and flush scheduling.
type OutputDefaults struct {
	InlineLimit  int    `yaml:"inline_limit"`
	HeadChars    int    `yaml:"head_chars"`
	TailChars    int    `yaml:"tail_chars"`
	FlushDelayMs int    `yaml:"flush_delay_ms"`
	ArtifactsDir string `yaml:"artifacts_dir"`
}

// Defaults holds the controller-wide settings applied when a tool or
// session doesn't override them.
type Defaults struct {
	Workdir            string         `yaml:"workdir"`
	StatePath          string         `yaml:"state_path"`
	ToolhelpPath       string         `yaml:"toolhelp_path"`
	IdleTimeoutSec     int            `yaml:"idle_timeout_sec"`
	HeadlessTimeoutSec int            `yaml:"headless_timeout_sec"`
	Output             OutputDefaults `yaml:"output"`
}

// RPCConfig configures the length-delimited JSON bridge.
type RPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Token   string `yaml:"token"`
}

// QueueConfig bounds per-session backpressure.
type QueueConfig struct {
	MaxPerSession int `yaml:"max_per_session"`
}

// Config is the root configuration document consumed by the core.
type Config struct {
	Tools    map[string]ToolConfig `yaml:"tools"`
	Defaults Defaults              `yaml:"defaults"`
	RPC      RPCConfig             `yaml:"rpc"`
	Queue    QueueConfig           `yaml:"queue"`
}

// Load reads and strictly decodes the YAML document at path, rejecting
// unknown top-level fields so a typo in the document fails loudly
// instead of silently falling back to a default, and resolving ${VAR}
// indirection in tool env maps.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	for name, tc := range cfg.Tools {
		tc.Name = name
		if tc.Mode != ModeHeadless && tc.Mode != ModeInteractive {
			return nil, fmt.Errorf("tool %q: invalid mode %q", name, tc.Mode)
		}
		cfg.Tools[name] = tc
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Defaults.Output.InlineLimit == 0 {
		cfg.Defaults.Output.InlineLimit = 3500
	}
	if cfg.Defaults.Output.HeadChars == 0 {
		cfg.Defaults.Output.HeadChars = 1000
	}
	if cfg.Defaults.Output.TailChars == 0 {
		cfg.Defaults.Output.TailChars = 2000
	}
	if cfg.Defaults.Output.FlushDelayMs == 0 {
		cfg.Defaults.Output.FlushDelayMs = 300
	}
	if cfg.Defaults.Output.ArtifactsDir == "" {
		cfg.Defaults.Output.ArtifactsDir = "artifacts"
	}
	if cfg.Defaults.IdleTimeoutSec == 0 {
		cfg.Defaults.IdleTimeoutSec = 120
	}
	if cfg.Defaults.HeadlessTimeoutSec == 0 {
		cfg.Defaults.HeadlessTimeoutSec = 60
	}
	if cfg.Queue.MaxPerSession == 0 {
		cfg.Queue.MaxPerSession = 50
	}
}

// resolveEnv expands ${VAR}-style indirection in tool env maps, grounded
// on original_source/utils.py's resolve_env_value.
func resolveEnv(cfg *Config) {
	for name, tc := range cfg.Tools {
		if tc.Env == nil {
			continue
		}
		resolved := make(map[string]string, len(tc.Env))
		for k, v := range tc.Env {
			resolved[k] = os.ExpandEnv(v)
		}
		tc.Env = resolved
		cfg.Tools[name] = tc
	}
}
