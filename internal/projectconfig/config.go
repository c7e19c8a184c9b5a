// Package projectconfig provides the ProjectConfig struct and loader for
// .apicheck.yaml configuration files and APICHECK_* environment overrides.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/healthtestai/apicheck/internal/hooks"
	"github.com/healthtestai/apicheck/internal/utils"
	"github.com/healthtestai/apicheck/internal/validation"
)

// FileName is the configuration file looked up from the working directory.
const FileName = ".apicheck.yaml"

// Default values for project configuration. New() is the only place that
// applies them.
const (
	DefaultBaseURL = "http://localhost:5000"
	DefaultTimeout = 30 * time.Second

	DefaultChatMessage  = "Generate test cases for this requirement"
	DefaultSettleDelay  = time.Second
	DefaultPollTimeout  = 10 * time.Second
	DefaultPollInterval = 250 * time.Millisecond

	DefaultFormat = "text"
)

// ChatConfig holds the chat workflow timing and payload.
type ChatConfig struct {
	Message      string         `yaml:"message,omitempty"`
	SettleDelay  *time.Duration `yaml:"settle_delay,omitempty"`
	PollTimeout  time.Duration  `yaml:"poll_timeout,omitempty"`
	PollInterval time.Duration  `yaml:"poll_interval,omitempty"`
}

// OutputConfig holds report destinations and presentation settings.
type OutputConfig struct {
	Format        string `yaml:"format,omitempty"`
	JUnit         string `yaml:"junit,omitempty"`
	TranscriptDir string `yaml:"transcript_dir,omitempty"`
	Baseline      string `yaml:"baseline,omitempty"`
	Color         *bool  `yaml:"color,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .apicheck.yaml.
type ProjectConfig struct {
	BaseURL  string        `yaml:"base_url,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Extended *bool         `yaml:"extended,omitempty"`
	Chat     ChatConfig    `yaml:"chat,omitempty"`
	Output   OutputConfig  `yaml:"output,omitempty"`
	Hooks    hooks.Config  `yaml:"hooks,omitempty"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		BaseURL:  DefaultBaseURL,
		Timeout:  DefaultTimeout,
		Extended: utils.Ptr(false),
		Chat: ChatConfig{
			Message:      DefaultChatMessage,
			SettleDelay:  utils.Ptr(DefaultSettleDelay),
			PollTimeout:  DefaultPollTimeout,
			PollInterval: DefaultPollInterval,
		},
		Output: OutputConfig{
			Format: DefaultFormat,
			Color:  utils.Ptr(true),
		},
	}
}

// Load finds .apicheck.yaml by walking up from startDir (max 10 levels),
// validates and unmarshals it, fills in missing fields with defaults and then
// applies environment overrides. If no config file is found, defaults plus
// environment are returned with a nil error.
func Load(startDir string) (*ProjectConfig, error) {
	path, data, err := findConfigFile(startDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}
	return build(path, data)
}

// LoadFile reads configuration from an explicit path; the file must exist.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return build(path, data)
}

func build(path string, data []byte) (*ProjectConfig, error) {
	cfg := New()

	if data != nil {
		if errs := validation.ValidateConfigBytes(data); len(errs) > 0 {
			return nil, fmt.Errorf("invalid %s:\n  %s", path, strings.Join(errs, "\n  "))
		}

		var fileCfg ProjectConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		resolveRelative(&fileCfg, filepath.Dir(path))
		mergeConfig(cfg, &fileCfg)
		cfg.Path = path
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envConfig lists the supported APICHECK_* variables.
type envConfig struct {
	BaseURL       string         `env:"APICHECK_BASE_URL"`
	Timeout       time.Duration  `env:"APICHECK_TIMEOUT"`
	Extended      *bool          `env:"APICHECK_EXTENDED"`
	ChatMessage   string         `env:"APICHECK_CHAT_MESSAGE"`
	SettleDelay   *time.Duration `env:"APICHECK_SETTLE_DELAY"`
	PollTimeout   time.Duration  `env:"APICHECK_POLL_TIMEOUT"`
	JUnit         string         `env:"APICHECK_JUNIT"`
	TranscriptDir string         `env:"APICHECK_TRANSCRIPT_DIR"`
	Baseline      string         `env:"APICHECK_BASELINE"`
}

func applyEnv(cfg *ProjectConfig) error {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	mergeConfig(cfg, &ProjectConfig{
		BaseURL:  e.BaseURL,
		Timeout:  e.Timeout,
		Extended: e.Extended,
		Chat: ChatConfig{
			Message:     e.ChatMessage,
			SettleDelay: e.SettleDelay,
			PollTimeout: e.PollTimeout,
		},
		Output: OutputConfig{
			JUnit:         e.JUnit,
			TranscriptDir: e.TranscriptDir,
		},
	})
	return nil
}

// findConfigFile walks up from dir looking for .apicheck.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) (string, []byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// resolveRelative anchors the input paths of a config file to the file's
// directory. Report destinations stay relative to the working directory.
func resolveRelative(cfg *ProjectConfig, dir string) {
	cfg.Output.Baseline = utils.ResolvePath(cfg.Output.Baseline, dir)
	for i := range cfg.Hooks.BeforeRun {
		cfg.Hooks.BeforeRun[i].WorkingDirectory = utils.ResolvePath(cfg.Hooks.BeforeRun[i].WorkingDirectory, dir)
	}
	for i := range cfg.Hooks.AfterRun {
		cfg.Hooks.AfterRun[i].WorkingDirectory = utils.ResolvePath(cfg.Hooks.AfterRun[i].WorkingDirectory, dir)
	}
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.BaseURL != "" {
		dst.BaseURL = src.BaseURL
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.Extended != nil {
		dst.Extended = src.Extended
	}

	// Chat
	if src.Chat.Message != "" {
		dst.Chat.Message = src.Chat.Message
	}
	if src.Chat.SettleDelay != nil {
		dst.Chat.SettleDelay = src.Chat.SettleDelay
	}
	if src.Chat.PollTimeout != 0 {
		dst.Chat.PollTimeout = src.Chat.PollTimeout
	}
	if src.Chat.PollInterval != 0 {
		dst.Chat.PollInterval = src.Chat.PollInterval
	}

	// Output
	if src.Output.Format != "" {
		dst.Output.Format = src.Output.Format
	}
	if src.Output.JUnit != "" {
		dst.Output.JUnit = src.Output.JUnit
	}
	if src.Output.TranscriptDir != "" {
		dst.Output.TranscriptDir = src.Output.TranscriptDir
	}
	if src.Output.Baseline != "" {
		dst.Output.Baseline = src.Output.Baseline
	}
	if src.Output.Color != nil {
		dst.Output.Color = src.Output.Color
	}

	// Hooks replace rather than append.
	if len(src.Hooks.BeforeRun) > 0 {
		dst.Hooks.BeforeRun = src.Hooks.BeforeRun
	}
	if len(src.Hooks.AfterRun) > 0 {
		dst.Hooks.AfterRun = src.Hooks.AfterRun
	}
}
