// Package config loads sourcescan settings from defaults, an optional YAML
// file, the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Sentinel validation errors.
var (
	ErrMissingModel     = errors.New("model is required (use --model)")
	ErrInvalidExtension = errors.New("invalid extension")
	ErrNoExtensions     = errors.New("at least one extension is required")
	ErrInvalidTimeout   = errors.New("ollama timeout must be positive")
	ErrInvalidHost      = errors.New("ollama host must be an http(s) URL")
	ErrInvalidLimit     = errors.New("limits must not be negative")
)

// ConfigError marks a configuration problem detected at startup, before any
// checkpoint is touched.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// Default configuration values.
const (
	DefaultHost             = "http://127.0.0.1:11434"
	DefaultTimeout          = 5 * time.Minute
	DefaultMaxContextLength = 12000
	DefaultMaxFileReadSize  = 150000 // 150 KB
	DefaultSystemPrompt     = "You are a senior software engineer reviewing a codebase file by file. Be precise and concise."
	envPrefix               = "SOURCESCAN"
)

// DefaultExtensions is the extension allow-list used when none is given.
var DefaultExtensions = []string{".py", ".cpp", ".h", ".java", ".js", ".html", ".css"}

// OllamaConfig defines the inference endpoint configuration.
type OllamaConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Model        string        `mapstructure:"model" yaml:"model"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SystemPrompt string        `mapstructure:"system_prompt" yaml:"system_prompt"`
}

// AnalysisConfig defines the analysis parameters.
type AnalysisConfig struct {
	Extensions       []string `mapstructure:"extensions" yaml:"extensions"`
	Research         string   `mapstructure:"research" yaml:"research,omitempty"`
	MaxContextLength int      `mapstructure:"max_context_length" yaml:"max_context_length"`
	MaxFileReadSize  int64    `mapstructure:"max_file_read_size" yaml:"max_file_read_size"`
}

// ExplorerConfig defines the file explorer configuration.
type ExplorerConfig struct {
	IgnoreDirs []string `mapstructure:"ignore_dirs" yaml:"ignore_dirs"`
}

// StateConfig defines where checkpoints live.
type StateConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LoggingConfig defines the logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// Config is the top-level configuration struct.
type Config struct {
	Ollama   OllamaConfig   `mapstructure:"ollama" yaml:"ollama"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Explorer ExplorerConfig `mapstructure:"explorer" yaml:"explorer"`
	State    StateConfig    `mapstructure:"state" yaml:"state"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// FlagBinding maps a config key to a command-line flag.
type FlagBinding struct {
	Key  string
	Flag *pflag.Flag
}

// Load reads the configuration. configPath may be empty, in which case
// config.yaml is looked up in the working directory and ~/.sourcescan.
// Flags are bound on top of every other source.
func Load(configPath string, flags ...FlagBinding) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sourcescan"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ollama.host", envPrefix+"_OLLAMA_HOST", "OLLAMA_HOST")
	_ = v.BindEnv("ollama.model", envPrefix+"_OLLAMA_MODEL", "OLLAMA_MODEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, &ConfigError{Err: fmt.Errorf("failed to read config file: %w", err)}
		}
	}

	for _, fb := range flags {
		if fb.Flag == nil {
			continue
		}
		if err := v.BindPFlag(fb.Key, fb.Flag); err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("bind flag %s: %w", fb.Flag.Name, err)}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to unmarshal config: %w", err)}
	}

	cfg.Analysis.Extensions = splitList(cfg.Analysis.Extensions, ", \t")
	cfg.Explorer.IgnoreDirs = splitList(cfg.Explorer.IgnoreDirs, ",")

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ollama.host", DefaultHost)
	v.SetDefault("ollama.timeout", DefaultTimeout)
	v.SetDefault("ollama.system_prompt", DefaultSystemPrompt)

	v.SetDefault("analysis.extensions", DefaultExtensions)
	v.SetDefault("analysis.max_context_length", DefaultMaxContextLength)
	v.SetDefault("analysis.max_file_read_size", DefaultMaxFileReadSize)

	v.SetDefault("explorer.ignore_dirs", []string{})

	v.SetDefault("state.dir", DefaultStateDir())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
}

// DefaultStateDir returns the default checkpoint directory (~/.sourcescan/checkpoints).
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".sourcescan", "checkpoints")
}

// Validate checks the settings a scan depends on. requireModel is false for
// commands that never talk to the inference endpoint.
func (c *Config) Validate(requireModel bool) error {
	if requireModel && strings.TrimSpace(c.Ollama.Model) == "" {
		return &ConfigError{Err: ErrMissingModel}
	}
	if c.Ollama.Timeout <= 0 {
		return &ConfigError{Err: fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Ollama.Timeout)}
	}
	if !strings.HasPrefix(c.Ollama.Host, "http://") && !strings.HasPrefix(c.Ollama.Host, "https://") {
		return &ConfigError{Err: fmt.Errorf("%w: %q", ErrInvalidHost, c.Ollama.Host)}
	}
	if c.Analysis.MaxContextLength < 0 || c.Analysis.MaxFileReadSize < 0 {
		return &ConfigError{Err: ErrInvalidLimit}
	}
	if len(c.Analysis.Extensions) == 0 {
		return &ConfigError{Err: ErrNoExtensions}
	}
	for _, ext := range c.Analysis.Extensions {
		if err := ValidateExtension(ext); err != nil {
			return &ConfigError{Err: err}
		}
	}

	return nil
}

// ValidateExtension accepts suffixes such as ".py" or ".tar.gz".
func ValidateExtension(ext string) error {
	if len(ext) < 2 || ext[0] != '.' {
		return fmt.Errorf("%w %q: must start with '.' followed by at least one character", ErrInvalidExtension, ext)
	}
	if strings.ContainsAny(ext, `/\`) || strings.ContainsAny(ext, " \t\r\n") {
		return fmt.Errorf("%w %q: must not contain path separators or whitespace", ErrInvalidExtension, ext)
	}
	if strings.HasSuffix(ext, ".") {
		return fmt.Errorf("%w %q: must not end with '.'", ErrInvalidExtension, ext)
	}

	return nil
}

// YAML renders the configuration the way it would be written in config.yaml.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	return string(out), nil
}

// splitList flattens entries holding several values separated by any of
// seps, which is how env vars and some flag forms deliver lists.
func splitList(in []string, seps string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, item := range in {
		parts := strings.FieldsFunc(item, func(r rune) bool { return strings.ContainsRune(seps, r) })
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}

	return out
}
