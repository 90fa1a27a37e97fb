package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Config is the root configuration for foodbot.
type Config struct {
	General GeneralConfig `json:"general"`
	Server  ServerConfig  `json:"server"`
	Line    LineConfig    `json:"line"`
	Gemini  GeminiConfig  `json:"gemini"`
	Limits  LimitsConfig  `json:"limits"`
	Persona PersonaConfig `json:"persona"`
	Metrics MetricsConfig `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
}

// ServerConfig configures the inbound webhook HTTP server.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Path string `json:"path"` // webhook URL path
}

// LineConfig holds the Messaging API credentials. Both values are normally
// injected through ${VAR} expansion rather than stored in the file.
type LineConfig struct {
	ChannelSecret      string `json:"channelSecret"`
	ChannelAccessToken string `json:"channelAccessToken"`
}

// GeminiConfig configures the generation backend.
type GeminiConfig struct {
	APIKey         string `json:"apiKey"`
	APIBase        string `json:"apiBase"`
	TextModel      string `json:"textModel"`
	ImageModel     string `json:"imageModel"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// LimitsConfig tunes the per-user rate gate.
type LimitsConfig struct {
	ThrottleWindowMs int `json:"throttleWindowMs"` // minimum gap between accepted messages
	IdleTTLMinutes   int `json:"idleTtlMinutes"`   // idle users pruned after this long
}

// PersonaConfig points at an optional YAML pack overriding the embedded
// persona, triggers, allowlist, and localized messages.
type PersonaConfig struct {
	Path string `json:"path,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.foodbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".foodbot"
	}
	return filepath.Join(home, ".foodbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Persona.Path = ExpandPath(cfg.Persona.Path)

	// Credential fields inherited from Defaults never went through the file
	// text, so expand them once more for the env-only setup.
	cfg.Line.ChannelSecret = ExpandEnvVars(cfg.Line.ChannelSecret)
	cfg.Line.ChannelAccessToken = ExpandEnvVars(cfg.Line.ChannelAccessToken)
	cfg.Gemini.APIKey = ExpandEnvVars(cfg.Gemini.APIKey)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Server.Path != "" && !strings.HasPrefix(cfg.Server.Path, "/") {
		errs = append(errs, "server.path must start with /")
	}

	if cfg.Gemini.TextModel == "" {
		errs = append(errs, "gemini.textModel must not be empty")
	}
	if cfg.Gemini.ImageModel == "" {
		errs = append(errs, "gemini.imageModel must not be empty")
	}
	if cfg.Gemini.TimeoutSeconds < 1 {
		errs = append(errs, "gemini.timeoutSeconds must be >= 1")
	}

	if cfg.Limits.ThrottleWindowMs < 1 {
		errs = append(errs, "limits.throttleWindowMs must be >= 1")
	}
	if cfg.Limits.IdleTTLMinutes < 1 {
		errs = append(errs, "limits.idleTtlMinutes must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// MissingCredentials reports which required secrets are absent. A value that
// still contains an unexpanded ${VAR} counts as absent. The server keeps
// running without credentials and answers 500, because the platform retries
// webhook deliveries and a dead process cannot be reconfigured remotely.
func (c *Config) MissingCredentials() error {
	var missing []string
	for name, val := range map[string]string{
		"line.channelSecret":      c.Line.ChannelSecret,
		"line.channelAccessToken": c.Line.ChannelAccessToken,
		"gemini.apiKey":           c.Gemini.APIKey,
	} {
		if val == "" || strings.Contains(val, "${") {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
