package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/user/gopherthread/pkg/assistant"
)

// EnvFile is the dotenv file read from the working directory on Load.
var EnvFile = ".env"

type Config struct {
	LogLevel string `json:"log_level"`
	// Backend selects the client implementation: "http" or "sdk".
	Backend          string `json:"backend"`
	MaxMessageTokens int    `json:"max_message_tokens"`
	TokenizerModel   string `json:"tokenizer_model"`
	API              struct {
		BaseURL           string `json:"base_url"`
		APIKey            string `json:"api_key"`
		AssistantID       string `json:"assistant_id"`
		OrgID             string `json:"org_id"`
		AssistantsVersion string `json:"assistants_version"`
		StatusMethod      string `json:"status_method"`
		RequestTimeout    string `json:"request_timeout"`
	} `json:"api"`
	Poll struct {
		Interval        string `json:"interval"`
		Timeout         string `json:"timeout"`
		CancelOnTimeout bool   `json:"cancel_on_timeout"`
	} `json:"poll"`
}

// DefaultPath returns ~/.gopherthread/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".gopherthread", "config.json")
}

func defaults() *Config {
	cfg := &Config{
		LogLevel: "info",
		Backend:  "http",
	}
	cfg.TokenizerModel = "gpt-4"
	cfg.API.BaseURL = assistant.DefaultBaseURL
	cfg.API.AssistantsVersion = assistant.DefaultAssistantsVersion
	cfg.API.StatusMethod = "GET"
	cfg.API.RequestTimeout = "60s"
	cfg.Poll.Interval = "1s"
	cfg.Poll.Timeout = "10s"
	return cfg
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// .env never overrides variables already present in the environment
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", EnvFile, err)
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.API.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if assistantID := os.Getenv("OPENAI_ASSISTANT_ID"); assistantID != "" {
		cfg.API.AssistantID = assistantID
	}
	if orgID := os.Getenv("OPENAI_ORG_ID"); orgID != "" {
		cfg.API.OrgID = orgID
	}

	return cfg, nil
}

// Validate checks enumerated values and duration strings.
func (c *Config) Validate() error {
	switch c.Backend {
	case "http", "sdk":
	default:
		return fmt.Errorf("backend must be \"http\" or \"sdk\", got %q", c.Backend)
	}
	switch strings.ToUpper(c.API.StatusMethod) {
	case "", "GET", "POST":
	default:
		return fmt.Errorf("api.status_method must be GET or POST, got %q", c.API.StatusMethod)
	}
	if c.MaxMessageTokens < 0 {
		return fmt.Errorf("max_message_tokens must not be negative, got %d", c.MaxMessageTokens)
	}
	if _, err := c.AssistantConfig(); err != nil {
		return err
	}
	policy, err := c.PollPolicy()
	if err != nil {
		return err
	}
	return policy.Validate()
}

// AssistantConfig builds the backend configuration.
func (c *Config) AssistantConfig() (*assistant.Config, error) {
	timeout, err := parseDuration("api.request_timeout", c.API.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return &assistant.Config{
		BaseURL:           c.API.BaseURL,
		APIKey:            c.API.APIKey,
		OrgID:             c.API.OrgID,
		AssistantsVersion: c.API.AssistantsVersion,
		StatusMethod:      c.API.StatusMethod,
		RequestTimeout:    timeout,
	}, nil
}

// PollPolicy builds the session poll policy. Empty durations fall back to
// assistant.DefaultPollPolicy.
func (c *Config) PollPolicy() (*assistant.PollPolicy, error) {
	policy := assistant.DefaultPollPolicy()
	if c.Poll.Interval != "" {
		d, err := parseDuration("poll.interval", c.Poll.Interval)
		if err != nil {
			return nil, err
		}
		policy.Interval = d
	}
	if c.Poll.Timeout != "" {
		d, err := parseDuration("poll.timeout", c.Poll.Timeout)
		if err != nil {
			return nil, err
		}
		policy.Timeout = d
	}
	policy.CancelOnTimeout = c.Poll.CancelOnTimeout
	return policy, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// Save writes cfg to path atomically, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

// EnsureFile writes the defaults to path unless a file already exists there.
// An existing file is not parsed.
func EnsureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config: %w", err)
	}
	return writeDefaults(path, defaults())
}

func writeDefaults(path string, cfg *Config) error {
	if err := Save(path, cfg); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to its generic JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns cfg as a flat map of dotted keys, optionally with
// secrets masked.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue loads the config at path and returns the value at a dotted key.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	flat, err := readFlat(path)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets a dotted key in the config file at path. The value is typed
// against the key's field and the result must load and validate; otherwise
// the file is left untouched.
func SetValue(path, key, value string) error {
	flat, err := readFlat(path)
	if err != nil {
		return err
	}

	parsed, err := ParseValue(Schema(), key, value)
	if err != nil {
		return err
	}
	flat[key] = parsed

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func readFlat(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return Flatten(m), nil
}
