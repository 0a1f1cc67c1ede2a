package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GeminiAPIKey string

	AnalysisModel      string
	CorrectionModel    string
	ChatModel          string
	ChatThinkingBudget int
	Language           string

	// ChatProvider is gemini, openai or ollama
	ChatProvider string
	OpenAIAPIKey string
	OpenAIModel  string
	OllamaURL    string
	OllamaModel  string

	// SessionStore is memory or redis
	SessionStore string
	RedisURL     string
	SessionTTL   time.Duration

	CallTimeout       time.Duration
	RequestsPerSecond float64

	DesignSpecsFile string
	DesignSpec      models.DesignSpec
}

var ErrMissingAPIKey = errors.New("GEMINI_API_KEY environment variable not set")

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring invalid integer env", "key", k, "value", v)
		return def
	}
	return n
}

func getEnvFloat(k string, def float64) float64 {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("Ignoring invalid number env", "key", k, "value", v)
		return def
	}
	return f
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Ignoring invalid duration env", "key", k, "value", v)
		return def
	}
	return d
}

// Load reads the configuration from the environment. The API credential is
// read here once and shared by every remote call.
func Load() (*Config, error) {
	cfg := &Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		AnalysisModel:      getEnv("ANALYSIS_MODEL", "gemini-2.5-flash"),
		CorrectionModel:    getEnv("CORRECTION_MODEL", "gemini-2.5-flash-image"),
		ChatModel:          getEnv("CHAT_MODEL", "gemini-2.5-pro"),
		ChatThinkingBudget: getEnvInt("CHAT_THINKING_BUDGET", 32768),
		Language:           getEnv("AUDIT_LANGUAGE", "English"),

		ChatProvider: strings.ToLower(getEnv("CHAT_PROVIDER", "gemini")),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),
		OllamaURL:    getEnv("OLLAMA_URL", getEnv("OLLAMA_HOST", "http://localhost:11434")),
		OllamaModel:  getEnv("OLLAMA_MODEL", "mistral-small3.2:24b"),

		SessionStore: strings.ToLower(getEnv("SESSION_STORE", "memory")),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionTTL:   getEnvDuration("SESSION_TTL", 24*time.Hour),

		CallTimeout:       getEnvDuration("CALL_TIMEOUT", 120*time.Second),
		RequestsPerSecond: getEnvFloat("REQUESTS_PER_SECOND", 2),

		DesignSpecsFile: getEnv("DESIGN_SPECS_FILE", ""),
		DesignSpec:      models.DefaultDesignSpec(),
	}

	if cfg.DesignSpecsFile != "" {
		spec, err := LoadDesignSpec(cfg.DesignSpecsFile)
		if err != nil {
			return nil, err
		}
		cfg.DesignSpec = spec
	}

	return cfg, cfg.Validate()
}

// Validate checks the settings that do not depend on which command runs
func (c *Config) Validate() error {
	switch c.ChatProvider {
	case "gemini", "ollama":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY not set but CHAT_PROVIDER is openai")
		}
	default:
		return fmt.Errorf("unsupported chat provider: %s", c.ChatProvider)
	}

	switch c.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported session store: %s", c.SessionStore)
	}

	if c.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT must be positive, got %s", c.CallTimeout)
	}
	return nil
}

// RequireAPIKey is called by commands that talk to Gemini
func (c *Config) RequireAPIKey() error {
	if c.GeminiAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// LoadDesignSpec reads a YAML design spec. Fields left out keep their defaults.
func LoadDesignSpec(path string) (models.DesignSpec, error) {
	spec := models.DefaultDesignSpec()

	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("failed to read design specs file: %w", err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("failed to parse design specs file: %w", err)
	}
	if err := ValidateDesignSpec(spec); err != nil {
		return spec, err
	}
	return spec, nil
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateDesignSpec rejects specs the analysis prompt cannot use
func ValidateDesignSpec(spec models.DesignSpec) error {
	for name, c := range map[string]string{
		"primary_color":   spec.PrimaryColor,
		"secondary_color": spec.SecondaryColor,
		"success_color":   spec.SuccessColor,
	} {
		if !hexColor.MatchString(c) {
			return fmt.Errorf("%s must be a #RRGGBB color, got %q", name, c)
		}
	}
	if spec.BaseGrid <= 0 {
		return fmt.Errorf("base_grid must be positive, got %d", spec.BaseGrid)
	}
	if spec.BorderRadius < 0 {
		return fmt.Errorf("border_radius must not be negative, got %d", spec.BorderRadius)
	}
	if spec.BodySize <= 0 || spec.HeadingSize <= 0 || spec.CaptionSize <= 0 {
		return fmt.Errorf("font sizes must be positive")
	}
	return nil
}

// SaveDesignSpec writes the spec back as YAML
func SaveDesignSpec(path string, spec models.DesignSpec) error {
	data, err := yaml.Marshal(&spec)
	if err != nil {
		return fmt.Errorf("failed to marshal design spec: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write design specs file: %w", err)
	}
	return nil
}
