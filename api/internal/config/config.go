package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrMissingAPIKey = errors.New("GEMINI_API_KEY not defined")

type Config struct {
	Port string `yaml:"port"`

	GeminiAPIKey    string `yaml:"gemini_api_key"`
	GeminiModel     string `yaml:"gemini_model"`
	GeminiProAPIKey string `yaml:"gemini_pro_api_key"`
	GeminiProModel  string `yaml:"gemini_pro_model"`

	OCRLanguage string `yaml:"ocr_language"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`

	ModelTimeout time.Duration `yaml:"model_timeout"`
	OCRTimeout   time.Duration `yaml:"ocr_timeout"`

	// PromptDir holds optional extract.tmpl / summary.tmpl overrides.
	PromptDir string `yaml:"prompt_dir"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	WebhookURL       string `yaml:"webhook_url"`

	// ProKeyFallback is set when GeminiProAPIKey was borrowed from GeminiAPIKey.
	ProKeyFallback bool `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		Port:           "3000",
		GeminiModel:    "gemini-2.0-flash",
		GeminiProModel: "gemini-2.0-flash",
		OCRLanguage:    "eng",
		UploadDir:      "uploads",
		MaxUploadMB:    10,
		ModelTimeout:   60 * time.Second,
		OCRTimeout:     60 * time.Second,
	}
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// Load resolves the configuration: defaults, then CONFIG_FILE (YAML) if set,
// then environment variables. The default model key is required; the pro key
// falls back to it with a warning.
func Load(log *zap.Logger) (*Config, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if cfg.GeminiAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.GeminiProAPIKey == "" {
		log.Warn("GEMINI_PRO_API_KEY missing, using GEMINI_API_KEY instead")
		cfg.GeminiProAPIKey = cfg.GeminiAPIKey
		cfg.ProKeyFallback = true
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	c.Port = getEnv("PORT", c.Port)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.GeminiProAPIKey = getEnv("GEMINI_PRO_API_KEY", c.GeminiProAPIKey)
	c.GeminiProModel = getEnv("GEMINI_PRO_MODEL", c.GeminiProModel)
	c.OCRLanguage = getEnv("OCR_LANGUAGE", c.OCRLanguage)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.PromptDir = getEnv("PROMPT_DIR", c.PromptDir)
	c.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", c.TelegramBotToken)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)

	if v := getEnv("MAX_UPLOAD_MB", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("bad MAX_UPLOAD_MB %q", v)
		}
		c.MaxUploadMB = n
	}
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"MODEL_TIMEOUT", &c.ModelTimeout},
		{"OCR_TIMEOUT", &c.OCRTimeout},
	} {
		v := getEnv(d.key, "")
		if v == "" {
			continue
		}
		dur, err := time.ParseDuration(v)
		if err != nil || dur < 0 {
			return fmt.Errorf("bad %s %q", d.key, v)
		}
		*d.dst = dur
	}
	return nil
}

// MaxUploadBytes is the request body limit for multipart uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
