package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir  string `yaml:"data_dir"`
	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	JWTSecret string `yaml:"jwt_secret"`
	HTTPAddr  string `yaml:"http_addr"`

	// redis forecast cache, disabled when RedisAddr is empty
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	// AI provider
	AIProvider        string        `yaml:"ai_provider"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	GeminiModel       string        `yaml:"gemini_model"`
	GeminiBaseURL     string        `yaml:"gemini_base_url"`
	OllamaBaseURL     string        `yaml:"ollama_base_url"`
	OllamaModel       string        `yaml:"ollama_model"`
	OpenRouterBaseURL string        `yaml:"openrouter_base_url"`
	OpenRouterAPIKey  string        `yaml:"openrouter_api_key"`
	OpenRouterModel   string        `yaml:"openrouter_model"`
	OpenRouterSiteURL string        `yaml:"openrouter_site_url"`
	OpenRouterAppName string        `yaml:"openrouter_app_name"`
	AITimeout         time.Duration `yaml:"ai_timeout"`
	MaxImageBytes     int64         `yaml:"max_image_bytes"`
	CitationLimit     int           `yaml:"citation_limit"`
	MarketRegion      string        `yaml:"market_region"`

	ChatContextWindowSize int `yaml:"chat_context_window_size"`

	// session policy
	RegistrationEnabled bool   `yaml:"registration_enabled"`
	LogoutPolicy        string `yaml:"logout_policy"`
	AccessCodeSalt      string `yaml:"access_code_salt"`

	// rabbitMQ detection events, disabled when RabbitURL is empty
	RabbitURL   string `yaml:"rabbit_url"`
	RabbitQueue string `yaml:"rabbit_queue"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

const (
	LogoutRetain = "retain"
	LogoutPurge  = "purge"
)

func Defaults() Config {
	dataDir := ".agroguard"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".agroguard")
	}
	return Config{
		DataDir:  dataDir,
		DBDriver: "sqlite",

		JWTSecret: "dev-secret-change-me",
		HTTPAddr:  "127.0.0.1:8080",

		CacheTTL: 30 * time.Minute,

		AIProvider:        "gemini",
		GeminiModel:       "gemini-3-flash-preview",
		OllamaBaseURL:     "http://localhost:11434",
		OllamaModel:       "llava:latest",
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		OpenRouterModel:   "openrouter/auto",
		AITimeout:         45 * time.Second,
		MaxImageBytes:     10 * 1024 * 1024,
		CitationLimit:     3,
		MarketRegion:      "Philippines",

		ChatContextWindowSize: 20,

		RegistrationEnabled: true,
		LogoutPolicy:        LogoutRetain,
		AccessCodeSalt:      "agroguard-device",

		RabbitQueue: "detection_events",

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load reads a .env file when present, an optional YAML overlay named by
// AGROGUARD_CONFIG, then environment variables. Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("AGROGUARD_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile is Load with an explicit YAML file, used by the --config flag.
func LoadFile(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := cfg.mergeFile(path); err != nil {
		return Config{}, err
	}
	cfg.applyEnv()
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.DataDir, "AGROGUARD_DATA_DIR")
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DBDSN, "DB_DSN")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.HTTPAddr, "HTTP_ADDR")

	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setInt(&c.RedisDB, "REDIS_DB")
	setDuration(&c.CacheTTL, "CACHE_TTL")

	setString(&c.AIProvider, "AI_PROVIDER")
	setString(&c.GeminiAPIKey, "API_KEY")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")
	setString(&c.GeminiBaseURL, "GEMINI_BASE_URL")
	setString(&c.OllamaBaseURL, "OLLAMA_BASE_URL")
	setString(&c.OllamaModel, "OLLAMA_MODEL")
	setString(&c.OpenRouterBaseURL, "OPENROUTER_BASE_URL")
	setString(&c.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	setString(&c.OpenRouterModel, "OPENROUTER_MODEL")
	setString(&c.OpenRouterSiteURL, "OPENROUTER_SITE_URL")
	setString(&c.OpenRouterAppName, "OPENROUTER_APP_NAME")
	setDuration(&c.AITimeout, "AI_TIMEOUT")
	if v := os.Getenv("MAX_IMAGE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxImageBytes = n
		}
	}
	setInt(&c.CitationLimit, "CITATION_LIMIT")
	setString(&c.MarketRegion, "MARKET_REGION")

	setInt(&c.ChatContextWindowSize, "CHAT_CONTEXT_WINDOW_SIZE")

	if v := os.Getenv("REGISTRATION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.RegistrationEnabled = b
		}
	}
	setString(&c.LogoutPolicy, "LOGOUT_POLICY")
	setString(&c.AccessCodeSalt, "ACCESS_CODE_SALT")

	setString(&c.RabbitURL, "RABBIT_URL")
	setString(&c.RabbitQueue, "RABBIT_QUEUE")

	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
}

func (c *Config) finish() error {
	c.AIProvider = strings.ToLower(strings.TrimSpace(c.AIProvider))
	c.LogoutPolicy = strings.ToLower(strings.TrimSpace(c.LogoutPolicy))
	switch c.LogoutPolicy {
	case LogoutRetain, LogoutPurge:
	default:
		return fmt.Errorf("unsupported LOGOUT_POLICY=%q", c.LogoutPolicy)
	}
	if c.DBDSN == "" && c.DBDriver == "sqlite" {
		c.DBDSN = filepath.Join(c.DataDir, "agroguard.db")
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = 10 * 1024 * 1024
	}
	if c.CitationLimit <= 0 {
		c.CitationLimit = 3
	}
	if c.ChatContextWindowSize <= 0 || c.ChatContextWindowSize > 100 {
		c.ChatContextWindowSize = 20
	}
	if c.AITimeout <= 0 {
		c.AITimeout = 45 * time.Second
	}
	return nil
}

// ImageDir is where captured images are written.
func (c Config) ImageDir() string {
	return filepath.Join(c.DataDir, "images")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
