package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"

	ClassifierZeroShot = "zeroshot"
	ClassifierPrompt   = "prompt"

	ExtractorKeyword = "keyword"
	ExtractorModel   = "model"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config is the root application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Store       StoreConfig       `yaml:"store"`
	Params      ParamsConfig      `yaml:"params"`
	LLM         LLMConfig         `yaml:"llm"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Retry       RetryConfig       `yaml:"retry"`
	Chat        ChatConfig        `yaml:"chat"`
	CORS        CORSConfig        `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	BasePath        string        `yaml:"base_path"        env:"API_BASE_PATH"           env-default:"/api/v1"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"90s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend    string        `yaml:"backend"     env:"STORE_BACKEND"     env-default:"dynamodb"`
	TableName  string        `yaml:"table_name"  env:"TABLE_NAME"        env-default:"grocer-agent"`
	HistoryTTL time.Duration `yaml:"history_ttl" env:"HISTORY_TTL"       env-default:"0s"`
	MongoURI   string        `yaml:"mongo_uri"   env:"MONGO_URI"         env-default:"mongodb://localhost:27017"`
	MongoDB    string        `yaml:"mongo_db"    env:"MONGO_DB"          env-default:"grocery_db"`
}

// ParamsConfig controls where secrets come from. With an empty Prefix the
// values are read from the environment variables below; otherwise from SSM
// at Prefix + "/" + name.
type ParamsConfig struct {
	Prefix        string `yaml:"prefix"          env:"PARAM_PREFIX"`
	OpenAIKey     string `yaml:"openai_api_key"  env:"OPENAI_API_KEY"`
	GeminiKey     string `yaml:"gemini_api_key"  env:"GEMINI_API_KEY"`
	ZeroShotToken string `yaml:"zeroshot_token"  env:"HF_API_TOKEN"`
}

// LLMConfig configures the generative model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"    env:"LLM_PROVIDER"    env-default:"openai"`
	Model       string  `yaml:"model"       env:"LLM_MODEL"`
	BaseURL     string  `yaml:"base_url"    env:"LLM_BASE_URL"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.7"`
	MaxTokens   int32   `yaml:"max_tokens"  env:"LLM_MAX_TOKENS"  env-default:"1024"`
	Moderation  bool    `yaml:"moderation"  env:"LLM_MODERATION"  env-default:"false"`
}

// ClassifierConfig configures intent classification.
type ClassifierConfig struct {
	Backend string `yaml:"backend"  env:"CLASSIFIER_BACKEND" env-default:"zeroshot"`
	Model   string `yaml:"model"    env:"ZEROSHOT_MODEL"     env-default:"facebook/bart-large-mnli"`
	BaseURL string `yaml:"base_url" env:"ZEROSHOT_BASE_URL"`
}

// PreferencesConfig selects the preference extractor.
type PreferencesConfig struct {
	Extractor string `yaml:"extractor" env:"PREFERENCE_EXTRACTOR" env-default:"keyword"`
}

// RetryConfig bounds retries of model calls.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"     env:"RETRY_MAX_ATTEMPTS"     env-default:"3"`
	InitialInterval time.Duration `yaml:"initial_interval" env:"RETRY_INITIAL_INTERVAL" env-default:"1s"`
	MaxInterval     time.Duration `yaml:"max_interval"     env:"RETRY_MAX_INTERVAL"     env-default:"10s"`
}

// ChatConfig tunes the chat pipeline.
type ChatConfig struct {
	HistoryLimit     int `yaml:"history_limit"      env:"CHAT_HISTORY_LIMIT"      env-default:"10"`
	MaxMessageLength int `yaml:"max_message_length" env:"CHAT_MAX_MESSAGE_LENGTH" env-default:"2000"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	AllowedMethods string `yaml:"allowed_methods" env:"CORS_ALLOWED_METHODS" env-default:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders string `yaml:"allowed_headers" env:"CORS_ALLOWED_HEADERS" env-default:"Content-Type,X-Correlation-Id"`
}

// Validate checks enum fields and numeric ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		if !slices.Contains(allowed, strings.ToLower(value)) {
			errs = append(errs, fmt.Errorf("%s: %q must be one of %s", field, value, strings.Join(allowed, ", ")))
		}
	}

	check("store.backend", c.Store.Backend, StoreDynamoDB, StoreMongo, StoreMemory)
	check("classifier.backend", c.Classifier.Backend, ClassifierZeroShot, ClassifierPrompt)
	check("preferences.extractor", c.Preferences.Extractor, ExtractorKeyword, ExtractorModel)
	check("llm.provider", c.LLM.Provider, ProviderOpenAI, ProviderGemini)
	check("log.level", c.Log.Level, "debug", "info", "warn", "error")
	check("log.format", c.Log.Format, "json", "text")

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		errs = append(errs, fmt.Errorf("server.base_path: %q must start with /", c.Server.BasePath))
	}
	if strings.EqualFold(c.Store.Backend, StoreDynamoDB) && strings.TrimSpace(c.Store.TableName) == "" {
		errs = append(errs, errors.New("store.table_name: required for dynamodb"))
	}
	if strings.EqualFold(c.Store.Backend, StoreMongo) && strings.TrimSpace(c.Store.MongoURI) == "" {
		errs = append(errs, errors.New("store.mongo_uri: required for mongo"))
	}
	if c.Store.HistoryTTL < 0 {
		errs = append(errs, errors.New("store.history_ttl: must not be negative"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts: must be at least 1"))
	}
	if c.Chat.HistoryLimit < 0 {
		errs = append(errs, errors.New("chat.history_limit: must not be negative"))
	}
	if c.Chat.MaxMessageLength < 1 {
		errs = append(errs, errors.New("chat.max_message_length: must be positive"))
	}

	return errors.Join(errs...)
}
