package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/valentinpelus/voiceboard/pkg/llm"
)

// Config holds all application configuration
type Config struct {
	Port     string
	LogLevel string
	LogFile  string
	LogJSON  bool

	LLMProvider     string // "deepseek", "openai", "ollama", "anthropic", "bedrock"
	LLMTemperature  float64
	LLMMaxTokens    int
	LLMTimeout      time.Duration // blocking requests only
	DeepSeekAPIKey  string
	DeepSeekModel   string
	DeepSeekURL     string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIURL       string
	OllamaURL       string
	OllamaModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	AnthropicURL    string
	BedrockRegion   string
	BedrockModel    string

	SlackWebhookURL  string
	SlackBotToken    string
	SlackChannelID   string
	SlackWorkspaceID string

	APIAuthToken string // empty disables bearer auth on /api

	// Storage: empty keeps records in memory only
	StoreDSN string

	MaxUploadBytes  int64
	ImportTTL       time.Duration
	ChatIdleTTL     time.Duration
	IngestFormats   []string
	ShutdownTimeout time.Duration
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
		LogJSON:  getEnvBool("LOG_JSON", false),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "deepseek")),
		LLMTemperature:  getEnvFloat("LLM_TEMPERATURE", llm.DefaultOptions.Temperature),
		LLMMaxTokens:    getEnvInt("LLM_MAX_TOKENS", llm.DefaultOptions.MaxTokens),
		LLMTimeout:      getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekModel:   getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		DeepSeekURL:     getEnv("DEEPSEEK_API_URL", llm.DeepSeekURL),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIURL:       getEnv("OPENAI_API_URL", llm.OpenAIURL),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:     getEnv("OLLAMA_MODEL", "qwen2.5"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		AnthropicURL:    getEnv("ANTHROPIC_API_URL", llm.AnthropicURL),
		BedrockRegion:   getEnv("BEDROCK_REGION", "us-east-1"),
		BedrockModel:    getEnv("BEDROCK_MODEL", "anthropic.claude-3-5-sonnet-20241022-v2:0"),

		SlackWebhookURL:  getEnv("SLACK_WEBHOOK_URL", ""),
		SlackBotToken:    getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID:   getEnv("SLACK_CHANNEL_ID", ""),
		SlackWorkspaceID: getEnv("SLACK_WORKSPACE_ID", ""),

		APIAuthToken: getEnv("API_AUTH_TOKEN", ""),
		StoreDSN:     getEnv("STORE_DSN", ""),

		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		ImportTTL:       getEnvDuration("IMPORT_TTL", 30*time.Minute),
		ChatIdleTTL:     getEnvDuration("CHAT_IDLE_TTL", 2*time.Hour),
		IngestFormats:   getEnvList("INGEST_FORMATS"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// LLMConfig maps the settings onto the provider factory configuration
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider:        c.LLMProvider,
		Temperature:     c.LLMTemperature,
		MaxTokens:       c.LLMMaxTokens,
		DeepSeekAPIKey:  c.DeepSeekAPIKey,
		DeepSeekModel:   c.DeepSeekModel,
		DeepSeekURL:     c.DeepSeekURL,
		OpenAIAPIKey:    c.OpenAIAPIKey,
		OpenAIModel:     c.OpenAIModel,
		OpenAIURL:       c.OpenAIURL,
		OllamaURL:       c.OllamaURL,
		OllamaModel:     c.OllamaModel,
		AnthropicAPIKey: c.AnthropicAPIKey,
		AnthropicModel:  c.AnthropicModel,
		AnthropicURL:    c.AnthropicURL,
		BedrockRegion:   c.BedrockRegion,
		BedrockModel:    c.BedrockModel,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvInt gets an int environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool accepts anything strconv.ParseBool does
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration parses Go durations such as "30m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
