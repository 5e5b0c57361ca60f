package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/krishnaadithya/edqa.ai/internal/llm"
	"github.com/krishnaadithya/edqa.ai/internal/segment"
	"github.com/krishnaadithya/edqa.ai/pkg/log"
)

// Config holds all application configuration.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the model provider (falls back to GROQ_API_KEY)
// - LLM_API_URL: OpenAI compatible endpoint (default: https://api.groq.com/openai/v1)
// - LLM_MODEL: Model name (default: llama-3.3-70b-versatile)
// - LLM_MAX_TOKENS: Maximum completion tokens (default: 1024)
// - LLM_TEMPERATURE: Sampling temperature (default: 0.7)
// - LLM_TOP_P: Nucleus sampling (default: 1)
// - LLM_TIMEOUT: Request timeout in seconds (default: 60)
//
// Quiz Configuration:
// - QUIZ_GRADE_LEVEL: Default grade level (default: 2)
// - QUIZ_NUM_QUESTIONS: Default questions per key segment (default: 3)
// - QUIZ_MATCH_STRATEGY: substring, whole_word or scored (default: substring)
// - QUIZ_CONCURRENCY: Parallel question requests (default: 2)
// - QUIZ_CRON_EXPR: Caption directory scan schedule (default: 0 * * * *)
// - CAPTION_DIR: Directory scanned for caption files (optional)
//
// HTTP Configuration:
// - HTTP_ADDR (default: :8000)
// - UI_STATIC_DIR (default: /app/static)
// - UI_ENABLED (default: true)
//
// System Configuration:
// - DATA_DIR: Database directory (default: /app/data)
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - JOB_WORKERS: Job queue workers (default: 1)
type Config struct {
	LLM    LLMConfig    `json:"llm"`
	Quiz   QuizConfig   `json:"quiz"`
	HTTP   HTTPConfig   `json:"http"`
	System SystemConfig `json:"system"`
}

type LLMConfig struct {
	APIKey      string  `json:"-"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Timeout     int     `json:"timeout"`
}

type QuizConfig struct {
	GradeLevel    int    `json:"grade_level"`
	NumQuestions  int    `json:"num_questions"`
	MatchStrategy string `json:"match_strategy"`
	Concurrency   int    `json:"concurrency"`
	CronExpr      string `json:"cron_expr"`
	CaptionDir    string `json:"caption_dir"`
}

type HTTPConfig struct {
	Addr        string `json:"addr"`
	UIStaticDir string `json:"ui_static_dir"`
	UIEnabled   bool   `json:"ui_enabled"`
}

type SystemConfig struct {
	DataDir    string `json:"data_dir"`
	LogLevel   string `json:"log_level"`
	JobWorkers int    `json:"job_workers"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", os.Getenv("GROQ_API_KEY")),
			APIURL:      getEnvString("LLM_API_URL", "https://api.groq.com/openai/v1"),
			Model:       getEnvString("LLM_MODEL", "llama-3.3-70b-versatile"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
			TopP:        getEnvFloat("LLM_TOP_P", 1),
			Timeout:     getEnvInt("LLM_TIMEOUT", 60),
		},
		Quiz: QuizConfig{
			GradeLevel:    getEnvInt("QUIZ_GRADE_LEVEL", 2),
			NumQuestions:  getEnvInt("QUIZ_NUM_QUESTIONS", 3),
			MatchStrategy: getEnvString("QUIZ_MATCH_STRATEGY", string(segment.StrategySubstring)),
			Concurrency:   getEnvInt("QUIZ_CONCURRENCY", 2),
			CronExpr:      getEnvString("QUIZ_CRON_EXPR", "0 * * * *"),
			CaptionDir:    getEnvString("CAPTION_DIR", ""),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8000"),
			UIStaticDir: getEnvString("UI_STATIC_DIR", "/app/static"),
			UIEnabled:   getEnvBool("UI_ENABLED", true),
		},
		System: SystemConfig{
			DataDir:    getEnvString("DATA_DIR", "/app/data"),
			LogLevel:   getEnvString("LOG_LEVEL", "info"),
			JobWorkers: getEnvInt("JOB_WORKERS", 1),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", *config)
	return config, nil
}

// DBPath is the SQLite database location inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "edqa.db")
}

// LLMClientConfig converts the LLM section for llm.NewClient.
func (c *Config) LLMClientConfig() *llm.Config {
	return &llm.Config{
		APIKey:      c.LLM.APIKey,
		APIURL:      c.LLM.APIURL,
		Model:       c.LLM.Model,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
		TopP:        c.LLM.TopP,
		Timeout:     c.LLM.Timeout,
	}
}

// MatchStrategy returns the parsed matching strategy.
func (c *Config) MatchStrategy() segment.Strategy {
	s, err := segment.ParseStrategy(c.Quiz.MatchStrategy)
	if err != nil {
		return segment.StrategySubstring
	}
	return s
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if _, err := segment.ParseStrategy(c.Quiz.MatchStrategy); err != nil {
		return fmt.Errorf("invalid QUIZ_MATCH_STRATEGY: %w", err)
	}
	if c.Quiz.GradeLevel <= 0 {
		return fmt.Errorf("QUIZ_GRADE_LEVEL must be positive")
	}
	if c.Quiz.NumQuestions <= 0 {
		return fmt.Errorf("QUIZ_NUM_QUESTIONS must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
