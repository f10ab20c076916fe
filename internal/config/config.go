package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"clauselens-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	// Worker concurrency is asymmetric: full analysis runs are completion-bound
	// and expensive, embedding-only runs are cheap per call.
	AnalysisWorkers  int `envconfig:"ANALYSIS_WORKERS" default:"2"`
	EmbeddingWorkers int `envconfig:"EMBEDDING_WORKERS" default:"3"`

	// A processing job whose lock lapses for this long is presumed stalled
	// and becomes eligible for requeue.
	JobLockSeconds int `envconfig:"JOB_LOCK_SECONDS" default:"60"`
	JobMaxRetries  int `envconfig:"JOB_MAX_RETRIES" default:"3"`

	SearchCacheTTLSeconds int `envconfig:"SEARCH_CACHE_TTL_SECONDS" default:"120"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CLAUSELENS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}
