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
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"mmrag-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`

	// ParserURL points at an optional parsing sidecar that extracts both
	// text and images; when empty the built-in text-only parser is used.
	ParserURL string `envconfig:"PARSER_URL"`

	// Retrieval tunables
	TopK     int     `envconfig:"TOP_K" default:"8"`
	MinScore float64 `envconfig:"MIN_SCORE" default:"0.15"`

	// Chunking tunables (rune counts)
	ChunkMaxChars int `envconfig:"CHUNK_MAX_CHARS" default:"1200"`
	ChunkMinChars int `envconfig:"CHUNK_MIN_CHARS" default:"200"`
	ChunkOverlap  int `envconfig:"CHUNK_OVERLAP" default:"200"`

	// Prompt assembly tunables
	HistoryWindow   int `envconfig:"HISTORY_WINDOW" default:"10"`
	MaxPromptImages int `envconfig:"MAX_PROMPT_IMAGES" default:"4"`
	PageProximity   int `envconfig:"PAGE_PROXIMITY" default:"1"`

	// WatchDir, when set, is watched for dropped files to ingest.
	WatchDir string `envconfig:"WATCH_DIR"`

	// StaleIngestTTLMinutes controls how old an in-flight ingestion may be
	// before the janitor treats it as crash debris and removes its partials.
	StaleIngestTTLMinutes int `envconfig:"STALE_INGEST_TTL_MINUTES" default:"30"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MMRAG", &cfg); err != nil {
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

func (c *Config) HasRemoteParser() bool {
	return c.ParserURL != ""
}
