// Package config loads engine configuration from the environment and from
// the exploration-budget.json knob file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the discovery engine.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	StoreKind   string `env:"STORE_KIND" envDefault:"postgres"` // postgres | memory

	// LLM tiers
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	CheapModel      string `env:"LLM_CHEAP_MODEL" envDefault:"gpt-4o-mini"`
	MidModel        string `env:"LLM_MID_MODEL" envDefault:"gpt-4o"`
	ExpensiveModel  string `env:"LLM_EXPENSIVE_MODEL" envDefault:"claude-sonnet-4-20250514"`

	// Embeddings (episode clustering)
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`

	// Search
	SearchBaseURL     string        `env:"SEARCH_BASE_URL"`
	SearchTimeout     time.Duration `env:"SEARCH_TIMEOUT" envDefault:"30s"`
	SearchCacheTTL    time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"24h"`
	SearchMaxResults  int           `env:"SEARCH_MAX_RESULTS" envDefault:"10"`

	// Scrape
	WebFetchRPS      float64       `env:"WEB_FETCH_RPS" envDefault:"2"`
	WebFetchTimeout  time.Duration `env:"WEB_FETCH_TIMEOUT" envDefault:"30s"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH" envDefault:"8000"`

	// Verifier
	VerifyTimeout time.Duration `env:"VERIFY_TIMEOUT" envDefault:"10s"`

	// Batch
	BatchSize             int    `env:"BATCH_SIZE" envDefault:"100"`
	MaxConcurrentEntities int    `env:"MAX_CONCURRENT_ENTITIES" envDefault:"1"`
	CheckpointPath        string `env:"CHECKPOINT_PATH" envDefault:"./discovery-checkpoint.json"`
	ProgressLogEvery      int    `env:"PROGRESS_LOG_EVERY" envDefault:"10"`

	// Budget knob file; see Budget for the knobs themselves.
	BudgetConfigPath string `env:"BUDGET_CONFIG_PATH" envDefault:"./exploration-budget.json"`

	// Input catalogs
	TemplatesPath string `env:"TEMPLATES_PATH" envDefault:"./templates.json"`
	EntitiesPath  string `env:"ENTITIES_PATH" envDefault:"./entities.json"`

	// Cluster intelligence
	ClusterSimilarityThreshold float64 `env:"CLUSTER_SIMILARITY_THRESHOLD" envDefault:"0.75"`
	ClusterWindowDays          int     `env:"CLUSTER_WINDOW_DAYS" envDefault:"45"`

	// Observability
	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`
}

// Load reads .env (optional) and parses the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}
