package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all runtime configuration for the forecaster.
// Values come from config.yaml when present; environment variables always
// override YAML values. API keys should only be supplied through the environment.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Serp     SerpConfig     `yaml:"serp"`
	Text     TextConfig     `yaml:"text"`
	Model    ModelConfig    `yaml:"model"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	LLM      LLMConfig      `yaml:"llm"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string  `yaml:"port" env:"PORT" env-default:"8082"`
	GinMode        string  `yaml:"gin_mode" env:"GIN_MODE" env-default:"release"`
	Env            string  `yaml:"env" env:"APP_ENV" env-default:"production"`
	LogLevel       string  `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS" env-default:"2"`
	RateLimitBurst float64 `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST" env-default:"5"`
	DataDir        string  `yaml:"data_dir" env:"DATA_DIR" env-default:"./data"`
	AllowedOrigins string  `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"*"`
}

// DatabaseConfig holds the SQLite file locations.
type DatabaseConfig struct {
	RecordsPath   string `yaml:"records_path" env:"RECORDS_DB_PATH" env-default:"data/records.db"`
	SerpCachePath string `yaml:"serp_cache_path" env:"SERP_CACHE_DB_PATH" env-default:"data/serp_cache.db"`
}

// SerpConfig holds search-results provider, authority provider and enrichment settings.
type SerpConfig struct {
	SerpAPIKey   string `yaml:"-" env:"SERPAPI_KEY"`
	SerpAPIURL   string `yaml:"serpapi_url" env:"SERPAPI_URL" env-default:"https://serpapi.com/search"`
	SERankingKey string `yaml:"-" env:"SERANKING_KEY"`
	SERankingURL string `yaml:"seranking_url" env:"SERANKING_URL" env-default:"https://api.seranking.com/v1/backlinks"`
	Location     string `yaml:"location" env:"SERP_LOCATION" env-default:"United States"`
	ResultsCount int    `yaml:"results_count" env:"SERP_RESULTS_COUNT" env-default:"10"`
	TopN         int    `yaml:"top_n" env:"SERP_TOP_N" env-default:"10"`

	FetchConcurrency int           `yaml:"fetch_concurrency" env:"SERP_FETCH_CONCURRENCY" env-default:"5"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout" env:"SERP_FETCH_TIMEOUT" env-default:"15s"`

	// Guards against implausible medians left behind by a corrupted batch.
	ReadabilityFloor   float64 `yaml:"readability_floor" env:"SERP_READABILITY_FLOOR" env-default:"10"`
	ReadabilityDefault float64 `yaml:"readability_default" env:"SERP_READABILITY_DEFAULT" env-default:"55"`
	WordCountFloor     float64 `yaml:"word_count_floor" env:"SERP_WORD_COUNT_FLOOR" env-default:"100"`
	WordCountDefault   float64 `yaml:"word_count_default" env:"SERP_WORD_COUNT_DEFAULT" env-default:"1500"`
}

// TextConfig controls text feature extraction.
type TextConfig struct {
	// SyllableSampleWords caps how many leading words feed the syllable
	// estimate. A negative value means the whole text.
	SyllableSampleWords int `yaml:"syllable_sample_words" env:"SYLLABLE_SAMPLE_WORDS" env-default:"100"`
}

// ModelConfig points at the pretrained ranking model artifacts.
type ModelConfig struct {
	ModelFile       string `yaml:"model_file" env:"MODEL_FILE" env-default:"models/rank_model.json"`
	FeatureListFile string `yaml:"feature_list_file" env:"FEATURE_LIST_FILE" env-default:"models/feature_cols.json"`
}

// ScoringConfig holds batch scoring limits.
type ScoringConfig struct {
	BatchConcurrency int           `yaml:"batch_concurrency" env:"SCORING_BATCH_CONCURRENCY" env-default:"4"`
	KeywordTimeout   time.Duration `yaml:"keyword_timeout" env:"SCORING_KEYWORD_TIMEOUT" env-default:"90s"`
	Calibrate        bool          `yaml:"calibrate" env:"SCORING_CALIBRATE" env-default:"true"`
}

// LLMConfig selects the chat provider used for intent classification and brief copy.
type LLMConfig struct {
	Provider        string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"claude"`
	OpenAIAPIKey    string        `yaml:"-" env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:""`
	OpenAIModel     string        `yaml:"openai_model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	EmbeddingModel  string        `yaml:"embedding_model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	AnthropicAPIKey string        `yaml:"-" env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string        `yaml:"anthropic_model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-haiku-latest"`
	Timeout         time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"60s"`
}

// Load reads configuration from path with environment overrides.
// A missing file is not an error: defaults and environment variables apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Serp.TopN <= 0 {
		return errors.New("serp.top_n must be positive")
	}
	if c.Serp.FetchConcurrency <= 0 {
		return errors.New("serp.fetch_concurrency must be positive")
	}
	if c.Scoring.BatchConcurrency <= 0 {
		return errors.New("scoring.batch_concurrency must be positive")
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "claude", "anthropic", "openai", "none", "":
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	return nil
}

// Origins splits the comma separated allowed origins list.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
