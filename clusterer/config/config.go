package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

type HTTPServer struct {
	Address string        `yaml:"address" env:"HTTP_SERVER_ADDRESS" env-default:":8080"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_SERVER_TIMEOUT" env-default:"90s"`
}

type Clustering struct {
	ContextRatio     float64 `yaml:"context_ratio" env:"CLUSTERING_CONTEXT_RATIO" env-default:"5"`
	ContextThreshold float64 `yaml:"context_threshold" env:"CLUSTERING_CONTEXT_THRESHOLD" env-default:"0.05"`
	SEORatio         float64 `yaml:"seo_ratio" env:"CLUSTERING_SEO_RATIO" env-default:"12"`
	SEOThreshold     float64 `yaml:"seo_threshold" env:"CLUSTERING_SEO_THRESHOLD" env-default:"0.08"`
	MinClusters      int     `yaml:"min_clusters" env:"CLUSTERING_MIN_CLUSTERS" env-default:"3"`
	MaxClusters      int     `yaml:"max_clusters" env:"CLUSTERING_MAX_CLUSTERS" env-default:"20"`
	MinPhrases       int     `yaml:"min_phrases" env:"CLUSTERING_MIN_PHRASES" env-default:"5"`
	MaxPhrases       int     `yaml:"max_phrases" env:"CLUSTERING_MAX_PHRASES" env-default:"3000"`
	Workers          int     `yaml:"workers" env:"CLUSTERING_WORKERS" env-default:"0"`
	LemmaCacheSize   int     `yaml:"lemma_cache_size" env:"CLUSTERING_LEMMA_CACHE_SIZE" env-default:"50000"`
}

// Generative is an OpenAI-compatible chat completions endpoint. Empty
// api key disables generative clustering.
type Generative struct {
	URL        string        `yaml:"url" env:"OPENAI_URL" env-default:"https://api.openai.com/v1/chat/completions"`
	APIKey     string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	Model      string        `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	Proxy      string        `yaml:"proxy" env:"OPENAI_PROXY"`
	Timeout    time.Duration `yaml:"timeout" env:"OPENAI_TIMEOUT" env-default:"60s"`
	MaxPhrases int           `yaml:"max_phrases" env:"OPENAI_MAX_PHRASES" env-default:"200"`
}

type Wordstat struct {
	CollectURL string        `yaml:"collect_url" env:"WORDSTAT_COLLECT_URL" env-default:"https://api.wordstat.yandex.net/v1/getKeywordsSuggestion"`
	RegionsURL string        `yaml:"regions_url" env:"WORDSTAT_REGIONS_URL" env-default:"https://api.direct.yandex.ru/v4/json/"`
	Token      string        `yaml:"token" env:"YANDEX_WORDSTAT_TOKEN"`
	Limit      int           `yaml:"limit" env:"WORDSTAT_LIMIT" env-default:"500"`
	Timeout    time.Duration `yaml:"timeout" env:"WORDSTAT_TIMEOUT" env-default:"30s"`
	RedisURL   string        `yaml:"redis_url" env:"WORDSTAT_REDIS_URL"`
	CacheTTL   time.Duration `yaml:"cache_ttl" env:"WORDSTAT_CACHE_TTL" env-default:"24h"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"24h"`
}

type Limits struct {
	ClusterConcurrency int `yaml:"cluster_concurrency" env:"CLUSTER_CONCURRENCY" env-default:"8"`
	RPS                int `yaml:"rps" env:"API_RPS" env-default:"20"`
}

type Config struct {
	LogLevel      string     `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
	LexiconPath   string     `yaml:"lexicon_path" env:"LEXICON_PATH"`
	DBAddress     string     `yaml:"db_address" env:"DB_ADDRESS"`
	BrokerAddress string     `yaml:"broker_address" env:"BROKER_ADDRESS"`
	HTTPServer    HTTPServer `yaml:"http_server"`
	Clustering    Clustering `yaml:"clustering"`
	Generative    Generative `yaml:"generative"`
	Wordstat      Wordstat   `yaml:"wordstat"`
	Auth          Auth       `yaml:"auth"`
	Limits        Limits     `yaml:"limits"`
}

// Policy builds clustering parameters from the config.
func (c Config) Policy() core.Policy {
	return core.Policy{
		Context:              core.ModePolicy{Ratio: c.Clustering.ContextRatio, Threshold: c.Clustering.ContextThreshold},
		SEO:                  core.ModePolicy{Ratio: c.Clustering.SEORatio, Threshold: c.Clustering.SEOThreshold},
		MinClusters:          c.Clustering.MinClusters,
		MaxClusters:          c.Clustering.MaxClusters,
		MinPhrases:           c.Clustering.MinPhrases,
		MaxPhrases:           c.Clustering.MaxPhrases,
		Workers:              c.Clustering.Workers,
		GenerativeTimeout:    c.Generative.Timeout,
		GenerativeMaxPhrases: c.Generative.MaxPhrases,
	}
}

// Load reads the yaml file with env overrides. Without a file only the
// environment is used.
func Load(configPath string) (Config, error) {
	var cfg Config

	if configPath != "" {
		_, err := os.Stat(configPath)
		switch {
		case err == nil:
			err = cleanenv.ReadConfig(configPath, &cfg)
			return cfg, err
		case !errors.Is(err, os.ErrNotExist):
			return cfg, err
		}
	}
	err := cleanenv.ReadEnv(&cfg)
	return cfg, err
}

func MustLoad(configPath string) Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config %q: %s", configPath, err)
	}
	return cfg
}
