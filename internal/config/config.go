package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/krakend/docsite-search/internal/searchsvc"
)

// ErrInvalidConfig marks configuration problems found at startup
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Backend             searchsvc.Backend
	DataDir             string
	Collection          string
	ElasticsearchURL    string
	ElasticsearchAPIKey string
	ContentDir          string
	HTTPAddr            string
	Retries             int
}

// Load reads .env (if present) and the environment. The result is not validated.
func Load() (*Config, error) {
	_ = godotenv.Load()

	retries, err := strconv.Atoi(getEnv("SEARCH_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("%w: SEARCH_RETRIES: %v", ErrInvalidConfig, err)
	}

	return &Config{
		Backend:             searchsvc.Backend(getEnv("SEARCH_BACKEND", string(searchsvc.BackendBleve))),
		DataDir:             getEnv("SEARCH_DATA_DIR", "data/search"),
		Collection:          getEnv("SEARCH_COLLECTION", ""),
		ElasticsearchURL:    getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		ElasticsearchAPIKey: getEnv("ELASTICSEARCH_API_KEY", ""),
		ContentDir:          getEnv("CONTENT_DIR", "content"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		Retries:             retries,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Validate reports the first missing or inconsistent setting
func (c *Config) Validate() error {
	switch c.Backend {
	case searchsvc.BackendBleve, searchsvc.BackendSQLite:
		if c.DataDir == "" {
			return fmt.Errorf("%w: SEARCH_DATA_DIR is required for the %s backend", ErrInvalidConfig, c.Backend)
		}
	case searchsvc.BackendElasticsearch:
		if c.ElasticsearchURL == "" {
			return fmt.Errorf("%w: ELASTICSEARCH_URL is required", ErrInvalidConfig)
		}
		if c.ElasticsearchAPIKey == "" {
			return fmt.Errorf("%w: ELASTICSEARCH_API_KEY is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown SEARCH_BACKEND %q", ErrInvalidConfig, c.Backend)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: SEARCH_COLLECTION is required", ErrInvalidConfig)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: SEARCH_RETRIES must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ServiceOptions returns the options to open the configured search service
func (c *Config) ServiceOptions() searchsvc.Options {
	return searchsvc.Options{
		Backend:             c.Backend,
		DataDir:             c.DataDir,
		ElasticsearchURL:    c.ElasticsearchURL,
		ElasticsearchAPIKey: c.ElasticsearchAPIKey,
	}
}

// OpenService opens the configured search service wrapped with retries
func (c *Config) OpenService() (searchsvc.Service, error) {
	svc, err := searchsvc.Open(c.ServiceOptions())
	if err != nil {
		return nil, err
	}
	policy := searchsvc.DefaultRetryPolicy
	policy.MaxRetries = uint64(c.Retries)
	return searchsvc.NewRetrying(svc, policy), nil
}
