package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all run configuration loaded from environment variables.
// It is passed explicitly into each component so that multiple runs
// (e.g. different years) can coexist without process-wide state.
type Config struct {
	Year      int
	Geography string
	TempDir   string

	ScrapeVars bool
	ConcatVars bool
	ConcatType string
	JoinMode   string

	OutputDir    string
	SecretsFile  string
	CatalogCache string
	CatalogURL   string
	APIBaseURL   string

	FetchConcurrency int
	RateLimitMs      int
	HTTPTimeoutSec   int
	MaxRetries       int

	LoadPostgres     bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// Join modes for the wide merge.
const (
	JoinFirstVariable = "first_variable"
	JoinUnion         = "union"
)

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	year := getEnvInt("YEAR", 2021)

	return &Config{
		Year:      year,
		Geography: getEnv("GEOGRAPHY", "tract"),
		TempDir:   getEnv("TEMP_DIR", "./temp"),

		ScrapeVars: getEnvBool("SCRAPE_VARS", true),
		ConcatVars: getEnvBool("CONCAT_VARS", true),
		ConcatType: getEnv("CONCAT_TYPE", "long"),
		JoinMode:   getEnv("JOIN_MODE", JoinFirstVariable),

		OutputDir:    getEnv("OUTPUT_DIR", "."),
		SecretsFile:  getEnv("SECRETS_FILE", "./env.json"),
		CatalogCache: getEnv("CATALOG_CACHE", "./acs_vars.csv"),
		CatalogURL: getEnv("CATALOG_URL",
			fmt.Sprintf("https://api.census.gov/data/%d/acs/acs5/variables.html", year)),
		APIBaseURL: getEnv("API_BASE_URL", "https://api.census.gov"),

		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 1),
		RateLimitMs:      getEnvInt("RATE_LIMIT_MS", 0),
		HTTPTimeoutSec:   getEnvInt("HTTP_TIMEOUT_SEC", 30),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),

		LoadPostgres:     getEnvBool("LOAD_POSTGRES", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "census"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "census123"),
		PostgresDB:       getEnv("POSTGRES_DB", "census_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// LongForm reports whether the merge phase should produce the long form.
// Anything starting with "l" counts, so "long", "Long" and "l" all match.
func (c *Config) LongForm() bool {
	return strings.HasPrefix(strings.ToLower(c.ConcatType), "l")
}

// FeaturesPath is where the consolidated dataset is written.
func (c *Config) FeaturesPath() string {
	return filepath.Join(c.OutputDir, fmt.Sprintf("census_features_%d_%s.csv", c.Year, c.Geography))
}

// ManifestPath is where the included-variable manifest is written.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.OutputDir, fmt.Sprintf("census_variables_%d_%s.txt", c.Year, c.Geography))
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// LoadAPIKey reads the Census API key from the JSON secrets file, which
// looks like {"CENSUS_API": "my_api_key"}. A missing file or empty key is
// fatal for the run.
func LoadAPIKey(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read secrets file %q: %w", path, err)
	}

	var secrets struct {
		CensusAPI string `json:"CENSUS_API"`
	}
	if err := json.Unmarshal(raw, &secrets); err != nil {
		return "", fmt.Errorf("config: parse secrets file %q: %w", path, err)
	}
	if secrets.CensusAPI == "" {
		return "", fmt.Errorf("config: secrets file %q has no CENSUS_API key", path)
	}
	return secrets.CensusAPI, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
