package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config holds all application configuration. Values come from an optional
// YAML file, then environment variables (and .env) override them.
type Config struct {
	Platform      string `yaml:"platform"`
	TargetCount   int    `yaml:"target_count"`
	Locale        string `yaml:"locale"`
	LocationID    string `yaml:"location_id"`
	CategoryID    string `yaml:"category_id"`
	Query         string `yaml:"query"`
	RequireSalary bool   `yaml:"require_salary"`

	MaxListConcurrency   int           `yaml:"max_list_concurrency"`
	MaxDetailConcurrency int           `yaml:"max_detail_concurrency"`
	MaxRetries           int           `yaml:"max_retries"`
	RequestDelay         time.Duration `yaml:"request_delay"`
	RequestsPerSecond    float64       `yaml:"requests_per_second"`
	HTTPTimeout          time.Duration `yaml:"http_timeout"`
	UserAgent            string        `yaml:"user_agent"`
	ChromeBin            string        `yaml:"chrome_bin"`
	BrowserSettle        time.Duration `yaml:"browser_settle"`

	Outputs   []string `yaml:"outputs"`
	OutputDir string   `yaml:"output_dir"`

	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`

	RedisURL string        `yaml:"redis_url"`
	SeenTTL  time.Duration `yaml:"seen_ttl"`

	Schedule        string  `yaml:"schedule"`
	LogLevel        string  `yaml:"log_level"`
	LogFormat       string  `yaml:"log_format"`
	MaxFailureRatio float64 `yaml:"max_failure_ratio"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Platform:    string(models.PlatformJobsGe),
		TargetCount: 100,
		Locale:      "ge",

		MaxListConcurrency:   3,
		MaxDetailConcurrency: 5,
		MaxRetries:           3,
		RequestDelay:         time.Second,
		HTTPTimeout:          30 * time.Second,
		UserAgent:            defaultUserAgent,
		BrowserSettle:        3 * time.Second,

		Outputs:   []string{"json"},
		OutputDir: "./data",

		PostgresHost:    "localhost",
		PostgresPort:    "5432",
		PostgresUser:    "scraper",
		PostgresDB:      "jobs_db",
		PostgresSSLMode: "disable",

		SeenTTL: 30 * 24 * time.Hour,

		LogLevel:        "info",
		LogFormat:       "text",
		MaxFailureRatio: 0.5,
	}
}

// Load reads the .env file, the optional CONFIG_FILE and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Platform = getEnv("PLATFORM", c.Platform)
	c.TargetCount = getEnvInt("TARGET_COUNT", c.TargetCount)
	c.Locale = getEnv("LOCALE", c.Locale)
	c.LocationID = getEnv("LOCATION_ID", c.LocationID)
	c.CategoryID = getEnv("CATEGORY_ID", c.CategoryID)
	c.Query = getEnv("QUERY", c.Query)
	c.RequireSalary = getEnvBool("REQUIRE_SALARY", c.RequireSalary)

	c.MaxListConcurrency = getEnvInt("MAX_LIST_CONCURRENCY", c.MaxListConcurrency)
	c.MaxDetailConcurrency = getEnvInt("MAX_DETAIL_CONCURRENCY", c.MaxDetailConcurrency)
	c.MaxRetries = getEnvInt("MAX_RETRIES", c.MaxRetries)
	c.RequestDelay = getEnvDuration("REQUEST_DELAY", c.RequestDelay)
	c.RequestsPerSecond = getEnvFloat("REQUESTS_PER_SECOND", c.RequestsPerSecond)
	c.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.UserAgent = getEnv("USER_AGENT", c.UserAgent)
	c.ChromeBin = getEnv("CHROME_BIN", c.ChromeBin)
	c.BrowserSettle = getEnvDuration("BROWSER_SETTLE", c.BrowserSettle)

	if val := os.Getenv("OUTPUT"); val != "" {
		c.Outputs = SplitList(val)
	}
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)

	c.PostgresHost = getEnv("POSTGRES_HOST", c.PostgresHost)
	c.PostgresPort = getEnv("POSTGRES_PORT", c.PostgresPort)
	c.PostgresUser = getEnv("POSTGRES_USER", c.PostgresUser)
	c.PostgresPassword = getEnv("POSTGRES_PASSWORD", c.PostgresPassword)
	c.PostgresDB = getEnv("POSTGRES_DB", c.PostgresDB)
	c.PostgresSSLMode = getEnv("POSTGRES_SSLMODE", c.PostgresSSLMode)

	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.SeenTTL = getEnvDuration("SEEN_TTL", c.SeenTTL)

	c.Schedule = getEnv("SCHEDULE", c.Schedule)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.MaxFailureRatio = getEnvFloat("MAX_FAILURE_RATIO", c.MaxFailureRatio)
}

// Request builds the ScrapeRequest for one run. It is validated by the
// merger, not here.
func (c *Config) Request() models.ScrapeRequest {
	return models.ScrapeRequest{
		Platform:             models.Platform(c.Platform),
		TargetCount:          c.TargetCount,
		Locale:               c.Locale,
		LocationID:           c.LocationID,
		CategoryID:           c.CategoryID,
		Query:                c.Query,
		RequireSalary:        c.RequireSalary,
		MaxListConcurrency:   c.MaxListConcurrency,
		MaxDetailConcurrency: c.MaxDetailConcurrency,
		MaxRetries:           c.MaxRetries,
		BaseDelay:            c.RequestDelay,
	}
}

// HasOutput reports whether name is one of the configured outputs.
func (c *Config) HasOutput(name string) bool {
	for _, o := range c.Outputs {
		if strings.EqualFold(o, name) {
			return true
		}
	}
	return false
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

// SplitList splits a comma separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with its value, leaving unset references as is.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
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

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
