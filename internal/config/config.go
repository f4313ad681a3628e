package config

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Browser     BrowserConfig     `yaml:"browser"`
	Scraping    ScrapingConfig    `yaml:"scraping"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Backend     BackendConfig     `yaml:"backend"`
	ResultsPage ResultsPageConfig `yaml:"results_page"`
	NATS        NATSConfig        `yaml:"nats"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	CORS        CORSConfig        `yaml:"cors"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Debug        bool          `yaml:"debug"`
}

// BrowserConfig configures the controlled Chrome instance
type BrowserConfig struct {
	Headless      bool          `yaml:"headless"`
	ExecPath      string        `yaml:"exec_path"`
	UserDataDir   string        `yaml:"user_data_dir"`
	UserAgent     string        `yaml:"user_agent"`
	ScreenWidth   int           `yaml:"screen_width"`
	ScreenHeight  int           `yaml:"screen_height"`
	ZoomFactor    float64       `yaml:"zoom_factor"`
	SettleDelay   time.Duration `yaml:"settle_delay"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	OverlayText   string        `yaml:"overlay_text"`
	DisableImages bool          `yaml:"disable_images"`
}

// ScrapingConfig tunes session orchestration
type ScrapingConfig struct {
	DefaultPageTimeout time.Duration             `yaml:"default_page_timeout"`
	PageLoadTimeout    time.Duration             `yaml:"page_load_timeout"`
	InterPageDelay     time.Duration             `yaml:"inter_page_delay"`
	MaxJobsPerPage     int                       `yaml:"max_jobs_per_page"`
	DefaultCountry     string                    `yaml:"default_country"`
	Retention          time.Duration             `yaml:"retention"`
	CleanupSpec        string                    `yaml:"cleanup_spec"`
	TabCloseDebounce   time.Duration             `yaml:"tab_close_debounce"`
	ProgressRate       float64                   `yaml:"progress_rate"`
	Platforms          map[string]PlatformTuning `yaml:"platforms"`
}

// PlatformTuning overrides per-platform timeouts and retries
type PlatformTuning struct {
	PageTimeout time.Duration `yaml:"page_timeout"`
	Retries     int           `yaml:"retries"`
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	PoolSize int    `yaml:"pool_size"`
	SSLMode  string `yaml:"ssl_mode"`
	URL      string `yaml:"url"`
}

func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
		RawQuery: url.Values{
			"sslmode":        {p.SSLMode},
			"pool_max_conns": {strconv.Itoa(p.PoolSize)},
		}.Encode(),
	}
	return u.String()
}

// BackendConfig points at the companion web application's API
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// ResultsPageConfig identifies an open results view to push jobs into
type ResultsPageConfig struct {
	URLPrefix  string `yaml:"url_prefix"`
	EventName  string `yaml:"event_name"`
	StorageKey string `yaml:"storage_key"`
}

type NATSConfig struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	ConnTimeout   time.Duration `yaml:"conn_timeout"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.loadFromEnv()

	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8787,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // SSE streams stay open
			Debug:        false,
		},
		Browser: BrowserConfig{
			Headless:     false,
			ScreenWidth:  1920,
			ScreenHeight: 1080,
			ZoomFactor:   0.5,
			SettleDelay:  1500 * time.Millisecond,
			PollInterval: 250 * time.Millisecond,
			OverlayText:  "Job search in progress. Please don't interact with this window.",
		},
		Scraping: ScrapingConfig{
			DefaultPageTimeout: 45 * time.Second,
			PageLoadTimeout:    30 * time.Second,
			InterPageDelay:     2 * time.Second,
			MaxJobsPerPage:     100,
			DefaultCountry:     "au",
			Retention:          2 * time.Hour,
			CleanupSpec:        "@every 10m",
			TabCloseDebounce:   2 * time.Second,
			ProgressRate:       4,
			Platforms: map[string]PlatformTuning{
				"linkedin": {PageTimeout: 60 * time.Second, Retries: 1},
				"indeed":   {PageTimeout: 50 * time.Second},
			},
		},
		Redis: RedisConfig{
			Enabled:   false,
			URL:       "redis://localhost:6379/0",
			KeyPrefix: "jobsweep",
		},
		Postgres: PostgresConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     5432,
			User:     "jobsweep",
			Password: "password",
			Database: "jobsweep",
			PoolSize: 10,
			SSLMode:  "disable",
		},
		Backend: BackendConfig{
			Timeout: 15 * time.Second,
		},
		ResultsPage: ResultsPageConfig{
			EventName:  "jobsweep:jobs",
			StorageKey: "jobsweep:lastResults",
		},
		NATS: NATSConfig{
			SubjectPrefix: "jobsweep.sessions",
			ConnTimeout:   5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         600,
		},
	}
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DEBUG"); v == "true" {
		c.Server.Debug = true
	}

	// Browser
	if v := os.Getenv("CHROME_PATH"); v != "" {
		c.Browser.ExecPath = v
	}
	if v := os.Getenv("CHROME_USER_DATA_DIR"); v != "" {
		c.Browser.UserDataDir = v
	}
	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		c.Browser.Headless = v == "true"
	}

	// Scraping
	if v := os.Getenv("SCRAPE_PAGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Scraping.DefaultPageTimeout = d
		}
	}
	if v := os.Getenv("SCRAPE_DEFAULT_COUNTRY"); v != "" {
		c.Scraping.DefaultCountry = strings.ToLower(v)
	}

	// Redis
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
		c.Redis.Enabled = true
	}

	// Postgres
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
		c.Postgres.Enabled = true
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}

	// Backend
	if v := os.Getenv("BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("BACKEND_TOKEN"); v != "" {
		c.Backend.Token = v
	}
	if v := os.Getenv("RESULTS_PAGE_URL"); v != "" {
		c.ResultsPage.URLPrefix = v
	}

	// NATS
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
}
