// Package config loads plkindex settings from config.yaml, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	S3        S3Config        `mapstructure:"s3"`
	Server    ServerConfig    `mapstructure:"server"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// HTTPConfig configures outgoing requests. A zero timeout means none.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// PageConfig is one listing page to scrape
type PageConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// ScrapeConfig lists the listing pages and where their documents are written
type ScrapeConfig struct {
	Pages     []PageConfig  `mapstructure:"pages"`
	OutputDir string        `mapstructure:"output_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// AggregateConfig holds the document URLs used when a request names none
type AggregateConfig struct {
	URLs []string `mapstructure:"urls"`
}

// MongoConfig enables storing scraped files when URI is set
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// PostgresConfig enables stats snapshots when DSN is set
type PostgresConfig struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_life"`
}

// SupabaseConfig is an alternative to PostgresConfig for stats snapshots
type SupabaseConfig struct {
	URL              string `mapstructure:"url"`
	Key              string `mapstructure:"key"`
	Password         string `mapstructure:"password"`
	ConnectionString string `mapstructure:"connection_string"`
}

// S3Config enables publishing documents when Endpoint is set
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ServerConfig describes the HTTP API server
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	FilesDir     string        `mapstructure:"files_dir"`
	// AllowedURLPrefixes are the document locations ?url= may name besides aggregate.urls
	AllowedURLPrefixes []string      `mapstructure:"allowed_url_prefixes"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
}

// LoggerConfig configures the zap logger
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration. With an empty path, config.yaml is looked up in
// "." and "./configs" and may be absent; an explicit path must exist.
// Environment variables override file values, e.g. SERVER_PORT for server.port.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, p := range c.Scrape.Pages {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.URL) == "" {
			return fmt.Errorf("scrape.pages[%d]: name and url are required", i)
		}
		if strings.ContainsAny(p.Name, `/\`) {
			return fmt.Errorf("scrape.pages[%d]: name %q must not contain path separators", i, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("scrape.pages[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
	}
	if c.Server.FetchTimeout < 0 {
		return fmt.Errorf("server.fetch_timeout must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

const pagesBaseURL = "https://www.plk-sa.pl/klienci-i-kontrahenci/akty-prawne-i-przepisy/instrukcje-pkp-polskich-linii-kolejowych-sa/"

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", time.Duration(0))
	v.SetDefault("scrape.pages", []map[string]any{
		{"name": "ruch-i-przewozy-kolejowe", "url": pagesBaseURL + "ruch-i-przewozy-kolejowe"},
		{"name": "automatyka-i-telekomunikacja", "url": pagesBaseURL + "automatyka-i-telekomunikacja"},
	})
	v.SetDefault("scrape.output_dir", ".")
	v.SetDefault("scrape.timeout", 10*time.Second)
	v.SetDefault("aggregate.urls", []string{})
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "plk")
	v.SetDefault("mongo.collection", "instruction_files")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 5)
	v.SetDefault("postgres.max_idle_conns", 0)
	v.SetDefault("postgres.conn_max_life", time.Duration(0))
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.key", "")
	v.SetDefault("supabase.password", "")
	v.SetDefault("supabase.connection_string", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.bucket", "plk-instructions")
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.use_ssl", false)
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.files_dir", "")
	v.SetDefault("server.allowed_url_prefixes", []string{})
	v.SetDefault("server.fetch_timeout", 30*time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
