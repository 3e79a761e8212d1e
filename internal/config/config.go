package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	History HistoryConfig `yaml:"history"`
	Game    GameConfig    `yaml:"game"`
}

// StoreConfig selects and configures the key-value persistence substrate
type StoreConfig struct {
	// Backend is one of: memory, sqlite, redis, postgres
	Backend  string         `yaml:"backend"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds the local database file location
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// HistoryConfig bounds the game archive and the per-player score window
type HistoryConfig struct {
	MaxSavedGames     int `yaml:"max_saved_games"`
	RecentScoreWindow int `yaml:"recent_score_window"`
}

// GameConfig holds gameplay defaults
type GameConfig struct {
	DefaultRounds int `yaml:"default_rounds"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Store defaults: a local database file, the closest analog of the
	// browser storage the tracker grew up on.
	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.Store.SQLite.Path == "" {
		c.Store.SQLite.Path = "hand-tracker.db"
	}

	// Redis defaults
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Store.Redis.PoolSize == 0 {
		c.Store.Redis.PoolSize = 10
	}
	if c.Store.Redis.MinIdleConns == 0 {
		c.Store.Redis.MinIdleConns = 2
	}
	if c.Store.Redis.DialTimeout == 0 {
		c.Store.Redis.DialTimeout = 5 * time.Second
	}
	if c.Store.Redis.ReadTimeout == 0 {
		c.Store.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Store.Redis.WriteTimeout == 0 {
		c.Store.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Store.Postgres.Host == "" {
		c.Store.Postgres.Host = "localhost"
	}
	if c.Store.Postgres.Port == 0 {
		c.Store.Postgres.Port = 5432
	}
	if c.Store.Postgres.MaxConnections == 0 {
		c.Store.Postgres.MaxConnections = 5
	}
	if c.Store.Postgres.MinConnections == 0 {
		c.Store.Postgres.MinConnections = 1
	}
	if c.Store.Postgres.MaxConnLifetime == 0 {
		c.Store.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Store.Postgres.MaxConnIdleTime == 0 {
		c.Store.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// History defaults
	if c.History.MaxSavedGames == 0 {
		c.History.MaxSavedGames = 100
	}
	if c.History.RecentScoreWindow == 0 {
		c.History.RecentScoreWindow = 50
	}

	// Game defaults
	if c.Game.DefaultRounds == 0 {
		c.Game.DefaultRounds = 7
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
