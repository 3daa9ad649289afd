// Package config defines the settings shared by every binary and how they
// map onto each component's own configuration.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/kdimtricp/moviewarehouse/internal/pipeline"
	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
	"github.com/kdimtricp/moviewarehouse/internal/tmdb"
	"github.com/kdimtricp/moviewarehouse/internal/warehouse"
	"github.com/kdimtricp/moviewarehouse/pkg/logger"
)

type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is json or console.
	LogFormat string `koanf:"log_format"`
	// HTTPAddr is the listen address of the ops server.
	HTTPAddr string `koanf:"http_addr"`

	TMDB      TMDBConfig      `koanf:"tmdb"`
	Mongo     MongoConfig     `koanf:"mongo"`
	Warehouse WarehouseConfig `koanf:"warehouse"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
}

type TMDBConfig struct {
	APIKey    string        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url"`
	Language  string        `koanf:"language"`
	PageDelay time.Duration `koanf:"page_delay"`
	Timeout   time.Duration `koanf:"timeout"`
}

type MongoConfig struct {
	URI            string        `koanf:"uri"`
	DBName         string        `koanf:"db_name"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

type WarehouseConfig struct {
	Type       string `koanf:"type"`
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	User       string `koanf:"user"`
	Password   string `koanf:"password"`
	Account    string `koanf:"account"`
	Warehouse  string `koanf:"warehouse"`
	Database   string `koanf:"database"`
	Schema     string `koanf:"schema"`
	Role       string `koanf:"role"`
	SQLitePath string `koanf:"sqlite_path"`
	JSONMode   string `koanf:"json_mode"`
}

type PipelineConfig struct {
	Pages      int           `koanf:"pages"`
	MaxDetails int           `koanf:"max_details"`
	Retries    int           `koanf:"retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
	HandoffDir string        `koanf:"handoff_dir"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		HTTPAddr:  ":8080",
		TMDB: TMDBConfig{
			BaseURL:   tmdb.DefaultBaseURL,
			Language:  "en-US",
			PageDelay: tmdb.DefaultPageDelay,
			Timeout:   tmdb.DefaultTimeout,
		},
		Mongo: MongoConfig{
			DBName:         "tmdb_raw",
			ConnectTimeout: rawstore.DefaultConnectTimeout,
		},
		Warehouse: WarehouseConfig{
			Type:     warehouse.TypeSnowflake,
			Port:     5432,
			Schema:   warehouse.DefaultSchema,
			JSONMode: string(warehouse.JSONText),
		},
		Pipeline: PipelineConfig{
			Pages:      pipeline.DefaultPages,
			Retries:    pipeline.DefaultRetries,
			RetryDelay: pipeline.DefaultRetryDelay,
			HandoffDir: "/tmp/moviewarehouse",
		},
	}
}

// RequireTMDB checks the settings the API client needs.
func (c *Config) RequireTMDB() error {
	if c.TMDB.APIKey == "" {
		return fmt.Errorf("%w: TMDB_API_KEY is required", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) RequireMongo() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("%w: MONGO_URI is required", ErrInvalidConfig)
	}
	if c.Mongo.DBName == "" {
		return fmt.Errorf("%w: MONGO_DB_NAME is required", ErrInvalidConfig)
	}
	return nil
}

// RequireWarehouse checks the connection settings for the configured
// warehouse type.
func (c *Config) RequireWarehouse() error {
	w := c.Warehouse

	var missing []string
	need := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch w.Type {
	case warehouse.TypeSnowflake:
		need(w.User, "SNOWFLAKE_USER")
		need(w.Password, "SNOWFLAKE_PASSWORD")
		need(w.Account, "SNOWFLAKE_ACCOUNT")
		need(w.Warehouse, "SNOWFLAKE_WAREHOUSE")
		need(w.Database, "SNOWFLAKE_DATABASE")
	case warehouse.TypePostgres:
		need(w.Host, "WAREHOUSE_HOST")
		need(w.User, "WAREHOUSE_USER")
		need(w.Database, "WAREHOUSE_DATABASE")
	case warehouse.TypeSQLite:
		need(w.SQLitePath, "WAREHOUSE_SQLITE_PATH")
	default:
		return fmt.Errorf("%w: unsupported warehouse type %q", ErrInvalidConfig, w.Type)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrInvalidConfig, missing)
	}

	switch warehouse.JSONMode(w.JSONMode) {
	case warehouse.JSONText, "":
	case warehouse.JSONVariant:
		if w.Type != warehouse.TypeSnowflake {
			return fmt.Errorf("%w: json mode variant requires snowflake", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown json mode %q", ErrInvalidConfig, w.JSONMode)
	}
	return nil
}

func (c *Config) Logger(service string) logger.Config {
	return logger.Config{Level: c.LogLevel, Format: c.LogFormat, Service: service}
}

func (c *Config) TMDBClient() tmdb.Config {
	return tmdb.Config{
		APIKey:    c.TMDB.APIKey,
		BaseURL:   c.TMDB.BaseURL,
		Language:  c.TMDB.Language,
		PageDelay: c.TMDB.PageDelay,
		Timeout:   c.TMDB.Timeout,
	}
}

func (c *Config) RawStore() rawstore.Config {
	return rawstore.Config{
		URI:            c.Mongo.URI,
		Database:       c.Mongo.DBName,
		ConnectTimeout: c.Mongo.ConnectTimeout,
	}
}

func (c *Config) WarehouseDB() warehouse.Config {
	w := c.Warehouse
	return warehouse.Config{
		Type:       w.Type,
		Host:       w.Host,
		Port:       w.Port,
		User:       w.User,
		Password:   w.Password,
		Account:    w.Account,
		Warehouse:  w.Warehouse,
		Database:   w.Database,
		Schema:     w.Schema,
		Role:       w.Role,
		SQLitePath: w.SQLitePath,
		JSONMode:   warehouse.JSONMode(w.JSONMode),
	}
}

func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Pages:      c.Pipeline.Pages,
		MaxDetails: c.Pipeline.MaxDetails,
		Retries:    c.Pipeline.Retries,
		RetryDelay: c.Pipeline.RetryDelay,
	}
}
