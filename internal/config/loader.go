package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigEnv names the variable holding an optional YAML config path.
const ConfigEnv = "MOVIEWH_CONFIG"

// envSections maps environment prefixes onto config sections.
var envSections = []struct {
	prefix  string
	section string
}{
	{"TMDB_", "tmdb"},
	{"MONGO_", "mongo"},
	{"SNOWFLAKE_", "warehouse"},
	{"WAREHOUSE_", "warehouse"},
	{"PIPELINE_", "pipeline"},
}

var envTopLevel = map[string]string{
	"LOG_LEVEL":  "log_level",
	"LOG_FORMAT": "log_format",
	"HTTP_ADDR":  "http_addr",
}

// Load builds a Config by layering, from lowest to highest precedence:
//  1. defaults (New(ctx))
//  2. YAML file, if MOVIEWH_CONFIG is set
//  3. .env in the working directory; it never overrides variables already set
//  4. environment variables
func Load(ctx context.Context) (*Config, error) {
	return LoadWithEnvFile(ctx, ".env")
}

// LoadWithEnvFile is Load with an explicit dotenv path. A missing file is
// not an error.
func LoadWithEnvFile(ctx context.Context, envFile string) (*Config, error) {
	base := New(ctx)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrLoadConfig, envFile, err)
		}
	}

	k := koanf.New(".")

	if path := os.Getenv(ConfigEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg.Warehouse.Type = strings.ToLower(strings.TrimSpace(cfg.Warehouse.Type))
	if cfg.Pipeline.Pages <= 0 {
		return nil, fmt.Errorf("%w: pipeline pages must be positive", ErrInvalidConfig)
	}
	if cfg.Pipeline.Retries < 0 {
		return nil, fmt.Errorf("%w: pipeline retries must not be negative", ErrInvalidConfig)
	}
	return &cfg, nil
}

// envKey maps SNOWFLAKE_USER to warehouse.user, TMDB_API_KEY to
// tmdb.api_key and so on. Unrelated variables map to "" and are dropped.
func envKey(s string) string {
	if key, ok := envTopLevel[s]; ok {
		return key
	}
	for _, m := range envSections {
		if rest, ok := strings.CutPrefix(s, m.prefix); ok && rest != "" {
			return m.section + "." + strings.ToLower(rest)
		}
	}
	return ""
}
