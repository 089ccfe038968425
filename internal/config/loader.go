package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "PRISON_"

// configFlag names the flag that points at a YAML config file.
const configFlag = "config"

// Load builds a Config by layering defaults, optional file, env vars and flags.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) from --config or PRISON_CONFIG
//  3. env (prefix PRISON_)
//  4. flags explicitly set on the command line
//
// flags may be nil.
func Load(ctx context.Context, flags *pflag.FlagSet) (*Config, error) {
	base := New()
	k := koanf.New(".")

	path := os.Getenv(EnvPrefix + "CONFIG")
	if flags != nil {
		if f := flags.Lookup(configFlag); f != nil && f.Changed {
			path = f.Value.String()
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// PRISON_WORKER_COUNT -> worker_count (flat keys, underscores kept)
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	if flags != nil {
		fp := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == configFlag {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(fp, nil); err != nil {
			return nil, fmt.Errorf("%w: flags: %w", ErrLoadConfig, err)
		}
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreDialect {
	case DialectMemory:
	case DialectSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	case DialectPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("%w: postgres dialect requires postgres_dsn", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported store_dialect %q", ErrInvalidConfig, c.StoreDialect)
	}
	if c.StoreRetries < 0 {
		return fmt.Errorf("%w: store_retries must not be negative", ErrInvalidConfig)
	}
	if _, err := c.StartingBalanceDecimal(); err != nil {
		return err
	}
	if c.MetricsEnabled && strings.TrimSpace(c.MetricsNamespace) == "" {
		return fmt.Errorf("%w: metrics_namespace must not be empty", ErrInvalidConfig)
	}
	return nil
}

// StartingBalanceDecimal parses StartingBalance.
func (c *Config) StartingBalanceDecimal() (decimal.Decimal, error) {
	if strings.TrimSpace(c.StartingBalance) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(c.StartingBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: starting_balance: %w", ErrInvalidConfig, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: starting_balance must not be negative", ErrInvalidConfig)
	}
	return d, nil
}

// BindFlags registers the command-line flags understood by Load.
func BindFlags(fs *pflag.FlagSet) {
	d := New()
	fs.String(configFlag, "", "path to a YAML config file")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	fs.String("log-format", d.LogFormat, "log format: text or json")
	fs.String("addr", d.Addr, "HTTP listen address")
	fs.String("store-dialect", d.StoreDialect, "persistent store: memory, sqlite or postgres")
	fs.String("sqlite-path", d.SQLitePath, "sqlite database file")
	fs.String("postgres-dsn", d.PostgresDSN, "postgres connection string")
	fs.Int("worker-count", d.WorkerCount, "rank-up command executors")
	fs.String("starting-balance", d.StartingBalance, "balance credited on first join")
	fs.Bool("metrics-enabled", d.MetricsEnabled, "expose Prometheus metrics on /healthz")
	fs.String("metrics-namespace", d.MetricsNamespace, "Prometheus metric namespace")
}
