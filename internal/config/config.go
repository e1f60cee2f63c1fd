package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rl1809/manifest-sync/internal/adapter/storage"
)

var ErrMissingSecret = errors.New("auth.secret is required")

const envPrefix = "MANIFEST_SYNC"

type Config struct {
	HTTPAddr string
	GRPCAddr string
	Database DatabaseConfig
	Redis    RedisConfig
	Secret   string
	Sync     SyncConfig
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the sync journal. An empty Addr disables it.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type SyncConfig struct {
	RequestTimeout  time.Duration
	CacheStatements bool
	JournalSize     int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":50051")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "root")
	v.SetDefault("database.name", "manifestsync")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("auth.secret", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "manifest-sync:")

	v.SetDefault("sync.request_timeout", 30*time.Second)
	v.SetDefault("sync.cache_statements", false)
	v.SetDefault("sync.journal_size", 100)
}

// Load reads configuration from path (optional), then from the environment.
// Environment variables use the MANIFEST_SYNC_ prefix, e.g.
// MANIFEST_SYNC_AUTH_SECRET or MANIFEST_SYNC_DATABASE_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("manifest-sync")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		HTTPAddr: v.GetString("http.addr"),
		GRPCAddr: v.GetString("grpc.addr"),
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("redis.addr"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Secret: v.GetString("auth.secret"),
		Sync: SyncConfig{
			RequestTimeout:  v.GetDuration("sync.request_timeout"),
			CacheStatements: v.GetBool("sync.cache_statements"),
			JournalSize:     v.GetInt("sync.journal_size"),
		},
	}

	if cfg.Database.DSN == "" && strings.EqualFold(cfg.Database.Driver, "mysql") {
		cfg.Database.DSN = storage.MySQLDSN(
			v.GetString("database.host"),
			v.GetInt("database.port"),
			v.GetString("database.user"),
			v.GetString("database.password"),
			v.GetString("database.name"),
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return ErrMissingSecret
	}
	if _, err := storage.LookupDialect(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver)
	}
	return nil
}
