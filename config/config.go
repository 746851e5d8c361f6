// Package config loads rediscache settings from a file and RCACHE_* environment
// variables and turns them into ConnectionManager and Cache options.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/rediscache"
	"github.com/unkn0wn-root/rediscache/codec"
	"github.com/unkn0wn-root/rediscache/nearcache"
	"github.com/unkn0wn-root/rediscache/store"
	"github.com/unkn0wn-root/rediscache/store/local"
	storeredis "github.com/unkn0wn-root/rediscache/store/redis"
)

// EnvPrefix prefixes environment overrides: near_cache.enabled => RCACHE_NEAR_CACHE_ENABLED.
const EnvPrefix = "RCACHE"

// Config holds everything needed to build a ConnectionManager and a Cache
type Config struct {
	ConnectionString  string          `mapstructure:"connection_string"`
	Database          int             `mapstructure:"database"` // -1 = connection default
	DefaultTTLMinutes int             `mapstructure:"default_ttl_minutes"`
	OpTimeout         time.Duration   `mapstructure:"op_timeout"`
	Codec             string          `mapstructure:"codec"` // json, cbor, msgpack, raw
	MaxDecodeBytes    int             `mapstructure:"max_decode_bytes"`
	Write             WriteConfig     `mapstructure:"write"`
	NearCache         NearCacheConfig `mapstructure:"near_cache"`
	Redis             RedisConfig     `mapstructure:"redis"`
	Local             LocalConfig     `mapstructure:"local"`
	Log               LogConfig       `mapstructure:"log"`
	Metrics           MetricsConfig   `mapstructure:"metrics"`
}

// WriteConfig selects await or detached writes
type WriteConfig struct {
	Mode    string `mapstructure:"mode"`
	Workers int    `mapstructure:"workers"`
	Queue   int    `mapstructure:"queue"`
}

// NearCacheConfig configures the optional ristretto L1
type NearCacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxCostMB   int64         `mapstructure:"max_cost_mb"`
	NumCounters int64         `mapstructure:"num_counters"`
	TTL         time.Duration `mapstructure:"ttl"`
}

// RedisConfig tunes the go-redis dialer
type RedisConfig struct {
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ScanCount    int64         `mapstructure:"scan_count"`
}

// LocalConfig shapes the in-process store used for local:// connection strings
type LocalConfig struct {
	Endpoints      int `mapstructure:"endpoints"`
	Databases      int `mapstructure:"databases"`
	MaxCacheSizeMB int `mapstructure:"max_cache_size_mb"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Backend string `mapstructure:"backend"` // zap, logrus, slog
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

// Load reads configPath (or ./rcache.yaml, ./config/rcache.yaml when empty),
// applies defaults and environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("rcache")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// a missing default file is fine when env vars carry the settings
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connection_string", "redis://localhost:6379/0")
	v.SetDefault("database", rediscache.DefaultDatabase)
	v.SetDefault("default_ttl_minutes", int(rediscache.DefaultTTL/time.Minute))
	v.SetDefault("op_timeout", "0s")
	v.SetDefault("codec", "json")
	v.SetDefault("max_decode_bytes", 0)

	v.SetDefault("write.mode", "await")
	v.SetDefault("write.workers", 4)
	v.SetDefault("write.queue", 1024)

	v.SetDefault("near_cache.enabled", false)
	v.SetDefault("near_cache.max_cost_mb", 64)
	v.SetDefault("near_cache.num_counters", 100_000)
	v.SetDefault("near_cache.ttl", "1m")

	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.scan_count", 100)

	v.SetDefault("local.endpoints", 1)
	v.SetDefault("local.databases", 16)
	v.SetDefault("local.max_cache_size_mb", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.backend", "zap")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.prefix", "rediscache_")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ConnectionString == "" {
		return errors.New("connection_string is required")
	}
	if c.Database < rediscache.DefaultDatabase {
		return fmt.Errorf("database must be >= %d, got %d", rediscache.DefaultDatabase, c.Database)
	}
	if c.DefaultTTLMinutes <= 0 {
		return fmt.Errorf("default_ttl_minutes must be positive, got %d", c.DefaultTTLMinutes)
	}
	if c.OpTimeout < 0 {
		return errors.New("op_timeout must not be negative")
	}
	if _, err := c.serializer(); err != nil {
		return err
	}
	if _, err := rediscache.ParseWriteMode(c.Write.Mode); err != nil {
		return err
	}
	if c.Write.Workers < 0 || c.Write.Queue < 0 {
		return errors.New("write.workers and write.queue must not be negative")
	}
	if c.NearCache.Enabled && c.NearCache.MaxCostMB <= 0 {
		return errors.New("near_cache.max_cost_mb must be positive when the near cache is enabled")
	}
	switch c.Log.Backend {
	case "zap", "logrus", "slog":
	default:
		return fmt.Errorf("unknown log.backend %q", c.Log.Backend)
	}
	return nil
}

// DefaultTTL converts default_ttl_minutes.
func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLMinutes) * time.Minute
}

func (c *Config) serializer() (codec.Serializer, error) {
	var s codec.Serializer
	switch strings.ToLower(c.Codec) {
	case "", "json":
		s = codec.JSON{}
	case "cbor":
		s = codec.MustCBOR(false)
	case "msgpack":
		s = codec.Msgpack{}
	case "raw":
		s = codec.Raw{}
	default:
		return nil, fmt.Errorf("unknown codec %q", c.Codec)
	}
	if c.MaxDecodeBytes > 0 {
		s = codec.Limit{Inner: s, MaxDecode: c.MaxDecodeBytes}
	}
	return s, nil
}

// Dialer picks the store for the connection string: local:// gets a fresh
// in-process cluster, anything else goes to go-redis.
func (c *Config) Dialer() (store.Dialer, error) {
	if strings.HasPrefix(c.ConnectionString, local.Scheme) {
		return local.New(local.Config{
			Endpoints:          c.Local.Endpoints,
			Databases:          c.Local.Databases,
			HardMaxCacheSizeMB: c.Local.MaxCacheSizeMB,
		})
	}
	r := c.Redis
	return storeredis.Dialer{
		ConfigureClient: func(o *goredis.Options) {
			if r.PoolSize > 0 {
				o.PoolSize = r.PoolSize
			}
			o.DialTimeout, o.ReadTimeout, o.WriteTimeout = r.DialTimeout, r.ReadTimeout, r.WriteTimeout
		},
		ConfigureCluster: func(o *goredis.ClusterOptions) {
			if r.PoolSize > 0 {
				o.PoolSize = r.PoolSize
			}
			o.DialTimeout, o.ReadTimeout, o.WriteTimeout = r.DialTimeout, r.ReadTimeout, r.WriteTimeout
		},
		ScanCount: r.ScanCount,
	}, nil
}

// ManagerOptions builds ConnectionManager options; log and hooks may be nil.
func (c *Config) ManagerOptions(log rediscache.Logger, hooks rediscache.Hooks) (rediscache.ManagerOptions, error) {
	d, err := c.Dialer()
	if err != nil {
		return rediscache.ManagerOptions{}, err
	}
	return rediscache.ManagerOptions{
		ConnectionString: c.ConnectionString,
		Dialer:           d,
		Logger:           log,
		Hooks:            hooks,
	}, nil
}

// CacheOptions builds Cache options over mgr; log and hooks may be nil.
func (c *Config) CacheOptions(mgr *rediscache.ConnectionManager, log rediscache.Logger, hooks rediscache.Hooks) (rediscache.Options, error) {
	ser, err := c.serializer()
	if err != nil {
		return rediscache.Options{}, err
	}
	mode, err := rediscache.ParseWriteMode(c.Write.Mode)
	if err != nil {
		return rediscache.Options{}, err
	}
	opts := rediscache.Options{
		Manager:      mgr,
		Serializer:   ser,
		Database:     rediscache.DB(c.Database),
		DefaultTTL:   c.DefaultTTL(),
		OpTimeout:    c.OpTimeout,
		WriteMode:    mode,
		WriteWorkers: c.Write.Workers,
		WriteQueue:   c.Write.Queue,
		Logger:       log,
		Hooks:        hooks,
	}
	if c.NearCache.Enabled {
		nc, err := nearcache.NewRistretto(nearcache.Config{
			NumCounters: c.NearCache.NumCounters,
			MaxCost:     c.NearCache.MaxCostMB << 20,
			MaxTTL:      c.NearCache.TTL,
		})
		if err != nil {
			return rediscache.Options{}, fmt.Errorf("near cache: %w", err)
		}
		opts.NearCache = nc
	}
	return opts, nil
}
