package config

import (
	"time"

	"github.com/weiawesome/wes-io-live/membership-service/internal/cache"
	pkgconfig "github.com/weiawesome/wes-io-live/membership-service/pkg/config"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/database"
	pkglog "github.com/weiawesome/wes-io-live/membership-service/pkg/log"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/pubsub"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    cache.RedisConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Events   pubsub.Config
	Log      pkglog.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string        `mapstructure:"file_path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime int           `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// ToDatabaseConfig converts the section into pkg/database settings.
func (c DatabaseConfig) ToDatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          c.Driver,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		DBName:          c.DBName,
		SSLMode:         c.SSLMode,
		FilePath:        c.FilePath,
		MaxIdleConns:    c.MaxIdleConns,
		MaxOpenConns:    c.MaxOpenConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogLevel:        c.LogLevel,
		SlowThreshold:   c.SlowThreshold,
	}
}

type CacheConfig struct {
	Driver       string // redis, memory
	Prefix       string
	TTL          time.Duration
	ClearOnStart bool              `mapstructure:"clear_on_start"`
	Local        cache.LocalConfig `mapstructure:"local"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load(pkgconfig.GetEnv("CONFIG_PATH", "./config"), "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8086)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "membership")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/membership.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("cache.driver", "redis")
	v.SetDefault("cache.prefix", "")
	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.clear_on_start", false)
	local := cache.DefaultLocalConfig()
	v.SetDefault("cache.local.num_counters", local.NumCounters)
	v.SetDefault("cache.local.max_cost", local.MaxCost)
	v.SetDefault("cache.local.buffer_items", local.BufferItems)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	events := pubsub.DefaultConfig()
	v.SetDefault("events.driver", events.Driver)
	v.SetDefault("events.kafka.brokers", events.Kafka.Brokers)
	v.SetDefault("events.kafka.topic", events.Kafka.Topic)
	v.SetDefault("events.kafka.partitions", events.Kafka.Partitions)
	v.SetDefault("events.kafka.delivery_timeout", events.Kafka.DeliveryTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "membership-service")

	// Bind environment variables
	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":                "PORT",
		"database.driver":            "DB_DRIVER",
		"database.host":              "DB_HOST",
		"database.port":              "DB_PORT",
		"database.user":              "DB_USER",
		"database.password":          "DB_PASSWORD",
		"database.dbname":            "DB_NAME",
		"database.sslmode":           "DB_SSLMODE",
		"database.file_path":         "DB_FILE_PATH",
		"database.max_idle_conns":    "DB_MAX_IDLE_CONNS",
		"database.max_open_conns":    "DB_MAX_OPEN_CONNS",
		"database.conn_max_lifetime": "DB_CONN_MAX_LIFETIME",
		"redis.address":              "REDIS_ADDRESS",
		"redis.password":             "REDIS_PASSWORD",
		"redis.db":                   "REDIS_DB",
		"cache.driver":               "CACHE_DRIVER",
		"cache.ttl":                  "CACHE_TTL",
		"auth.jwt_secret":            "JWT_SECRET",
		"events.driver":              "EVENTS_DRIVER",
		"events.kafka.brokers":       "KAFKA_BROKERS",
		"log.level":                  "LOG_LEVEL",
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Events over Redis reuse the cache connection settings unless overridden.
	if cfg.Events.Redis.Address == "" {
		cfg.Events.Redis = pubsub.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}
	}

	return &cfg, nil
}
