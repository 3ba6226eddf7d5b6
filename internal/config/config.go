package config

import (
	"time"

	pkgconfig "github.com/HichuYamichu/goelearn-sub000/pkg/config"
	"github.com/HichuYamichu/goelearn-sub000/pkg/database"
	"github.com/HichuYamichu/goelearn-sub000/pkg/log"
	"github.com/HichuYamichu/goelearn-sub000/pkg/pubsub"
)

type Config struct {
	Server     ServerConfig
	WebSocket  WebSocketConfig
	Redis      RedisConfig
	PubSub     pubsub.Config
	JWT        JWTConfig
	Database   database.Config
	ClassCache ClassCacheConfig `mapstructure:"class_cache"`
	Events     EventsConfig
	Log        log.Config
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	AuthTimeout    time.Duration `mapstructure:"auth_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendQueueSize  int           `mapstructure:"send_queue_size"`
}

// RedisConfig is the presence store and class cache connection.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type ClassCacheConfig struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration
}

// EventsConfig configures the meeting lifecycle event producer.
type EventsConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.auth_timeout", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_queue_size", 64)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.password", "")
	v.SetDefault("pubsub.redis.db", 0)
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "meeting-relay")
	v.SetDefault("pubsub.kafka.topic", "meeting-signals")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "goelearn")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.time_zone", "UTC")
	v.SetDefault("database.file_path", "./data/goelearn.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("class_cache.enabled", true)
	v.SetDefault("class_cache.prefix", "meeting-relay:class:")
	v.SetDefault("class_cache.ttl", "1m")
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", "localhost:9092")
	v.SetDefault("events.topic", "meeting-events")
	v.SetDefault("events.partitions", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "meeting-relay")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	err = pkgconfig.BindEnvs(v, map[string]string{
		"server.port":           "PORT",
		"redis.address":         "REDIS_ADDRESS",
		"redis.password":        "REDIS_PASSWORD",
		"pubsub.driver":         "PUBSUB_DRIVER",
		"pubsub.redis.address":  "REDIS_ADDRESS",
		"pubsub.redis.password": "REDIS_PASSWORD",
		"pubsub.kafka.brokers":  "KAFKA_BROKERS",
		"pubsub.kafka.group_id": "KAFKA_PUBSUB_GROUP_ID",
		"jwt.secret":            "JWT_SECRET",
		"jwt.issuer":            "JWT_ISSUER",
		"database.driver":       "DB_DRIVER",
		"database.host":         "DB_HOST",
		"database.port":         "DB_PORT",
		"database.user":         "DB_USER",
		"database.password":     "DB_PASSWORD",
		"database.dbname":       "DB_NAME",
		"database.sslmode":      "DB_SSLMODE",
		"database.file_path":    "DB_FILE_PATH",
		"events.enabled":        "MEETING_EVENTS_ENABLED",
		"events.brokers":        "KAFKA_BROKERS",
		"events.topic":          "KAFKA_MEETING_EVENTS_TOPIC",
		"log.level":             "LOG_LEVEL",
	})
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 10*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.WebSocket.AuthTimeout = pkgconfig.Duration(v, "websocket.auth_timeout", 10*time.Second)
	cfg.PubSub.Redis.ReadTimeout = pkgconfig.Duration(v, "pubsub.redis.read_timeout", 3*time.Second)
	cfg.PubSub.Redis.WriteTimeout = pkgconfig.Duration(v, "pubsub.redis.write_timeout", 3*time.Second)
	cfg.ClassCache.TTL = pkgconfig.Duration(v, "class_cache.ttl", time.Minute)

	return &cfg, nil
}
