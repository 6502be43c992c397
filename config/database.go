package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"scriptcheck"`
	Password string `env:"PASSWORD"                envDefault:"scriptcheck"`
	Name     string `env:"NAME"                    envDefault:"scriptcheck"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // 'require' in production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"     envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"  envDefault:"5m"`
	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT"    envDefault:"5s"`
}

// Sanitize clamps pool settings to usable values.
func (d *DBConfig) Sanitize() {
	if d.MaxOpenConns < 1 {
		d.MaxOpenConns = 25
	}
	if d.MaxIdleConns < 0 || d.MaxIdleConns > d.MaxOpenConns {
		d.MaxIdleConns = min(5, d.MaxOpenConns)
	}
	if d.ConnMaxLifetime <= 0 {
		d.ConnMaxLifetime = 5 * time.Minute
	}
	if d.ConnectTimeout <= 0 {
		d.ConnectTimeout = 5 * time.Second
	}
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// BufferBackend selects where encrypted transient payloads live.
type BufferBackend string

const (
	// BufferBackendRedis stores payloads in Redis (production).
	BufferBackendRedis BufferBackend = "redis"
	// BufferBackendMemory keeps payloads in-process (single-process dev only).
	BufferBackendMemory BufferBackend = "memory"
)

// BufferConfig configures the secure transient store.
type BufferConfig struct {
	Backend BufferBackend `env:"BACKEND" envDefault:"redis"`
	// SecretKey derives the AES-256 key: 64 hex chars are used as-is, anything else is hashed.
	SecretKey  string        `env:"SECRET_KEY"`
	DefaultTTL time.Duration `env:"TTL"        envDefault:"6h"`
	KeyPrefix  string        `env:"KEY_PREFIX" envDefault:"eki:buf:"`
	// MemoryMaxEntries bounds the in-memory backend.
	MemoryMaxEntries int `env:"MEMORY_MAX_ENTRIES" envDefault:"10000"`
}

// Sanitize applies guardrails to buffer configuration values.
func (b *BufferConfig) Sanitize() {
	b.Backend = BufferBackend(strings.ToLower(strings.TrimSpace(string(b.Backend))))
	if b.Backend != BufferBackendMemory {
		b.Backend = BufferBackendRedis
	}
	if b.DefaultTTL <= 0 {
		b.DefaultTTL = 6 * time.Hour
	}
	if strings.TrimSpace(b.KeyPrefix) == "" {
		b.KeyPrefix = "eki:buf:"
	}
	if b.MemoryMaxEntries < 1 {
		b.MemoryMaxEntries = 10000
	}
}
