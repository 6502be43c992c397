package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	// Register the pgx driver for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/migrate"
)

const redisPingTimeout = 5 * time.Second

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

func postgresDSN(c config.DBConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnectDB opens the job metadata database and verifies it answers a ping.
func ConnectDB(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	pg := cfg.DBConfig
	pg.Sanitize()

	db, err := sql.Open("pgx", postgresDSN(pg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(pg.MaxOpenConns)
	db.SetMaxIdleConns(pg.MaxIdleConns)
	db.SetConnMaxLifetime(pg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, closeAfter(fmt.Errorf("ping database: %w", err), db.Close)
	}

	if cfg.Logger != nil {
		cfg.Logger.InfoContext(ctx, "database connected",
			"host", pg.Host,
			"port", pg.Port,
			"database", pg.Name,
			"max_open_conns", pg.MaxOpenConns,
		)
	}
	return db, nil
}

// ConnectRedis builds the client backing the transient store. Sentinel,
// cluster and single-node topologies all go through redis.UniversalOptions.
//
//nolint:ireturn // the concrete client type depends on the configured topology.
func ConnectRedis(ctx context.Context, cfg DatabaseConfig) (redis.UniversalClient, error) {
	opts, desc, err := redisUniversalOptions(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}
	var client redis.UniversalClient
	if cfg.RedisConfig.UseCluster && !cfg.RedisConfig.UseSentinel {
		// NewUniversalClient only picks cluster mode for multiple addrs.
		client = redis.NewClusterClient(opts.Cluster())
	} else {
		client = redis.NewUniversalClient(opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, closeAfter(fmt.Errorf("ping redis: %w", err), client.Close)
	}

	if cfg.Logger != nil {
		cfg.Logger.InfoContext(ctx, "redis connected", "topology", desc)
	}
	return client, nil
}

// redisUniversalOptions maps env configuration onto go-redis options. The
// returned description never includes credentials.
func redisUniversalOptions(rc config.RedisConfig) (*redis.UniversalOptions, string, error) {
	switch {
	case rc.UseSentinel:
		nodes := nonEmpty(rc.SentinelNodes)
		if len(nodes) == 0 {
			return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		if strings.TrimSpace(rc.SentinelMasterName) == "" {
			return nil, "", errors.New("redis sentinel configuration requires a master name")
		}
		return &redis.UniversalOptions{
			Addrs:            nodes,
			MasterName:       rc.SentinelMasterName,
			Password:         rc.Password,
			SentinelPassword: rc.SentinelPassword,
			DB:               rc.DB,
		}, "sentinel:" + rc.SentinelMasterName, nil

	case rc.UseCluster:
		opts := &redis.UniversalOptions{
			Addrs:    nonEmpty(rc.ClusterNodes),
			Password: rc.Password,
		}
		if len(opts.Addrs) == 0 {
			// A single seed URI is enough for cluster discovery.
			seed, err := parseRedisURI(rc)
			if err != nil {
				return nil, "", err
			}
			opts.Addrs = []string{seed.Addr}
			opts.Username = seed.Username
			opts.Password = seed.Password
			opts.TLSConfig = seed.TLSConfig
		}
		return opts, "cluster:" + strings.Join(opts.Addrs, ","), nil

	default:
		single, err := parseRedisURI(rc)
		if err != nil {
			return nil, "", err
		}
		return &redis.UniversalOptions{
			Addrs:     []string{single.Addr},
			Username:  single.Username,
			Password:  single.Password,
			DB:        single.DB,
			TLSConfig: single.TLSConfig,
		}, single.Addr, nil
	}
}

// parseRedisURI accepts either a redis:// URL or a bare host:port.
func parseRedisURI(rc config.RedisConfig) (*redis.Options, error) {
	uri := strings.TrimSpace(rc.URI)
	if uri == "" {
		return nil, errors.New("redis configuration requires a URI")
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		return &redis.Options{Addr: uri, Password: rc.Password, DB: rc.DB}, nil
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.Password == "" {
		opt.Password = rc.Password
	}
	return opt, nil
}

func nonEmpty(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func closeAfter(err error, closeFn func() error) error {
	if cerr := closeFn(); cerr != nil {
		return errors.Join(err, fmt.Errorf("close connection: %w", cerr))
	}
	return err
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := migrate.Run(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}
	return nil
}
