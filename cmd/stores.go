package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/config"
	"github.com/jmehdipour/clinic-notify/internal/db"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/jmehdipour/clinic-notify/internal/transport"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

func poolOpts(c config.DatabaseConfig) db.PoolOpts {
	return db.PoolOpts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	}
}

func openRedis(cfg config.Config) (*redis.Client, error) {
	return db.NewRedisClient(db.RedisOpts{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
}

// stores holds the job and appointment backends picked by store.driver.
type stores struct {
	Jobs         repository.JobStore
	Appointments repository.AppointmentStore
	closers      []io.Closer
}

func (s *stores) Close() {
	for _, c := range s.closers {
		_ = c.Close()
	}
}

// openStores connects the configured backend. rdb may be nil unless the
// driver is redis.
func openStores(cfg config.Config, rdb redis.UniversalClient) (*stores, error) {
	switch cfg.Store.Driver {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("store.driver redis: redis not connected")
		}
		return &stores{
			Jobs:         repository.NewRedisJobStore(rdb),
			Appointments: repository.NewRedisAppointmentStore(rdb),
		}, nil
	case "mysql":
		dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, poolOpts(cfg.MySQL))
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return &stores{
			Jobs:         repository.NewMySQLJobStore(dbx),
			Appointments: repository.NewMySQLAppointmentStore(dbx),
			closers:      []io.Closer{dbx},
		}, nil
	case "memory":
		return &stores{
			Jobs:         repository.NewMemoryJobStore(),
			Appointments: repository.NewMemoryAppointmentStore(),
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// openClickHouse returns nil when no dsn is configured.
func openClickHouse(cfg config.Config) (*sqlx.DB, error) {
	if strings.TrimSpace(cfg.ClickHouse.DSN) == "" {
		return nil, nil
	}
	ch, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, poolOpts(cfg.ClickHouse))
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	return ch, nil
}

func buildPool(cfg config.Config) (*transport.Pool, error) {
	var provs []transport.Provider
	for _, pc := range cfg.Transport.Providers {
		if !pc.Enabled || strings.TrimSpace(pc.AccountSID) == "" {
			continue
		}
		provs = append(provs, transport.NewTwilioProvider(transport.TwilioOpts{
			Name:          pc.Name,
			BaseURL:       strings.TrimRight(pc.BaseURL, "/"),
			AccountSID:    pc.AccountSID,
			AuthToken:     pc.AuthToken,
			From:          pc.From,
			CountryCode:   cfg.Transport.CountryCode,
			TimeoutMs:     pc.TimeoutMs,
			FailThreshold: pc.Breaker.FailThreshold,
			OpenForMs:     pc.Breaker.OpenForMs,
		}))
	}
	if len(provs) == 0 {
		return nil, fmt.Errorf("no providers enabled in config")
	}
	return transport.NewPool(provs...), nil
}

func shutdownTimeout(d time.Duration) time.Duration {
	if d < 5*time.Second {
		return 5 * time.Second
	}
	return d
}
