package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/config"
	"github.com/jmehdipour/clinic-notify/internal/db"
	"github.com/jmehdipour/clinic-notify/internal/kafka"
	"github.com/jmehdipour/clinic-notify/internal/logger"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/jmehdipour/clinic-notify/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Archive notification events from Kafka into ClickHouse",
	RunE:  runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is empty")
	}
	if strings.TrimSpace(cfg.ClickHouse.DSN) == "" {
		return fmt.Errorf("clickhouse.dsn is empty")
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// 2) ClickHouse
	chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, db.PoolOpts{
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	// 3) kafka consumer
	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewAuditWorker(consumer, repository.NewCHEventLog(chDB), log.Named("audit"))
	if cfg.Audit.BatchSize > 0 {
		w.BatchSize = cfg.Audit.BatchSize
	}
	if cfg.Audit.BatchWait > 0 {
		w.BatchWait = cfg.Audit.BatchWait
	}

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("audit worker started",
		zap.String("topic", cfg.Kafka.Topic), zap.String("group", cfg.Kafka.GroupID),
		zap.Int("batch_size", w.BatchSize), zap.Duration("batch_wait", w.BatchWait))

	return w.Run(ctx)
}
