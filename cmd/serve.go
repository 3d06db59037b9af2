package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/clinic-notify/internal/config"
	httpSrv "github.com/jmehdipour/clinic-notify/internal/http"
	"github.com/jmehdipour/clinic-notify/internal/kafka"
	"github.com/jmehdipour/clinic-notify/internal/logger"
	"github.com/jmehdipour/clinic-notify/internal/metrics"
	"github.com/jmehdipour/clinic-notify/internal/reminder"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"github.com/jmehdipour/clinic-notify/internal/timer"
	"github.com/jmehdipour/clinic-notify/internal/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server and reminder scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		// redis backs the redis store, reply dedup and rate limiting; only
		// the store needs it to start
		var rdb redis.UniversalClient
		if client, err := openRedis(cfg); err == nil {
			rdb = client
			defer func() { _ = client.Close() }()
		} else if cfg.Store.Driver == "redis" {
			return fmt.Errorf("redis connect: %w", err)
		} else {
			log.Warn("redis unavailable, reply dedup and rate limiting disabled", zap.Error(err))
		}

		st, err := openStores(cfg, rdb)
		if err != nil {
			return err
		}
		defer st.Close()

		var eventLog repository.EventLog
		chDB, err := openClickHouse(cfg)
		if err != nil {
			return err
		}
		if chDB != nil {
			defer func() { _ = chDB.Close() }()
			eventLog = repository.NewCHEventLog(chDB)
		}

		var events reminder.EventPublisher = reminder.NopPublisher
		if len(cfg.Kafka.Brokers) > 0 {
			producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			defer func() { _ = producer.Close() }()
			events = producer
		}

		pool, err := buildPool(cfg)
		if err != nil {
			return err
		}

		timers := timer.New(
			timer.WithLateFire(cfg.Scheduler.LateFireIfOverdue),
			timer.WithLogger(log.Named("timer")),
		)
		deps := reminder.Deps{
			Store:  st.Jobs,
			Sender: pool,
			Events: events,
			Log:    log.Named("reminder"),
		}
		dispatcher := reminder.NewDispatcher(deps, cfg.Scheduler.DispatchTimeout)
		reminders := reminder.NewService(deps, timers, dispatcher, reminder.ServiceOpts{
			CountryCode:       cfg.Transport.CountryCode,
			LateFireIfOverdue: cfg.Scheduler.LateFireIfOverdue,
		})

		health := httpSrv.NewHealth().WithProviders(pool.Providers).WithTimers(timers.Pending)

		// re-arm persisted jobs before accepting new bookings
		rep, err := reminders.Restore(cmd.Context())
		if err != nil {
			if cfg.Scheduler.RecoveryFailFast {
				return fmt.Errorf("restore reminders: %w", err)
			}
			log.Error("restore reminders failed, serving degraded", zap.Error(err))
			health.SetRecovery(err)
			metrics.RecoveryOK.Set(0)
		} else {
			metrics.RecoveryOK.Set(1)
			log.Info("restore complete", zap.Int("armed", rep.Armed), zap.Int("dropped", rep.Dropped))
		}

		var processed repository.ProcessedReplies
		if rdb != nil {
			processed = repository.NewRedisProcessedReplies(rdb, cfg.Webhook.DedupTTL)
		}
		reconciler := webhook.NewReconciler(webhook.Deps{
			Appointments: st.Appointments,
			Processed:    processed,
			Sender:       pool,
			Events:       events,
			Templates: webhook.Templates{
				Ack:         cfg.Templates.Ack,
				Confirmed:   cfg.Templates.Confirmed,
				Rescheduled: cfg.Templates.Rescheduled,
			},
			CountryCode: cfg.Transport.CountryCode,
			Log:         log.Named("webhook"),
		})

		server := httpSrv.NewServer(httpSrv.Deps{
			Config:     cfg,
			Log:        log.Named("http"),
			Reminders:  reminders,
			Sender:     pool,
			Reconciler: reconciler,
			EventLog:   eventLog,
			Redis:      rdb,
			Health:     health,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.Scheduler.DispatchTimeout))
		defer cancel()
		_ = server.Shutdown(ctx)
		if err := timers.Stop(ctx); err != nil {
			log.Warn("in-flight reminders did not finish", zap.Error(err))
		}

		return nil
	},
}
