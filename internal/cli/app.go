package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/events"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/resolver"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/internal/store"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
)

// app carries the loaded configuration and the connections opened by a
// command, closed in reverse order when the command returns.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics

	metricsAddr string

	st      *store.Store
	rdb     *redis.Client
	closers []func() error
}

func (a *app) store(ctx context.Context) (*store.Store, error) {
	if a.st != nil {
		return a.st, nil
	}
	st, err := store.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, err
	}
	// sqlite files are local scratch ledgers; create the schema on first use
	if a.cfg.Database.Driver == "sqlite" {
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}
	a.st = st
	a.closers = append(a.closers, st.Close)
	a.log.Info("connected to database", zap.String("driver", a.cfg.Database.Driver))
	return st, nil
}

func (a *app) redis(ctx context.Context) (*redis.Client, error) {
	if a.rdb != nil {
		return a.rdb, nil
	}
	opts, err := redisOptions(a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	a.rdb = client
	a.closers = append(a.closers, client.Close)
	a.log.Info("connected to redis", zap.String("addr", opts.Addr))
	return client, nil
}

// redisOptions accepts either a redis:// URL or a bare host:port
func redisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	if strings.HasPrefix(cfg.URL, "redis://") || strings.HasPrefix(cfg.URL, "rediss://") {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		if cfg.Password != "" {
			opts.Password = cfg.Password
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}

func (a *app) publisher(client *redis.Client) contracts.EventPublisher {
	ec := a.cfg.Events
	var pub contracts.EventPublisher
	switch ec.Backend {
	case "redis":
		pub = events.NewStreamPublisher(client, ec.DetectedStream, ec.SettledStream)
	case "kafka":
		pub = events.NewKafkaPublisher(a.cfg.Kafka.Brokers, ec.DetectedStream, ec.SettledStream, a.log)
	default:
		return events.Noop{}
	}
	a.closers = append(a.closers, pub.Close)
	if ec.DedupTTL > 0 {
		pub = events.WithDedup(pub, client, ec.DedupTTL)
	}
	return pub
}

func (a *app) matcher() resolver.Matcher {
	return resolver.Default(a.cfg.Settlement.Aliases)
}

// loop runs fn once, or every interval until ctx is cancelled. In loop
// mode a failed pass is logged and the next tick runs anyway.
func (a *app) loop(ctx context.Context, pass string, interval time.Duration, fn func(ctx context.Context) error) error {
	run := func() error {
		err := fn(ctx)
		pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if pushErr := a.metrics.Push(pushCtx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); pushErr != nil {
			a.log.Warn("metrics push failed", zap.Error(pushErr))
		}
		return err
	}

	if interval <= 0 {
		return run()
	}

	if a.metricsAddr != "" {
		srv := a.metrics.Server(a.metricsAddr, a.health)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.log.Info("metrics listening", zap.String("addr", a.metricsAddr))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.log.Info("pass loop started", zap.String("pass", pass), zap.Duration("interval", interval))
	if err := run(); err != nil {
		a.log.Error("pass failed", zap.String("pass", pass), zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if err := run(); err != nil {
				a.log.Error("pass failed", zap.String("pass", pass), zap.Error(err))
			}
		case <-ctx.Done():
			a.log.Info("pass loop stopped", zap.String("pass", pass))
			return nil
		}
	}
}

// health pings whatever the command has connected to
func (a *app) health(ctx context.Context) error {
	if a.st != nil {
		if err := a.st.Ping(ctx); err != nil {
			return err
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// run closes everything the command opened once fn returns
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()
		return fn(cmd, args)
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
}
