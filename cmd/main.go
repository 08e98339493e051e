package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tinoosan/bizledger/db/migrations"
	"github.com/tinoosan/bizledger/internal/config"
	"github.com/tinoosan/bizledger/internal/dictionary"
	httpapi "github.com/tinoosan/bizledger/internal/httpapi/v1"
	"github.com/tinoosan/bizledger/internal/ledger"
	"github.com/tinoosan/bizledger/internal/lock"
	"github.com/tinoosan/bizledger/internal/service/account"
	"github.com/tinoosan/bizledger/internal/service/condition"
	"github.com/tinoosan/bizledger/internal/service/journal"
	"github.com/tinoosan/bizledger/internal/service/sales"
	"github.com/tinoosan/bizledger/internal/service/schedule"
	"github.com/tinoosan/bizledger/internal/storage/memory"
	pgstore "github.com/tinoosan/bizledger/internal/storage/postgres"
)

// backend is satisfied by both the memory and postgres stores.
type backend interface {
	account.Repo
	account.Writer
	condition.Repo
	condition.Writer
	sales.Repo
	sales.Writer
	schedule.Repo
	schedule.Writer
	journal.Repo
	journal.Writer
	httpapi.ReadyChecker
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	var st backend
	var closers []func()

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closers = append(closers, pg.Close)
		if err := pg.Migrate(ctx, migrations.Init); err != nil {
			logger.Error("failed to apply schema", "err", err)
			os.Exit(1)
		}
		st = pg
		logger.Info("storage backend: postgres")
	} else {
		st = memory.New()
		logger.Info("storage backend: memory")
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		locker = lock.NewRedis(rdb, lock.RedisOptions{TTL: cfg.LockTTL, Retries: cfg.LockRetry, Backoff: cfg.LockBackoff}, logger)
		logger.Info("tree locking: redis", "addr", cfg.RedisAddr)
	}

	svc := httpapi.Services{
		Accounts:   account.New(st, st, locker, logger),
		Conditions: condition.New(st, st, logger),
		Sales:      sales.New(st, st, cfg.Currency, logger),
		Schedule:   schedule.New(st, st, logger),
		Journal:    journal.New(st, st, cfg.Currency, logger),
	}

	if cfg.DevSeed {
		if err := seedDev(ctx, logger, svc); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	api := httpapi.New(svc, st, logger, httpapi.Options{
		Currency:           cfg.Currency,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Production:         cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bizledger service listening", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// seedDev loads the starter chart and a 30/60/90 payment condition into an
// empty store.
func seedDev(ctx context.Context, l *slog.Logger, svc httpapi.Services) error {
	existing, err := svc.Accounts.List(ctx, false)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		l.Info("DEV seed skipped: chart already populated", "accounts", len(existing))
		return nil
	}
	accs, err := dictionary.SeedChart(ctx, svc.Accounts)
	if err != nil {
		return err
	}
	plan, err := condition.DistributeEvery(3, condition.DefaultInterval)
	if err != nil {
		return err
	}
	cond, err := svc.Conditions.Create(ctx, ledger.PaymentCondition{
		Name:         "3x monthly",
		Description:  "three equal installments, 30 days apart",
		Active:       true,
		Installments: plan,
	})
	if err != nil {
		return err
	}
	l.Info("DEV seed", "accounts", len(accs), "condition_id", cond.ID.String())
	printDevSeedBanner(accs, cond)
	return nil
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(accs []ledger.Account, cond ledger.PaymentCondition) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("payment_condition_id: %s\n", cond.ID.String())
	for _, a := range accs {
		if a.Depth == 1 || a.Subtype.Postable() {
			fmt.Printf("%-8s %-28s %s\n", a.Code, a.Name, a.ID.String())
		}
	}
	fmt.Println("==================================================")
}
