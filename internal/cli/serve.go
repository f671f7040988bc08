package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/database"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/router"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("migrate") {
				cfg.AutoMigrate = migrate
			}
			if cfg.Env == "dev" {
				rootOpts.Dev = true
			}
			log, err := newLogger(rootOpts, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving (default AUTO_MIGRATE)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if cfg.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	var notifier service.Notifier
	if cfg.Broker.URL != "" {
		pub := queue.NewPublisher(cfg.Broker.URL, cfg.Broker.Queue, log)
		defer func() { _ = pub.Close() }()
		notifier = pub
	} else {
		log.Warn("RABBITMQ_URL not set, notifications disabled")
	}

	store := repository.NewSQLStore(db)
	alloc := service.NewSlotAllocator(log)
	reservations := service.NewReservationService(
		store,
		repository.NewCatalogRepo(db),
		repository.NewUserRepo(db),
		alloc,
		notifier,
		log.Named("reservations"),
	)
	payments := service.NewPaymentService(
		store,
		repository.NewDeliveryGuard(rdb),
		service.GatewayConfig(cfg.Gateway),
		notifier,
		log.Named("payments"),
	)

	e := router.New(router.Deps{
		Reservations: reservations,
		Payments:     payments,
		DB:           db,
		Redis:        rdb,
		JWTSecret:    cfg.JWTSecret,
		RateLimit:    config.LoadRateLimitConfig(),
		Cache:        config.LoadCacheConfig(),
		Log:          log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", ":"+cfg.Port), zap.String("env", cfg.Env))
		errCh <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
