package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	postgresRepo "github.com/iho/erpledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/erpledger/internal/adapter/repository/redis"
	"github.com/iho/erpledger/internal/infrastructure/config"
	"github.com/iho/erpledger/internal/infrastructure/eventpublisher"
	"github.com/iho/erpledger/internal/infrastructure/logger"
	"github.com/iho/erpledger/internal/infrastructure/metrics"
	"github.com/iho/erpledger/internal/infrastructure/postgres"
	"github.com/iho/erpledger/internal/infrastructure/redis"
	"github.com/iho/erpledger/internal/usecase"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "erpledger",
		Short: "ERP ledger ops tool",
		Long:  `Operational tooling for the ERP transactional core: migrations, consistency checks, projection repair and outbox publishing.`,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(repairCmd())
	rootCmd.AddCommand(stockCmd())
	rootCmd.AddCommand(sagaCmd())
	rootCmd.AddCommand(outboxCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return postgres.RunMigrationsDown(cfg.DatabaseURL, cfg.MigrationsPath, log)
		},
	})

	return cmd
}

func verifyCmd() *cobra.Command {
	var companyID string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify stock projections and journal balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			results, err := app.recovery.VerifyAllCells(ctx)
			if err != nil {
				return err
			}

			drifted := 0
			for _, r := range results {
				if r.Consistent {
					continue
				}
				drifted++
				fmt.Printf("DRIFT %s/%s projected=%s@%s replayed=%s@%s\n",
					r.VariantID, r.WarehouseID,
					r.ProjectedQty, r.ProjectedCost,
					r.ReplayedQty, r.ReplayedCost)
			}
			fmt.Printf("stock: %d cells checked, %d drifted\n", len(results), drifted)

			if companyID != "" {
				if err := app.recovery.CheckJournalConsistency(ctx, companyID); err != nil {
					fmt.Printf("journal %s: FAILED: %v\n", companyID, err)
					return err
				}
				fmt.Printf("journal %s: balanced\n", companyID)
			}

			if drifted > 0 {
				return fmt.Errorf("%d stock cells drifted", drifted)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&companyID, "company", "", "Also check journal balance for this company")

	return cmd
}

func repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair <variant-id> <warehouse-id>",
		Short: "Rebuild a stock projection from its movement log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			result, err := app.recovery.RepairCell(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Printf("repaired %s/%s to %s@%s\n",
				result.VariantID, result.WarehouseID,
				result.ReplayedQty, result.ReplayedCost)
			return nil
		},
	}
}

func stockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Stock projections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "balance <variant-id> <warehouse-id>",
		Short: "Show a cell's on-hand quantity and weighted-average cost",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			level, err := app.stock.CurrentBalance(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Printf("%s/%s on-hand=%s avg-cost=%s\n",
				level.VariantID, level.WarehouseID,
				level.QuantityOnHand, level.WeightedAvgCost)
			return nil
		},
	})

	return cmd
}

func sagaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saga",
		Short: "Fulfillment sagas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <saga-id>",
		Short: "Show a fulfillment saga record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			saga, err := app.fulfillment.GetSaga(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("saga %s type=%s order=%s state=%s\n", saga.ID, saga.Type, saga.OrderRef, saga.State)
			fmt.Printf("  entries:   %v\n", saga.EntryIDs)
			fmt.Printf("  movements: %v\n", saga.MovementIDs)
			if saga.ErrorMessage != "" {
				fmt.Printf("  error:     %s\n", saga.ErrorMessage)
			}
			return nil
		},
	})

	return cmd
}

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Outbox operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "publish",
		Short: "Run the outbox publishing worker until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			go func() {
				addr := fmt.Sprintf(":%s", app.cfg.MetricsPort)
				app.log.Info().Str("addr", addr).Msg("serving metrics")
				if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
					app.log.Error().Err(err).Msg("metrics server stopped")
				}
			}()

			publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
				OutboxRepo: app.outboxRepo,
				Publisher:  eventpublisher.NewLogPublisher(app.log),
				Logger:     app.log,
				BatchSize:  app.cfg.OutboxBatchSize,
				Interval:   app.cfg.OutboxPollInterval,
			})

			if err := publisher.Start(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Publish one batch of pending events and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
				OutboxRepo: app.outboxRepo,
				Publisher:  eventpublisher.NewLogPublisher(app.log),
				Logger:     app.log,
				BatchSize:  app.cfg.OutboxBatchSize,
			})

			return publisher.ProcessEvents(ctx)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete published events older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := connect(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
				OutboxRepo: app.outboxRepo,
				Publisher:  eventpublisher.NewLogPublisher(app.log),
				Logger:     app.log,
			})

			return publisher.Prune(ctx, app.cfg.OutboxRetention)
		},
	})

	return cmd
}

// app bundles the wired dependencies shared by commands that talk to
// the database.
type app struct {
	cfg  *config.Config
	log  zerolog.Logger
	pool *pgxpool.Pool

	outboxRepo  usecase.OutboxRepository
	stock       *usecase.StockUseCase
	fulfillment *usecase.FulfillmentUseCase
	recovery    *usecase.RecoveryUseCase
}

func (a *app) close() {
	a.pool.Close()
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, log, nil
}

func connect(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	var cache usecase.Cache
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(connectCtx, cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache = redisRepo.NewCache(redisClient)
	}

	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	companyRepo := postgresRepo.NewCompanyRepository(pool)
	rateRepo := postgresRepo.NewRateRepository(pool)
	journalRepo := postgresRepo.NewJournalRepository(pool)
	stockRepo := postgresRepo.NewStockRepository(pool)
	sagaRepo := postgresRepo.NewSagaRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)

	idGen := postgresRepo.NewULIDGenerator()
	clock := usecase.NewSystemClock()
	retrier := postgresRepo.NewRetrier(log)
	recorder := metrics.New(prometheus.DefaultRegisterer)

	journal := usecase.NewJournalUseCase(
		txManager, accountRepo, companyRepo, rateRepo, journalRepo,
		outboxRepo, auditRepo, idGen, clock, retrier, recorder,
	)
	stock := usecase.NewStockUseCase(
		txManager, stockRepo, outboxRepo, auditRepo, cache,
		idGen, clock, retrier, recorder,
	)
	fulfillment := usecase.NewFulfillmentUseCase(
		txManager, companyRepo, sagaRepo, outboxRepo, auditRepo,
		journal, stock, idGen, clock, retrier, recorder,
	)
	recovery := usecase.NewRecoveryUseCase(
		txManager, stockRepo, journalRepo, auditRepo, cache, clock,
	)

	return &app{
		cfg:         cfg,
		log:         log,
		pool:        pool,
		outboxRepo:  outboxRepo,
		stock:       stock,
		fulfillment: fulfillment,
		recovery:    recovery,
	}, nil
}
