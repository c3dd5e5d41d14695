package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/tokenledger/internal/checkpoint"
	"github.com/davidbz/tokenledger/internal/config"
	"github.com/davidbz/tokenledger/internal/domain"
	"github.com/davidbz/tokenledger/internal/http"
	"github.com/davidbz/tokenledger/internal/metrics"
	"github.com/davidbz/tokenledger/internal/observability"
	"github.com/davidbz/tokenledger/internal/observability/usagelog"
	"github.com/davidbz/tokenledger/internal/pricing"
	"github.com/davidbz/tokenledger/internal/provider/echo"
	"github.com/davidbz/tokenledger/internal/provider/openai"
	"github.com/davidbz/tokenledger/internal/provider/registry"
	"github.com/davidbz/tokenledger/internal/snapshot"
)

const shutdownTimeout = 15 * time.Second

func main() {
	container := buildContainer()

	if err := container.Invoke(run); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

// run serves until SIGINT/SIGTERM, then writes the final snapshot and
// prints the usage report.
func run(
	logger *zap.Logger,
	server *http.Server,
	scheduler *checkpoint.Scheduler,
	ledger *domain.Ledger,
	ledgerCfg *config.LedgerConfig,
) error {
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithRunID(ctx, ledger.RunID())

	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start checkpoint scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			scheduler.Stop()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownCtx = observability.WithRunID(shutdownCtx, ledger.RunID())

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.FromContext(shutdownCtx).Error("server shutdown failed", observability.Error(err))
	}
	scheduler.Stop()

	if err := ledger.Persist(shutdownCtx, ledgerCfg.OutputPath); err != nil {
		return err
	}
	fmt.Printf("Token usage data saved to %s\n", ledgerCfg.OutputPath)

	fmt.Println(ledger.Summarize())
	fmt.Println(ledger.DetailedReport())

	return nil
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func(cfg *config.MetricsConfig) *metrics.Collector {
		return metrics.NewCollector(cfg, nil)
	}); err != nil {
		log.Fatalf("Failed to provide metrics collector: %v", err)
	}

	// Pricing
	if err := container.Provide(func(cfg *config.LedgerConfig) (domain.PricingResolver, error) {
		return pricing.NewTable(cfg.PricingFile, openai.Pricing(), echo.Pricing())
	}); err != nil {
		log.Fatalf("Failed to provide pricing table: %v", err)
	}
	if err := container.Provide(func(resolver domain.PricingResolver) domain.CostCalculator {
		return domain.NewStandardCostCalculator(resolver)
	}); err != nil {
		log.Fatalf("Failed to provide cost calculator: %v", err)
	}

	// Snapshots
	if err := container.Provide(newRedisWriter); err != nil {
		log.Fatalf("Failed to provide redis writer: %v", err)
	}
	if err := container.Provide(snapshot.NewRouter); err != nil {
		log.Fatalf("Failed to provide snapshot router: %v", err)
	}

	// Ledger
	if err := container.Provide(newLedger); err != nil {
		log.Fatalf("Failed to provide ledger: %v", err)
	}
	if err := container.Provide(func(ledger *domain.Ledger) domain.UsageRecorder {
		return ledger
	}); err != nil {
		log.Fatalf("Failed to provide usage recorder: %v", err)
	}
	if err := container.Provide(func(ledger *domain.Ledger) http.UsageLedger {
		return ledger
	}); err != nil {
		log.Fatalf("Failed to provide usage ledger: %v", err)
	}
	if err := container.Provide(func(ledger *domain.Ledger, cfg *config.LedgerConfig) *checkpoint.Scheduler {
		return checkpoint.NewScheduler(ledger, cfg.CheckpointSchedule, cfg.OutputPath)
	}); err != nil {
		log.Fatalf("Failed to provide checkpoint scheduler: %v", err)
	}

	// Providers
	if err := container.Provide(newProviderRegistry); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewGatewayService); err != nil {
		log.Fatalf("Failed to provide gateway service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// newRedisWriter returns nil when no Redis address is configured, which
// makes redis: targets fail instead of silently going nowhere.
func newRedisWriter(cfg *config.RedisConfig) *snapshot.RedisWriter {
	if cfg.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return snapshot.NewRedisWriter(client, cfg.KeyPrefix)
}

func newLedger(
	calculator domain.CostCalculator,
	router *snapshot.Router,
	collector *metrics.Collector,
	ledgerCfg *config.LedgerConfig,
	metricsCfg *config.MetricsConfig,
	_ *zap.Logger, // initialized before the ledger logs
) *domain.Ledger {
	opts := []domain.LedgerOption{
		domain.WithSnapshotWriter(router),
		domain.WithObserver(usagelog.NewLogger()),
	}
	if metricsCfg.Enabled {
		opts = append(opts, domain.WithObserver(collector))
	}
	if !ledgerCfg.StrictUsage {
		opts = append(opts, domain.WithPermissiveUsage())
	}

	ledger := domain.NewLedger(calculator, opts...)

	observability.FromContext(context.Background()).Info("ledger created",
		observability.String("run_id", ledger.RunID()),
		observability.String("output_path", ledgerCfg.OutputPath),
		observability.Bool("strict_usage", ledgerCfg.StrictUsage))

	return ledger
}

// newProviderRegistry registers the echo provider and, when an API key is
// configured, the OpenAI provider.
func newProviderRegistry(cfg *openai.Config) (domain.ProviderRegistry, error) {
	ctx := context.Background()
	reg := registry.NewRegistry()

	if err := reg.Register(ctx, echo.NewProvider()); err != nil {
		return nil, fmt.Errorf("failed to register echo provider: %w", err)
	}

	openaiProvider, err := openai.NewProvider(*cfg)
	switch {
	case errors.Is(err, openai.ErrMissingAPIKey):
		observability.FromContext(ctx).Info("openai provider not configured")
	case err != nil:
		return nil, fmt.Errorf("failed to create OpenAI provider: %w", err)
	default:
		if err := reg.Register(ctx, openaiProvider); err != nil {
			return nil, fmt.Errorf("failed to register OpenAI provider: %w", err)
		}
	}

	return reg, nil
}
