package bootstrap

import (
	"context"
	"fmt"

	"github.com/dondada876/ASEAGI-sub001/internal/config"
	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/core/ports"
	"github.com/dondada876/ASEAGI-sub001/internal/core/usecase"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/analyzer"
	natsbus "github.com/dondada876/ASEAGI-sub001/internal/infrastructure/bus/nats"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/classify"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/embedding"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/extractor"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/repository/postgres"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/resilience"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/rules"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/similarity"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/storage/localfs"
)

// App wires the full pipeline. Both binaries build the same graph; cmd/api
// serves the HTTP surface and cmd/worker runs the assessment subscriber and
// the analysis pool.
type App struct {
	Config config.Config

	Bus     ports.EventBus
	Ledger  ports.LedgerRepository
	Queue   ports.QueueRepository
	Metrics ports.MetricRepository

	SubmitUC   ports.SubmissionIntake
	AssessUC   ports.EntryAssessor
	DispatchUC *usecase.DispatchUseCase
	RuleSvc    *usecase.RuleService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ledger := postgres.NewLedgerRepository(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	queue := postgres.NewQueueRepository(db)
	metrics := postgres.NewMetricRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	bus, err := natsbus.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsbus.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	ruleSvc, err := usecase.NewRuleService(rules.NewLoader(cfg.RulesPath))
	if err != nil {
		bus.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init rule service: %w", err)
	}

	textExtractor := extractor.New(storage)
	embedder := embedding.New(cfg.EmbedURL, cfg.EmbedModel, executor)

	tier0 := similarity.NewFilenameTier()
	tier1 := similarity.NewTextOverlapTier()
	tier2 := similarity.NewEmbeddingTier(embedder, cfg.EmbedMaxCorpus)

	analyzerClient := analyzer.New(cfg.AnalyzerURL, cfg.AnalyzerTimeout(), executor)

	submitUC := usecase.NewSubmitUseCase(ledger, storage, bus)
	assessUC := usecase.NewAssessEntryUseCase(
		ledger, queue, metrics,
		classify.New(), ruleSvc,
		tier0, tier1, tier2,
		textExtractor,
		usecase.AssessmentConfig{
			Tier0:        domain.TierThresholds{Low: cfg.Tier0LowThreshold, High: cfg.Tier0HighThreshold},
			Tier1:        domain.TierThresholds{Low: cfg.Tier1LowThreshold, High: cfg.Tier1HighThreshold},
			Tier2:        domain.TierThresholds{Low: cfg.Tier2LowThreshold, High: cfg.Tier2HighThreshold},
			RecentWindow: cfg.RecentWindow(),
			RecentLimit:  cfg.RecentLimit,
			UrgencyBoost: cfg.UrgencyBoost,
			MaxPriority:  cfg.MaxPriority,
		},
	)
	dispatchUC := usecase.NewDispatchUseCase(ledger, queue, metrics, ruleSvc, analyzerClient, usecase.DispatchConfig{
		MaxAttempts: cfg.MaxAttempts,
		StaleAfter:  cfg.StaleAfter(),
	})

	return &App{
		Config: cfg,

		Bus:     bus,
		Ledger:  ledger,
		Queue:   queue,
		Metrics: metrics,

		SubmitUC:   submitUC,
		AssessUC:   assessUC,
		DispatchUC: dispatchUC,
		RuleSvc:    ruleSvc,

		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
