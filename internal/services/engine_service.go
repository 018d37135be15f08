// Package services orchestrates the model builders over storage,
// caching, messaging and metrics.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gestionale/internal/analytics"
	"gestionale/internal/cache"
	"gestionale/internal/core"
	"gestionale/internal/metrics"
	"gestionale/internal/storage"
)

// Model names used for cache keys, snapshots and metrics labels.
const (
	ModelAnnual     = "annual"
	ModelFiscal     = "fiscal"
	ModelHistorical = "historical"
)

// Repository is the storage surface the engine needs.
type Repository interface {
	LoadInputs(ctx context.Context) (analytics.Inputs, error)
	YearlyRevenue(ctx context.Context, currentYear int) ([]analytics.YearlyRevenueRow, error)
	YearlyCategoryRevenue(ctx context.Context) ([]analytics.YearlyCategoryRow, error)
	ClientLifetimes(ctx context.Context) ([]analytics.ClientLifetimeRow, error)
	HasFutureServices(ctx context.Context, after core.Date) (bool, error)
	LoadFiscalConfig(ctx context.Context) (core.FiscalConfig, error)
	SaveSnapshot(ctx context.Context, rec storage.SnapshotRecord) error
}

// SnapshotPublisher announces persisted snapshots downstream.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshotID, model string, year int) error
}

// Options tunes the engine service. Zero values get defaults.
type Options struct {
	Clock     core.Clock
	Publisher SnapshotPublisher
	Metrics   *metrics.Registry
	CacheSize int
	CacheTTL  time.Duration

	// FiscalDefaults applies when the database carries no fiscal
	// settings row yet.
	FiscalDefaults core.FiscalConfig
}

// EngineService builds the dashboard models from stored entities. Built
// models are cached per model, year and wall-clock day: within a day
// the builders are deterministic, so a cached copy is exact.
type EngineService struct {
	repo      Repository
	publisher SnapshotPublisher
	clock     core.Clock
	metrics   *metrics.Registry
	defaults  core.FiscalConfig

	annual  *cache.LRUCache[*analytics.AnnualModel]
	fiscal  *cache.LRUCache[*analytics.FiscalModel]
	history *cache.LRUCache[*analytics.HistoricalModel]
}

func NewEngineService(repo Repository, opts Options) *EngineService {
	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 64
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &EngineService{
		repo:      repo,
		publisher: opts.Publisher,
		clock:     clock,
		metrics:   opts.Metrics,
		defaults:  opts.FiscalDefaults,
		annual:    cache.NewLRUCache[*analytics.AnnualModel](size, ttl),
		fiscal:    cache.NewLRUCache[*analytics.FiscalModel](size, ttl),
		history:   cache.NewLRUCache[*analytics.HistoricalModel](size, ttl),
	}
}

// AnnualModel builds the operational snapshot for a year, with the
// fiscal simulation embedded when withFiscal is set.
func (s *EngineService) AnnualModel(ctx context.Context, year int, withFiscal bool) (*analytics.AnnualModel, error) {
	key := cache.ModelKey(ModelAnnual, year, s.clock.Now())
	if withFiscal {
		key += ":fiscal"
	}
	if m, ok := s.annual.Get(key); ok {
		s.observeBuild(ModelAnnual, 0, true)
		return m, nil
	}

	start := time.Now()
	in, err := s.repo.LoadInputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}

	opts := analytics.AnnualOptions{Year: year, Clock: s.clock}
	if withFiscal {
		cfg, err := s.fiscalConfig(ctx)
		if err != nil {
			return nil, err
		}
		opts.Fiscal = &cfg
	}

	m := analytics.BuildAnnualModel(in, opts)
	s.annual.Set(key, m)
	s.observeBuild(ModelAnnual, time.Since(start), false)
	return m, nil
}

// FiscalModel builds the standalone fiscal simulation for a year.
func (s *EngineService) FiscalModel(ctx context.Context, year int) (*analytics.FiscalModel, error) {
	if year == 0 {
		year = s.clock.Now().Year()
	}
	key := cache.ModelKey(ModelFiscal, year, s.clock.Now())
	if m, ok := s.fiscal.Get(key); ok {
		s.observeBuild(ModelFiscal, 0, true)
		return m, nil
	}

	start := time.Now()
	in, err := s.repo.LoadInputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}
	cfg, err := s.fiscalConfig(ctx)
	if err != nil {
		return nil, err
	}

	m := analytics.BuildFiscalModel(in, cfg, year, s.clock)
	s.fiscal.Set(key, m)
	s.observeBuild(ModelFiscal, time.Since(start), false)
	return m, nil
}

// HistoricalModel builds the multi-year model from pre-aggregated rows.
func (s *EngineService) HistoricalModel(ctx context.Context) (*analytics.HistoricalModel, error) {
	now := s.clock.Now()
	key := cache.ModelKey(ModelHistorical, now.Year(), now)
	if m, ok := s.history.Get(key); ok {
		s.observeBuild(ModelHistorical, 0, true)
		return m, nil
	}

	start := time.Now()
	currentYear := now.Year()
	today := core.NewDate(now.Year(), int(now.Month()), now.Day())

	yearly, err := s.repo.YearlyRevenue(ctx, currentYear)
	if err != nil {
		return nil, fmt.Errorf("load yearly revenue: %w", err)
	}
	byCategory, err := s.repo.YearlyCategoryRevenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("load category revenue: %w", err)
	}
	clients, err := s.repo.ClientLifetimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load client lifetimes: %w", err)
	}
	hasFuture, err := s.repo.HasFutureServices(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("check future services: %w", err)
	}

	meta := analytics.HistoryMeta{
		CurrentYear:       currentYear,
		AsOf:              today,
		HasFutureServices: hasFuture,
	}
	for _, row := range yearly {
		if meta.FirstYear == 0 || row.Year < meta.FirstYear {
			meta.FirstYear = row.Year
		}
		if row.Year > meta.LastYear {
			meta.LastYear = row.Year
		}
		if row.Closed && row.Year > meta.LatestClosedYear {
			meta.LatestClosedYear = row.Year
		}
	}

	m := analytics.BuildHistoricalModel(meta, yearly, byCategory, clients)
	s.history.Set(key, m)
	s.observeBuild(ModelHistorical, time.Since(start), false)
	return m, nil
}

// PaymentAging builds the accounts-receivable aging report for a year.
func (s *EngineService) PaymentAging(ctx context.Context, year int) ([]AgingLine, error) {
	if year == 0 {
		year = s.clock.Now().Year()
	}
	in, err := s.repo.LoadInputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}
	return BuildPaymentAging(in, year, s.clock), nil
}

// Snapshot builds the annual (with fiscal) and historical models for a
// year, persists them and announces each persisted snapshot.
func (s *EngineService) Snapshot(ctx context.Context, year int) error {
	now := s.clock.Now()
	if year == 0 {
		year = now.Year()
	}

	annual, err := s.AnnualModel(ctx, year, true)
	if err != nil {
		return fmt.Errorf("build annual model: %w", err)
	}
	if err := s.persistSnapshot(ctx, ModelAnnual, year, annual, now); err != nil {
		return err
	}

	history, err := s.HistoricalModel(ctx)
	if err != nil {
		return fmt.Errorf("build historical model: %w", err)
	}
	if err := s.persistSnapshot(ctx, ModelHistorical, now.Year(), history, now); err != nil {
		return err
	}

	return nil
}

func (s *EngineService) persistSnapshot(ctx context.Context, model string, year int, payload any, builtAt time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", model, err)
	}

	rec := storage.SnapshotRecord{
		ID:      uuid.NewString(),
		Model:   model,
		Year:    year,
		BuiltAt: builtAt,
		Payload: body,
	}
	if err := s.repo.SaveSnapshot(ctx, rec); err != nil {
		return fmt.Errorf("save %s snapshot: %w", model, err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(ctx, rec.ID, model, year); err != nil {
			// The snapshot is already durable; a lost announcement only
			// delays the export.
			slog.WarnContext(ctx, "Failed to publish snapshot message",
				"snapshot_id", rec.ID, "model", model, "error", err)
		}
	}
	return nil
}

// fiscalConfig loads the stored fiscal configuration, falling back to
// the environment defaults when the database has none.
func (s *EngineService) fiscalConfig(ctx context.Context) (core.FiscalConfig, error) {
	cfg, err := s.repo.LoadFiscalConfig(ctx)
	if err != nil {
		slog.DebugContext(ctx, "No stored fiscal settings, using defaults", "error", err)
		cfg = s.defaults
	}
	if cfg.ContributionRatePct == 0 {
		cfg.ContributionRatePct = s.defaults.ContributionRatePct
	}
	if cfg.BusinessStartYear == 0 {
		cfg.BusinessStartYear = s.defaults.BusinessStartYear
	}
	if cfg.BusinessStartYear == 0 {
		cfg.BusinessStartYear = s.clock.Now().Year()
	}
	if cfg.RevenueCeiling == 0 {
		cfg.RevenueCeiling = s.defaults.RevenueCeiling
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = s.defaults.Profiles
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("fiscal configuration: %w", err)
	}
	return cfg, nil
}

func (s *EngineService) observeBuild(model string, d time.Duration, hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveBuild(model, d, hit)
	}
}
