// Package worker runs the background snapshot and export loops.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"gestionale/internal/amqp"
	"gestionale/internal/analytics"
	"gestionale/internal/core"
	"gestionale/internal/export"
	"gestionale/internal/metrics"
	"gestionale/internal/services"
	"gestionale/internal/storage"
)

// Engine is the model surface the worker drives.
type Engine interface {
	Snapshot(ctx context.Context, year int) error
	AnnualModel(ctx context.Context, year int, withFiscal bool) (*analytics.AnnualModel, error)
	HistoricalModel(ctx context.Context) (*analytics.HistoricalModel, error)
}

// SnapshotConsumer delivers snapshot announcements from the broker.
type SnapshotConsumer interface {
	ConsumeSnapshots(ctx context.Context, handler func(*amqp.SnapshotMessage) error) error
}

// SnapshotStore reads back and prunes persisted snapshots.
type SnapshotStore interface {
	LatestSnapshot(ctx context.Context, model string, year int) (*storage.SnapshotRecord, error)
	PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options tunes the snapshot worker.
type Options struct {
	Interval  time.Duration
	YearsBack int
	Clock     core.Clock
	Metrics   *metrics.Registry

	// Consumer is optional; without a broker the worker only runs the
	// periodic snapshot loop.
	Consumer SnapshotConsumer

	// Writer is optional; without one announcements are acked and
	// dropped.
	Writer export.Writer

	// Store is optional. With one, announced snapshots are exported
	// from their persisted payload instead of a rebuild, and old
	// snapshots are pruned after each pass.
	Store     SnapshotStore
	Retention time.Duration
}

// SnapshotWorker periodically persists model snapshots and exports the
// ones announced over the broker.
type SnapshotWorker struct {
	engine    Engine
	writer    export.Writer
	consumer  SnapshotConsumer
	store     SnapshotStore
	metrics   *metrics.Registry
	clock     core.Clock
	interval  time.Duration
	retention time.Duration
	yearsBack int
}

func NewSnapshotWorker(engine Engine, opts Options) *SnapshotWorker {
	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	if opts.YearsBack < 0 {
		opts.YearsBack = 0
	}

	return &SnapshotWorker{
		engine:    engine,
		writer:    opts.Writer,
		consumer:  opts.Consumer,
		store:     opts.Store,
		metrics:   opts.Metrics,
		clock:     clock,
		interval:  interval,
		retention: retention,
		yearsBack: opts.YearsBack,
	}
}

// Run blocks until the context is cancelled. The snapshot loop and the
// broker consumer run concurrently; a failure in either stops both.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.runSnapshotLoop(ctx)
	})

	if w.consumer != nil {
		g.Go(func() error {
			if err := w.consumer.ConsumeSnapshots(ctx, func(msg *amqp.SnapshotMessage) error {
				return w.HandleSnapshotMessage(ctx, msg)
			}); err != nil {
				return fmt.Errorf("consume snapshots: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (w *SnapshotWorker) runSnapshotLoop(ctx context.Context) error {
	// First pass immediately so a fresh deployment has snapshots
	// before the first tick.
	w.SnapshotAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.SnapshotAll(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SnapshotAll persists snapshots for the current year and the
// configured number of years back. Per-year failures are logged and
// counted, never fatal.
func (w *SnapshotWorker) SnapshotAll(ctx context.Context) {
	currentYear := w.clock.Now().Year()
	for y := currentYear; y >= currentYear-w.yearsBack; y-- {
		err := w.engine.Snapshot(ctx, y)
		if w.metrics != nil {
			w.metrics.ObserveSnapshot(err)
		}
		if err != nil {
			slog.ErrorContext(ctx, "Snapshot failed", "year", y, "error", err)
			continue
		}
		slog.InfoContext(ctx, "Snapshot persisted", "year", y)
	}

	if w.store != nil {
		cutoff := w.clock.Now().Add(-w.retention)
		n, err := w.store.PruneSnapshots(ctx, cutoff)
		if err != nil {
			slog.ErrorContext(ctx, "Snapshot prune failed", "error", err)
			return
		}
		if n > 0 {
			slog.InfoContext(ctx, "Pruned old snapshots", "removed", n, "cutoff", cutoff)
		}
	}
}

// HandleSnapshotMessage exports the model named by an announcement.
// Unknown models are acked and dropped so a newer publisher cannot
// wedge the queue.
func (w *SnapshotWorker) HandleSnapshotMessage(ctx context.Context, msg *amqp.SnapshotMessage) error {
	if w.writer == nil {
		slog.DebugContext(ctx, "No export writer configured, dropping announcement",
			"snapshot_id", msg.SnapshotID, "model", msg.Model)
		return nil
	}

	report, err := w.buildReport(ctx, msg)
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}

	err = w.writer.WriteReport(ctx, *report)
	if w.metrics != nil {
		w.metrics.ObserveExport(msg.Model, err)
	}
	if err != nil {
		return fmt.Errorf("write %s report: %w", msg.Model, err)
	}

	slog.InfoContext(ctx, "Snapshot exported",
		"snapshot_id", msg.SnapshotID, "model", msg.Model, "year", msg.Year)
	return nil
}

func (w *SnapshotWorker) buildReport(ctx context.Context, msg *amqp.SnapshotMessage) (*export.Report, error) {
	now := w.clock.Now()
	payload := w.storedPayload(ctx, msg)

	switch msg.Model {
	case services.ModelAnnual:
		var m *analytics.AnnualModel
		if payload != nil {
			var stored analytics.AnnualModel
			if err := json.Unmarshal(payload, &stored); err == nil {
				m = &stored
			}
		}
		if m == nil {
			var err error
			if m, err = w.engine.AnnualModel(ctx, msg.Year, true); err != nil {
				return nil, fmt.Errorf("build annual model for export: %w", err)
			}
		}
		r := export.AnnualReport(m, now)
		return &r, nil

	case services.ModelHistorical:
		var m *analytics.HistoricalModel
		if payload != nil {
			var stored analytics.HistoricalModel
			if err := json.Unmarshal(payload, &stored); err == nil {
				m = &stored
			}
		}
		if m == nil {
			var err error
			if m, err = w.engine.HistoricalModel(ctx); err != nil {
				return nil, fmt.Errorf("build historical model for export: %w", err)
			}
		}
		r := export.HistoricalReport(m, now)
		return &r, nil

	default:
		slog.WarnContext(ctx, "Unknown snapshot model, dropping", "model", msg.Model)
		return nil, nil
	}
}

// storedPayload returns the announced snapshot's persisted payload, so
// the consumer exports exactly what was announced instead of rebuilding.
// A missing store or snapshot falls back to a rebuild.
func (w *SnapshotWorker) storedPayload(ctx context.Context, msg *amqp.SnapshotMessage) []byte {
	if w.store == nil {
		return nil
	}
	rec, err := w.store.LatestSnapshot(ctx, msg.Model, msg.Year)
	if err != nil {
		slog.DebugContext(ctx, "No stored snapshot, rebuilding",
			"model", msg.Model, "year", msg.Year, "error", err)
		return nil
	}
	return rec.Payload
}
