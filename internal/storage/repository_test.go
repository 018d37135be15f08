package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustExec(t *testing.T, repo *SQLiteRepository, query string, args ...any) {
	t.Helper()
	if _, err := repo.db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func TestLoadInputsDecodesRows(t *testing.T) {
	repo := newTestRepo(t)

	mustExec(t, repo, `INSERT INTO clients (id, name) VALUES ('c1', 'Rossi SRL')`)
	mustExec(t, repo, `INSERT INTO projects (id, client_id, name, category)
		VALUES ('p1', 'c1', 'Matrimonio Rossi', 'wedding')`)
	mustExec(t, repo, `INSERT INTO services (id, project_id, date, fee_shooting, travel_km, km_rate)
		VALUES ('s1', 'p1', '2026-03-01', 1000, 120, 0.5)`)
	mustExec(t, repo, `INSERT INTO payments (id, client_id, project_id, date, due_date, amount, status, type)
		VALUES ('pay1', 'c1', 'p1', '2026-03-05', '2026-04-05', 500, 'pending', 'payment')`)
	mustExec(t, repo, `INSERT INTO quotes (id, client_id, title, amount, status, sent_at)
		VALUES ('q1', 'c1', 'Servizio spot', 2500, 'sent', '2026-02-10')`)
	mustExec(t, repo, `INSERT INTO expenses (id, project_id, date, kind, amount)
		VALUES ('e1', 'p1', 'not-a-date', 'standard', 80)`)

	in, err := repo.LoadInputs(context.Background())
	if err != nil {
		t.Fatalf("LoadInputs: %v", err)
	}

	if len(in.Services) != 1 || !in.Services[0].Date.InYear(2026) {
		t.Fatalf("service date not decoded: %+v", in.Services)
	}
	if got := float64(in.Services[0].FeeShooting); got != 1000 {
		t.Errorf("fee_shooting = %v, want 1000", got)
	}
	if len(in.Payments) != 1 || !in.Payments[0].DueDate.InYear(2026) {
		t.Fatalf("payment due date not decoded: %+v", in.Payments)
	}
	if len(in.Quotes) != 1 || !in.Quotes[0].SentAt.InYear(2026) {
		t.Fatalf("quote sent_at not decoded: %+v", in.Quotes)
	}
	if !in.Quotes[0].RespondedAt.IsZero() {
		t.Errorf("empty responded_at must decode as the zero date, got %v", in.Quotes[0].RespondedAt)
	}
	if len(in.Expenses) != 1 || !in.Expenses[0].Date.IsZero() {
		t.Errorf("malformed expense date must decode as the zero date, got %+v", in.Expenses)
	}
}

func TestSnapshotRoundTripAndPrune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := SnapshotRecord{
		ID:      "snap-old",
		Model:   "annual",
		Year:    2026,
		BuiltAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		Payload: []byte(`{"old":true}`),
	}
	fresh := SnapshotRecord{
		ID:      "snap-new",
		Model:   "annual",
		Year:    2026,
		BuiltAt: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		Payload: []byte(`{"old":false}`),
	}
	for _, rec := range []SnapshotRecord{old, fresh} {
		if err := repo.SaveSnapshot(ctx, rec); err != nil {
			t.Fatalf("SaveSnapshot(%s): %v", rec.ID, err)
		}
	}

	got, err := repo.LatestSnapshot(ctx, "annual", 2026)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if got.ID != "snap-new" {
		t.Errorf("LatestSnapshot ID = %s, want snap-new", got.ID)
	}
	if string(got.Payload) != `{"old":false}` {
		t.Errorf("LatestSnapshot payload = %s", got.Payload)
	}
	if !got.BuiltAt.Equal(fresh.BuiltAt) {
		t.Errorf("LatestSnapshot BuiltAt = %v, want %v", got.BuiltAt, fresh.BuiltAt)
	}

	n, err := repo.PruneSnapshots(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PruneSnapshots: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d snapshots, want 1", n)
	}

	if _, err := repo.LatestSnapshot(ctx, "annual", 2026); err != nil {
		t.Errorf("fresh snapshot should survive the prune: %v", err)
	}

	if _, err := repo.LatestSnapshot(ctx, "fiscal", 2026); err == nil {
		t.Error("expected an error for a model with no snapshots")
	}
}
