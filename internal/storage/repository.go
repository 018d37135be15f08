package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gestionale/internal/analytics"
	"gestionale/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database connection, for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadInputs reads every entity collection the builders consume. Raw
// enum columns go through the core parsers so legacy values degrade to
// their documented fallbacks instead of leaking through.
func (r *SQLiteRepository) LoadInputs(ctx context.Context) (analytics.Inputs, error) {
	var in analytics.Inputs
	var err error

	if in.Clients, err = r.loadClients(ctx); err != nil {
		return in, err
	}
	if in.Projects, err = r.loadProjects(ctx); err != nil {
		return in, err
	}
	if in.Services, err = r.loadServices(ctx); err != nil {
		return in, err
	}
	if in.Payments, err = r.loadPayments(ctx); err != nil {
		return in, err
	}
	if in.Quotes, err = r.loadQuotes(ctx); err != nil {
		return in, err
	}
	if in.Expenses, err = r.loadExpenses(ctx); err != nil {
		return in, err
	}
	return in, nil
}

func (r *SQLiteRepository) loadClients(ctx context.Context) ([]core.Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var out []core.Client
	for rows.Next() {
		var c core.Client
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, client_id, name, category FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		var p core.Project
		var category string
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Name, &category); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Category = core.ParseProjectCategory(category)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadServices(ctx context.Context) ([]core.Service, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, date, fee_shooting, fee_editing, fee_other, discount, travel_km, km_rate
		FROM services ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	var out []core.Service
	for rows.Next() {
		var s core.Service
		var date string
		var shooting, editing, other, discount, km, rate float64
		if err := rows.Scan(&s.ID, &s.ProjectID, &date, &shooting, &editing, &other, &discount, &km, &rate); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		s.Date = core.ParseDateValue(date)
		s.FeeShooting = core.Amount(shooting)
		s.FeeEditing = core.Amount(editing)
		s.FeeOther = core.Amount(other)
		s.Discount = core.Amount(discount)
		s.TravelKm = core.Amount(km)
		s.KmRate = core.Amount(rate)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadPayments(ctx context.Context) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, project_id, quote_id, date, due_date, amount, status, type
		FROM payments ORDER BY due_date, id`)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		var p core.Payment
		var date, dueDate, status, typ string
		var amount float64
		if err := rows.Scan(&p.ID, &p.ClientID, &p.ProjectID, &p.QuoteID, &date, &dueDate, &amount, &status, &typ); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Date = core.ParseDateValue(date)
		p.DueDate = core.ParseDateValue(dueDate)
		p.Amount = core.Amount(amount)
		p.Status = core.ParsePaymentStatus(status)
		p.Type = core.ParsePaymentType(typ)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadQuotes(ctx context.Context) ([]core.Quote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, project_id, title, amount, status, sent_at, responded_at
		FROM quotes ORDER BY sent_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	var out []core.Quote
	for rows.Next() {
		var q core.Quote
		var sentAt, respondedAt, status string
		var amount float64
		if err := rows.Scan(&q.ID, &q.ClientID, &q.ProjectID, &q.Title, &amount, &status, &sentAt, &respondedAt); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		q.Amount = core.Amount(amount)
		q.Status = core.ParseQuoteStatus(status)
		q.SentAt = core.ParseDateValue(sentAt)
		q.RespondedAt = core.ParseDateValue(respondedAt)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, client_id, date, kind, amount, travel_km, km_rate, markup_pct
		FROM expenses ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var e core.Expense
		var date, kind string
		var amount, km, rate, markup float64
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ClientID, &date, &kind, &amount, &km, &rate, &markup); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date = core.ParseDateValue(date)
		e.Kind = core.ParseExpenseKind(kind)
		e.Amount = core.Amount(amount)
		e.TravelKm = core.Amount(km)
		e.KmRate = core.Amount(rate)
		e.MarkupPct = core.Amount(markup)
		out = append(out, e)
	}
	return out, rows.Err()
}

// YearlyRevenue pre-aggregates net revenue per service year. A year is
// closed when it precedes currentYear.
func (r *SQLiteRepository) YearlyRevenue(ctx context.Context, currentYear int) ([]analytics.YearlyRevenueRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT CAST(strftime('%Y', date) AS INTEGER) AS year,
		       SUM(fee_shooting + fee_editing + fee_other - discount),
		       COUNT(*)
		FROM services
		WHERE date <> ''
		GROUP BY year
		ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("query yearly revenue: %w", err)
	}
	defer rows.Close()

	var out []analytics.YearlyRevenueRow
	for rows.Next() {
		var row analytics.YearlyRevenueRow
		if err := rows.Scan(&row.Year, &row.Revenue, &row.ServicesCount); err != nil {
			return nil, fmt.Errorf("scan yearly revenue: %w", err)
		}
		row.Closed = row.Year < currentYear
		out = append(out, row)
	}
	return out, rows.Err()
}

// YearlyCategoryRevenue pre-aggregates net revenue per year and project
// category. Services on dangling project references classify as unknown.
func (r *SQLiteRepository) YearlyCategoryRevenue(ctx context.Context) ([]analytics.YearlyCategoryRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT CAST(strftime('%Y', s.date) AS INTEGER) AS year,
		       COALESCE(NULLIF(p.category, ''), 'unknown'),
		       SUM(s.fee_shooting + s.fee_editing + s.fee_other - s.discount)
		FROM services s
		LEFT JOIN projects p ON p.id = s.project_id
		WHERE s.date <> ''
		GROUP BY year, p.category
		ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("query yearly category revenue: %w", err)
	}
	defer rows.Close()

	var out []analytics.YearlyCategoryRow
	for rows.Next() {
		var row analytics.YearlyCategoryRow
		var category string
		if err := rows.Scan(&row.Year, &category, &row.Revenue); err != nil {
			return nil, fmt.Errorf("scan yearly category revenue: %w", err)
		}
		row.Category = core.ParseProjectCategory(category)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ClientLifetimes pre-aggregates lifetime net revenue per client across
// all recorded years.
func (r *SQLiteRepository) ClientLifetimes(ctx context.Context) ([]analytics.ClientLifetimeRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name,
		       SUM(s.fee_shooting + s.fee_editing + s.fee_other - s.discount)
		FROM services s
		JOIN projects p ON p.id = s.project_id
		JOIN clients c ON c.id = p.client_id
		GROUP BY c.id, c.name
		ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("query client lifetimes: %w", err)
	}
	defer rows.Close()

	var out []analytics.ClientLifetimeRow
	for rows.Next() {
		var row analytics.ClientLifetimeRow
		if err := rows.Scan(&row.ClientID, &row.Name, &row.Revenue); err != nil {
			return nil, fmt.Errorf("scan client lifetime: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// HasFutureServices reports whether any service is dated after the
// given day. Feeds the future-services quality flag on the historical
// model.
func (r *SQLiteRepository) HasFutureServices(ctx context.Context, after core.Date) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM services WHERE date > ?)`,
		after.Format("2006-01-02")).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check future services: %w", err)
	}
	return exists, nil
}

// LoadFiscalConfig assembles the fiscal configuration from the settings
// row and the tax profiles. sql.ErrNoRows from the settings table means
// the caller should fall back to its environment defaults.
func (r *SQLiteRepository) LoadFiscalConfig(ctx context.Context) (core.FiscalConfig, error) {
	var cfg core.FiscalConfig
	var override sql.NullFloat64

	err := r.db.QueryRowContext(ctx, `
		SELECT contribution_rate_pct, revenue_ceiling, business_start_year, tax_rate_override_pct
		FROM fiscal_settings WHERE id = 1`).
		Scan(&cfg.ContributionRatePct, &cfg.RevenueCeiling, &cfg.BusinessStartYear, &override)
	if err != nil {
		return cfg, fmt.Errorf("load fiscal settings: %w", err)
	}
	if override.Valid {
		v := override.Float64
		cfg.TaxRateOverridePct = &v
	}

	profiles, err := r.loadTaxProfiles(ctx)
	if err != nil {
		return cfg, err
	}
	cfg.Profiles = profiles
	return cfg, nil
}

func (r *SQLiteRepository) loadTaxProfiles(ctx context.Context) ([]core.TaxProfile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ateco_code, coefficient_pct FROM tax_profiles ORDER BY ateco_code`)
	if err != nil {
		return nil, fmt.Errorf("query tax profiles: %w", err)
	}
	defer rows.Close()

	var profiles []core.TaxProfile
	for rows.Next() {
		var p core.TaxProfile
		if err := rows.Scan(&p.ATECOCode, &p.CoefficientPct); err != nil {
			return nil, fmt.Errorf("scan tax profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range profiles {
		catRows, err := r.db.QueryContext(ctx, `
			SELECT category FROM tax_profile_categories WHERE ateco_code = ? ORDER BY category`,
			profiles[i].ATECOCode)
		if err != nil {
			return nil, fmt.Errorf("query profile categories: %w", err)
		}
		for catRows.Next() {
			var category string
			if err := catRows.Scan(&category); err != nil {
				catRows.Close()
				return nil, fmt.Errorf("scan profile category: %w", err)
			}
			profiles[i].Categories = append(profiles[i].Categories, core.ParseProjectCategory(category))
		}
		if err := catRows.Err(); err != nil {
			catRows.Close()
			return nil, err
		}
		catRows.Close()
	}
	return profiles, nil
}

// SnapshotRecord is a persisted model build.
type SnapshotRecord struct {
	ID      string
	Model   string
	Year    int
	BuiltAt time.Time
	Payload []byte
}

// SaveSnapshot persists a built model as JSON for later inspection and
// for the export worker.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, rec SnapshotRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO model_snapshots (id, model, year, built_at, payload)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Model, rec.Year, rec.BuiltAt.UTC().Format(time.RFC3339), string(rec.Payload))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Model snapshot saved",
		"id", rec.ID,
		"model", rec.Model,
		"year", rec.Year)
	return nil
}

// LatestSnapshot returns the most recent snapshot for a model and year.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, model string, year int) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	var builtAt, payload string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, model, year, built_at, payload
		FROM model_snapshots
		WHERE model = ? AND year = ?
		ORDER BY built_at DESC LIMIT 1`, model, year).
		Scan(&rec.ID, &rec.Model, &rec.Year, &builtAt, &payload)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, builtAt); err == nil {
		rec.BuiltAt = t
	}
	rec.Payload = []byte(payload)
	return &rec, nil
}

// PruneSnapshots deletes snapshots older than the cutoff, keeping the
// table from growing without bound under the periodic worker.
func (r *SQLiteRepository) PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM model_snapshots WHERE built_at < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return n, nil
}
