// Package postgres is the PostgreSQL record store, built on a pgx pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"condivise/internal/core"
	"condivise/internal/log"
	"condivise/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const selectColumns = `id, date, description, category, payment_mode, total_cents,
	paid_by, person1_share_cents, person2_share_cents`

type Repository struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

var _ storage.Repository = (*Repository)(nil)

// Open migrates the schema at databaseURL and connects a pool to it.
func Open(ctx context.Context, databaseURL string, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := Migrate(databaseURL); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

// Migrate runs the embedded migrations through the pgx/v5 migrate driver.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateURL swaps the scheme for the one the pgx/v5 migrate driver
// registers.
func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Create(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	query := `INSERT INTO expenses (date, description, category, payment_mode, total_cents, paid_by,
				person1_share_cents, person2_share_cents) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := r.pool.QueryRow(ctx, query,
		rec.Date.Time,
		rec.Description,
		rec.Category,
		rec.PaymentMode,
		rec.Total.Cents,
		string(rec.PaidBy),
		rec.Share1.Cents,
		rec.Share2.Cents,
	).Scan(&rec.ID)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("create expense: %w", err)
	}
	r.logger.DebugContext(ctx, "Expense saved to PostgreSQL",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, rec.ID)
	return rec, nil
}

func (r *Repository) Update(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	query := `UPDATE expenses SET date = $1, description = $2, category = $3, payment_mode = $4,
				total_cents = $5, paid_by = $6, person1_share_cents = $7, person2_share_cents = $8,
				updated_at = now() WHERE id = $9`
	tag, err := r.pool.Exec(ctx, query,
		rec.Date.Time,
		rec.Description,
		rec.Category,
		rec.PaymentMode,
		rec.Total.Cents,
		string(rec.PaidBy),
		rec.Share1.Cents,
		rec.Share2.Cents,
		rec.ID,
	)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("update expense %d: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ExpenseRecord{}, fmt.Errorf("expense %d: %w", rec.ID, storage.ErrNotFound)
	}
	return rec, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (core.ExpenseRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM expenses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ExpenseRecord{}, fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return rec, nil
}

func (r *Repository) List(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM expenses ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (core.ExpenseRecord, error) {
	var (
		rec    core.ExpenseRecord
		date   time.Time
		paidBy string
	)
	err := row.Scan(
		&rec.ID,
		&date,
		&rec.Description,
		&rec.Category,
		&rec.PaymentMode,
		&rec.Total.Cents,
		&paidBy,
		&rec.Share1.Cents,
		&rec.Share2.Cents,
	)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	rec.Date = core.DateOf(date)
	rec.PaidBy = core.Participant(paidBy)
	return rec, nil
}
