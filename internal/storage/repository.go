package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"condivise/internal/core"
	"condivise/internal/log"

	_ "modernc.org/sqlite"
)

const selectColumns = `id, date, description, category, payment_mode, total_cents,
	paid_by, person1_share_cents, person2_share_cents`

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Create(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO expenses
		(date, description, category, payment_mode, total_cents, paid_by, person1_share_cents, person2_share_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Date.String(), rec.Description, rec.Category, rec.PaymentMode,
		rec.Total.Cents, string(rec.PaidBy), rec.Share1.Cents, rec.Share2.Cents)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("create expense: %w", err)
	}
	rec.ID = id

	r.logger.DebugContext(ctx, "Expense saved to SQLite",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, id,
		log.FieldTotalCents, rec.Total.Cents)
	return rec, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, rec core.ExpenseRecord) (core.ExpenseRecord, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET
		date = ?, description = ?, category = ?, payment_mode = ?, total_cents = ?,
		paid_by = ?, person1_share_cents = ?, person2_share_cents = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		rec.Date.String(), rec.Description, rec.Category, rec.PaymentMode, rec.Total.Cents,
		string(rec.PaidBy), rec.Share1.Cents, rec.Share2.Cents, rec.ID)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("update expense %d: %w", rec.ID, err)
	}
	if err := expectOneRow(res, rec.ID); err != nil {
		return core.ExpenseRecord{}, err
	}
	return rec, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for expense %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.ExpenseRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM expenses WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM expenses ORDER BY date, id`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (core.ExpenseRecord, error) {
	var (
		rec    core.ExpenseRecord
		date   string
		paidBy string
	)
	if err := s.Scan(&rec.ID, &date, &rec.Description, &rec.Category, &rec.PaymentMode,
		&rec.Total.Cents, &paidBy, &rec.Share1.Cents, &rec.Share2.Cents); err != nil {
		return core.ExpenseRecord{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	rec.Date = d
	rec.PaidBy = core.Participant(paidBy)
	return rec, nil
}
