package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"pharmapos/m/domain"
)

// Ledger is the append-only table of completed sale line items. Rows are
// never updated or deleted by the application.
type Ledger struct {
	db *sqlx.DB
}

// NewLedger constructs a Ledger over the given database.
func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// Append records one sale line item. The timestamp is assigned by the
// schema default at insert time. The execer lets billing run the append on
// its own transaction.
func (l *Ledger) Append(ctx context.Context, ex Execer, medicineName string, quantity int64, totalPrice float64) error {
	if _, err := ex.ExecContext(ctx, `INSERT INTO sales (medicine_name, quantity, total_price) VALUES ($1, $2, $3)`,
		medicineName, quantity, totalPrice); err != nil {
		return fmt.Errorf("append sale: %w", err)
	}
	return nil
}

// ListRecentFirst returns all sale records, most recent first. Ties within
// the same timestamp keep insert order, newest id first.
func (l *Ledger) ListRecentFirst(ctx context.Context) ([]domain.Sale, error) {
	var sales []domain.Sale
	if err := l.db.SelectContext(ctx, &sales, `SELECT id, medicine_name, quantity, total_price, created_at FROM sales ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

// DailyRevenue returns the summed total_price and row count of today's sales.
func (l *Ledger) DailyRevenue(ctx context.Context) (float64, int64, error) {
	var (
		revenue float64
		count   int64
	)
	err := l.db.QueryRowxContext(ctx, `SELECT COALESCE(SUM(total_price), 0) AS revenue, COUNT(*) AS count FROM sales WHERE DATE(created_at) = DATE('now')`).Scan(&revenue, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("daily revenue: %w", err)
	}
	return revenue, count, nil
}

// MonthlyRevenue returns the summed total_price and row count of sales
// recorded since the start of the current month.
func (l *Ledger) MonthlyRevenue(ctx context.Context) (float64, int64, error) {
	var (
		revenue float64
		count   int64
	)
	err := l.db.QueryRowxContext(ctx, `SELECT COALESCE(SUM(total_price), 0) AS revenue, COUNT(*) AS count FROM sales WHERE DATE(created_at) >= DATE('now', 'start of month')`).Scan(&revenue, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("monthly revenue: %w", err)
	}
	return revenue, count, nil
}
