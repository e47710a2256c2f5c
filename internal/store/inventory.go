package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"pharmapos/m/domain"
)

// ErrNotFound is returned when an operation targets a medicine id that does
// not exist.
var ErrNotFound = errors.New("medicine not found")

// Inventory is the durable table of medicine stock records.
type Inventory struct {
	db *sqlx.DB
}

// NewInventory constructs an Inventory over the given database.
func NewInventory(db *sqlx.DB) *Inventory {
	return &Inventory{db: db}
}

// List returns every medicine record in storage order.
func (s *Inventory) List(ctx context.Context) ([]domain.Medicine, error) {
	var medicines []domain.Medicine
	if err := s.db.SelectContext(ctx, &medicines, `SELECT id, name, price, quantity, expiry, COALESCE(supplier, '') AS supplier FROM medicines`); err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	return medicines, nil
}

// Get returns the medicine with the given id, or nil when no such row
// exists. Absence is not an error.
func (s *Inventory) Get(ctx context.Context, id int64) (*domain.Medicine, error) {
	var m domain.Medicine
	err := s.db.GetContext(ctx, &m, `SELECT id, name, price, quantity, expiry, COALESCE(supplier, '') AS supplier FROM medicines WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get medicine %d: %w", id, err)
	}
	return &m, nil
}

// Add persists a new medicine record and returns it with the assigned id.
func (s *Inventory) Add(ctx context.Context, m domain.Medicine) (domain.Medicine, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx, `INSERT INTO medicines (name, price, quantity, expiry, supplier) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		m.Name, m.Price, m.Quantity, m.Expiry, m.Supplier).Scan(&id)
	if err != nil {
		return domain.Medicine{}, fmt.Errorf("add medicine: %w", err)
	}
	m.ID = id
	return m, nil
}

// Delete removes a medicine permanently. Deleting an id that does not exist
// returns ErrNotFound.
func (s *Inventory) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete medicine %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete medicine %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Execer is the subset of sqlx used by mutations that may run inside a
// caller-owned transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DecrementQuantity subtracts amount from the stored quantity. The caller is
// responsible for bounds; no check is performed here and the quantity can go
// negative if misused.
func (s *Inventory) DecrementQuantity(ctx context.Context, ex Execer, id, amount int64) error {
	if _, err := ex.ExecContext(ctx, `UPDATE medicines SET quantity = quantity - $1 WHERE id = $2`, amount, id); err != nil {
		return fmt.Errorf("decrement medicine %d: %w", id, err)
	}
	return nil
}

// GetTx is Get running on the given transaction.
func (s *Inventory) GetTx(ctx context.Context, tx *sqlx.Tx, id int64) (*domain.Medicine, error) {
	var m domain.Medicine
	err := tx.GetContext(ctx, &m, `SELECT id, name, price, quantity, expiry, COALESCE(supplier, '') AS supplier FROM medicines WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get medicine %d: %w", id, err)
	}
	return &m, nil
}

// Search returns medicines whose name contains q as a substring.
func (s *Inventory) Search(ctx context.Context, q string) ([]domain.Medicine, error) {
	var medicines []domain.Medicine
	like := "%" + q + "%"
	if err := s.db.SelectContext(ctx, &medicines, `SELECT id, name, price, quantity, expiry, COALESCE(supplier, '') AS supplier FROM medicines WHERE name LIKE $1`, like); err != nil {
		return nil, fmt.Errorf("search medicines: %w", err)
	}
	return medicines, nil
}

// FilterParams describes the AND-combined inventory filters. Zero-valued
// fields are not applied, so the zero FilterParams selects everything.
type FilterParams struct {
	Name        string
	Supplier    string // skipped when empty or "all"
	LowStock    bool   // quantity < 10
	ExpiredOnly bool   // expiry < Today, string compare
	Today       string // "YYYY-MM-DD", required when ExpiredOnly is set
}

// Filter returns the medicines matching every requested predicate.
func (s *Inventory) Filter(ctx context.Context, p FilterParams) ([]domain.Medicine, error) {
	var (
		args    []any
		clauses []string
	)

	if p.Name != "" {
		args = append(args, "%"+p.Name+"%")
		clauses = append(clauses, fmt.Sprintf("name LIKE $%d", len(args)))
	}
	if p.Supplier != "" && p.Supplier != "all" {
		args = append(args, p.Supplier)
		clauses = append(clauses, fmt.Sprintf("supplier = $%d", len(args)))
	}
	if p.LowStock {
		clauses = append(clauses, "quantity < 10")
	}
	if p.ExpiredOnly {
		// Valid only because expiry is stored as zero-padded ISO text.
		args = append(args, p.Today)
		clauses = append(clauses, fmt.Sprintf("expiry < $%d", len(args)))
	}

	query := `SELECT id, name, price, quantity, expiry, COALESCE(supplier, '') AS supplier FROM medicines`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	var medicines []domain.Medicine
	if err := s.db.SelectContext(ctx, &medicines, query, args...); err != nil {
		return nil, fmt.Errorf("filter medicines: %w", err)
	}
	return medicines, nil
}
