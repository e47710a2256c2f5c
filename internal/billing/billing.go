package billing

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"pharmapos/m/internal/cart"
	"pharmapos/m/internal/store"
)

// LineStatus says what happened to a single cart line during finalize.
type LineStatus string

const (
	// LineSold means stock was decremented and a ledger row written.
	LineSold LineStatus = "sold"
	// LineSkipped means the referenced medicine no longer exists; the line
	// produced no decrement and no ledger row.
	LineSkipped LineStatus = "skipped"
)

// LineResult reports the outcome for one cart line item.
type LineResult struct {
	MedicineID int64
	Name       string
	Status     LineStatus
}

// Workflow reconciles a session's cart against the inventory and the sales
// ledger.
type Workflow struct {
	db        *sqlx.DB
	inventory *store.Inventory
	ledger    *store.Ledger
	carts     *cart.Manager
}

// NewWorkflow constructs a Workflow.
func NewWorkflow(db *sqlx.DB, inventory *store.Inventory, ledger *store.Ledger, carts *cart.Manager) *Workflow {
	return &Workflow{db: db, inventory: inventory, ledger: ledger, carts: carts}
}

// Finalize converts the session's cart into inventory decrements and ledger
// entries, then clears the cart. A session with no cart is a no-op. Lines
// whose medicine was deleted since cart-add are skipped without error. All
// writes go through one transaction; if the commit fails the cart is left
// untouched so the caller may retry.
func (w *Workflow) Finalize(ctx context.Context, sessionID string) ([]LineResult, error) {
	if !w.carts.Has(sessionID) {
		return nil, nil
	}
	items := w.carts.Get(sessionID)

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin finalize: %w", err)
	}
	defer tx.Rollback()

	results := make([]LineResult, 0, len(items))
	for _, item := range items {
		med, err := w.inventory.GetTx(ctx, tx, item.MedicineID)
		if err != nil {
			return nil, err
		}
		if med == nil {
			results = append(results, LineResult{MedicineID: item.MedicineID, Name: item.Name, Status: LineSkipped})
			continue
		}

		// No lower-bound check here; the only stock guard ran at cart-add.
		if err := w.inventory.DecrementQuantity(ctx, tx, med.ID, item.Qty); err != nil {
			return nil, err
		}
		if err := w.ledger.Append(ctx, tx, item.Name, item.Qty, item.Subtotal()); err != nil {
			return nil, err
		}
		results = append(results, LineResult{MedicineID: item.MedicineID, Name: item.Name, Status: LineSold})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit finalize: %w", err)
	}

	w.carts.Clear(sessionID)
	return results, nil
}
