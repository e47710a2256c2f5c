package billing

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"pharmapos/m/domain"
	"pharmapos/m/internal/cart"
	"pharmapos/m/internal/migrations"
	"pharmapos/m/internal/store"
)

type fixture struct {
	db        *sqlx.DB
	inventory *store.Inventory
	ledger    *store.Ledger
	carts     *cart.Manager
	workflow  *Workflow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	migrations.Run(db)
	t.Cleanup(func() { db.Close() })

	inventory := store.NewInventory(db)
	ledger := store.NewLedger(db)
	carts := cart.NewManager(inventory)
	return &fixture{
		db:        db,
		inventory: inventory,
		ledger:    ledger,
		carts:     carts,
		workflow:  NewWorkflow(db, inventory, ledger, carts),
	}
}

func TestFinalizeDecrementsAndRecordsSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	med, err := f.inventory.Add(ctx, domain.Medicine{Name: "Napa", Price: 10, Quantity: 5, Expiry: "2026-01-01"})
	if err != nil {
		t.Fatalf("add medicine: %v", err)
	}
	if _, err := f.carts.Add(ctx, "s1", med.ID, 2); err != nil {
		t.Fatalf("cart add: %v", err)
	}

	results, err := f.workflow.Finalize(ctx, "s1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(results) != 1 || results[0].Status != LineSold {
		t.Fatalf("results = %+v, want one LineSold", results)
	}

	after, err := f.inventory.Get(ctx, med.ID)
	if err != nil {
		t.Fatalf("get medicine: %v", err)
	}
	if after.Quantity != 3 {
		t.Errorf("quantity after finalize = %d, want 3", after.Quantity)
	}

	sales, err := f.ledger.ListRecentFirst(ctx)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("ledger has %d rows, want 1", len(sales))
	}
	if sales[0].MedicineName != "Napa" || sales[0].Quantity != 2 || sales[0].TotalPrice != 20 {
		t.Errorf("sale = %+v, want Napa x2 for 20", sales[0])
	}

	if items := f.carts.Get("s1"); len(items) != 0 {
		t.Errorf("cart after finalize = %v, want empty", items)
	}
}

func TestFinalizeSkipsDeletedMedicine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	med, err := f.inventory.Add(ctx, domain.Medicine{Name: "Seclo", Price: 7, Quantity: 5, Expiry: "2026-01-01"})
	if err != nil {
		t.Fatalf("add medicine: %v", err)
	}
	if _, err := f.carts.Add(ctx, "s1", med.ID, 1); err != nil {
		t.Fatalf("cart add: %v", err)
	}
	// The medicine vanishes between cart-add and finalize.
	if err := f.inventory.Delete(ctx, med.ID); err != nil {
		t.Fatalf("delete medicine: %v", err)
	}

	results, err := f.workflow.Finalize(ctx, "s1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(results) != 1 || results[0].Status != LineSkipped {
		t.Fatalf("results = %+v, want one LineSkipped", results)
	}

	sales, err := f.ledger.ListRecentFirst(ctx)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Errorf("ledger has %d rows, want 0", len(sales))
	}
	if items := f.carts.Get("s1"); len(items) != 0 {
		t.Errorf("cart after finalize = %v, want cleared", items)
	}
}

func TestFinalizePartialCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	keep, err := f.inventory.Add(ctx, domain.Medicine{Name: "Keep", Price: 4, Quantity: 10, Expiry: "2026-01-01"})
	if err != nil {
		t.Fatalf("add medicine: %v", err)
	}
	gone, err := f.inventory.Add(ctx, domain.Medicine{Name: "Gone", Price: 6, Quantity: 10, Expiry: "2026-01-01"})
	if err != nil {
		t.Fatalf("add medicine: %v", err)
	}
	if _, err := f.carts.Add(ctx, "s1", gone.ID, 2); err != nil {
		t.Fatalf("cart add: %v", err)
	}
	if _, err := f.carts.Add(ctx, "s1", keep.ID, 3); err != nil {
		t.Fatalf("cart add: %v", err)
	}
	if err := f.inventory.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("delete medicine: %v", err)
	}

	results, err := f.workflow.Finalize(ctx, "s1")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2 lines", results)
	}
	// Cart order is preserved in the results.
	if results[0].Status != LineSkipped || results[0].Name != "Gone" {
		t.Errorf("first line = %+v, want Gone skipped", results[0])
	}
	if results[1].Status != LineSold || results[1].Name != "Keep" {
		t.Errorf("second line = %+v, want Keep sold", results[1])
	}

	sales, err := f.ledger.ListRecentFirst(ctx)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 || sales[0].MedicineName != "Keep" || sales[0].TotalPrice != 12 {
		t.Errorf("sales = %+v, want one Keep row for 12", sales)
	}
}

func TestFinalizeWithoutCartIsNoOp(t *testing.T) {
	f := newFixture(t)

	results, err := f.workflow.Finalize(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if results != nil {
		t.Errorf("results = %+v, want nil for a session with no cart", results)
	}
}
