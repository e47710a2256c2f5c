package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"pharmapos/m/domain"
	"pharmapos/m/internal/migrations"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	migrations.Run(db)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustAdd(t *testing.T, inv *Inventory, m domain.Medicine) domain.Medicine {
	t.Helper()
	added, err := inv.Add(context.Background(), m)
	if err != nil {
		t.Fatalf("add %s: %v", m.Name, err)
	}
	return added
}

func TestAddListRoundTrip(t *testing.T) {
	inv := NewInventory(newTestDB(t))
	ctx := context.Background()

	added := mustAdd(t, inv, domain.Medicine{
		Name:     "Napa",
		Price:    2.5,
		Quantity: 40,
		Expiry:   "2026-03-01",
		Supplier: "Beximco",
	})
	if added.ID == 0 {
		t.Fatal("Add did not assign an id")
	}

	medicines, err := inv.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(medicines) != 1 {
		t.Fatalf("List returned %d rows, want 1", len(medicines))
	}
	if medicines[0] != added {
		t.Errorf("List round trip = %+v, want %+v", medicines[0], added)
	}
}

func TestGetMissingIsNotAnError(t *testing.T) {
	inv := NewInventory(newTestDB(t))

	m, err := inv.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m != nil {
		t.Errorf("Get(42) = %+v, want nil", m)
	}
}

func TestDelete(t *testing.T) {
	inv := NewInventory(newTestDB(t))
	ctx := context.Background()

	added := mustAdd(t, inv, domain.Medicine{Name: "Seclo", Price: 7, Quantity: 10, Expiry: "2025-01-01"})

	if err := inv.Delete(ctx, added.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	medicines, err := inv.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(medicines) != 0 {
		t.Errorf("List after delete returned %d rows, want 0", len(medicines))
	}
}

func TestDeleteMissing(t *testing.T) {
	inv := NewInventory(newTestDB(t))

	err := inv.Delete(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(99) error = %v, want ErrNotFound", err)
	}
}

func TestDecrementQuantityHasNoBoundCheck(t *testing.T) {
	db := newTestDB(t)
	inv := NewInventory(db)
	ctx := context.Background()

	added := mustAdd(t, inv, domain.Medicine{Name: "Monas", Price: 9, Quantity: 3, Expiry: "2025-01-01"})

	if err := inv.DecrementQuantity(ctx, db, added.ID, 5); err != nil {
		t.Fatalf("DecrementQuantity: %v", err)
	}
	m, err := inv.Get(ctx, added.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.Quantity != -2 {
		t.Errorf("quantity = %d, want -2 (store performs no bound check)", m.Quantity)
	}
}

func TestSearchSubstring(t *testing.T) {
	inv := NewInventory(newTestDB(t))

	mustAdd(t, inv, domain.Medicine{Name: "Paracetamol", Price: 1, Quantity: 5, Expiry: "2025-01-01"})
	mustAdd(t, inv, domain.Medicine{Name: "Cetirizine", Price: 2, Quantity: 5, Expiry: "2025-01-01"})
	mustAdd(t, inv, domain.Medicine{Name: "Aspirin", Price: 3, Quantity: 5, Expiry: "2025-01-01"})

	results, err := inv.Search(context.Background(), "cet")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Search(cet) returned %d rows, want 2 (Paracetamol, Cetirizine)", len(results))
	}
}

func TestFilter(t *testing.T) {
	inv := NewInventory(newTestDB(t))
	ctx := context.Background()

	mustAdd(t, inv, domain.Medicine{Name: "Napa", Price: 2, Quantity: 50, Expiry: "2024-05-01", Supplier: "Beximco"})
	mustAdd(t, inv, domain.Medicine{Name: "Napa Extra", Price: 3, Quantity: 4, Expiry: "2024-06-01", Supplier: "Beximco"})
	mustAdd(t, inv, domain.Medicine{Name: "Seclo", Price: 7, Quantity: 8, Expiry: "2025-12-31", Supplier: "Square"})

	tests := []struct {
		name   string
		params FilterParams
		want   []string
	}{
		{
			name:   "no filters returns everything",
			params: FilterParams{},
			want:   []string{"Napa", "Napa Extra", "Seclo"},
		},
		{
			name:   "name substring",
			params: FilterParams{Name: "Napa"},
			want:   []string{"Napa", "Napa Extra"},
		},
		{
			name:   "supplier equality",
			params: FilterParams{Supplier: "Square"},
			want:   []string{"Seclo"},
		},
		{
			name:   "supplier sentinel all is ignored",
			params: FilterParams{Supplier: "all"},
			want:   []string{"Napa", "Napa Extra", "Seclo"},
		},
		{
			name:   "low stock threshold",
			params: FilterParams{LowStock: true},
			want:   []string{"Napa Extra", "Seclo"},
		},
		{
			name:   "expired excludes expiry on or after today",
			params: FilterParams{ExpiredOnly: true, Today: "2024-06-01"},
			want:   []string{"Napa"},
		},
		{
			name:   "filters combine with AND",
			params: FilterParams{Name: "Napa", Supplier: "Beximco", LowStock: true},
			want:   []string{"Napa Extra"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			medicines, err := inv.Filter(ctx, tc.params)
			if err != nil {
				t.Fatalf("Filter: %v", err)
			}
			var names []string
			for _, m := range medicines {
				names = append(names, m.Name)
			}
			if len(names) != len(tc.want) {
				t.Fatalf("Filter = %v, want %v", names, tc.want)
			}
			for i := range names {
				if names[i] != tc.want[i] {
					t.Errorf("Filter = %v, want %v", names, tc.want)
					break
				}
			}
		})
	}
}
