package cart

import (
	"context"
	"sync"

	"pharmapos/m/domain"
	"pharmapos/m/internal/store"
)

// Manager owns the per-session shopping carts. Carts live in memory for the
// lifetime of the process; there is no expiry of abandoned sessions.
type Manager struct {
	inventory *store.Inventory

	mu    sync.Mutex
	carts map[string][]domain.CartItem
}

// NewManager constructs a Manager backed by the given inventory.
func NewManager(inventory *store.Inventory) *Manager {
	return &Manager{
		inventory: inventory,
		carts:     map[string][]domain.CartItem{},
	}
}

// Get returns a copy of the session's cart, initializing an empty one for
// sessions seen for the first time.
func (m *Manager) Get(sessionID string) []domain.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.carts[sessionID]
	if !ok {
		m.carts[sessionID] = []domain.CartItem{}
		return []domain.CartItem{}
	}
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}

// Add looks the medicine up and appends a snapshot line item to the
// session's cart. Nothing happens when the medicine does not exist or has
// less stock than requested; the return value reports whether the item was
// appended. Stock is not reserved at add time.
func (m *Manager) Add(ctx context.Context, sessionID string, medicineID, qty int64) (bool, error) {
	med, err := m.inventory.Get(ctx, medicineID)
	if err != nil {
		return false, err
	}
	if med == nil || med.Quantity < qty {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sessionID] = append(m.carts[sessionID], domain.CartItem{
		MedicineID: med.ID,
		Name:       med.Name,
		Price:      med.Price,
		Qty:        qty,
	})
	return true, nil
}

// Total sums price*qty over the session's cart.
func (m *Manager) Total(sessionID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, item := range m.carts[sessionID] {
		total += item.Subtotal()
	}
	return total
}

// Clear empties the session's cart. The session key stays, holding an empty
// list.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sessionID] = []domain.CartItem{}
}

// Has reports whether the session has ever had a cart initialized.
func (m *Manager) Has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[sessionID]
	return ok
}
