package domain

// CartItem snapshots a medicine at the moment it was added to a cart. The
// name and price are carried into the sales ledger at finalize time even if
// the inventory row changes in between.
type CartItem struct {
	MedicineID int64   `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Qty        int64   `json:"qty"`
}

// Subtotal is the line total for this item.
func (c CartItem) Subtotal() float64 {
	return c.Price * float64(c.Qty)
}
