package domain

type Sale struct {
	ID           int64   `db:"id" json:"id"`
	MedicineName string  `db:"medicine_name" json:"medicine_name"`
	Quantity     int64   `db:"quantity" json:"quantity"`
	TotalPrice   float64 `db:"total_price" json:"total_price"`
	CreatedAt    string  `db:"created_at" json:"created_at"`
}
