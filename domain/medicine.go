package domain

import "time"

type Medicine struct {
	ID       int64   `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	Price    float64 `db:"price" json:"price"`
	Quantity int64   `db:"quantity" json:"quantity"`
	Expiry   string  `db:"expiry" json:"expiry"`
	Supplier string  `db:"supplier" json:"supplier"`
}

// ExpiredNames returns the names of medicines whose expiry date is strictly
// before today. Rows with an unparseable expiry are left out of the list.
func ExpiredNames(medicines []Medicine, today time.Time) []string {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	var expired []string
	for _, m := range medicines {
		exp, err := time.ParseInLocation("2006-01-02", m.Expiry, today.Location())
		if err != nil {
			continue
		}
		if exp.Before(day) {
			expired = append(expired, m.Name)
		}
	}
	return expired
}
