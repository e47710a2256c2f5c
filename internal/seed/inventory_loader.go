package seed

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// LoadInventory ingests starting stock from a CSV with columns
// name,price,quantity,expiry,supplier. Rows already present (same name and
// expiry) are skipped, so re-running on an existing database is harmless.
// A missing file is logged and ignored.
func LoadInventory(db *sqlx.DB, csvPath string) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Printf("unable to load inventory seed %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Printf("unable to read inventory header: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Printf("unable to start inventory seed transaction: %v", err)
		return
	}
	stmt, err := tx.Preparex(`INSERT INTO medicines (name, price, quantity, expiry, supplier)
        SELECT $1, $2, $3, $4, $5
        WHERE NOT EXISTS (SELECT 1 FROM medicines WHERE name = $1 AND expiry = $4)`)
	if err != nil {
		log.Printf("unable to prepare inventory insert: %v", err)
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read inventory row: %v", err)
			continue
		}
		if len(record) < 5 {
			continue
		}
		name := strings.TrimSpace(record[0])
		price, priceErr := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		quantity, qtyErr := strconv.ParseInt(strings.TrimSpace(record[2]), 10, 64)
		expiry := strings.TrimSpace(record[3])
		supplier := strings.TrimSpace(record[4])

		if name == "" || priceErr != nil || qtyErr != nil {
			continue
		}

		if _, err := stmt.Exec(name, price, quantity, expiry, supplier); err != nil {
			log.Printf("unable to insert medicine %s: %v", name, err)
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("unable to commit inventory seed: %v", err)
	} else {
		log.Printf("seeded inventory with %d rows", rows)
	}
}
