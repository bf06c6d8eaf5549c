// Command dbinspect dumps the Badger loan ledger read-only.
//
// Usage:
//
//	LEDGER_PATH=~/.library/ledger go run ./cmd/dbinspect
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

const loanPrefix = "loan:"

func main() {
	path := os.Getenv("LEDGER_PATH")
	if path == "" {
		path = os.ExpandEnv("$HOME/.library/ledger")
	}

	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Ledger Inspection ===")
	fmt.Println()

	var total, open, indexKeys int
	borrowers := map[string]int{}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(loanPrefix)})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if strings.HasPrefix(key, loanPrefix+"idx:") {
				indexKeys++
				continue
			}

			err := it.Item().Value(func(val []byte) error {
				var loan domain.Loan
				if err := json.Unmarshal(val, &loan); err != nil {
					return err
				}
				total++
				borrowers[loan.BorrowerID]++
				if loan.IsOpen() {
					open++
					fmt.Printf("OPEN   %s  book=%s  borrower=%s  since=%s\n",
						loan.ID, loan.BookID, loan.BorrowerID, loan.LoanTime.Format(time.RFC3339))
				}
				return nil
			})
			if err != nil {
				log.Printf("Error reading loan %s: %v", key, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating ledger: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Summary ===")
	fmt.Printf("Total loans: %d\n", total)
	fmt.Printf("Open loans: %d\n", open)
	fmt.Printf("Closed loans: %d\n", total-open)
	fmt.Printf("Distinct borrowers: %d\n", len(borrowers))
	fmt.Printf("Index keys: %d\n", indexKeys)
}
