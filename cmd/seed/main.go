// Command seed fills a database with a sample catalog, a few readers, and
// loans spread over the past weeks so overdue listings have something to show.
//
// Usage:
//
//	DB_PATH=~/.library/library.db go run ./cmd/seed
//	DB_PATH=~/.library/library.db go run ./cmd/seed --readers 8 --loans 12
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	mathrand "math/rand/v2"
	"os"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/auth"
	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/policy"
	"github.com/almogrr/projectTrainigLibary/internal/service"
	"github.com/almogrr/projectTrainigLibary/internal/store"
	"github.com/almogrr/projectTrainigLibary/internal/store/sqlite"
	"github.com/almogrr/projectTrainigLibary/internal/validation"
)

var (
	readers  = flag.Int("readers", 5, "Number of reader accounts to create")
	loans    = flag.Int("loans", 8, "Number of loans to open")
	spanDays = flag.Int("span", 21, "Spread loan start times over this many past days")
)

var catalog = []service.BookRequest{
	{Title: "The Left Hand of Darkness", Author: "Ursula K. Le Guin", YearPublished: 1969, Category: "standard"},
	{Title: "The Dispossessed", Author: "Ursula K. Le Guin", YearPublished: 1974, Category: "standard"},
	{Title: "Dune", Author: "Frank Herbert", YearPublished: 1965, Category: "standard"},
	{Title: "Neuromancer", Author: "William Gibson", YearPublished: 1984, Category: "standard"},
	{Title: "Gödel, Escher, Bach", Author: "Douglas Hofstadter", YearPublished: 1979, Category: "extended"},
	{Title: "The Structure of Scientific Revolutions", Author: "Thomas S. Kuhn", YearPublished: 1962, Category: "extended"},
	{Title: "A Pattern Language", Author: "Christopher Alexander", YearPublished: 1977, Category: "extended"},
	{Title: "The Story of Your Life", Author: "Ted Chiang", YearPublished: 1998, Category: "short"},
	{Title: "The Ones Who Walk Away from Omelas", Author: "Ursula K. Le Guin", YearPublished: 1973, Category: "short"},
	{Title: "Bloodchild", Author: "Octavia E. Butler", YearPublished: 1984, Category: "short"},
}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/.library/library.db")
	}
	fmt.Printf("Opening database at: %s\n", dbPath)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := sqlite.Open(dbPath, quiet)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	// Seeded sessions are never used, so a throwaway key is enough.
	key := make([]byte, auth.KeySize)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}
	tokens, err := auth.NewTokenService(key, time.Minute, time.Hour)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}

	validate := validation.New()
	clock := time.Now().UTC()
	loanService := service.NewLoanService(db, db, policy.MustNew(policy.Default()), nil, quiet).
		WithClock(func() time.Time { return clock })
	books := service.NewBookService(db, loanService, nil, nil, nil, validate, quiet)
	sessions := service.NewSessionService(db, db, tokens, quiet)
	accounts := service.NewAuthService(db, sessions, tokens, validate, quiet)

	ctx := context.Background()

	users := make([]*domain.User, 0, *readers)
	for i := range *readers {
		u, err := ensureReader(ctx, db, accounts, fmt.Sprintf("reader%02d", i+1))
		if err != nil {
			log.Fatalf("Failed to create reader: %v", err)
		}
		users = append(users, u)
	}
	fmt.Printf("Readers ready: %d\n", len(users))

	bookIDs := make([]string, 0, len(catalog))
	for _, req := range catalog {
		v, err := books.CreateBook(ctx, req)
		if err != nil {
			log.Fatalf("Failed to create %q: %v", req.Title, err)
		}
		bookIDs = append(bookIDs, v.ID)
	}
	fmt.Printf("Books created: %d\n", len(bookIDs))

	if len(users) == 0 {
		return
	}

	now := clock
	opened, overdue := 0, 0
	for _, idx := range mathrand.Perm(len(bookIDs)) {
		if opened >= *loans {
			break
		}
		clock = now.Add(-time.Duration(mathrand.IntN(*spanDays*24)) * time.Hour)
		reader := users[mathrand.IntN(len(users))]

		v, err := loanService.LoanBook(ctx, bookIDs[idx], reader.ID)
		if err != nil {
			log.Printf("Skipping loan: %v", err)
			continue
		}
		opened++
		if now.After(v.ExpectedReturnTime) {
			overdue++
		}
	}

	fmt.Printf("Loans opened: %d (%d already overdue)\n", opened, overdue)
}

func ensureReader(ctx context.Context, db *sqlite.Store, accounts *service.AuthService, username string) (*domain.User, error) {
	existing, err := db.GetUserByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	resp, err := accounts.Register(ctx, service.RegisterRequest{
		Username: username,
		Password: "password-" + username,
		Name:     "Reader " + username,
	}, service.ClientInfo{UserAgent: "seed"})
	if err != nil {
		return nil, err
	}
	return resp.User, nil
}
