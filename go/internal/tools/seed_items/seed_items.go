package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/auctionhouse/go/internal/dbconfig"
)

// Seed mirrors the JSON snapshot: accounts with a session token, and the items
// they list. Items are inserted in file order, which is the auction order.
type Seed struct {
	Users []SeedUser `json:"users"`
	Items []SeedItem `json:"items"`
}

type SeedUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Token    string    `json:"token"`
}

type SeedItem struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	ImageRef      string          `json:"imageRef"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	BidIncrement  decimal.Decimal `json:"bidIncrement"`
	Seller        string          `json:"seller"` // username
}

const sessionTTL = 30 * 24 * time.Hour

func main() {
	path := "go/internal/assets/auction_items.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON snapshot
	seed, err := loadSeed(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load seed: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert and count
	users := map[string]uuid.UUID{}
	for _, u := range seed.Users {
		_, err := pool.Exec(ctx, `
            INSERT INTO users (id, username, email)
            VALUES ($1, $2, $3)
            ON CONFLICT (username) DO NOTHING
        `, u.ID, u.Username, u.Email)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting user %s: %v\n", u.Username, err)
			continue
		}
		var id uuid.UUID
		if err := pool.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, u.Username).Scan(&id); err != nil {
			fmt.Fprintf(os.Stderr, "error reading user %s: %v\n", u.Username, err)
			continue
		}
		users[u.Username] = id
		if u.Token == "" {
			continue
		}
		_, err = pool.Exec(ctx, `
            INSERT INTO sessions (token, user_id, expires_at)
            VALUES ($1, $2, $3)
            ON CONFLICT (token) DO UPDATE SET expires_at = EXCLUDED.expires_at
        `, u.Token, id, time.Now().Add(sessionTTL))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting session for %s: %v\n", u.Username, err)
		}
	}

	var (
		total    = len(seed.Items)
		inserted int
		skipped  int
		errs     int
	)
	for _, it := range seed.Items {
		seller, ok := users[it.Seller]
		if !ok {
			fmt.Fprintf(os.Stderr, "item %s: unknown seller %q\n", it.Name, it.Seller)
			errs++
			continue
		}
		// The insert trigger notifies a running service, which queues the item.
		cmdTag, err := pool.Exec(ctx, `
            INSERT INTO auction_items (
              id, name, description, image_ref,
              starting_price, bid_increment, seller_id
            ) VALUES (
              $1,$2,$3,$4,$5,$6,$7
            )
            ON CONFLICT (id) DO NOTHING
        `,
			it.ID, it.Name, it.Description, it.ImageRef,
			it.StartingPrice.String(), it.BidIncrement.String(), seller,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting item %s: %v\n", it.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Items seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}

// loadSeed reads and validates a seed file. Missing ids are generated.
func loadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JSON: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}

	var errs []error
	for i := range seed.Users {
		u := &seed.Users[i]
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		if u.Username == "" {
			errs = append(errs, fmt.Errorf("user %d: username is required", i))
		}
		if u.Email == "" {
			u.Email = u.Username + "@example.invalid"
		}
	}
	for i := range seed.Items {
		it := &seed.Items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		if it.Name == "" {
			errs = append(errs, fmt.Errorf("item %d: name is required", i))
		}
		if it.StartingPrice.IsNegative() {
			errs = append(errs, fmt.Errorf("item %q: startingPrice must not be negative", it.Name))
		}
		if !it.BidIncrement.IsPositive() {
			errs = append(errs, fmt.Errorf("item %q: bidIncrement must be positive", it.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &seed, nil
}
