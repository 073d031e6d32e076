package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Amounts are stored as NUMERIC and scanned as text to keep them exact.

type AuctionItem struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Description   sql.NullString `json:"description"`
	ImageRef      sql.NullString `json:"image_ref"`
	StartingPrice string         `json:"starting_price"`
	BidIncrement  string         `json:"bid_increment"`
	SellerID      uuid.UUID      `json:"seller_id"`
	WinnerID      uuid.NullUUID  `json:"winner_id"`
	RoundEndsAt   sql.NullTime   `json:"round_ends_at"`
	Active        bool           `json:"active"`
	CreatedAt     time.Time      `json:"created_at"`
}

type Bid struct {
	ID             uuid.UUID `json:"id"`
	ItemID         uuid.UUID `json:"item_id"`
	BidderID       uuid.UUID `json:"bidder_id"`
	BidderUsername string    `json:"bidder_username"`
	Amount         string    `json:"amount"`
	PlacedAt       time.Time `json:"placed_at"`
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
