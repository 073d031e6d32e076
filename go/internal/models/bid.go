package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is an accepted, immutable bid on an item.
type Bid struct {
	ID             uuid.UUID       `json:"id"`
	ItemID         uuid.UUID       `json:"itemId"`
	BidderID       uuid.UUID       `json:"bidderId"`
	BidderUsername string          `json:"bidderUsername,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	PlacedAt       time.Time       `json:"placedAt"`
}
