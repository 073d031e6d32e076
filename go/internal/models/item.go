package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers on the websocket and REST surfaces.
	decimal.MarshalJSONWithoutQuotes = true
}

// PriceScale is the number of decimal places stored for prices.
const PriceScale = 2

// HasPriceScale reports whether d can be stored without rounding.
func HasPriceScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(PriceScale))
}

// Item represents an auction lot.
type Item struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	ImageRef      string          `json:"imageRef,omitempty"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	BidIncrement  decimal.Decimal `json:"bidIncrement"`
	SellerID      uuid.UUID       `json:"sellerId"`
	WinnerID      *uuid.UUID      `json:"winnerId,omitempty"`    // nil until ended with bids
	RoundEndsAt   *time.Time      `json:"roundEndsAt,omitempty"` // nil unless live or ended
	Active        bool            `json:"active"`                // queued or live
	CreatedAt     time.Time       `json:"createdAt"`
}

// IsLive reports whether the item currently has an open round.
func (i *Item) IsLive() bool {
	return i.Active && i.RoundEndsAt != nil
}

// Clone returns a deep copy so snapshots can be handed to other goroutines.
func (i Item) Clone() Item {
	if i.WinnerID != nil {
		w := *i.WinnerID
		i.WinnerID = &w
	}
	if i.RoundEndsAt != nil {
		t := *i.RoundEndsAt
		i.RoundEndsAt = &t
	}
	return i
}
