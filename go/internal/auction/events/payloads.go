package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// Event types, also the last token of the JetStream subject
const (
	TypeRoundStarted = "round_started"
	TypeBidPlaced    = "bid_placed"
	TypeRoundEnded   = "round_ended"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID        uuid.UUID       `json:"eventId"`
	Type      string          `json:"eventType"`
	ItemID    uuid.UUID       `json:"itemId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// RoundStartedPayload is the payload for a RoundStarted event
type RoundStartedPayload struct {
	ItemID        uuid.UUID       `json:"itemId"`
	Name          string          `json:"name"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	BidIncrement  decimal.Decimal `json:"bidIncrement"`
	RoundEndsAt   *time.Time      `json:"roundEndsAt,omitempty"`
}

// BidPlacedPayload is the payload for a BidPlaced event
type BidPlacedPayload struct {
	BidID          uuid.UUID       `json:"bidId"`
	ItemID         uuid.UUID       `json:"itemId"`
	BidderID       uuid.UUID       `json:"bidderId"`
	BidderUsername string          `json:"bidderUsername"`
	Amount         decimal.Decimal `json:"amount"`
	PlacedAt       time.Time       `json:"placedAt"`
	RoundEndsAt    *time.Time      `json:"roundEndsAt,omitempty"`
}

// RoundEndedPayload is the payload for a RoundEnded event. Winner fields are
// absent for an unsold item.
type RoundEndedPayload struct {
	ItemID        uuid.UUID        `json:"itemId"`
	Sold          bool             `json:"sold"`
	WinnerID      *uuid.UUID       `json:"winnerId,omitempty"`
	WinningAmount *decimal.Decimal `json:"winningAmount,omitempty"`
}

func newEvent(eventType string, itemID uuid.UUID, at time.Time, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		ItemID:    itemID,
		Timestamp: at.UTC(),
		Payload:   data,
	}, nil
}

func roundStarted(item models.Item, at time.Time) (Event, error) {
	return newEvent(TypeRoundStarted, item.ID, at, RoundStartedPayload{
		ItemID:        item.ID,
		Name:          item.Name,
		StartingPrice: item.StartingPrice,
		BidIncrement:  item.BidIncrement,
		RoundEndsAt:   item.RoundEndsAt,
	})
}

func bidPlaced(item models.Item, bid models.Bid, at time.Time) (Event, error) {
	return newEvent(TypeBidPlaced, item.ID, at, BidPlacedPayload{
		BidID:          bid.ID,
		ItemID:         bid.ItemID,
		BidderID:       bid.BidderID,
		BidderUsername: bid.BidderUsername,
		Amount:         bid.Amount,
		PlacedAt:       bid.PlacedAt,
		RoundEndsAt:    item.RoundEndsAt,
	})
}

func roundEnded(item models.Item, winning *models.Bid, at time.Time) (Event, error) {
	payload := RoundEndedPayload{ItemID: item.ID}
	if winning != nil {
		amount := winning.Amount
		winner := winning.BidderID
		payload.Sold = true
		payload.WinnerID = &winner
		payload.WinningAmount = &amount
	}
	return newEvent(TypeRoundEnded, item.ID, at, payload)
}
