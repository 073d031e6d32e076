package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/auctionhouse/go/internal/auction/ledger"
	"github.com/mcdev12/auctionhouse/go/internal/auction/round"
	"github.com/mcdev12/auctionhouse/go/internal/identity"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// Inbound message kinds
const (
	KindBid            = "bid"
	KindCurrentItem    = "current_item"
	KindGetCurrentItem = "get_current_item"
	KindSubscribe      = "subscribe"
)

// Outbound subjects
const (
	SubjectNewAuction  = "new_auction"
	SubjectPriceUpdate = "price_update"
	SubjectAuctionEnd  = "auction_end"
	SubjectTimerUpdate = "timer_update"
	SubjectCurrentItem = "current_item"
	SubjectCurrentBids = "current_bids"
	SubjectError       = "error"
)

// Error codes sent in error frames
const (
	CodeInvalidToken    = "invalid_token"
	CodeNoActiveAuction = "no_active_auction"
	CodeItemNotFound    = "item_not_found"
	CodeItemNotActive   = "item_not_active"
	CodeBidTooLow       = "bid_too_low"
	CodeRateLimited     = "rate_limited"
	CodeBadRequest      = "bad_request"
	CodeInternal        = "internal"
)

// ClientMessage is a message received from a websocket client.
type ClientMessage struct {
	Kind      string           `json:"kind"`
	AuthToken string           `json:"authToken,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	ItemID    string           `json:"itemId,omitempty"`
}

// ServerMessage is the envelope of every frame sent to clients.
type ServerMessage struct {
	Subject string      `json:"subject"`
	Payload interface{} `json:"payload"`
}

type PriceUpdatePayload struct {
	ItemID         uuid.UUID       `json:"itemId"`
	Price          decimal.Decimal `json:"price"`
	BidderUsername string          `json:"bidderUsername"`
	BidderID       uuid.UUID       `json:"bidderId"`
}

type BidView struct {
	Price          decimal.Decimal `json:"price"`
	BidderUsername string          `json:"bidderUsername"`
	BidderID       uuid.UUID       `json:"bidderId"`
}

// CurrentItemPayload is sent as null when nothing is live.
type CurrentItemPayload struct {
	Item *models.Item `json:"item"`
}

type CurrentBidsPayload struct {
	ItemID uuid.UUID `json:"itemId"`
	Bids   []BidView `json:"bids"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encode(subject string, payload interface{}) ([]byte, error) {
	return json.Marshal(ServerMessage{Subject: subject, Payload: payload})
}

func newAuctionFrame(item models.Item) ([]byte, error) {
	return encode(SubjectNewAuction, item)
}

func auctionEndFrame(item models.Item) ([]byte, error) {
	return encode(SubjectAuctionEnd, item)
}

func priceUpdateFrame(bid models.Bid) ([]byte, error) {
	return encode(SubjectPriceUpdate, PriceUpdatePayload{
		ItemID:         bid.ItemID,
		Price:          bid.Amount,
		BidderUsername: bid.BidderUsername,
		BidderID:       bid.BidderID,
	})
}

func timerUpdateFrame(deadline time.Time) ([]byte, error) {
	return encode(SubjectTimerUpdate, deadline.UTC().Format(time.RFC3339Nano))
}

// currentItemFrame carries the live item, or null when nothing is live.
func currentItemFrame(item *models.Item) ([]byte, error) {
	if item == nil {
		return encode(SubjectCurrentItem, nil)
	}
	return encode(SubjectCurrentItem, CurrentItemPayload{Item: item})
}

func currentBidsFrame(itemID uuid.UUID, bids []models.Bid) ([]byte, error) {
	views := make([]BidView, len(bids))
	for i, b := range bids {
		views[i] = BidView{Price: b.Amount, BidderUsername: b.BidderUsername, BidderID: b.BidderID}
	}
	return encode(SubjectCurrentBids, CurrentBidsPayload{ItemID: itemID, Bids: views})
}

func errorFrame(code, message string) []byte {
	data, _ := encode(SubjectError, ErrorPayload{Code: code, Message: message})
	return data
}

// errorCode maps a bid failure to the code reported to the offending connection.
// Store failures are reported generically.
func errorCode(err error) (string, string) {
	switch {
	case errors.Is(err, identity.ErrInvalidToken):
		return CodeInvalidToken, "invalid or expired token"
	case errors.Is(err, round.ErrNoActiveAuction):
		return CodeNoActiveAuction, "no active auction"
	case errors.Is(err, ledger.ErrItemNotFound):
		return CodeItemNotFound, "item not found"
	case errors.Is(err, round.ErrRoundClosing), errors.Is(err, ledger.ErrItemNotActive):
		return CodeItemNotActive, "auction for this item is not live"
	case errors.Is(err, ledger.ErrBidTooLow):
		return CodeBidTooLow, err.Error()
	case errors.Is(err, ledger.ErrInvalidAmount):
		return CodeBadRequest, err.Error()
	default:
		return CodeInternal, "failed to process request"
	}
}
