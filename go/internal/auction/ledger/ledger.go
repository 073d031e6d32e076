package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/auctionhouse/go/internal/models"
	"github.com/mcdev12/auctionhouse/go/internal/store"
)

// Gateway validates and persists bids against the authoritative store. It knows
// nothing about timers or subscribers.
type Gateway struct {
	store  store.Store
	policy Policy
	clock  clockwork.Clock
}

type Option func(*Gateway)

func WithPolicy(p Policy) Option {
	return func(g *Gateway) {
		if p != nil {
			g.policy = p
		}
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(g *Gateway) {
		g.clock = c
	}
}

func NewGateway(s store.Store, opts ...Option) *Gateway {
	g := &Gateway{
		store:  s,
		policy: FixedIncrement,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PlaceBid records a bid on a live item and returns it. The item and its highest bid
// are re-read under the item lock so two bids can never share a price basis.
func (g *Gateway) PlaceBid(ctx context.Context, itemID uuid.UUID, bidder models.User, proposed decimal.Decimal) (*models.Bid, error) {
	var accepted *models.Bid
	err := g.store.InItemTx(ctx, itemID, func(tx store.Store) error {
		item, err := tx.LoadItem(ctx, itemID)
		if err != nil {
			return loadError(err)
		}
		if !item.IsLive() {
			return ErrItemNotActive
		}

		minimum, err := MinimumAcceptable(ctx, tx, item)
		if err != nil {
			return err
		}
		amount, err := g.policy(minimum, proposed)
		if err != nil {
			return err
		}

		bid := &models.Bid{
			ID:             uuid.New(),
			ItemID:         itemID,
			BidderID:       bidder.ID,
			BidderUsername: bidder.Username,
			Amount:         amount,
			PlacedAt:       g.clock.Now().UTC(),
		}
		if err := tx.PersistBid(ctx, bid); err != nil {
			return &PersistenceError{Op: "persist bid", Err: err}
		}
		accepted = bid
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	log.Debug().
		Str("item_id", itemID.String()).
		Str("bidder_id", bidder.ID.String()).
		Str("amount", accepted.Amount.String()).
		Msg("bid persisted")
	return accepted, nil
}

// MinimumAcceptable is max(highest bid, starting price) plus the item's increment.
func MinimumAcceptable(ctx context.Context, s store.Store, item *models.Item) (decimal.Decimal, error) {
	currentHigh := item.StartingPrice
	highest, err := s.HighestBid(ctx, item.ID)
	if err != nil {
		return decimal.Zero, &PersistenceError{Op: "highest bid", Err: err}
	}
	if highest != nil && highest.Amount.GreaterThan(currentHigh) {
		currentHigh = highest.Amount
	}
	return currentHigh.Add(item.BidIncrement), nil
}

// OpenRound stamps the round deadline on a queued item and returns the live item.
func (g *Gateway) OpenRound(ctx context.Context, itemID uuid.UUID, endsAt time.Time) (*models.Item, error) {
	var opened *models.Item
	err := g.store.InItemTx(ctx, itemID, func(tx store.Store) error {
		item, err := tx.LoadItem(ctx, itemID)
		if err != nil {
			return loadError(err)
		}
		if !item.Active {
			return ErrItemNotActive
		}
		if err := tx.UpdateRoundDeadline(ctx, itemID, endsAt); err != nil {
			return &PersistenceError{Op: "open round", Err: err}
		}
		item.RoundEndsAt = &endsAt
		opened = item
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return opened, nil
}

// ExtendRound persists a pushed-forward deadline for a live item.
func (g *Gateway) ExtendRound(ctx context.Context, itemID uuid.UUID, endsAt time.Time) error {
	if err := g.store.UpdateRoundDeadline(ctx, itemID, endsAt); err != nil {
		return &PersistenceError{Op: "extend round", Err: err}
	}
	return nil
}

// CloseItem marks the item ended with its highest bidder, if any, as winner. It
// returns the ended item and the winning bid (nil when no bids were placed).
func (g *Gateway) CloseItem(ctx context.Context, itemID uuid.UUID) (*models.Item, *models.Bid, error) {
	var (
		ended   *models.Item
		winning *models.Bid
	)
	err := g.store.InItemTx(ctx, itemID, func(tx store.Store) error {
		item, err := tx.LoadItem(ctx, itemID)
		if err != nil {
			return loadError(err)
		}
		highest, err := tx.HighestBid(ctx, itemID)
		if err != nil {
			return &PersistenceError{Op: "highest bid", Err: err}
		}
		var winner *uuid.UUID
		if highest != nil {
			w := highest.BidderID
			winner = &w
		}
		if err := tx.MarkEnded(ctx, itemID, winner); err != nil {
			return &PersistenceError{Op: "mark ended", Err: err}
		}
		item.Active = false
		item.WinnerID = winner
		ended, winning = item, highest
		return nil
	})
	if err != nil {
		return nil, nil, classify(err)
	}
	return ended, winning, nil
}

// RecentBids returns up to limit bids for the item, newest first.
func (g *Gateway) RecentBids(ctx context.Context, itemID uuid.UUID, limit int) ([]models.Bid, error) {
	bids, err := g.store.RecentBids(ctx, itemID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "recent bids", Err: err}
	}
	return bids, nil
}

func loadError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrItemNotFound
	}
	return &PersistenceError{Op: "load item", Err: err}
}

// classify keeps domain errors as-is and wraps anything else from the store.
func classify(err error) error {
	var perr *PersistenceError
	switch {
	case errors.As(err, &perr),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrItemNotActive),
		errors.Is(err, ErrBidTooLow):
		return err
	case errors.Is(err, store.ErrNotFound):
		return ErrItemNotFound
	default:
		return &PersistenceError{Op: "item transaction", Err: err}
	}
}
