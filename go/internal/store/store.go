package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateBid = errors.New("bid amount already recorded for item")
)

// Store is the persistence collaborator for items and bids.
type Store interface {
	LoadItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	// HighestBid returns nil, nil when the item has no bids.
	HighestBid(ctx context.Context, itemID uuid.UUID) (*models.Bid, error)
	// RecentBids returns up to limit bids, newest first.
	RecentBids(ctx context.Context, itemID uuid.UUID, limit int) ([]models.Bid, error)
	PersistBid(ctx context.Context, bid *models.Bid) error
	UpdateRoundDeadline(ctx context.Context, itemID uuid.UUID, endsAt time.Time) error
	// ClearRoundDeadlines drops the deadline of every active item, leaving them
	// queued. Only safe while no round is live.
	ClearRoundDeadlines(ctx context.Context) (int64, error)
	MarkEnded(ctx context.Context, itemID uuid.UUID, winnerID *uuid.UUID) error
	CreateItem(ctx context.Context, item *models.Item) error
	// ListActiveItems returns queued and live items in creation order.
	ListActiveItems(ctx context.Context) ([]models.Item, error)

	// InItemTx runs fn as one unit of work holding an exclusive lock on the item.
	// Calls to InItemTx on the tx store run fn inline.
	InItemTx(ctx context.Context, itemID uuid.UUID, fn func(tx Store) error) error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
