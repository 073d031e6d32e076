package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/models"
	"github.com/mcdev12/auctionhouse/go/internal/store"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("item not found")
)

// ItemStore defines what the app layer needs from persistence
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	LoadItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListActiveItems(ctx context.Context) ([]models.Item, error)
	ClearRoundDeadlines(ctx context.Context) (int64, error)
}

// Queue accepts items for auction. Adding an item twice is a no-op.
type Queue interface {
	AddItem(ctx context.Context, itemID uuid.UUID) error
}

// App handles item listing business logic
type App struct {
	store ItemStore
	queue Queue
}

// NewApp creates a new items App
func NewApp(s ItemStore, q Queue) *App {
	return &App{
		store: s,
		queue: q,
	}
}

// CreateItem validates and persists a new item, then queues it for auction.
func (a *App) CreateItem(ctx context.Context, seller models.User, req CreateItemRequest) (*models.Item, error) {
	if err := a.validateCreateItemRequest(req); err != nil {
		return nil, err
	}

	item := &models.Item{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		ImageRef:      req.ImageRef,
		StartingPrice: req.StartingPrice,
		BidIncrement:  req.BidIncrement,
		SellerID:      seller.ID,
	}
	if err := a.store.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	// The item is persisted and active, so the queue feed picks it up later if
	// this fails.
	if err := a.queue.AddItem(ctx, item.ID); err != nil {
		log.Warn().Err(err).Str("item_id", item.ID.String()).Msg("failed to queue new item")
	}

	log.Info().
		Str("item_id", item.ID.String()).
		Str("seller_id", seller.ID.String()).
		Str("starting_price", item.StartingPrice.String()).
		Msg("item listed")
	return item, nil
}

// GetItem retrieves an item by ID
func (a *App) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := a.store.LoadItem(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListActiveItems returns queued and live items in queue order.
func (a *App) ListActiveItems(ctx context.Context) ([]models.Item, error) {
	active, err := a.store.ListActiveItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}
	return active, nil
}

// Requeue queues every active item in creation order. Used at startup so items
// interrupted by a restart are auctioned again, and by the fallback poll.
func (a *App) Requeue(ctx context.Context) (int, error) {
	active, err := a.ListActiveItems(ctx)
	if err != nil {
		return 0, err
	}
	for _, item := range active {
		if err := a.queue.AddItem(ctx, item.ID); err != nil {
			return 0, fmt.Errorf("failed to queue item %s: %w", item.ID, err)
		}
	}
	return len(active), nil
}

// Recover runs once at startup, before any round is live. Rounds cut short by the
// restart lose their deadline so the items read as queued again, then every active
// item is requeued.
func (a *App) Recover(ctx context.Context) (int, error) {
	cleared, err := a.store.ClearRoundDeadlines(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear interrupted rounds: %w", err)
	}
	if cleared > 0 {
		log.Info().Int64("items", cleared).Msg("cleared interrupted rounds")
	}
	return a.Requeue(ctx)
}

func (a *App) validateCreateItemRequest(req CreateItemRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if req.StartingPrice.IsNegative() {
		return fmt.Errorf("%w: startingPrice must not be negative", ErrValidation)
	}
	if !req.BidIncrement.IsPositive() {
		return fmt.Errorf("%w: bidIncrement must be positive", ErrValidation)
	}
	if !models.HasPriceScale(req.StartingPrice) {
		return fmt.Errorf("%w: startingPrice has more than %d decimal places", ErrValidation, models.PriceScale)
	}
	if !models.HasPriceScale(req.BidIncrement) {
		return fmt.Errorf("%w: bidIncrement has more than %d decimal places", ErrValidation, models.PriceScale)
	}
	return nil
}
