package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/auctionhouse/go/internal/models"
	"github.com/mcdev12/auctionhouse/go/internal/sqlutil"
	"github.com/mcdev12/auctionhouse/go/internal/store/db"
)

const uniqueViolation = "23505"

// Postgres is the Store backed by the auction schema in db.Schema.
type Postgres struct {
	postgresQueries
	sqlDB *sql.DB
}

func NewPostgres(sqlDB *sql.DB) *Postgres {
	return &Postgres{
		postgresQueries: postgresQueries{queries: db.New(sqlDB)},
		sqlDB:           sqlDB,
	}
}

// Migrate applies the schema. Statements are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.sqlDB.ExecContext(ctx, db.Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (p *Postgres) InItemTx(ctx context.Context, itemID uuid.UUID, fn func(tx Store) error) error {
	return sqlutil.Run(ctx, p.sqlDB,
		func(tx *sql.Tx) *postgresTx {
			return &postgresTx{postgresQueries{queries: p.queries.WithTx(tx)}}
		},
		func(tx *postgresTx) error {
			if _, err := tx.queries.LockItem(ctx, itemID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrNotFound
				}
				return fmt.Errorf("failed to lock item: %w", err)
			}
			return fn(tx)
		},
	)
}

type postgresTx struct {
	postgresQueries
}

func (t *postgresTx) InItemTx(_ context.Context, _ uuid.UUID, fn func(tx Store) error) error {
	return fn(t)
}

// postgresQueries holds the operations shared by the pool and tx-bound stores.
type postgresQueries struct {
	queries *db.Queries
}

func (p postgresQueries) LoadItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	row, err := p.queries.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return dbItemToModel(row)
}

func (p postgresQueries) HighestBid(ctx context.Context, itemID uuid.UUID) (*models.Bid, error) {
	row, err := p.queries.HighestBid(ctx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	return dbBidToModel(row)
}

func (p postgresQueries) RecentBids(ctx context.Context, itemID uuid.UUID, limit int) ([]models.Bid, error) {
	rows, err := p.queries.RecentBids(ctx, db.RecentBidsParams{ItemID: itemID, Limit: int32(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent bids: %w", err)
	}
	bids := make([]models.Bid, 0, len(rows))
	for _, row := range rows {
		b, err := dbBidToModel(row)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *b)
	}
	return bids, nil
}

func (p postgresQueries) PersistBid(ctx context.Context, bid *models.Bid) error {
	if bid.ID == uuid.Nil {
		bid.ID = uuid.New()
	}
	err := p.queries.InsertBid(ctx, db.InsertBidParams{
		ID:       bid.ID,
		ItemID:   bid.ItemID,
		BidderID: bid.BidderID,
		Amount:   bid.Amount.String(),
		PlacedAt: bid.PlacedAt,
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateBid
		}
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func (p postgresQueries) UpdateRoundDeadline(ctx context.Context, itemID uuid.UUID, endsAt time.Time) error {
	n, err := p.queries.UpdateRoundDeadline(ctx, db.UpdateRoundDeadlineParams{ID: itemID, RoundEndsAt: endsAt})
	if err != nil {
		return fmt.Errorf("failed to update round deadline: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p postgresQueries) ClearRoundDeadlines(ctx context.Context) (int64, error) {
	n, err := p.queries.ClearRoundDeadlines(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear round deadlines: %w", err)
	}
	return n, nil
}

func (p postgresQueries) MarkEnded(ctx context.Context, itemID uuid.UUID, winnerID *uuid.UUID) error {
	n, err := p.queries.MarkItemEnded(ctx, db.MarkItemEndedParams{
		ID:       itemID,
		WinnerID: sqlutil.ToNullUUID(winnerID),
	})
	if err != nil {
		return fmt.Errorf("failed to mark item ended: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p postgresQueries) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	row, err := p.queries.CreateItem(ctx, db.CreateItemParams{
		ID:            item.ID,
		Name:          item.Name,
		Description:   sqlutil.ToSqlString(item.Description),
		ImageRef:      sqlutil.ToSqlString(item.ImageRef),
		StartingPrice: item.StartingPrice.String(),
		BidIncrement:  item.BidIncrement.String(),
		SellerID:      item.SellerID,
	})
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	created, err := dbItemToModel(row)
	if err != nil {
		return err
	}
	*item = *created
	return nil
}

func (p postgresQueries) ListActiveItems(ctx context.Context) ([]models.Item, error) {
	rows, err := p.queries.ListActiveItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}
	items := make([]models.Item, 0, len(rows))
	for _, row := range rows {
		item, err := dbItemToModel(row)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// dbItemToModel converts a database item to domain model
func dbItemToModel(row db.AuctionItem) (*models.Item, error) {
	startingPrice, err := decimal.NewFromString(row.StartingPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid starting price %q: %w", row.StartingPrice, err)
	}
	increment, err := decimal.NewFromString(row.BidIncrement)
	if err != nil {
		return nil, fmt.Errorf("invalid bid increment %q: %w", row.BidIncrement, err)
	}
	return &models.Item{
		ID:            row.ID,
		Name:          row.Name,
		Description:   sqlutil.FromSqlString(row.Description, ""),
		ImageRef:      sqlutil.FromSqlString(row.ImageRef, ""),
		StartingPrice: startingPrice,
		BidIncrement:  increment,
		SellerID:      row.SellerID,
		WinnerID:      sqlutil.FromNullUUID(row.WinnerID),
		RoundEndsAt:   sqlutil.FromSqlTime(row.RoundEndsAt),
		Active:        row.Active,
		CreatedAt:     row.CreatedAt,
	}, nil
}

// dbBidToModel converts a database bid to domain model
func dbBidToModel(row db.Bid) (*models.Bid, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid bid amount %q: %w", row.Amount, err)
	}
	return &models.Bid{
		ID:             row.ID,
		ItemID:         row.ItemID,
		BidderID:       row.BidderID,
		BidderUsername: row.BidderUsername,
		Amount:         amount,
		PlacedAt:       row.PlacedAt,
	}, nil
}
