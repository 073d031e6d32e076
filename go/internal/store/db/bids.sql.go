package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const insertBid = `-- name: InsertBid :exec
INSERT INTO bids (id, item_id, bidder_id, amount, placed_at)
VALUES ($1, $2, $3, $4::numeric, $5)`

type InsertBidParams struct {
	ID       uuid.UUID `json:"id"`
	ItemID   uuid.UUID `json:"item_id"`
	BidderID uuid.UUID `json:"bidder_id"`
	Amount   string    `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

func (q *Queries) InsertBid(ctx context.Context, arg InsertBidParams) error {
	_, err := q.db.ExecContext(ctx, insertBid,
		arg.ID,
		arg.ItemID,
		arg.BidderID,
		arg.Amount,
		arg.PlacedAt,
	)
	return err
}

const highestBid = `-- name: HighestBid :one
SELECT b.id, b.item_id, b.bidder_id, u.username, b.amount::text, b.placed_at
FROM bids b
JOIN users u ON u.id = b.bidder_id
WHERE b.item_id = $1
ORDER BY b.amount DESC, b.placed_at DESC
LIMIT 1`

func (q *Queries) HighestBid(ctx context.Context, itemID uuid.UUID) (Bid, error) {
	row := q.db.QueryRowContext(ctx, highestBid, itemID)
	var i Bid
	err := row.Scan(
		&i.ID,
		&i.ItemID,
		&i.BidderID,
		&i.BidderUsername,
		&i.Amount,
		&i.PlacedAt,
	)
	return i, err
}

const recentBids = `-- name: RecentBids :many
SELECT b.id, b.item_id, b.bidder_id, u.username, b.amount::text, b.placed_at
FROM bids b
JOIN users u ON u.id = b.bidder_id
WHERE b.item_id = $1
ORDER BY b.amount DESC, b.placed_at DESC
LIMIT $2`

type RecentBidsParams struct {
	ItemID uuid.UUID `json:"item_id"`
	Limit  int32     `json:"limit"`
}

func (q *Queries) RecentBids(ctx context.Context, arg RecentBidsParams) ([]Bid, error) {
	rows, err := q.db.QueryContext(ctx, recentBids, arg.ItemID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Bid
	for rows.Next() {
		var i Bid
		if err := rows.Scan(
			&i.ID,
			&i.ItemID,
			&i.BidderID,
			&i.BidderUsername,
			&i.Amount,
			&i.PlacedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
