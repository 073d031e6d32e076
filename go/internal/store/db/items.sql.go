package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const itemColumns = `id, name, description, image_ref, starting_price::text, bid_increment::text,
       seller_id, winner_id, round_ends_at, active, created_at`

func scanItem(row interface{ Scan(...interface{}) error }) (AuctionItem, error) {
	var i AuctionItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.ImageRef,
		&i.StartingPrice,
		&i.BidIncrement,
		&i.SellerID,
		&i.WinnerID,
		&i.RoundEndsAt,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const createItem = `-- name: CreateItem :one
INSERT INTO auction_items (id, name, description, image_ref, starting_price, bid_increment, seller_id)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
RETURNING ` + itemColumns

type CreateItemParams struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Description   sql.NullString `json:"description"`
	ImageRef      sql.NullString `json:"image_ref"`
	StartingPrice string         `json:"starting_price"`
	BidIncrement  string         `json:"bid_increment"`
	SellerID      uuid.UUID      `json:"seller_id"`
}

func (q *Queries) CreateItem(ctx context.Context, arg CreateItemParams) (AuctionItem, error) {
	row := q.db.QueryRowContext(ctx, createItem,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.ImageRef,
		arg.StartingPrice,
		arg.BidIncrement,
		arg.SellerID,
	)
	return scanItem(row)
}

const getItem = `-- name: GetItem :one
SELECT ` + itemColumns + `
FROM auction_items
WHERE id = $1`

func (q *Queries) GetItem(ctx context.Context, id uuid.UUID) (AuctionItem, error) {
	return scanItem(q.db.QueryRowContext(ctx, getItem, id))
}

const lockItem = `-- name: LockItem :one
SELECT id FROM auction_items WHERE id = $1 FOR UPDATE`

func (q *Queries) LockItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRowContext(ctx, lockItem, id)
	var locked uuid.UUID
	err := row.Scan(&locked)
	return locked, err
}

const listActiveItems = `-- name: ListActiveItems :many
SELECT ` + itemColumns + `
FROM auction_items
WHERE active = TRUE
ORDER BY created_at, id`

func (q *Queries) ListActiveItems(ctx context.Context) ([]AuctionItem, error) {
	rows, err := q.db.QueryContext(ctx, listActiveItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuctionItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
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

const updateRoundDeadline = `-- name: UpdateRoundDeadline :execrows
UPDATE auction_items
SET round_ends_at = $2
WHERE id = $1 AND active = TRUE`

type UpdateRoundDeadlineParams struct {
	ID          uuid.UUID `json:"id"`
	RoundEndsAt time.Time `json:"round_ends_at"`
}

func (q *Queries) UpdateRoundDeadline(ctx context.Context, arg UpdateRoundDeadlineParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateRoundDeadline, arg.ID, arg.RoundEndsAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const clearRoundDeadlines = `-- name: ClearRoundDeadlines :execrows
UPDATE auction_items
SET round_ends_at = NULL
WHERE active = TRUE AND round_ends_at IS NOT NULL`

func (q *Queries) ClearRoundDeadlines(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, clearRoundDeadlines)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markItemEnded = `-- name: MarkItemEnded :execrows
UPDATE auction_items
SET active = FALSE, winner_id = $2
WHERE id = $1`

type MarkItemEndedParams struct {
	ID       uuid.UUID     `json:"id"`
	WinnerID uuid.NullUUID `json:"winner_id"`
}

func (q *Queries) MarkItemEnded(ctx context.Context, arg MarkItemEndedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markItemEnded, arg.ID, arg.WinnerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
