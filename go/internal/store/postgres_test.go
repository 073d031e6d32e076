package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctionhouse/go/internal/dbconfig"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

func setupTestDB(t testing.TB) *Postgres {
	t.Helper()

	sqlDB, err := sql.Open("postgres", dbconfig.NewConfigFromEnv().DSN())
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		t.Skipf("skipping postgres tests: could not connect to postgres: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	p := NewPostgres(sqlDB)
	require.NoError(t, p.Migrate(context.Background()))
	return p
}

func createTestUser(t *testing.T, p *Postgres) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := p.sqlDB.Exec(`INSERT INTO users (id, username, email) VALUES ($1, $2, $3)`,
		id, "user-"+id.String()[:8], id.String()+"@example.com")
	require.NoError(t, err)
	return id
}

func TestPostgresItemLifecycle(t *testing.T) {
	p := setupTestDB(t)
	ctx := context.Background()
	seller := createTestUser(t, p)
	bidder := createTestUser(t, p)

	item := &models.Item{
		Name:          "postgres lamp",
		StartingPrice: decimal.RequireFromString("10.00"),
		BidIncrement:  decimal.RequireFromString("1.00"),
		SellerID:      seller,
	}
	require.NoError(t, p.CreateItem(ctx, item))
	assert.True(t, item.Active)
	assert.False(t, item.CreatedAt.IsZero())

	endsAt := time.Now().Add(15 * time.Second).UTC().Truncate(time.Microsecond)
	require.NoError(t, p.UpdateRoundDeadline(ctx, item.ID, endsAt))

	err := p.InItemTx(ctx, item.ID, func(tx Store) error {
		highest, err := tx.HighestBid(ctx, item.ID)
		require.NoError(t, err)
		assert.Nil(t, highest)
		return tx.PersistBid(ctx, &models.Bid{
			ItemID:   item.ID,
			BidderID: bidder,
			Amount:   decimal.RequireFromString("11.00"),
			PlacedAt: time.Now(),
		})
	})
	require.NoError(t, err)

	dup := p.PersistBid(ctx, &models.Bid{
		ItemID:   item.ID,
		BidderID: bidder,
		Amount:   decimal.RequireFromString("11.00"),
		PlacedAt: time.Now(),
	})
	assert.ErrorIs(t, dup, ErrDuplicateBid)

	highest, err := p.HighestBid(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, highest)
	assert.Equal(t, bidder, highest.BidderID)
	assert.NotEmpty(t, highest.BidderUsername)

	require.NoError(t, p.MarkEnded(ctx, item.ID, &highest.BidderID))
	ended, err := p.LoadItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, ended.Active)
	require.NotNil(t, ended.WinnerID)
	assert.Equal(t, bidder, *ended.WinnerID)
	require.NotNil(t, ended.RoundEndsAt)
	assert.True(t, endsAt.Equal(*ended.RoundEndsAt))
}

func TestPostgresInItemTxMissingItem(t *testing.T) {
	p := setupTestDB(t)
	err := p.InItemTx(context.Background(), uuid.New(), func(Store) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}
