package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctionhouse/go/internal/models"
)

func newItem(name string, createdAt time.Time) *models.Item {
	return &models.Item{
		Name:          name,
		StartingPrice: decimal.NewFromInt(10),
		BidIncrement:  decimal.NewFromInt(1),
		SellerID:      uuid.New(),
		CreatedAt:     createdAt,
	}
}

func TestMemoryCreateAndLoad(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	item := newItem("lamp", time.Time{})
	require.NoError(t, m.CreateItem(ctx, item))
	assert.NotEqual(t, uuid.Nil, item.ID)
	assert.True(t, item.Active)

	loaded, err := m.LoadItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "lamp", loaded.Name)

	// Returned items are copies.
	loaded.Name = "changed"
	again, err := m.LoadItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "lamp", again.Name)

	_, err = m.LoadItem(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBids(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	item := newItem("vase", time.Time{})
	require.NoError(t, m.CreateItem(ctx, item))

	highest, err := m.HighestBid(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, highest)

	for i := 11; i <= 13; i++ {
		require.NoError(t, m.PersistBid(ctx, &models.Bid{
			ItemID:   item.ID,
			BidderID: uuid.New(),
			Amount:   decimal.NewFromInt(int64(i)),
		}))
	}

	err = m.PersistBid(ctx, &models.Bid{ItemID: item.ID, BidderID: uuid.New(), Amount: decimal.NewFromInt(12)})
	assert.ErrorIs(t, err, ErrDuplicateBid)

	err = m.PersistBid(ctx, &models.Bid{ItemID: uuid.New(), Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrNotFound)

	highest, err = m.HighestBid(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, highest.Amount.Equal(decimal.NewFromInt(13)))

	recent, err := m.RecentBids(ctx, item.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].Amount.Equal(decimal.NewFromInt(13)))
	assert.True(t, recent[1].Amount.Equal(decimal.NewFromInt(12)))
}

func TestMemoryMarkEndedAndDeadline(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	item := newItem("clock", time.Time{})
	require.NoError(t, m.CreateItem(ctx, item))

	endsAt := time.Now().Add(15 * time.Second)
	require.NoError(t, m.UpdateRoundDeadline(ctx, item.ID, endsAt))

	winner := uuid.New()
	require.NoError(t, m.MarkEnded(ctx, item.ID, &winner))

	ended, err := m.LoadItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, ended.Active)
	require.NotNil(t, ended.WinnerID)
	assert.Equal(t, winner, *ended.WinnerID)
	require.NotNil(t, ended.RoundEndsAt)
	assert.True(t, endsAt.Equal(*ended.RoundEndsAt))

	// Deadlines are frozen once the item has ended.
	assert.ErrorIs(t, m.UpdateRoundDeadline(ctx, item.ID, endsAt.Add(time.Minute)), ErrNotFound)
}

func TestMemoryClearRoundDeadlinesKeepsEndedItems(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	endsAt := time.Now().Add(15 * time.Second)

	interrupted := newItem("interrupted", time.Time{})
	ended := newItem("ended", time.Time{})
	queued := newItem("queued", time.Time{})
	for _, item := range []*models.Item{interrupted, ended, queued} {
		require.NoError(t, m.CreateItem(ctx, item))
	}
	require.NoError(t, m.UpdateRoundDeadline(ctx, interrupted.ID, endsAt))
	require.NoError(t, m.UpdateRoundDeadline(ctx, ended.ID, endsAt))
	require.NoError(t, m.MarkEnded(ctx, ended.ID, nil))

	n, err := m.ClearRoundDeadlines(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := m.LoadItem(ctx, interrupted.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Nil(t, got.RoundEndsAt)
	assert.False(t, got.IsLive())

	got, err = m.LoadItem(ctx, ended.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.RoundEndsAt)
}

func TestMemoryListActiveItemsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()

	c := newItem("c", base.Add(2*time.Second))
	a := newItem("a", base)
	b := newItem("b", base.Add(time.Second))
	for _, item := range []*models.Item{c, a, b} {
		require.NoError(t, m.CreateItem(ctx, item))
	}
	require.NoError(t, m.MarkEnded(ctx, b.ID, nil))

	active, err := m.ListActiveItems(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].Name)
	assert.Equal(t, "c", active[1].Name)
}

func TestMemoryInItemTxSerializesPerItem(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	item := newItem("chair", time.Time{})
	require.NoError(t, m.CreateItem(ctx, item))

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.InItemTx(ctx, item.ID, func(tx Store) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestMemoryNestedInItemTxRunsInline(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	item := newItem("desk", time.Time{})
	require.NoError(t, m.CreateItem(ctx, item))

	called := false
	err := m.InItemTx(ctx, item.ID, func(tx Store) error {
		return tx.InItemTx(ctx, item.ID, func(Store) error {
			called = true
			return nil
		})
	})
	require.NoError(t, err)
	assert.True(t, called)
}
