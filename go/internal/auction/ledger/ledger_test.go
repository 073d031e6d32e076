package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mcdev12/auctionhouse/go/internal/models"
	"github.com/mcdev12/auctionhouse/go/internal/store"
)

func liveItem(t testing.TB, s store.Store, start, inc int64) *models.Item {
	t.Helper()
	ctx := context.Background()
	item := &models.Item{
		Name:          "lot",
		StartingPrice: decimal.NewFromInt(start),
		BidIncrement:  decimal.NewFromInt(inc),
		SellerID:      uuid.New(),
	}
	require.NoError(t, s.CreateItem(ctx, item))
	require.NoError(t, s.UpdateRoundDeadline(ctx, item.ID, time.Now().Add(time.Minute)))
	return item
}

func bidder(name string) models.User {
	return models.User{ID: uuid.New(), Username: name}
}

func TestPlaceBidLadder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	clock := clockwork.NewFakeClock()
	g := NewGateway(s, WithClock(clock))
	item := liveItem(t, s, 10, 1)

	x, y := bidder("x"), bidder("y")

	first, err := g.PlaceBid(ctx, item.ID, x, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(11)), "got %s", first.Amount)
	assert.Equal(t, x.ID, first.BidderID)
	assert.Equal(t, "x", first.BidderUsername)
	assert.True(t, clock.Now().UTC().Equal(first.PlacedAt))

	// The proposed price is ignored under the fixed increment policy.
	second, err := g.PlaceBid(ctx, item.ID, y, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, second.Amount.Equal(decimal.NewFromInt(12)), "got %s", second.Amount)

	highest, err := s.HighestBid(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, y.ID, highest.BidderID)
}

func TestPlaceBidRejectsMissingAndNotLive(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	g := NewGateway(s)

	_, err := g.PlaceBid(ctx, uuid.New(), bidder("x"), decimal.Zero)
	assert.ErrorIs(t, err, ErrItemNotFound)

	queued := &models.Item{
		Name:          "queued",
		StartingPrice: decimal.NewFromInt(1),
		BidIncrement:  decimal.NewFromInt(1),
	}
	require.NoError(t, s.CreateItem(ctx, queued))
	_, err = g.PlaceBid(ctx, queued.ID, bidder("x"), decimal.Zero)
	assert.ErrorIs(t, err, ErrItemNotActive)

	ended := liveItem(t, s, 1, 1)
	require.NoError(t, s.MarkEnded(ctx, ended.ID, nil))
	_, err = g.PlaceBid(ctx, ended.ID, bidder("x"), decimal.Zero)
	assert.ErrorIs(t, err, ErrItemNotActive)
}

type failingBids struct {
	*store.Memory
}

func (f failingBids) PersistBid(context.Context, *models.Bid) error {
	return errors.New("disk full")
}

func (f failingBids) InItemTx(ctx context.Context, itemID uuid.UUID, fn func(tx store.Store) error) error {
	return f.Memory.InItemTx(ctx, itemID, func(store.Store) error { return fn(f) })
}

func TestPlaceBidPersistenceError(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	item := liveItem(t, mem, 10, 1)
	g := NewGateway(failingBids{mem})

	_, err := g.PlaceBid(ctx, item.ID, bidder("x"), decimal.Zero)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "persist bid", perr.Op)

	highest, err := mem.HighestBid(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, highest)
}

func TestPlaceBidConcurrentBidsFormContiguousLadder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	g := NewGateway(s)
	item := liveItem(t, s, 10, 1)

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		amounts []decimal.Decimal
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bid, err := g.PlaceBid(ctx, item.ID, bidder("racer"), decimal.Zero)
			if err != nil {
				return
			}
			mu.Lock()
			amounts = append(amounts, bid.Amount)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.NotEmpty(t, amounts)
	require.LessOrEqual(t, len(amounts), n)
	sort.Slice(amounts, func(i, j int) bool { return amounts[i].LessThan(amounts[j]) })
	for i, a := range amounts {
		want := decimal.NewFromInt(int64(11 + i))
		assert.True(t, a.Equal(want), "bid %d: got %s want %s", i, a, want)
	}
}

func TestPlaceBidLadderProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		s := store.NewMemory()
		g := NewGateway(s)

		start := rapid.Int64Range(0, 10_000).Draw(rt, "start")
		inc := rapid.Int64Range(1, 500).Draw(rt, "inc")
		cents := rapid.Bool().Draw(rt, "cents")
		bids := rapid.IntRange(1, 30).Draw(rt, "bids")

		startPrice := decimal.NewFromInt(start)
		increment := decimal.NewFromInt(inc)
		if cents {
			increment = increment.Shift(-2)
		}
		item := &models.Item{Name: "p", StartingPrice: startPrice, BidIncrement: increment}
		if err := s.CreateItem(ctx, item); err != nil {
			rt.Fatalf("create: %v", err)
		}
		if err := s.UpdateRoundDeadline(ctx, item.ID, time.Now().Add(time.Minute)); err != nil {
			rt.Fatalf("deadline: %v", err)
		}

		prev := startPrice
		for i := 0; i < bids; i++ {
			proposed := decimal.NewFromInt(rapid.Int64Range(0, 100_000).Draw(rt, "proposed"))
			bid, err := g.PlaceBid(ctx, item.ID, models.User{ID: uuid.New()}, proposed)
			if err != nil {
				rt.Fatalf("bid %d: %v", i, err)
			}
			if !bid.Amount.Equal(prev.Add(increment)) {
				rt.Fatalf("bid %d: got %s want %s", i, bid.Amount, prev.Add(increment))
			}
			prev = bid.Amount
		}
	})
}

func TestAtLeastMinimumPolicy(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	g := NewGateway(s, WithPolicy(AtLeastMinimum))
	item := liveItem(t, s, 10, 1)

	bid, err := g.PlaceBid(ctx, item.ID, bidder("x"), decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.True(t, bid.Amount.Equal(decimal.NewFromInt(20)))

	_, err = g.PlaceBid(ctx, item.ID, bidder("y"), decimal.NewFromInt(20))
	assert.ErrorIs(t, err, ErrBidTooLow)

	bid, err = g.PlaceBid(ctx, item.ID, bidder("y"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, bid.Amount.Equal(decimal.NewFromInt(21)))

	_, err = g.PlaceBid(ctx, item.ID, bidder("z"), decimal.RequireFromString("30.005"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPolicyByName(t *testing.T) {
	for _, name := range []string{"", PolicyFixedIncrement, PolicyAtLeastMinimum} {
		p, err := PolicyByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}
	_, err := PolicyByName("proxy")
	assert.Error(t, err)
}

func TestOpenAndCloseRound(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	g := NewGateway(s)

	item := &models.Item{Name: "a", StartingPrice: decimal.NewFromInt(10), BidIncrement: decimal.NewFromInt(1)}
	require.NoError(t, s.CreateItem(ctx, item))

	endsAt := time.Now().Add(15 * time.Second)
	opened, err := g.OpenRound(ctx, item.ID, endsAt)
	require.NoError(t, err)
	assert.True(t, opened.IsLive())

	winner := bidder("w")
	_, err = g.PlaceBid(ctx, item.ID, winner, decimal.Zero)
	require.NoError(t, err)

	ended, winning, err := g.CloseItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, ended.Active)
	require.NotNil(t, ended.WinnerID)
	assert.Equal(t, winner.ID, *ended.WinnerID)
	require.NotNil(t, winning)
	assert.True(t, winning.Amount.Equal(decimal.NewFromInt(11)))

	_, err = g.OpenRound(ctx, item.ID, endsAt)
	assert.ErrorIs(t, err, ErrItemNotActive)
}

func TestCloseItemWithoutBids(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	g := NewGateway(s)
	item := liveItem(t, s, 5, 1)

	ended, winning, err := g.CloseItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, winning)
	assert.Nil(t, ended.WinnerID)
	assert.False(t, ended.Active)

	_, _, err = g.CloseItem(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrItemNotFound)
}
