package gateway

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctionhouse/go/internal/models"
)

type stubAuction struct {
	current *models.Item
}

func (s *stubAuction) Bid(context.Context, models.User, decimal.Decimal) (*models.Bid, error) {
	return nil, nil
}

func (s *stubAuction) Current() *models.Item {
	return s.current
}

func testHub(bufferSize int) *Hub {
	cfg := DefaultConnectionConfig()
	cfg.SendBufferSize = bufferSize
	return NewHub(cfg, &stubAuction{}, nil, nil, nil)
}

// fakeConnection registers a connection without a websocket behind it.
func fakeConnection(h *Hub, scope uuid.UUID) *Connection {
	c := h.newConnection(nil)
	h.registerConnection(c, scope)
	return c
}

func drain(c *Connection) [][]byte {
	var out [][]byte
	for {
		select {
		case f, ok := <-c.Send:
			if !ok {
				return out
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestBroadcastDropsSlowSubscriberOnly(t *testing.T) {
	h := testHub(1)
	slow := fakeConnection(h, uuid.Nil)
	fast := fakeConnection(h, uuid.Nil)

	// Fill the slow subscriber's buffer.
	require.True(t, slow.enqueue([]byte("backlog")))

	h.handleBroadcast(broadcast{frames: [][]byte{[]byte("one")}})

	assert.Equal(t, [][]byte{[]byte("one")}, drain(fast))
	assert.Equal(t, 1, h.GetConnectionStats()["total_connections"])
	assert.False(t, slow.enqueue([]byte("after")), "dropped connection must refuse frames")

	h.handleBroadcast(broadcast{frames: [][]byte{[]byte("two")}})
	assert.Equal(t, [][]byte{[]byte("two")}, drain(fast))
}

func TestBroadcastRespectsItemScope(t *testing.T) {
	h := testHub(8)
	itemA, itemB := uuid.New(), uuid.New()
	all := fakeConnection(h, uuid.Nil)
	onlyA := fakeConnection(h, itemA)
	onlyB := fakeConnection(h, itemB)

	h.handleBroadcast(broadcast{itemID: itemA, frames: [][]byte{[]byte("a")}})

	assert.Len(t, drain(all), 1)
	assert.Len(t, drain(onlyA), 1)
	assert.Empty(t, drain(onlyB))

	require.True(t, h.subscribe(onlyB, uuid.Nil))
	h.handleBroadcast(broadcast{itemID: itemA, frames: [][]byte{[]byte("a2")}})
	assert.Len(t, drain(onlyB), 1)
}

func TestBroadcastKeepsFramePairsTogether(t *testing.T) {
	h := testHub(8)
	c := fakeConnection(h, uuid.Nil)

	h.handleBroadcast(broadcast{frames: [][]byte{[]byte("price"), []byte("timer")}})
	assert.Equal(t, [][]byte{[]byte("price"), []byte("timer")}, drain(c))
}

func TestDisconnectDuringBroadcast(t *testing.T) {
	h := testHub(4096)
	var conns []*Connection
	for i := 0; i < 50; i++ {
		conns = append(conns, fakeConnection(h, uuid.Nil))
	}
	survivor := fakeConnection(h, uuid.Nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			h.handleBroadcast(broadcast{frames: [][]byte{[]byte("tick")}})
		}
	}()
	go func() {
		defer wg.Done()
		for _, c := range conns {
			h.unregisterConnection(c)
		}
	}()
	wg.Wait()

	assert.Len(t, drain(survivor), 100)
	assert.Equal(t, 1, h.GetConnectionStats()["total_connections"])
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := testHub(1)
	c := fakeConnection(h, uuid.Nil)
	h.unregisterConnection(c)
	h.unregisterConnection(c)
	assert.False(t, h.subscribe(c, uuid.New()))
}
