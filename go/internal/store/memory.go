package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// Memory is an in-process Store used for local runs and tests.
type Memory struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*models.Item
	bids  map[uuid.UUID][]models.Bid

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		items: make(map[uuid.UUID]*models.Item),
		bids:  make(map[uuid.UUID][]models.Bid),
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (m *Memory) LoadItem(_ context.Context, id uuid.UUID) (*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := item.Clone()
	return &clone, nil
}

func (m *Memory) HighestBid(_ context.Context, itemID uuid.UUID) (*models.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bids := m.bids[itemID]
	if len(bids) == 0 {
		return nil, nil
	}
	highest := bids[0]
	for _, b := range bids[1:] {
		if b.Amount.GreaterThanOrEqual(highest.Amount) {
			highest = b
		}
	}
	return &highest, nil
}

func (m *Memory) RecentBids(_ context.Context, itemID uuid.UUID, limit int) ([]models.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bids := m.bids[itemID]
	out := make([]models.Bid, 0, min(limit, len(bids)))
	for i := len(bids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, bids[i])
	}
	return out, nil
}

func (m *Memory) PersistBid(_ context.Context, bid *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[bid.ItemID]; !ok {
		return ErrNotFound
	}
	for _, b := range m.bids[bid.ItemID] {
		if b.Amount.Equal(bid.Amount) {
			return ErrDuplicateBid
		}
	}
	if bid.ID == uuid.Nil {
		bid.ID = uuid.New()
	}
	m.bids[bid.ItemID] = append(m.bids[bid.ItemID], *bid)
	return nil
}

func (m *Memory) UpdateRoundDeadline(_ context.Context, itemID uuid.UUID, endsAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok || !item.Active {
		return ErrNotFound
	}
	item.RoundEndsAt = &endsAt
	return nil
}

func (m *Memory) ClearRoundDeadlines(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, item := range m.items {
		if item.Active && item.RoundEndsAt != nil {
			item.RoundEndsAt = nil
			n++
		}
	}
	return n, nil
}

func (m *Memory) MarkEnded(_ context.Context, itemID uuid.UUID, winnerID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return ErrNotFound
	}
	item.Active = false
	if winnerID != nil {
		w := *winnerID
		item.WinnerID = &w
	}
	return nil
}

func (m *Memory) CreateItem(_ context.Context, item *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.Active = true
	clone := item.Clone()
	m.items[item.ID] = &clone
	return nil
}

func (m *Memory) ListActiveItems(_ context.Context) ([]models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Item
	for _, item := range m.items {
		if item.Active {
			out = append(out, item.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) InItemTx(ctx context.Context, itemID uuid.UUID, fn func(tx Store) error) error {
	lock := m.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(memoryTx{m})
}

func (m *Memory) itemLock(itemID uuid.UUID) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	lock, ok := m.locks[itemID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[itemID] = lock
	}
	return lock
}

// memoryTx is the Store handed to InItemTx callbacks; the item lock is already held.
type memoryTx struct {
	*Memory
}

func (t memoryTx) InItemTx(_ context.Context, _ uuid.UUID, fn func(tx Store) error) error {
	return fn(t)
}
