package round

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/auctionhouse/go/internal/auction/ledger"
	"github.com/mcdev12/auctionhouse/go/internal/metrics"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

var (
	ErrNoActiveAuction = errors.New("no active auction")
	ErrRoundClosing    = errors.New("round is closing")
	ErrStopped         = errors.New("scheduler stopped")
)

const mailboxSize = 64

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Ledger is what the scheduler needs from the bid ledger gateway.
type Ledger interface {
	PlaceBid(ctx context.Context, itemID uuid.UUID, bidder models.User, proposed decimal.Decimal) (*models.Bid, error)
	OpenRound(ctx context.Context, itemID uuid.UUID, endsAt time.Time) (*models.Item, error)
	ExtendRound(ctx context.Context, itemID uuid.UUID, endsAt time.Time) error
	CloseItem(ctx context.Context, itemID uuid.UUID) (*models.Item, *models.Bid, error)
}

type State int

const (
	StateIdle State = iota
	StateLive
	StateEnding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLive:
		return "live"
	case StateEnding:
		return "ending"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only view of the round, safe to read from any goroutine.
type Snapshot struct {
	State      State
	Item       *models.Item
	Deadline   time.Time
	Generation uint64
}

type Config struct {
	RoundDuration time.Duration
	// RetryInterval is how long to wait before retrying a round that could not be
	// opened or closed because the store failed.
	RetryInterval time.Duration
	Clock         Clock
	Notifier      Notifier
	Metrics       metrics.Collector
}

// Scheduler owns the single live round and the FIFO backlog of queued items. All
// round state is confined to the goroutine running Run; other goroutines talk to
// it through the mailbox.
type Scheduler struct {
	ledger        Ledger
	notifier      Notifiers
	metrics       metrics.Collector
	clock         Clock
	roundDuration time.Duration
	retryInterval time.Duration
	instanceID    string

	mailbox chan func()
	done    chan struct{}
	running atomic.Bool

	snapshot atomic.Pointer[Snapshot]

	// owned by the Run goroutine
	runCtx     context.Context
	state      State
	current    *models.Item
	deadline   time.Time
	generation uint64
	backlog    []uuid.UUID
	known      map[uuid.UUID]struct{}
	timer      *armedTimer
}

func NewScheduler(l Ledger, cfg Config) *Scheduler {
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = 15 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoOpCollector{}
	}

	s := &Scheduler{
		ledger:        l,
		metrics:       cfg.Metrics,
		clock:         cfg.Clock,
		roundDuration: cfg.RoundDuration,
		retryInterval: cfg.RetryInterval,
		instanceID:    uuid.New().String()[:8],
		mailbox:       make(chan func(), mailboxSize),
		done:          make(chan struct{}),
		known:         make(map[uuid.UUID]struct{}),
	}
	if cfg.Notifier != nil {
		s.notifier = Notifiers{cfg.Notifier}
	}
	s.snapshot.Store(&Snapshot{State: StateIdle})
	return s
}

// AddNotifier registers another listener for round transitions. Call before Run.
func (s *Scheduler) AddNotifier(n Notifier) {
	s.notifier = append(s.notifier, n)
}

// Run processes round transitions until ctx is cancelled. An interrupted round is
// not closed; its item stays active in the store.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scheduler already running")
	}
	s.runCtx = ctx
	defer close(s.done)

	log.Info().
		Str("instance", s.instanceID).
		Dur("round_duration", s.roundDuration).
		Msg("round scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.disarm()
			log.Info().
				Str("instance", s.instanceID).
				Str("state", s.state.String()).
				Msg("round scheduler stopped")
			return nil
		case fn := <-s.mailbox:
			fn()
		}
	}
}

// exec runs fn on the scheduler goroutine and waits for its result. ctx only bounds
// the wait for a mailbox slot; once fn is queued its outcome is always reported.
func (s *Scheduler) exec(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case s.mailbox <- func() { errCh <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}

	select {
	case err := <-errCh:
		return err
	case <-s.done:
		// Run may have picked fn up just before stopping.
		select {
		case err := <-errCh:
			return err
		default:
			return ErrStopped
		}
	}
}

// AddItem appends an item to the backlog and starts it right away when no round is
// live. Items already queued or live are ignored.
func (s *Scheduler) AddItem(ctx context.Context, itemID uuid.UUID) error {
	return s.exec(ctx, func() error {
		if _, ok := s.known[itemID]; ok {
			return nil
		}
		s.known[itemID] = struct{}{}
		s.backlog = append(s.backlog, itemID)

		log.Debug().
			Str("item_id", itemID.String()).
			Int("backlog", len(s.backlog)).
			Msg("item queued")

		if s.state == StateIdle {
			s.startNext()
		}
		return nil
	})
}

// Bid places a bid on the live item. On success the round deadline is pushed to a
// full round duration from now.
func (s *Scheduler) Bid(ctx context.Context, bidder models.User, proposed decimal.Decimal) (*models.Bid, error) {
	var accepted *models.Bid
	err := s.exec(ctx, func() error {
		bid, err := s.placeBid(ctx, bidder, proposed)
		accepted = bid
		return err
	})
	s.metrics.RecordBid(bidResult(err))
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// Pending returns the queued item ids in start order.
func (s *Scheduler) Pending(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.exec(ctx, func() error {
		ids = append([]uuid.UUID(nil), s.backlog...)
		return nil
	})
	return ids, err
}

// Current returns the item shown to clients: the live item, or the one being closed.
// It never blocks.
func (s *Scheduler) Current() *models.Item {
	item := s.snapshot.Load().Item
	if item == nil {
		return nil
	}
	c := item.Clone()
	return &c
}

func (s *Scheduler) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Overrun is how far the current round is past its deadline, zero when on time.
func (s *Scheduler) Overrun() time.Duration {
	snap := s.snapshot.Load()
	if snap.State == StateIdle || snap.Item == nil {
		return 0
	}
	if over := s.clock.Now().Sub(snap.Deadline); over > 0 {
		return over
	}
	return 0
}

func (s *Scheduler) RoundDuration() time.Duration {
	return s.roundDuration
}

func (s *Scheduler) placeBid(ctx context.Context, bidder models.User, proposed decimal.Decimal) (*models.Bid, error) {
	switch {
	case s.state == StateEnding:
		return nil, ErrRoundClosing
	case s.state != StateLive || s.current == nil:
		return nil, ErrNoActiveAuction
	}

	bid, err := s.ledger.PlaceBid(ctx, s.current.ID, bidder, proposed)
	if err != nil {
		return nil, err
	}

	s.deadline = s.clock.Now().Add(s.roundDuration)
	deadline := s.deadline
	s.current.RoundEndsAt = &deadline
	s.arm(s.roundDuration)
	s.publish()

	if err := s.ledger.ExtendRound(ctx, s.current.ID, deadline); err != nil {
		log.Warn().Err(err).
			Str("item_id", s.current.ID.String()).
			Time("deadline", deadline).
			Msg("failed to persist extended deadline")
	}

	log.Info().
		Str("item_id", s.current.ID.String()).
		Str("bidder_id", bidder.ID.String()).
		Str("amount", bid.Amount.String()).
		Uint64("generation", s.generation).
		Time("deadline", deadline).
		Msg("bid accepted, round deadline reset")

	s.notifier.BidAccepted(s.current.Clone(), *bid)
	return bid, nil
}

// startNext opens the next queued item, skipping items that vanished or already
// ended. Stays idle when the backlog is empty.
func (s *Scheduler) startNext() {
	for len(s.backlog) > 0 {
		itemID := s.backlog[0]
		s.backlog = s.backlog[1:]

		endsAt := s.clock.Now().Add(s.roundDuration)
		item, err := s.ledger.OpenRound(s.runCtx, itemID, endsAt)
		if err != nil {
			if errors.Is(err, ledger.ErrItemNotFound) || errors.Is(err, ledger.ErrItemNotActive) {
				delete(s.known, itemID)
				log.Warn().Err(err).Str("item_id", itemID.String()).Msg("skipping queued item")
				continue
			}
			s.backlog = append([]uuid.UUID{itemID}, s.backlog...)
			log.Error().Err(err).
				Str("item_id", itemID.String()).
				Dur("retry_in", s.retryInterval).
				Msg("failed to open round")
			s.setIdle()
			s.arm(s.retryInterval)
			return
		}

		s.state = StateLive
		s.current = item
		s.deadline = endsAt
		s.arm(s.roundDuration)
		s.publish()
		s.metrics.RecordRoundStarted()

		log.Info().
			Str("item_id", item.ID.String()).
			Uint64("generation", s.generation).
			Time("deadline", endsAt).
			Int("backlog", len(s.backlog)).
			Msg("round started")

		s.notifier.RoundStarted(item.Clone())
		return
	}
	s.setIdle()
}

// endRound closes the live item and moves straight on to the next one.
func (s *Scheduler) endRound() {
	s.state = StateEnding
	s.publish()
	itemID := s.current.ID

	ended, winning, err := s.ledger.CloseItem(s.runCtx, itemID)
	if err != nil {
		if errors.Is(err, ledger.ErrItemNotFound) {
			log.Warn().Str("item_id", itemID.String()).Msg("live item disappeared, abandoning round")
			delete(s.known, itemID)
			s.setIdle()
			s.startNext()
			return
		}
		overrun := s.clock.Now().Sub(s.deadline)
		s.metrics.RecordRoundOverrun(overrun)
		log.Error().Err(err).
			Str("item_id", itemID.String()).
			Dur("overrun", overrun).
			Dur("retry_in", s.retryInterval).
			Msg("failed to close round")
		s.arm(s.retryInterval)
		return
	}

	s.metrics.RecordRoundOverrun(0)
	s.metrics.RecordRoundEnded(winning != nil)
	delete(s.known, itemID)
	s.setIdle()

	ev := log.Info().
		Str("item_id", itemID.String()).
		Uint64("generation", s.generation)
	if winning != nil {
		ev = ev.Str("winner_id", winning.BidderID.String()).Str("amount", winning.Amount.String())
	}
	ev.Msg("round ended")

	s.notifier.RoundEnded(ended.Clone(), winning)
	s.startNext()
}

func (s *Scheduler) setIdle() {
	s.state = StateIdle
	s.current = nil
	s.deadline = time.Time{}
	s.publish()
}

func (s *Scheduler) publish() {
	snap := &Snapshot{
		State:      s.state,
		Deadline:   s.deadline,
		Generation: s.generation,
	}
	if s.current != nil {
		c := s.current.Clone()
		snap.Item = &c
	}
	s.snapshot.Store(snap)
}

func bidResult(err error) string {
	switch {
	case err == nil:
		return metrics.BidAccepted
	case errors.Is(err, ErrNoActiveAuction):
		return metrics.BidNoActiveAuction
	case errors.Is(err, ErrRoundClosing), errors.Is(err, ledger.ErrItemNotActive):
		return metrics.BidItemNotActive
	case errors.Is(err, ledger.ErrBidTooLow):
		return metrics.BidTooLow
	default:
		return metrics.BidError
	}
}
