package events

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// Publisher delivers one event to the event stream.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type RelayConfig struct {
	BufferSize     int
	MaxRetries     int
	RetryDelay     time.Duration
	PublishTimeout time.Duration
	Clock          clockwork.Clock
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BufferSize:     1024,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		PublishTimeout: 5 * time.Second,
	}
}

// Relay turns round notifications into domain events and publishes them on its
// own goroutine. Notification methods never block: when the buffer is full the
// event is dropped and logged.
type Relay struct {
	publisher Publisher
	config    RelayConfig
	clock     clockwork.Clock
	queue     chan Event
}

func NewRelay(p Publisher, cfg RelayConfig) *Relay {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultRelayConfig().BufferSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultRelayConfig().PublishTimeout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Relay{
		publisher: p,
		config:    cfg,
		clock:     clock,
		queue:     make(chan Event, cfg.BufferSize),
	}
}

// Run publishes queued events until ctx is cancelled. Events still queued at
// shutdown are discarded.
func (r *Relay) Run(ctx context.Context) {
	log.Info().Int("buffer", r.config.BufferSize).Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("pending", len(r.queue)).Msg("event relay stopped")
			return
		case event := <-r.queue:
			r.publish(ctx, event)
		}
	}
}

func (r *Relay) publish(ctx context.Context, event Event) {
	for attempt := 0; ; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, r.config.PublishTimeout)
		err := r.publisher.Publish(pctx, event)
		cancel()
		if err == nil {
			return
		}
		if attempt >= r.config.MaxRetries {
			log.Error().Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.Type).
				Int("attempts", attempt+1).
				Msg("giving up on event")
			return
		}
		log.Warn().Err(err).
			Str("event_id", event.ID.String()).
			Int("attempt", attempt+1).
			Msg("failed to publish event, retrying")
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.config.RetryDelay):
		}
	}
}

func (r *Relay) enqueue(event Event, err error) {
	if err != nil {
		log.Error().Err(err).Msg("failed to build event")
		return
	}
	select {
	case r.queue <- event:
	default:
		log.Warn().
			Str("event_type", event.Type).
			Str("item_id", event.ItemID.String()).
			Msg("event relay buffer full, dropping event")
	}
}

func (r *Relay) RoundStarted(item models.Item) {
	r.enqueue(roundStarted(item, r.clock.Now()))
}

func (r *Relay) BidAccepted(item models.Item, bid models.Bid) {
	r.enqueue(bidPlaced(item, bid, r.clock.Now()))
}

func (r *Relay) RoundEnded(item models.Item, winning *models.Bid) {
	r.enqueue(roundEnded(item, winning, r.clock.Now()))
}
