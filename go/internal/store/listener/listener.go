package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Channel is the NOTIFY channel the auction_items insert trigger publishes on.
const Channel = "auction_items_queued"

type Config struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed items
	PingInterval     time.Duration
	Clock            clockwork.Clock
}

func DefaultConfig() Config {
	return Config{
		NotifyChannel:    Channel,
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
	}
}

// Queue accepts item ids for auction. Repeated ids must be ignored.
type Queue interface {
	AddItem(ctx context.Context, itemID uuid.UUID) error
}

// Requeuer queues every active item; used by the fallback poll.
type Requeuer interface {
	Requeue(ctx context.Context) (int, error)
}

// Listener feeds items inserted by other processes into the auction queue.
type Listener struct {
	notify   <-chan *pq.Notification
	ping     func() error
	close    func() error
	queue    Queue
	requeuer Requeuer
	cfg      Config
	clock    clockwork.Clock
}

func New(queue Queue, requeuer Requeuer, cfg Config) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for queued items")

	return newListener(l.Notify, l.Ping, l.Close, queue, requeuer, cfg), nil
}

func newListener(notify <-chan *pq.Notification, ping, closeFn func() error, queue Queue, requeuer Requeuer, cfg Config) *Listener {
	defaults := DefaultConfig()
	if cfg.FallbackInterval <= 0 {
		cfg.FallbackInterval = defaults.FallbackInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Listener{
		notify:   notify,
		ping:     ping,
		close:    closeFn,
		queue:    queue,
		requeuer: requeuer,
		cfg:      cfg,
		clock:    clock,
	}
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	pingTicker := l.clock.NewTicker(l.cfg.PingInterval)
	fallbackTicker := l.clock.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-l.notify:
			if note == nil {
				// Connection was re-established; notifications may have been missed.
				l.poll(ctx)
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.Chan():
			l.poll(ctx)
		case <-pingTicker.Chan():
			if err := l.ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

// handleNotification queues the item whose id is the notification payload.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid item ID in notification: %w", err)
	}
	if err := l.queue.AddItem(ctx, id); err != nil {
		return fmt.Errorf("failed to queue item %s: %w", id, err)
	}
	log.Debug().Str("item_id", id.String()).Msg("queued item from notification")
	return nil
}

func (l *Listener) poll(ctx context.Context) {
	n, err := l.requeuer.Requeue(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to requeue active items")
		return
	}
	log.Debug().Int("active_items", n).Msg("fallback poll done")
}
