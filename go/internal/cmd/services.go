package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/auction/events"
	"github.com/mcdev12/auctionhouse/go/internal/auction/gateway"
	"github.com/mcdev12/auctionhouse/go/internal/auction/health"
	"github.com/mcdev12/auctionhouse/go/internal/auction/ledger"
	"github.com/mcdev12/auctionhouse/go/internal/auction/round"
	"github.com/mcdev12/auctionhouse/go/internal/config"
	"github.com/mcdev12/auctionhouse/go/internal/dbconfig"
	"github.com/mcdev12/auctionhouse/go/internal/identity"
	"github.com/mcdev12/auctionhouse/go/internal/items"
	"github.com/mcdev12/auctionhouse/go/internal/metrics"
	"github.com/mcdev12/auctionhouse/go/internal/models"
	"github.com/mcdev12/auctionhouse/go/internal/store"
	storedb "github.com/mcdev12/auctionhouse/go/internal/store/db"
	"github.com/mcdev12/auctionhouse/go/internal/store/listener"
)

type Services struct {
	DB        *sql.DB
	Items     *items.App
	Scheduler *round.Scheduler
	Gateway   *gateway.Service
	Metrics   *metrics.Prometheus
	Health    *health.Checker

	// Optional, nil when not configured
	Publisher *events.JetStreamPublisher
	Relay     *events.Relay
	Listener  *listener.Listener
	Redis     *redis.Client
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Store → Ledger → Scheduler → Gateway/Relay
	svc := &Services{Metrics: metrics.NewPrometheus("auction")}

	var (
		st       store.Store
		resolver identity.Resolver
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		st = store.NewMemory()
		resolver = staticUsers(cfg.Store.Users)
	default:
		database, pg, err := setupDatabase(ctx, dbconfig.NewConfigFromEnv())
		if err != nil {
			return nil, err
		}
		svc.DB = database
		st = pg
		resolver = identity.NewRepository(storedb.New(database))
	}

	if cfg.Redis.Addr != "" {
		svc.Redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := svc.Redis.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, token cache will fall through")
		}
		resolver = identity.NewCachedResolver(resolver, svc.Redis, cfg.TokenTTL())
	}

	policy, err := ledger.PolicyByName(cfg.Auction.BidPolicy)
	if err != nil {
		return nil, err
	}
	clock := clockwork.NewRealClock()
	ledgerGateway := ledger.NewGateway(st, ledger.WithPolicy(policy), ledger.WithClock(clock))

	svc.Scheduler = round.NewScheduler(ledgerGateway, round.Config{
		RoundDuration: cfg.RoundDuration(),
		RetryInterval: cfg.EndRetryInterval(),
		Clock:         clock,
		Metrics:       svc.Metrics,
	})
	svc.Items = items.NewApp(st, svc.Scheduler)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.ConnectionConfig.BidsPerSecond = cfg.Auction.BidsPerSecond
	gatewayConfig.ConnectionConfig.CurrentBidsLimit = cfg.Auction.CurrentBidsLimit
	svc.Gateway = gateway.NewService(gatewayConfig, svc.Scheduler, ledgerGateway, svc.Items, resolver, svc.Metrics)
	svc.Scheduler.AddNotifier(svc.Gateway.Hub())

	if cfg.NATS.URL != "" {
		jsConfig := events.DefaultJetStreamConfig()
		jsConfig.URL = cfg.NATS.URL
		publisher, err := events.NewJetStreamPublisher(ctx, jsConfig)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("failed to set up event publisher: %w", err)
		}
		svc.Publisher = publisher
		svc.Relay = events.NewRelay(publisher, events.DefaultRelayConfig())
		svc.Scheduler.AddNotifier(svc.Relay)
	}

	if svc.DB != nil {
		listenerConfig := listener.DefaultConfig()
		listenerConfig.DatabaseURL = dbconfig.NewConfigFromEnv().DSN()
		l, err := listener.New(svc.Scheduler, svc.Items, listenerConfig)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("failed to start item listener: %w", err)
		}
		svc.Listener = l
	}

	svc.Health = newHealthChecker(svc)
	return svc, nil
}

// newHealthChecker only passes configured dependencies so that a nil pointer
// never ends up inside a non-nil interface.
func newHealthChecker(svc *Services) *health.Checker {
	var (
		db   health.Pinger
		nats health.Connection
	)
	if svc.DB != nil {
		db = svc.DB
	}
	if svc.Publisher != nil {
		nats = svc.Publisher
	}
	return health.NewChecker(db, nats, svc.Scheduler)
}

// staticUsers builds the token table for the memory store. Ids are fresh on
// every start.
func staticUsers(users []config.StaticUser) identity.StaticResolver {
	resolver := make(identity.StaticResolver, len(users))
	for _, u := range users {
		resolver[u.Token] = models.User{ID: uuid.New(), Username: u.Username}
	}
	return resolver
}

// Start runs the background loops and re-queues items left active by a
// previous run.
func (s *Services) Start(ctx context.Context) error {
	go func() {
		if err := s.Scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("round scheduler failed")
		}
	}()
	go func() {
		if err := s.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()
	if s.Relay != nil {
		go s.Relay.Run(ctx)
	}

	n, err := s.Items.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to requeue active items: %w", err)
	}
	log.Info().Int("items", n).Msg("requeued active items")

	if s.Listener != nil {
		go func() {
			if err := s.Listener.Start(ctx); err != nil {
				log.Error().Err(err).Msg("item listener stopped with error")
			}
		}()
	}
	return nil
}

func (s *Services) Close() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
