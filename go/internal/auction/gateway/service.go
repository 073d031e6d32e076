package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/identity"
	"github.com/mcdev12/auctionhouse/go/internal/metrics"
)

// Service is the auction gateway: websocket subscribers plus the item REST surface
type Service struct {
	hub         *Hub
	wsHandler   *WebSocketHandler
	itemHandler *ItemHandler
}

// Config holds configuration for the auction gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the auction gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new auction gateway service
func NewService(config Config, auction Auction, history BidHistory, itemSvc ItemService, resolver identity.Resolver, collector metrics.Collector) *Service {
	hub := NewHub(config.ConnectionConfig, auction, history, resolver, collector)
	return &Service{
		hub:         hub,
		wsHandler:   NewWebSocketHandler(hub),
		itemHandler: NewItemHandler(itemSvc, auction, resolver),
	}
}

// Hub exposes the subscriber hub so it can be registered as a round notifier.
func (s *Service) Hub() *Hub {
	return s.hub
}

// Start runs the broadcast loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting auction gateway service")
	s.hub.Start(ctx)
	log.Info().Msg("auction gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and item HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.itemHandler.RegisterRoutes(mux)
	log.Info().Msg("auction gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.hub.GetConnectionStats()
	stats["service"] = "auction_gateway"
	return stats
}
