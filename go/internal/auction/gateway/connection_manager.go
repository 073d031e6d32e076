package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/mcdev12/auctionhouse/go/internal/identity"
	"github.com/mcdev12/auctionhouse/go/internal/metrics"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// Auction is what the hub needs from the round scheduler.
type Auction interface {
	Bid(ctx context.Context, bidder models.User, proposed decimal.Decimal) (*models.Bid, error)
	Current() *models.Item
}

// BidHistory serves the recent bids sent to new subscribers.
type BidHistory interface {
	RecentBids(ctx context.Context, itemID uuid.UUID, limit int) ([]models.Bid, error)
}

// Hub manages websocket subscribers and fans auction events out to them.
type Hub struct {
	// Subscribers; the value is the item scope, uuid.Nil for all items
	connections map[*Connection]uuid.UUID
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	config   ConnectionConfig
	auction  Auction
	history  BidHistory
	identity identity.Resolver
	metrics  metrics.Collector

	broadcastCh chan broadcast
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub

	ConnectedAt time.Time

	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc

	closeMu sync.Mutex
	closed  bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
	SendBufferSize   int
	BidTimeout       time.Duration
	BidsPerSecond    float64
	CurrentBidsLimit int
	CheckOrigin      func(r *http.Request) bool
}

// broadcast is one fan-out unit. Frames are delivered to each subscriber in order.
type broadcast struct {
	itemID uuid.UUID
	frames [][]byte
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   1024, // 1KB max message size
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		SendBufferSize:   256,
		BidTimeout:       5 * time.Second,
		BidsPerSecond:    5,
		CurrentBidsLimit: 20,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewHub creates a new subscriber hub
func NewHub(config ConnectionConfig, auction Auction, history BidHistory, resolver identity.Resolver, collector metrics.Collector) *Hub {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Hub{
		connections: make(map[*Connection]uuid.UUID),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		auction:     auction,
		history:     history,
		identity:    resolver,
		metrics:     collector,
		broadcastCh: make(chan broadcast, 1000),
	}
}

// Start begins processing broadcast messages
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("subscriber hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("subscriber hub shutting down")
			return
		case message := <-h.broadcastCh:
			h.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and sends the
// current round state.
func (h *Hub) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := h.newConnection(conn)
	h.registerConnection(connection, uuid.Nil)
	h.sendInitialState(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

func (h *Hub) newConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	limit := rate.Limit(h.config.BidsPerSecond)
	burst := int(h.config.BidsPerSecond)
	if h.config.BidsPerSecond <= 0 {
		limit, burst = rate.Inf, 1
	}
	if burst < 1 {
		burst = 1
	}
	bufferSize := h.config.SendBufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, bufferSize),
		Hub:         h,
		ConnectedAt: time.Now(),
		limiter:     rate.NewLimiter(limit, burst),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// registerConnection adds a connection to the hub
func (h *Hub) registerConnection(conn *Connection, scope uuid.UUID) {
	h.mu.Lock()
	h.connections[conn] = scope
	total := len(h.connections)
	h.mu.Unlock()

	h.metrics.RecordSubscribers(total)
	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", total).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the hub. Safe to call more than once.
func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	_, exists := h.connections[conn]
	delete(h.connections, conn)
	total := len(h.connections)
	h.mu.Unlock()

	if !exists {
		return
	}
	conn.close()
	h.metrics.RecordSubscribers(total)
	log.Info().
		Str("connection_id", conn.ID).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
}

// subscribe scopes a connection to one item's events; uuid.Nil means all items.
func (h *Hub) subscribe(conn *Connection, itemID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn]; !ok {
		return false
	}
	h.connections[conn] = itemID
	return true
}

// Broadcast queues frames for every subscriber of itemID. It never blocks: when
// the queue is full the frames are delivered on the caller's goroutine instead.
func (h *Hub) Broadcast(itemID uuid.UUID, frames ...[]byte) {
	msg := broadcast{itemID: itemID, frames: frames}
	select {
	case h.broadcastCh <- msg:
	default:
		log.Warn().Str("item_id", itemID.String()).Msg("broadcast channel full, delivering inline")
		h.handleBroadcast(msg)
	}
}

// handleBroadcast delivers a broadcast to a snapshot of the subscribers. A
// subscriber whose buffer is full is dropped without affecting the others.
func (h *Hub) handleBroadcast(message broadcast) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.connections))
	for conn, scope := range h.connections {
		if scope == uuid.Nil || message.itemID == uuid.Nil || scope == message.itemID {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		for _, frame := range message.frames {
			if !conn.enqueue(frame) {
				log.Warn().
					Str("connection_id", conn.ID).
					Msg("connection send buffer full, closing connection")
				h.metrics.RecordBroadcastDropped()
				h.unregisterConnection(conn)
				if conn.Conn != nil {
					conn.Conn.Close()
				}
				break
			}
		}
	}

	log.Debug().
		Str("item_id", message.itemID.String()).
		Int("frames", len(message.frames)).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

func (h *Hub) sendInitialState(conn *Connection) {
	current := h.auction.Current()
	frame, err := currentItemFrame(current)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode current item")
		return
	}
	conn.enqueue(frame)
	if current == nil || h.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(conn.ctx, h.config.BidTimeout)
	defer cancel()
	bids, err := h.history.RecentBids(ctx, current.ID, h.config.CurrentBidsLimit)
	if err != nil {
		log.Error().Err(err).Str("item_id", current.ID.String()).Msg("failed to load recent bids")
		return
	}
	frame, err = currentBidsFrame(current.ID, bids)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode current bids")
		return
	}
	conn.enqueue(frame)
}

// GetConnectionStats returns statistics about active connections
func (h *Hub) GetConnectionStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	scoped := 0
	for _, scope := range h.connections {
		if scope != uuid.Nil {
			scoped++
		}
	}
	return map[string]interface{}{
		"total_connections":  len(h.connections),
		"scoped_connections": scoped,
	}
}

// RoundStarted broadcasts new_auction.
func (h *Hub) RoundStarted(item models.Item) {
	frame, err := newAuctionFrame(item)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode new_auction")
		return
	}
	h.Broadcast(item.ID, frame)
}

// BidAccepted broadcasts price_update followed by timer_update as one unit.
func (h *Hub) BidAccepted(item models.Item, bid models.Bid) {
	price, err := priceUpdateFrame(bid)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode price_update")
		return
	}
	if item.RoundEndsAt == nil {
		h.Broadcast(item.ID, price)
		return
	}
	timer, err := timerUpdateFrame(*item.RoundEndsAt)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode timer_update")
		return
	}
	h.Broadcast(item.ID, price, timer)
}

// RoundEnded broadcasts auction_end.
func (h *Hub) RoundEnded(item models.Item, _ *models.Bid) {
	frame, err := auctionEndFrame(item)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode auction_end")
		return
	}
	h.Broadcast(item.ID, frame)
}

// enqueue hands a frame to the write pump without blocking. It reports false when
// the buffer is full or the connection is closed.
func (c *Connection) enqueue(frame []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	close(c.Send)
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Hub.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
	}
}
