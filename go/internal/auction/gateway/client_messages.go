package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/auctionhouse/go/internal/auction/round"
	"github.com/mcdev12/auctionhouse/go/internal/identity"
)

// handleClientMessage processes messages received from the client. Failures are
// reported to this connection only.
func (c *Connection) handleClientMessage(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.enqueue(errorFrame(CodeBadRequest, "malformed message"))
		return
	}

	switch msg.Kind {
	case KindBid:
		c.handleBid(msg)
	case KindCurrentItem, KindGetCurrentItem:
		c.handleCurrentItem()
	case KindSubscribe:
		c.handleSubscribe(msg)
	default:
		c.enqueue(errorFrame(CodeBadRequest, "unknown message kind"))
	}
}

func (c *Connection) handleBid(msg ClientMessage) {
	if !c.limiter.Allow() {
		c.enqueue(errorFrame(CodeRateLimited, "too many bids"))
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.Hub.config.BidTimeout)
	defer cancel()

	bidder, err := c.Hub.identity.Resolve(ctx, msg.AuthToken)
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidToken) {
			log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to resolve token")
		}
		c.reportError(err)
		return
	}

	if c.Hub.auction.Current() == nil {
		c.reportError(round.ErrNoActiveAuction)
		return
	}

	proposed := decimal.Zero
	if msg.Price != nil {
		proposed = *msg.Price
	}

	// Success is announced to everyone by the price_update broadcast.
	if _, err := c.Hub.auction.Bid(ctx, *bidder, proposed); err != nil {
		code, _ := errorCode(err)
		if code == CodeInternal {
			log.Error().Err(err).
				Str("connection_id", c.ID).
				Str("bidder_id", bidder.ID.String()).
				Msg("bid failed")
		}
		c.reportError(err)
	}
}

func (c *Connection) handleCurrentItem() {
	frame, err := currentItemFrame(c.Hub.auction.Current())
	if err != nil {
		log.Error().Err(err).Msg("failed to encode current item")
		c.enqueue(errorFrame(CodeInternal, "failed to process request"))
		return
	}
	c.enqueue(frame)
}

func (c *Connection) handleSubscribe(msg ClientMessage) {
	scope := uuid.Nil
	if msg.ItemID != "" {
		id, err := uuid.Parse(msg.ItemID)
		if err != nil {
			c.enqueue(errorFrame(CodeBadRequest, "invalid itemId"))
			return
		}
		scope = id
	}
	if c.Hub.subscribe(c, scope) {
		log.Debug().
			Str("connection_id", c.ID).
			Str("item_id", scope.String()).
			Msg("subscription updated")
	}
	c.handleCurrentItem()
}

func (c *Connection) reportError(err error) {
	code, message := errorCode(err)
	c.enqueue(errorFrame(code, message))
}
