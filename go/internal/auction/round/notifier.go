package round

import (
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// Notifier receives round transitions from the scheduler goroutine. Implementations
// must not block; slow work belongs on their own goroutines.
type Notifier interface {
	RoundStarted(item models.Item)
	// BidAccepted carries the item with its pushed-forward deadline.
	BidAccepted(item models.Item, bid models.Bid)
	// RoundEnded carries the ended item and the winning bid, nil when unsold.
	RoundEnded(item models.Item, winning *models.Bid)
}

// Notifiers fans each notification out to every member in order.
type Notifiers []Notifier

func (n Notifiers) RoundStarted(item models.Item) {
	for _, x := range n {
		x.RoundStarted(item.Clone())
	}
}

func (n Notifiers) BidAccepted(item models.Item, bid models.Bid) {
	for _, x := range n {
		x.BidAccepted(item.Clone(), bid)
	}
}

func (n Notifiers) RoundEnded(item models.Item, winning *models.Bid) {
	for _, x := range n {
		x.RoundEnded(item.Clone(), winning)
	}
}
