package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mcdev12/auctionhouse/go/internal/models"
)

const (
	PolicyFixedIncrement = "fixed_increment"
	PolicyAtLeastMinimum = "at_least_minimum"
)

// Policy decides the accepted amount given the minimum acceptable amount and the
// bidder's proposed price. A zero proposed price means "take the next increment".
type Policy func(minimum, proposed decimal.Decimal) (decimal.Decimal, error)

// FixedIncrement always accepts exactly the minimum and ignores the proposal.
func FixedIncrement(minimum, _ decimal.Decimal) (decimal.Decimal, error) {
	return minimum, nil
}

// AtLeastMinimum accepts any proposal at or above the minimum.
func AtLeastMinimum(minimum, proposed decimal.Decimal) (decimal.Decimal, error) {
	if proposed.IsZero() {
		return minimum, nil
	}
	if !models.HasPriceScale(proposed) {
		return decimal.Zero, ErrInvalidAmount
	}
	if proposed.LessThan(minimum) {
		return decimal.Zero, fmt.Errorf("%w: minimum is %s", ErrBidTooLow, minimum.String())
	}
	return proposed, nil
}

// PolicyByName maps a configured policy name to its implementation.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", PolicyFixedIncrement:
		return FixedIncrement, nil
	case PolicyAtLeastMinimum:
		return AtLeastMinimum, nil
	default:
		return nil, fmt.Errorf("unknown bid policy %q", name)
	}
}
