package items

import "github.com/shopspring/decimal"

// CreateItemRequest represents the data needed to list a new item
type CreateItemRequest struct {
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description"`
	ImageRef      string          `json:"imageRef"`
	StartingPrice decimal.Decimal `json:"startingPrice" validate:"gte=0"`
	BidIncrement  decimal.Decimal `json:"bidIncrement" validate:"gt=0"`
}
