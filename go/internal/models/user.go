package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system. Credentials never leave the identity package.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}
