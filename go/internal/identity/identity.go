package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/auctionhouse/go/internal/models"
	"github.com/mcdev12/auctionhouse/go/internal/store/db"
)

var ErrInvalidToken = errors.New("invalid token")

// Resolver turns an opaque bearer token into a user.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// Querier defines what the repository needs from the database layer
type Querier interface {
	GetUserByToken(ctx context.Context, token string) (db.User, error)
}

// Repository resolves tokens against the sessions table.
type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

func (r *Repository) Resolve(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := r.queries.GetUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}
	return &models.User{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}, nil
}

// StaticResolver serves a fixed token table, used with the memory store.
type StaticResolver map[string]models.User

func (s StaticResolver) Resolve(_ context.Context, token string) (*models.User, error) {
	user, ok := s[strings.TrimSpace(token)]
	if !ok || token == "" {
		return nil, ErrInvalidToken
	}
	return &user, nil
}
