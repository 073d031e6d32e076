package identity

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctionhouse/go/internal/models"
	"github.com/mcdev12/auctionhouse/go/internal/store/db"
)

type fakeQuerier struct {
	users map[string]db.User
	err   error
	calls int
}

func (f *fakeQuerier) GetUserByToken(_ context.Context, token string) (db.User, error) {
	f.calls++
	if f.err != nil {
		return db.User{}, f.err
	}
	u, ok := f.users[token]
	if !ok {
		return db.User{}, sql.ErrNoRows
	}
	return u, nil
}

func TestRepositoryResolve(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	q := &fakeQuerier{users: map[string]db.User{"tok": {ID: id, Username: "alice"}}}
	repo := NewRepository(q)

	user, err := repo.Resolve(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "alice", user.Username)

	_, err = repo.Resolve(ctx, "nope")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = repo.Resolve(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidToken)

	q.err = errors.New("connection refused")
	_, err = repo.Resolve(ctx, "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{"t1": {ID: uuid.New(), Username: "bob"}}

	user, err := r.Resolve(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)

	_, err = r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenKeyHidesToken(t *testing.T) {
	key := tokenKey("secret-token")
	assert.NotContains(t, key, "secret-token")
	assert.Equal(t, key, tokenKey("secret-token"))
	assert.NotEqual(t, key, tokenKey("other-token"))
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping redis tests: could not connect to redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCachedResolver(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	token := "tok-" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), tokenKey(token)) })

	q := &fakeQuerier{users: map[string]db.User{token: {ID: uuid.New(), Username: "carol"}}}
	cached := NewCachedResolver(NewRepository(q), client, time.Minute)

	first, err := cached.Resolve(ctx, token)
	require.NoError(t, err)
	second, err := cached.Resolve(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, q.calls)

	_, err = cached.Resolve(ctx, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

var _ Resolver = StaticResolver(map[string]models.User{})
