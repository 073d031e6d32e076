package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

type conn bool

func (c conn) IsConnected() bool { return bool(c) }

type round struct{ overrun, duration time.Duration }

func (r round) Overrun() time.Duration       { return r.overrun }
func (r round) RoundDuration() time.Duration { return r.duration }

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		checker *Checker
		healthy bool
		errors  int
	}{
		{"all good", NewChecker(pinger{}, conn(true), round{0, 15 * time.Second}), true, 0},
		{"memory mode without nats", NewChecker(nil, nil, round{0, 15 * time.Second}), true, 0},
		{"database down", NewChecker(pinger{errors.New("refused")}, nil, round{}), false, 1},
		{"nats down", NewChecker(nil, conn(false), round{}), false, 1},
		{"small overrun tolerated", NewChecker(nil, nil, round{45 * time.Second, 15 * time.Second}), true, 0},
		{"stuck round", NewChecker(nil, nil, round{46 * time.Second, 15 * time.Second}), false, 1},
		{"everything wrong", NewChecker(pinger{errors.New("x")}, conn(false), round{time.Hour, time.Second}), false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := tt.checker.Check(context.Background())
			assert.Equal(t, tt.healthy, status.Healthy)
			assert.Len(t, status.Errors, tt.errors)
		})
	}
}

func TestServeHTTP(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(pinger{}, nil, round{2 * time.Second, 15 * time.Second}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["healthy"])
	assert.Equal(t, true, body["databaseConnected"])
	assert.Equal(t, false, body["natsConnected"])
	assert.Equal(t, 2.0, body["roundOverrunSeconds"])
	assert.Equal(t, []interface{}{}, body["errors"])

	rec = httptest.NewRecorder()
	NewChecker(nil, conn(false), round{}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
