package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/identity"
	"github.com/mcdev12/auctionhouse/go/internal/items"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// ItemService defines what the REST handler needs from the items app
type ItemService interface {
	CreateItem(ctx context.Context, seller models.User, req items.CreateItemRequest) (*models.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListActiveItems(ctx context.Context) ([]models.Item, error)
}

// ItemHandler serves the item listing and current auction endpoints
type ItemHandler struct {
	items    ItemService
	auction  Auction
	identity identity.Resolver
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc ItemService, auction Auction, resolver identity.Resolver) *ItemHandler {
	return &ItemHandler{
		items:    svc,
		auction:  auction,
		identity: resolver,
	}
}

// HandleCreateItem handles POST /api/items
func (h *ItemHandler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	seller, err := h.identity.Resolve(r.Context(), bearerToken(r))
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			http.Error(w, "Invalid or missing token", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Msg("failed to resolve seller token")
		http.Error(w, "Failed to authenticate", http.StatusInternalServerError)
		return
	}

	var req items.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.items.CreateItem(r.Context(), *seller, req)
	if err != nil {
		if errors.Is(err, items.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Str("seller_id", seller.ID.String()).Msg("failed to create item")
		http.Error(w, "Failed to create item", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// HandleListItems handles GET /api/items
func (h *ItemHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	active, err := h.items.ListActiveItems(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list items")
		http.Error(w, "Failed to list items", http.StatusInternalServerError)
		return
	}
	if active == nil {
		active = []models.Item{}
	}
	writeJSON(w, http.StatusOK, active)
}

// HandleGetItem handles GET /api/items/{id}
func (h *ItemHandler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid item ID format", http.StatusBadRequest)
		return
	}

	item, err := h.items.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, items.ErrNotFound) {
			http.Error(w, "Item not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("item_id", id.String()).Msg("failed to get item")
		http.Error(w, "Failed to get item", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleCurrentAuction handles GET /api/auction/current. It never waits for a
// round to start.
func (h *ItemHandler) HandleCurrentAuction(w http.ResponseWriter, r *http.Request) {
	current := h.auction.Current()
	if current == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

// RegisterRoutes registers item routes with an HTTP mux
func (h *ItemHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/items", h.HandleCreateItem)
	mux.HandleFunc("GET /api/items", h.HandleListItems)
	mux.HandleFunc("GET /api/items/{id}", h.HandleGetItem)
	mux.HandleFunc("GET /api/auction/current", h.HandleCurrentAuction)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
