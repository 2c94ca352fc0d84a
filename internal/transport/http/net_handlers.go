package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/netchat-server/internal/store"
)

// NetHandlers provides HTTP handlers for net management endpoints.
type NetHandlers struct {
	store store.NetStore
	log   *zerolog.Logger
}

// NewNetHandlers creates a new net handlers instance.
func NewNetHandlers(st store.NetStore, logger *zerolog.Logger) *NetHandlers {
	return &NetHandlers{
		store: st,
		log:   logger,
	}
}

// CreateNetRequest represents the create net request body.
type CreateNetRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// NetResponse represents a net in API responses.
type NetResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	OwnerID   *int64 `json:"owner_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toNetResponse(net *store.Net) NetResponse {
	return NetResponse{
		ID:        net.ID,
		Name:      net.Name,
		OwnerID:   net.OwnerID,
		CreatedAt: net.CreatedAt.Format(time.RFC3339),
	}
}

// CreateNet handles net creation.
// POST /api/nets
func (h *NetHandlers) CreateNet(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateNetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create net request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name is required"})
		return
	}

	net, err := h.store.CreateNet(c.Request.Context(), name, &uid)
	if err != nil {
		if errors.Is(err, store.ErrNetExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "net with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("net_name", name).Msg("failed to create net")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("net_name", net.Name).Int64("net_id", net.ID).Int64("owner_id", uid).Msg("net created")
	c.JSON(http.StatusCreated, toNetResponse(net))
}

// ListNets handles listing nets.
// GET /api/nets
func (h *NetHandlers) ListNets(c *gin.Context) {
	nets, err := h.store.ListNets(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list nets")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]NetResponse, 0, len(nets))
	for _, net := range nets {
		response = append(response, toNetResponse(net))
	}

	c.JSON(http.StatusOK, response)
}
