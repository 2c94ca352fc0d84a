package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/netchat-server/internal/store"
)

// ProfileHandlers serves the authenticated user's profile.
type ProfileHandlers struct {
	store store.UserStore
	log   *zerolog.Logger
}

// NewProfileHandlers creates a new profile handlers instance.
func NewProfileHandlers(st store.UserStore, logger *zerolog.Logger) *ProfileHandlers {
	return &ProfileHandlers{
		store: st,
		log:   logger,
	}
}

// UpdateProfileRequest represents the profile update body. Absent fields keep
// their value; an empty image_url clears the avatar.
type UpdateProfileRequest struct {
	ImageURL        *string `json:"image_url" binding:"omitempty,max=2048"`
	TypingIndicator *bool   `json:"typing_indicator"`
	OnlineIndicator *bool   `json:"online_indicator"`
}

// ProfileResponse represents a user profile in API responses.
type ProfileResponse struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	ImageURL        string `json:"image_url"`
	TypingIndicator bool   `json:"typing_indicator"`
	OnlineIndicator bool   `json:"online_indicator"`
}

// GetProfile returns the current user's profile.
// GET /api/profile
func (h *ProfileHandlers) GetProfile(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	h.respond(c, uid)
}

// UpdateProfile changes the current user's avatar URL and indicator preferences.
// PUT /api/profile
func (h *ProfileHandlers) UpdateProfile(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid profile request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	profile, err := h.store.GetProfile(ctx, uid)
	if err != nil {
		h.fail(c, uid, err)
		return
	}

	if req.ImageURL != nil {
		imageURL := strings.TrimSpace(*req.ImageURL)
		if !validImageURL(imageURL) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "image_url must be an absolute http(s) URL or a path"})
			return
		}
		profile.ImageURL = imageURL
	}
	if req.TypingIndicator != nil {
		profile.TypingIndicator = *req.TypingIndicator
	}
	if req.OnlineIndicator != nil {
		profile.OnlineIndicator = *req.OnlineIndicator
	}

	if err := h.store.UpdateProfile(ctx, *profile); err != nil {
		h.fail(c, uid, err)
		return
	}

	h.log.Info().Int64("user_id", uid).Msg("profile updated")
	h.respond(c, uid)
}

func (h *ProfileHandlers) respond(c *gin.Context, uid int64) {
	ctx := c.Request.Context()

	user, err := h.store.GetUserByID(ctx, uid)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	profile, err := h.store.GetProfile(ctx, uid)
	if err != nil {
		h.fail(c, uid, err)
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{
		ID:              user.ID,
		Username:        user.Username,
		ImageURL:        profile.ImageURL,
		TypingIndicator: profile.TypingIndicator,
		OnlineIndicator: profile.OnlineIndicator,
	})
}

func (h *ProfileHandlers) fail(c *gin.Context, uid int64, err error) {
	if errors.Is(err, store.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	h.log.Error().Err(err).Int64("user_id", uid).Msg("profile request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func validImageURL(raw string) bool {
	if raw == "" || strings.HasPrefix(raw, "/") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
