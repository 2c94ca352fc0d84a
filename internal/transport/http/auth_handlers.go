package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/netchat-server/internal/auth"
	"github.com/vovakirdan/netchat-server/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CredentialsRequest is the body of both register and login.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

// AccountResponse is the identity a client shows for the signed-in user.
type AccountResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	ImageURL string `json:"image_url"`
}

// AuthResponse carries the token for ?token= and the Authorization header,
// plus the account it belongs to.
type AuthResponse struct {
	Token string          `json:"token"`
	User  AccountResponse `json:"user"`
}

// AuthHandlers serves registration and login.
type AuthHandlers struct {
	auth          *auth.Service
	users         store.UserStore
	defaultAvatar string
	log           *zerolog.Logger
}

// NewAuthHandlers creates handlers that answer with the user's avatar, or
// defaultAvatar when the profile has none.
func NewAuthHandlers(authService *auth.Service, users store.UserStore, defaultAvatar string, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		auth:          authService,
		users:         users,
		defaultAvatar: defaultAvatar,
		log:           logger,
	}
}

// authStatus maps auth errors to the status and message clients see.
var authStatus = []struct {
	err    error
	status int
}{
	{auth.ErrUserExists, http.StatusConflict},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidUsername, http.StatusBadRequest},
	{auth.ErrInvalidPassword, http.StatusBadRequest},
}

// Register creates an account and signs it in.
// POST /api/register
func (h *AuthHandlers) Register(c *gin.Context) {
	h.handle(c, "register", http.StatusCreated, h.auth.Register)
}

// Login signs an existing account in.
// POST /api/login
func (h *AuthHandlers) Login(c *gin.Context) {
	h.handle(c, "login", http.StatusOK, h.auth.Login)
}

func (h *AuthHandlers) handle(
	c *gin.Context,
	action string,
	okStatus int,
	open func(ctx context.Context, username, password string) (*auth.Session, error),
) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Str("action", action).Msg("invalid credentials body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	session, err := open(ctx, req.Username, req.Password)
	if err != nil {
		for _, m := range authStatus {
			if errors.Is(err, m.err) {
				c.JSON(m.status, ErrorResponse{Error: m.err.Error()})
				return
			}
		}
		h.log.Error().Err(err).Str("action", action).Str("username", req.Username).Msg("auth request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("action", action).Int64("user_id", session.User.ID).Msg("session opened")
	c.JSON(okStatus, AuthResponse{
		Token: session.Token,
		User: AccountResponse{
			ID:       session.User.ID,
			Username: session.User.Username,
			ImageURL: h.avatar(ctx, session.User.ID),
		},
	})
}

// avatar never fails the request: a missing profile just means the default.
func (h *AuthHandlers) avatar(ctx context.Context, userID int64) string {
	profile, err := h.users.GetProfile(ctx, userID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("profile lookup failed")
		return h.defaultAvatar
	}
	if profile.ImageURL == "" {
		return h.defaultAvatar
	}
	return profile.ImageURL
}
