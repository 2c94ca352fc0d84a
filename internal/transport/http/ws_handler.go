package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/netchat-server/internal/auth"
	"github.com/vovakirdan/netchat-server/internal/config"
	"github.com/vovakirdan/netchat-server/internal/core"
	"github.com/vovakirdan/netchat-server/internal/proto"
	"github.com/vovakirdan/netchat-server/internal/store"
	"github.com/vovakirdan/netchat-server/internal/utils"
)

// WSHandler upgrades HTTP connections on /ws/nets/{net_id} and bridges them to the hub.
type WSHandler struct {
	hub        *core.Hub
	dispatcher *core.Dispatcher
	presenter  *core.Presenter
	auth       *auth.Service
	users      store.UserStore

	requireToken    bool
	errorFrames     bool
	maxMessageBytes int64
	rateLimit       int
	clientBuffer    int
	storeTimeout    time.Duration
	originPatterns  []string

	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(deps Deps, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:             deps.Hub,
		dispatcher:      deps.Dispatcher,
		presenter:       deps.Presenter,
		auth:            deps.Auth,
		users:           deps.Store,
		requireToken:    cfg.RequireWSToken,
		errorFrames:     cfg.ErrorFrames,
		maxMessageBytes: cfg.MaxMessageBytes,
		rateLimit:       cfg.RateLimitPerMinute,
		clientBuffer:    cfg.ClientBuffer,
		storeTimeout:    cfg.StoreTimeout,
		originPatterns:  cfg.OriginPatterns,
		log:             logger,
	}
}

// ServeHTTP authenticates the request and runs the session until either side closes.
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	room := strings.TrimSpace(r.PathValue("net_id"))
	if room == "" {
		writeError(w, stdhttp.StatusBadRequest, "net id is required")
		return
	}

	client := core.NewClient(utils.NewID(), room, 0, h.clientBuffer)
	if token := r.URL.Query().Get("token"); token != "" || h.requireToken {
		if token == "" {
			writeError(w, stdhttp.StatusUnauthorized, "missing token")
			return
		}
		claims, err := h.auth.ValidateToken(token)
		if err != nil {
			h.log.Debug().Err(err).Str("net_id", room).Msg("ws token rejected")
			writeError(w, stdhttp.StatusUnauthorized, "invalid token")
			return
		}
		client.UserID = claims.UserID
		client.SuppressTyping = !h.typingIndicator(r.Context(), claims.UserID)
	}

	h.serve(w, r, client)
}

// typingIndicator reports the user's typing preference, defaulting to on
// when the profile cannot be read.
func (h *WSHandler) typingIndicator(ctx context.Context, userID int64) bool {
	timeout := h.storeTimeout
	if timeout <= 0 {
		timeout = core.DefaultStoreTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	profile, err := h.users.GetProfile(ctx, userID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("load profile for ws session")
		return true
	}
	return profile.TypingIndicator
}

func writeError(w stdhttp.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

func (h *WSHandler) serve(w stdhttp.ResponseWriter, r *stdhttp.Request, client *core.Client) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: len(h.originPatterns) == 0,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	var leaveOnce sync.Once
	leave := func() {
		leaveOnce.Do(func() { h.hub.Leave(client) })
	}
	defer leave()
	h.hub.Join(client)

	logger := h.log.With().Str("client_id", client.ID).Str("net_id", client.Room).Logger()
	logger.Debug().Int64("user_id", client.UserID).Msg("ws session open")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh
	leave()

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = truncateReason(err.Error())
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	logger.Debug().Msg("ws session closed")
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.rateLimit)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.reject(ctx, conn, logger, fmt.Errorf("%w: %w", core.Malformed("frame", "", "is not a valid JSON object"), err))
			continue
		}

		cmd, err := inboundToCommand(inbound)
		if err != nil {
			h.reject(ctx, conn, logger, err)
			continue
		}

		// Signals are cheap and frequent; only messages count against the budget.
		if cmd.Kind.IsMessage() && !limiter.allow() {
			h.reject(ctx, conn, logger, core.ErrRateLimited)
			continue
		}

		if err := h.dispatcher.Dispatch(ctx, client, cmd); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.reject(ctx, conn, logger, err)
		}
	}
}

// reject logs a failed frame and, when enabled, tells the sender why.
func (h *WSHandler) reject(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger, err error) {
	frame := errorFrame(err)
	logger.Warn().Err(err).Str("code", frame.Error.Code).Msg("frame rejected")
	if !h.errorFrames {
		return
	}
	if writeErr := wsjson.Write(ctx, conn, frame); writeErr != nil {
		logger.Debug().Err(writeErr).Msg("write error frame")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			delivery, err := h.presenter.Present(ctx, event)
			if err != nil {
				logger.Warn().Err(err).Str("event", event.Kind.String()).Int64("user_id", event.UserID).Msg("drop event for recipient")
				continue
			}
			frame, err := outboundFromDelivery(delivery)
			if err != nil {
				logger.Error().Err(err).Msg("drop event without frame")
				continue
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				logger.Error().Err(err).Msg("write ws event")
				return fmt.Errorf("%w: %w", core.ErrTransport, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close reasons must fit in a control frame.
func truncateReason(reason string) string {
	const maxReason = 120
	if len(reason) > maxReason {
		return reason[:maxReason]
	}
	return reason
}
