package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/netchat-server/internal/auth"
	"github.com/vovakirdan/netchat-server/internal/config"
	"github.com/vovakirdan/netchat-server/internal/core"
	"github.com/vovakirdan/netchat-server/internal/store"
)

// Deps are the collaborators the HTTP layer routes requests to.
type Deps struct {
	Hub        *core.Hub
	Dispatcher *core.Dispatcher
	Presenter  *core.Presenter
	Store      store.Store
	Auth       *auth.Service
}

// NewServer builds an HTTP server with REST and WebSocket routes.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts the WebSocket endpoint on a plain mux and sends every
// other request to the gin router. Upgrades must own the raw ResponseWriter:
// gin writes headers before a hijack and then refuses it.
func NewHandler(deps Deps, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("GET /ws/nets/{net_id}", NewWSHandler(deps, cfg, logger))
	mux.Handle("/", NewRouter(deps, cfg, logger))
	return mux
}

// NewRouter builds the gin engine serving the REST API.
func NewRouter(deps Deps, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/api/stats", statsHandler(deps.Hub))

	accounts := NewAuthHandlers(deps.Auth, deps.Store, cfg.DefaultAvatar, logger)
	router.POST("/api/register", accounts.Register)
	router.POST("/api/login", accounts.Login)

	protected := router.Group("/api")
	protected.Use(AuthMiddleware(deps.Auth, logger))

	profiles := NewProfileHandlers(deps.Store, logger)
	protected.GET("/profile", profiles.GetProfile)
	protected.PUT("/profile", profiles.UpdateProfile)

	nets := NewNetHandlers(deps.Store, logger)
	protected.POST("/nets", nets.CreateNet)
	protected.GET("/nets", nets.ListNets)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

// StatsResponse reports registry occupancy.
type StatsResponse struct {
	Rooms int `json:"rooms"`
}

func statsHandler(hub *core.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, StatsResponse{Rooms: hub.Rooms()})
	}
}
