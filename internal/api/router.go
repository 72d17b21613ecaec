package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Marga-Ghale/group-calendar-backend/internal/api/handlers"
	"github.com/Marga-Ghale/group-calendar-backend/internal/api/middleware"
	"github.com/Marga-Ghale/group-calendar-backend/internal/config"
	"github.com/Marga-Ghale/group-calendar-backend/internal/service"
	"github.com/Marga-Ghale/group-calendar-backend/internal/socket"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency /health pings on every call.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// RouterDeps holds what the router needs. WSHandler and Hub may be nil, in
// which case /api/ws is not mounted. A nil Registry gets a fresh one.
type RouterDeps struct {
	Config    *config.Config
	Services  *service.Services
	WSHandler *socket.Handler
	Hub       *socket.Hub
	Registry  *prometheus.Registry
	Logger    *slog.Logger
	// Components is reported as-is by /health, e.g. {"email": "configured"}.
	Components map[string]string
	// Checks are pinged by /health; any failure answers 503.
	Checks map[string]Pinger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.NewMetrics(registry).Handler())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "x-auth-token"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		body := gin.H{
			"timestamp": time.Now(),
			"store":     cfg.StoreDriver,
		}
		if deps.Hub != nil {
			body["ws_clients"] = deps.Hub.ConnectedClients()
		}
		for name, s := range deps.Components {
			body[name] = s
		}
		for name, p := range deps.Checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			err := p.Ping(ctx)
			cancel()
			if err != nil {
				logger.Warn("health check failed", "component", name, "error", err)
				body[name] = "unreachable"
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			body[name] = "connected"
		}
		body["status"] = status
		c.JSON(code, body)
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	h := handlers.NewHandlers(deps.Services)
	auth := middleware.AuthMiddleware(deps.Services.Auth)

	api := r.Group("/api")
	{
		if deps.WSHandler != nil {
			api.GET("/ws", deps.WSHandler.HandleWebSocket)
		}

		users := api.Group("/users")
		{
			users.POST("/register", h.Auth.Register)
			users.POST("/login", h.Auth.Login)
			users.POST("/refresh", h.Auth.Refresh)
			users.POST("/logout", h.Auth.Logout)

			users.GET("/profile", auth, h.User.GetProfile)
			users.PUT("/profile", auth, h.User.UpdateProfile)
		}

		groups := api.Group("/groups")
		groups.Use(auth)
		{
			groups.GET("", h.Group.List)
			groups.POST("", h.Group.Create)
			groups.GET("/:id", h.Group.Get)
			groups.PUT("/:id", h.Group.Update)
			groups.DELETE("/:id", h.Group.Delete)

			groups.POST("/:id/invite", h.Group.Invite)
			groups.DELETE("/:id/member/:email", h.Group.RemoveMember)
		}

		events := api.Group("/events")
		events.Use(auth)
		{
			events.GET("", h.Event.List)
			events.POST("", h.Event.Create)
			events.GET("/group/:groupId", h.Event.ListForGroup)
			events.GET("/group/:groupId/ics", h.Event.ExportICS)
			events.PUT("/:id", h.Event.Update)
			events.DELETE("/:id", h.Event.Delete)
		}
	}

	return r
}
