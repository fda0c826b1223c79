package http

import (
	"context"
	nethttp "net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/adapters/signal"
	"github.com/atriumspace/atrium/internal/app"
	"github.com/atriumspace/atrium/internal/config"
)

// ClientTokenMiddleware pins a connection id to the browser; the same
// client reconnecting keeps its id across socket drops.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("AtriumSessions", store))
	r.Use(ClientTokenMiddleware())

	ctl := signal.NewController(orch, cfg.ReadLimit, cfg.PingPeriod)

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, orch.Rooms.List())
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}
