package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/polyglotte/relay/internal/adapters/ws"
	"github.com/polyglotte/relay/internal/app"
	"github.com/polyglotte/relay/internal/config"
	"github.com/polyglotte/relay/internal/core"
	"github.com/polyglotte/relay/internal/domain"
)

// ClientTokenMiddleware mints a stable per-client token cookie. The
// upstream auth layer has already verified the user before the client
// reaches identify; the token only correlates transport sessions.
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

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *ws.Controller, registry *app.Registry, chat *app.Chat, notifier *app.Notifier) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("token", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.HandleWS(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, registry.Snapshot())
	})

	api.GET("/conversations/:id/messages", func(c *gin.Context) {
		msgs, err := chat.History(c.Request.Context(), domain.ConversationID(c.Param("id")))
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, msgs)
	})

	api.PUT("/notifications/:id/read", func(c *gin.Context) {
		if err := notifier.Resolve(c.Request.Context(), domain.NotificationID(c.Param("id"))); err != nil {
			abortWith(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	return r
}

func abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrProtocol):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
