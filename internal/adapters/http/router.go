package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/adapters/signal"
	"github.com/voxhall/gateway/internal/app/orch"
	"github.com/voxhall/gateway/internal/config"
	"github.com/voxhall/gateway/internal/core"
	"github.com/voxhall/gateway/internal/domain"
)

// BearerAuthMiddleware verifies the connect-time token with the auth
// collaborator and stashes the resolved user for the WS handler. The token
// comes from the Authorization header, or the token query parameter for
// browser WebSocket clients that cannot set headers.
func BearerAuthMiddleware(auth core.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if after, ok := strings.CutPrefix(token, "Bearer "); ok {
			token = after
		} else {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		user, err := auth.VerifyToken(c.Request.Context(), token)
		if err != nil {
			var ae *domain.AuthorizationError
			if errors.As(err, &ae) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			log.Error().Err(err).Str("module", "adapters.http").Msg("auth service failure")
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "auth unavailable"})
			return
		}
		c.Set("user", user)
		c.Next()
	}
}

// InternalSecretMiddleware guards the collaborator-facing fanout routes.
func InternalSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.GetHeader("X-Internal-Secret") != secret {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, auth core.AuthService, o *orch.Orchestrator, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": o.Registry.Count()})
	})

	r.GET("/ws", BearerAuthMiddleware(auth), func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	internal := r.Group("/internal", InternalSecretMiddleware(cfg.InternalSecret))
	internal.POST("/servers/:serverId/channels/:event", func(c *gin.Context) {
		serverID, err := strconv.ParseInt(c.Param("serverId"), 10, 64)
		if err != nil || serverID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server id"})
			return
		}
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, cfg.ReadLimit))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		switch c.Param("event") {
		case "created":
			o.Rooms.NotifyChannelCreated(domain.ServerID(serverID), body)
		case "updated":
			o.Rooms.NotifyChannelUpdated(domain.ServerID(serverID), body)
		case "deleted":
			o.Rooms.NotifyChannelDeleted(domain.ServerID(serverID), body)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event"})
			return
		}
		c.Status(http.StatusAccepted)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
