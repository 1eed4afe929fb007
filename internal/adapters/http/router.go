package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/adapters/identity"
	"github.com/dkeye/SoundSync/internal/adapters/signal"
	"github.com/dkeye/SoundSync/internal/app/orch"
	"github.com/dkeye/SoundSync/internal/config"
	"github.com/dkeye/SoundSync/internal/core"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware gives every browser a stable member id in the "ct"
// cookie. Non-browser clients may send it as X-Client-Token instead.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Client-Token")
		if token == "" {
			token, _ = c.Cookie("ct")
		}
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set(identity.TokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ids core.IdentityProvider) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SoundSyncSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	limiter := signal.NewRoomRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Interval)
	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		Limiter:    limiter,
	})
	o.Watch(ctrl)
	h := &handlers{orch: o}

	api := r.Group("/api")
	api.Use(identity.Middleware(ids))

	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("member_id", string(identity.FromContext(c).MemberID)).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/me", h.me)
	api.GET("/me/history", h.history)
	api.GET("/tracks", h.searchTracks)

	rooms := api.Group("/rooms")
	rooms.GET("", h.listRooms)
	rooms.GET("/nearby", h.nearby)
	rooms.POST("", rateLimit(limiter), h.createRoom)
	rooms.GET("/:id", h.getRoom)
	rooms.DELETE("/:id", h.closeRoom)
	rooms.POST("/:id/join", rateLimit(limiter), h.joinRoom)
	rooms.POST("/:id/leave", h.leaveRoom)
	rooms.PUT("/:id/track", h.setTrack)
	rooms.POST("/:id/play", h.play)
	rooms.POST("/:id/pause", h.pause)
	rooms.GET("/:id/votes", h.voteState)
	rooms.POST("/:id/votes", rateLimit(limiter), h.castVote)

	return r
}
