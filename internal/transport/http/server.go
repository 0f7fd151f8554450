package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/loopchat/loopchat-server/internal/attach"
	"github.com/loopchat/loopchat-server/internal/auth"
	"github.com/loopchat/loopchat-server/internal/chat"
	"github.com/loopchat/loopchat-server/internal/config"
	"github.com/loopchat/loopchat-server/internal/friends"
	"github.com/loopchat/loopchat-server/internal/presence"
)

// Deps bundles the collaborators the HTTP layer exposes.
type Deps struct {
	Auth     *auth.Service
	Chat     *chat.Service
	Friends  *friends.Service
	Attach   attach.Store
	Registry *presence.Registry
}

// NewServer builds the HTTP server: REST surface, websocket gateway,
// and static attachment serving.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	wsHandler := NewWSHandler(deps.Auth, deps.Registry, cfg, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	router.Static(cfg.UploadBaseURL, cfg.UploadDir)

	apiHandlers := NewAPIHandlers(deps.Auth, logger)
	messageHandlers := NewMessageHandlers(deps.Chat, deps.Attach, logger)
	friendsHandlers := NewFriendsHandlers(deps.Friends, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authed := api.Group("", AuthMiddleware(deps.Auth, logger))
	authed.GET("/messages/users", messageHandlers.ListContacts)
	authed.GET("/messages/:id", messageHandlers.History)
	authed.POST("/messages/send/:id", messageHandlers.Send)

	authed.GET("/group/messages", messageHandlers.GroupHistory)
	authed.POST("/group/messages", messageHandlers.SendGroup)
	authed.POST("/group/messages/:id/read", messageHandlers.MarkGroupRead)

	authed.POST("/friends/requests", friendsHandlers.SendRequest)
	authed.POST("/friends/requests/:id/accept", friendsHandlers.AcceptRequest)
	authed.DELETE("/friends/requests/:id", friendsHandlers.RejectRequest)
	authed.GET("/friends", friendsHandlers.ListFriends)
	authed.GET("/friends/requests", friendsHandlers.ListRequests)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
