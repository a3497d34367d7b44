package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/internal/handlers"
	"github.com/charlesng35/studynotify/internal/middleware"
)

// feedPath is the full route of the websocket feed.
const feedPath = "/api/feed"

func registerFeedRoutes(api *gin.RouterGroup, handler *handlers.RealtimeHandler) {
	api.GET("/feed", middleware.RequireScope(iauth.ScopeFeed), handler.Stream)
}
