package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/internal/handlers"
	"github.com/charlesng35/studynotify/internal/middleware"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.POST("/:id/sent", middleware.RequireScope(iauth.ScopeDelivery), handler.MarkSent)
		group.POST("/:id/failed", middleware.RequireScope(iauth.ScopeDelivery), handler.MarkFailed)
	}
}
