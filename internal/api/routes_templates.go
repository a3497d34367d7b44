package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/internal/handlers"
	"github.com/charlesng35/studynotify/internal/middleware"
)

func registerTemplateRoutes(api *gin.RouterGroup, handler *handlers.TemplateHandler) {
	group := api.Group("/templates")
	{
		group.GET("", middleware.RequireScope(iauth.ScopeNotifications), handler.List)
		group.PATCH("/:key", middleware.RequireScope(iauth.ScopeTemplates), handler.SetActive)
	}
}
