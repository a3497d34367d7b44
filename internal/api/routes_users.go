package api

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/internal/handlers"
	"github.com/charlesng35/studynotify/internal/middleware"
)

func registerUserRoutes(
	api *gin.RouterGroup,
	engine *handlers.EngineHandler,
	notifications *handlers.NotificationHandler,
	logs *handlers.TriggerLogHandler,
	preferences *handlers.PreferencesHandler,
) {
	users := api.Group("/users/:id")
	{
		users.POST("/evaluate", middleware.RequireScope(iauth.ScopeEvaluate), engine.Evaluate)
		users.POST("/achievements", middleware.RequireScope(iauth.ScopeAchievements), engine.RecordAchievement)

		users.GET("/notifications", middleware.RequireScope(iauth.ScopeNotifications), notifications.List)
		users.GET("/trigger-logs", middleware.RequireScope(iauth.ScopeNotifications), logs.List)

		users.GET("/preferences", middleware.RequireScope(iauth.ScopeNotifications), preferences.Get)
		users.PUT("/preferences", middleware.RequireScope(iauth.ScopePreferences), preferences.Update)
	}
}
