package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studynotify/internal/middleware"
	"github.com/charlesng35/studynotify/internal/realtime"
	"github.com/charlesng35/studynotify/pkg/errors"
	"github.com/charlesng35/studynotify/pkg/response"
)

// RealtimeHandler upgrades authenticated requests into the queued-notification feed.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a realtime handler. A nil hub disables the feed.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Stream subscribes the caller to the users named by the `user` query parameters, or to
// every user when none are given.
//
// GET /api/feed?user=<id>&user=<id>
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h == nil || h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	users := gatherUsers(c)
	if len(users) == 0 {
		users = []string{realtime.AllUsers}
	}

	h.hub.Serve(claims.Subject, users, c.Writer, c.Request)
}

func gatherUsers(c *gin.Context) []string {
	var users []string
	for _, value := range c.QueryArray("user") {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				users = append(users, part)
			}
		}
	}
	return uniqueUsers(users)
}

func uniqueUsers(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
