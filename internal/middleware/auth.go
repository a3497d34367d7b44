package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/pkg/errors"
	"github.com/charlesng35/studynotify/pkg/response"
)

const (
	CtxClaimsKey  = "authClaims"
	CtxSubjectKey = "authSubject"
)

// ServiceAuth enforces service-token authentication using the supplied JWT service.
// Browsers cannot set headers on websocket upgrades, so GET requests may also carry
// the token in the access_token query parameter.
func ServiceAuth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateServiceToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxSubjectKey, claims.Subject)
		c.Next()
	}
}

// RequireScope aborts with 403 unless the authenticated token grants scope.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.HasScope(scope) {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by ServiceAuth, or nil.
func ClaimsFrom(c *gin.Context) *iauth.Claims {
	value, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*iauth.Claims)
	return claims
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if c.Request.Method == "GET" {
		return strings.TrimSpace(c.Query("access_token"))
	}
	return ""
}
