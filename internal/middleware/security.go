package middleware

import "github.com/gin-gonic/gin"

// securityHeaders are set on every response. The API serves JSON and a websocket feed to
// machine callers, so nothing may be framed, sniffed or cached.
var securityHeaders = [][2]string{
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders applies securityHeaders before the handler runs.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, header := range securityHeaders {
			c.Header(header[0], header[1])
		}
		c.Next()
	}
}
