package realtime

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// allowOrigin accepts non-browser clients, same-host origins and loopback origins used in
// local development.
func allowOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	originHost := parsed.Hostname()
	if strings.EqualFold(originHost, requestHost(r)) {
		return true
	}
	if strings.EqualFold(originHost, "localhost") {
		return true
	}
	ip := net.ParseIP(originHost)
	return ip != nil && ip.IsLoopback()
}

func requestHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.Host); err == nil {
		return host
	}
	return r.Host
}
