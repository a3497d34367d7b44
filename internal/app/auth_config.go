package app

import (
	"github.com/charlesng35/studynotify/internal/auth"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultServiceTokenTTL
	}

	return auth.JWTConfig{
		Secret:   c.JWT.Secret,
		Issuer:   c.JWT.Issuer,
		TokenTTL: ttl,
	}
}
