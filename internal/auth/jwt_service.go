package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultServiceTokenTTL defines the fallback validity period for service tokens.
const DefaultServiceTokenTTL = 24 * time.Hour

// Scopes granted to service tokens.
const (
	ScopeEvaluate      = "engine:evaluate"
	ScopeAchievements  = "engine:achievements"
	ScopeNotifications = "notifications:read"
	ScopeDelivery      = "notifications:deliver"
	ScopePreferences   = "preferences:write"
	ScopeTemplates     = "templates:write"
	ScopeFeed          = "feed:read"
	ScopeAll           = "*"
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
	Clock    func() time.Time
}

// Claims represents the custom claims embedded in issued service tokens.
type Claims struct {
	Scopes []string `json:"scp,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants scope, directly or through ScopeAll.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, granted := range c.Scopes {
		if granted == ScopeAll || granted == scope {
			return true
		}
	}
	return false
}

// ServiceTokenInput holds the parameters used when issuing a service token.
type ServiceTokenInput struct {
	Subject  string
	Scopes   []string
	Audience []string
	TTL      time.Duration
}

// JWTService is responsible for issuing and validating the tokens presented by the
// scheduler and other internal callers.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultServiceTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// IssueServiceToken signs a token for subject carrying the requested scopes.
func (s *JWTService) IssueServiceToken(input ServiceTokenInput) (string, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return "", errors.New("jwt: subject is required")
	}
	scopes := normaliseScopes(input.Scopes)
	if len(scopes) == 0 {
		return "", errors.New("jwt: at least one scope is required")
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now()

	claims := &Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  input.Audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// ValidateServiceToken parses and validates a signed token, returning its claims.
func (s *JWTService) ValidateServiceToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("jwt: missing subject claim")
	}
	if len(claims.Scopes) == 0 {
		return nil, errors.New("jwt: missing scope claim")
	}

	return &claims, nil
}

func normaliseScopes(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	var out []string
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	return out
}
