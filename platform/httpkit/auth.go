package httpkit

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"solar_portal_backend/platform/apperr"
	"solar_portal_backend/platform/config"
)

const accessTokenType = "access"

// accessClaims is the token body issued by the auth service. Subject holds
// the subscriber id.
type accessClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
	Type  string   `json:"type"`
}

// AuthRequired validates the access token and stores the caller's identity
// on the context. The token may come from the Authorization header or, for
// EventSource and WebSocket clients that cannot set headers, from ?token=.
func AuthRequired(cfg config.JWTConfig) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			abortWith(c, apperr.Unauthorized("missing token"))
			return
		}

		id, err := verifyAccessToken(parser, raw, cfg.GetJWTAccessSecret())
		if err != nil {
			abortWith(c, apperr.Unauthorized("invalid token"))
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAnyRole lets the request through when the caller holds one of roles.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		for _, role := range roles {
			if id.HasRole(role) {
				c.Next()
				return
			}
		}
		abortWith(c, apperr.Forbidden("forbidden"))
	}
}

// IssueAccessToken signs a token AuthRequired accepts. Tests and local
// tooling use it; production tokens come from the auth service.
func IssueAccessToken(secret string, userID uuid.UUID, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
		Type:  accessTokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func verifyAccessToken(parser *jwt.Parser, raw, secret string) (*subscriber, error) {
	var claims accessClaims
	if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}); err != nil {
		return nil, err
	}
	if claims.Type != accessTokenType {
		return nil, jwt.ErrTokenInvalidClaims
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, jwt.ErrTokenInvalidSubject
	}
	return newSubscriber(userID, claims.Roles), nil
}

func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	return c.Query("token")
}

func abortWith(c *gin.Context, err *apperr.Error) {
	HandleError(c, err)
	c.Abort()
}
