package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echo "github.com/labstack/echo/v5"
)

const identityContextKey = "convoy.userID"

// TokenVerifier validates a bearer token and returns the user id it carries.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// JWTVerifier validates HS256 tokens signed with a shared secret. Tokens
// issued more than maxAge ago are rejected even when they carry no exp claim.
type JWTVerifier struct {
	secret []byte
	maxAge time.Duration
}

func NewJWTVerifier(secret string, maxAge time.Duration) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), maxAge: maxAge}
}

func (v *JWTVerifier) Verify(token string) (string, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	if v.maxAge > 0 {
		if claims.IssuedAt == nil {
			return "", fmt.Errorf("token has no iat claim")
		}
		if time.Since(claims.IssuedAt.Time) > v.maxAge {
			return "", fmt.Errorf("token older than %s", v.maxAge)
		}
	}
	return claims.Subject, nil
}

// requireAuth extracts the bearer token, verifies it, and stores the caller's
// user id in the request context. Websocket upgrades may carry the token in
// the access_token query parameter because browsers cannot set headers there.
func requireAuth(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return newAPIError(http.StatusUnauthorized, kindNotAuthorized, "missing bearer token")
			}
			userID, err := verifier.Verify(token)
			if err != nil {
				return newAPIError(http.StatusUnauthorized, kindNotAuthorized, "invalid token")
			}
			c.Set(identityContextKey, userID)
			return next(c)
		}
	}
}

func bearerToken(c *echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
		return ""
	}
	return c.QueryParam("access_token")
}

// currentUser returns the authenticated user id stored by requireAuth.
func currentUser(c *echo.Context) string {
	if id, ok := c.Get(identityContextKey).(string); ok {
		return id
	}
	return ""
}
