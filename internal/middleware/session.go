package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atmin009/tutor-frontend/internal/auth"
	"github.com/atmin009/tutor-frontend/internal/upstream"
	"github.com/atmin009/tutor-frontend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextSessionID is the key for gateway session ID in gin context.
	ContextSessionID = "session_id"
)

// Session returns a middleware that validates the gateway JWT, loads the
// upstream bearer token from the token store, and attaches both session and
// token to the request context. A missing store entry means the session was
// invalidated (logout or upstream 401) and the request is rejected.
func Session(jwtService *auth.JWTService, store *auth.TokenStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := resolveSession(c, jwtService, store)
		if !ok {
			response.Unauthorized(c, "invalid or expired session")
			c.Abort()
			return
		}
		_ = token
		c.Next()
	}
}

// OptionalSession resolves a session when present but never rejects the
// request. Used by browser-facing landing routes the payment gateway
// redirects to without an Authorization header.
func OptionalSession(jwtService *auth.JWTService, store *auth.TokenStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolveSession(c, jwtService, store)
		c.Next()
	}
}

func resolveSession(c *gin.Context, jwtService *auth.JWTService, store *auth.TokenStore) (string, bool) {
	raw := bearerToken(c)
	if raw == "" {
		if cookie, err := c.Cookie(auth.SessionCookie); err == nil {
			raw = cookie
		}
	}
	if raw == "" {
		return "", false
	}
	claims, err := jwtService.Validate(raw)
	if err != nil {
		return "", false
	}
	token, ok := store.Get(c.Request.Context(), claims.SessionID.String())
	if !ok {
		return "", false
	}

	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextSessionID, claims.SessionID.String())

	ctx := auth.WithSession(c.Request.Context(), auth.Session{ID: claims.SessionID.String(), UserID: claims.UserID})
	ctx = upstream.WithToken(ctx, token)
	c.Request = c.Request.WithContext(ctx)
	return token, true
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
