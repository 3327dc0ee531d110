package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/judyrop/tequilas-restaurant/internal/auth"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	claimsKey       = "claims"
)

// RequestID tags every request with the caller's X-Request-ID or a new uuid.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog logs one line per request once the handler chain has finished.
func AccessLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev = ev.
			Str("request_id", requestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Int64("latency_ms", time.Since(start).Milliseconds())
		if claims := Claims(c); claims != nil {
			ev = ev.Uint("user_id", claims.UserID)
		}
		ev.Msg("request completed")
	}
}

// Recovery turns a panic into a 500 with the usual error body.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().
			Str("request_id", requestID(c)).
			Interface("panic", recovered).
			Msg("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			Error:     "internal server error",
			RequestID: requestID(c),
		})
	})
}

// ParseClaims attaches the verified bearer token's claims to the request when
// one is present. It never rejects; RequireAuth does.
func ParseClaims(tokens *auth.TokenIssuer, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const prefix = "Bearer "
		header := c.GetHeader("Authorization")
		if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
			claims, err := tokens.Verify(strings.TrimSpace(header[len(prefix):]))
			if err != nil {
				log.Debug().Err(err).Str("request_id", requestID(c)).Msg("bearer token rejected")
			} else {
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

// Claims returns the caller's verified claims, or nil for anonymous requests.
func Claims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.IsAuthenticated(Claims(c)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Error:     "missing or invalid bearer token",
				RequestID: requestID(c),
			})
			return
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.HasRole(Claims(c), role) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{
				Error:     role + " role required",
				RequestID: requestID(c),
			})
			return
		}
		c.Next()
	}
}
