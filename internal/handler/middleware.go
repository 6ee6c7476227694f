package handler

import (
	"frecipe_service/internal/auth"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	// headerLegacyToken is sent by older mobile clients instead of
	// Authorization.
	headerLegacyToken = "X-AUTH-TOKEN"

	ctxIdentity  = "identity"
	ctxRequestID = "request_id"
)

// AuthMiddleware rejects requests without a valid token and stores the
// verified identity in the context.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := tokenFromRequest(c)
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, "missing or malformed token")

			return
		}

		identity, err := h.tokens.Verify(tokenStr, h.opts.Now())
		if err != nil {
			newErrorResponse(c, http.StatusUnauthorized, "invalid token")

			return
		}

		c.Set(ctxIdentity, identity)

		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}

		token := strings.TrimSpace(parts[1])
		return token, token != ""
	}

	if token := strings.TrimSpace(c.GetHeader(headerLegacyToken)); token != "" {
		return token, true
	}

	return "", false
}

// identityFrom returns the identity set by AuthMiddleware. Zero identity
// means the route is anonymous.
func identityFrom(c *gin.Context) auth.Identity {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return auth.Identity{}
	}

	identity, _ := v.(auth.Identity)
	return identity
}

// RequestID propagates X-Request-ID or generates a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)

		c.Next()
	}
}

func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", c.GetString(ctxRequestID)),
		)
	}
}
