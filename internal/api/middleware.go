package api

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shareit/internal/config"
	"shareit/internal/domain"
	"shareit/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	userIDHeader    = "X-Sharer-User-Id"
	requestIDKey    = "request_id"
)

func recoveryMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("http handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: kindInternal, Message: internalMessage})
	})
}

func loggingMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.IncHTTP(c.Request.Method + " " + route)
	}
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	keys    *apiKeys
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		keys:    newAPIKeys(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *HTTPAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.keys.cfg.Enabled {
			err := a.keys.authenticate(
				strings.TrimSpace(c.GetHeader(a.keys.keyHeader())),
				strings.TrimSpace(c.GetHeader(a.keys.extraHeader())),
				requiredPermissionHTTP(c.Request),
			)
			if err != nil {
				statusCode, kind := http.StatusUnauthorized, kindUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode, kind = http.StatusForbidden, kindForbidden
				}
				c.AbortWithStatusJSON(statusCode, errorBody{Error: kind, Message: err.Error()})
				return
			}
		}

		if !a.limiter.allow(a.clientKey(c.Request)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: kindTooManyRequest, Message: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func requiredPermissionHTTP(r *http.Request) string {
	if !strings.HasPrefix(r.URL.Path, "/bookings") {
		return ""
	}
	if r.Method == http.MethodGet {
		return permBookingsRead
	}
	return permBookingsWrite
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.keyHeader())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

// quotaMiddleware caps POST, PATCH and DELETE calls per X-Sharer-User-Id.
// Requests without a usable header pass through; the handler rejects them.
// A failing quota store lets requests through.
func quotaMiddleware(quota domain.QuotaRepository, cfg config.QuotaConfig, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		userID, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(userIDHeader)), 10, 64)
		if err != nil {
			c.Next()
			return
		}

		allowed, err := quota.CheckRateLimit(c.Request.Context(), userID, cfg.Limit, cfg.WindowDuration())
		if err != nil {
			logger.Warn().Err(err).Int64("user_id", userID).Msg("quota check failed, allowing request")
			c.Next()
			return
		}
		if !allowed {
			metrics.IncQuotaRejection()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				Error:   kindTooManyRequest,
				Message: "write quota exceeded, retry later",
			})
			return
		}
		c.Next()
	}
}
