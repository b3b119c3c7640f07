package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerAuthorization = "Authorization"
	bearerPrefix        = "Bearer "

	errorValueAdminDisabled = "admin_disabled"
	errorValueMissingBearer = "missing_bearer"
	errorValueForbidden     = "forbidden"

	logEventHTTPRequest = "http_request"
)

// RequestLogger logs one structured entry per request after the handler chain completes.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		fields := []zap.Field{
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
		}
		if len(context.Errors) > 0 {
			fields = append(fields, zap.String("errors", context.Errors.String()))
		}
		logger.Info(logEventHTTPRequest, fields...)
	}
}

// AdminAuthMiddleware requires the configured bearer token; an empty token disables the API.
func AdminAuthMiddleware(adminBearerToken string) gin.HandlerFunc {
	expectedToken := []byte(adminBearerToken)
	return func(context *gin.Context) {
		if len(expectedToken) == 0 {
			context.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueAdminDisabled})
			return
		}
		authorizationHeader := strings.TrimSpace(context.GetHeader(headerAuthorization))
		if !strings.HasPrefix(authorizationHeader, bearerPrefix) {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: errorValueMissingBearer})
			return
		}
		provided := []byte(strings.TrimSpace(strings.TrimPrefix(authorizationHeader, bearerPrefix)))
		if subtle.ConstantTimeCompare(provided, expectedToken) != 1 {
			context.AbortWithStatusJSON(http.StatusForbidden, gin.H{jsonKeyError: errorValueForbidden})
			return
		}
		context.Next()
	}
}
