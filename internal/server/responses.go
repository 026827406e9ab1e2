package server

import (
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

const (
	codeInvalidInput       = "INVALID_INPUT"
	codeInputOutOfRange    = "INPUT_OUT_OF_RANGE"
	codeInvalidDateFormat  = "INVALID_DATE_FORMAT"
	codeInvalidGender      = "INVALID_GENDER_INPUT"
	codeInvalidFileType    = "INVALID_FILE_TYPE"
	codeFileTooLarge       = "FILE_TOO_LARGE"
	codeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeUnauthorized       = "UNAUTHORIZED"
	codeInvalidToken       = "INVALID_TOKEN"
	codeTokenExpired       = "TOKEN_EXPIRED"
	codeNotFound           = "NOT_FOUND"
	codeRateLimited        = "RATE_LIMITED"
	codeDatabaseError      = "DATABASE_ERROR"
	codeAIAPIError         = "AI_API_ERROR"
	codeRequestTimeout     = "REQUEST_TIMEOUT"
	codeMailError          = "MAIL_ERROR"
	codeStorageError       = "STORAGE_ERROR"
	codeNotConfigured      = "NOT_CONFIGURED"
	codeInternal           = "INTERNAL_SERVER_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeSuccess(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

func writeError(c *gin.Context, status int, code, message string) {
	writeErrorDetails(c, status, code, message, nil)
}

func writeErrorDetails(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, gin.H{
		"status": "error",
		"error": errorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// reportFailure logs err with the request id and forwards it to Sentry when
// the request carries a hub.
func (a *App) reportFailure(c *gin.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs,
		"request_id", c.GetString(requestIDKey),
		"path", c.FullPath(),
		"error", err,
	)
	if user, ok := authUserFromContext(c); ok {
		attrs = append(attrs, "user_id", user.ID)
	}
	a.logger.ErrorContext(c.Request.Context(), msg, attrs...)

	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("request_id", c.GetString(requestIDKey))
			scope.SetExtra("message", msg)
			hub.CaptureException(err)
		})
	}
}
