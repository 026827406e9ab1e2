package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"healthmate/backend/internal/aicontext"
)

func (a *App) aiChat(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == nil || strings.TrimSpace(*req.Message) == "" {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "message must be a non-empty string")
		return
	}

	reply, err := a.chat.Chat(c.Request.Context(), user.ID, *req.Message)
	if err != nil {
		a.writeChatError(c, err)
		return
	}
	writeSuccess(c, http.StatusOK, "AI reply received", reply.Data)
}

func (a *App) writeChatError(c *gin.Context, err error) {
	var (
		storageErr  *aicontext.StorageError
		upstreamErr *aicontext.UpstreamError
	)
	switch {
	case errors.Is(err, aicontext.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, codeInvalidInput, "message must be a non-empty string")
	case errors.Is(err, aicontext.ErrProfileNotFound):
		writeError(c, http.StatusNotFound, codeNotFound, "Basic health profile not found; submit height, weight and birthday first")
	case errors.As(err, &storageErr):
		a.reportFailure(c, "ai context query failed", err, "op", storageErr.Op)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to load health records")
	case errors.As(err, &upstreamErr):
		a.logger.Warn("ai upstream returned an error",
			"request_id", c.GetString(requestIDKey),
			"upstream_status", upstreamErr.StatusCode,
		)
		writeErrorDetails(c, http.StatusInternalServerError, codeAIAPIError, "AI service returned an error", upstreamErr.Body)
	case errors.Is(err, aicontext.ErrUpstreamTimeout):
		writeError(c, http.StatusRequestTimeout, codeRequestTimeout, "AI service did not respond in time")
	default:
		a.reportFailure(c, "ai chat failed", err)
		writeError(c, http.StatusInternalServerError, codeInternal, "Internal server error")
	}
}
