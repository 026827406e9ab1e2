package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var allowedAvatarTypes = map[string]string{
	"image/jpeg": "image/jpeg",
	"image/jpg":  "image/jpeg",
	"image/png":  "image/png",
}

func (a *App) uploadAvatar(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	// Leave room for multipart framing around the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.cfg.AvatarMaxBytes+1<<20)
	header, err := c.FormFile("avatar")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(c, http.StatusBadRequest, codeFileTooLarge, "avatar exceeds the upload size limit")
			return
		}
		writeError(c, http.StatusBadRequest, codeInvalidInput, "multipart field avatar is required")
		return
	}
	if header.Size > a.cfg.AvatarMaxBytes {
		writeError(c, http.StatusBadRequest, codeFileTooLarge, "avatar exceeds the upload size limit")
		return
	}
	declared := strings.ToLower(strings.TrimSpace(strings.Split(header.Header.Get("Content-Type"), ";")[0]))
	contentType, allowed := allowedAvatarTypes[declared]
	if !allowed {
		writeError(c, http.StatusBadRequest, codeInvalidFileType, "avatar must be a jpg or png image")
		return
	}

	file, err := header.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "avatar could not be read")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, a.cfg.AvatarMaxBytes+1))
	if err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "avatar could not be read")
		return
	}
	if int64(len(data)) > a.cfg.AvatarMaxBytes {
		writeError(c, http.StatusBadRequest, codeFileTooLarge, "avatar exceeds the upload size limit")
		return
	}
	sniffed := http.DetectContentType(data)
	if _, ok := allowedAvatarTypes[sniffed]; !ok {
		writeError(c, http.StatusBadRequest, codeInvalidFileType, "avatar must be a jpg or png image")
		return
	}

	err = a.avatars.Put(c.Request.Context(), user.ID, Avatar{Data: data, ContentType: contentType})
	if errors.Is(err, ErrUserNotFound) {
		writeError(c, http.StatusNotFound, codeNotFound, "User not found")
		return
	}
	if err != nil {
		a.reportFailure(c, "store avatar failed", err)
		writeError(c, http.StatusInternalServerError, codeStorageError, "Failed to store avatar")
		return
	}

	writeSuccess(c, http.StatusOK, "Avatar uploaded", gin.H{
		"user_id":      user.ID,
		"content_type": contentType,
		"size":         len(data),
	})
}

func (a *App) getAvatar(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	avatar, err := a.avatars.Get(c.Request.Context(), user.ID)
	if errors.Is(err, ErrAvatarNotFound) {
		writeError(c, http.StatusNotFound, codeNotFound, "Avatar not found")
		return
	}
	if err != nil {
		a.reportFailure(c, "load avatar failed", err)
		writeError(c, http.StatusInternalServerError, codeStorageError, "Failed to load avatar")
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, avatar.ContentType, avatar.Data)
}
