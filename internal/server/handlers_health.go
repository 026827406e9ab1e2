package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type basicHealthResponse struct {
	HealthID  string   `json:"health_id"`
	UserID    string   `json:"user_id"`
	Height    *float64 `json:"height"`
	Weight    *float64 `json:"weight"`
	Birthday  *string  `json:"birthday"`
	Gender    *int16   `json:"gender"`
	UpdatedAt string   `json:"updated_at"`
}

func (a *App) getBasicHealth(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	row, err := a.loadBasicHealth(c.Request.Context(), a.db, user.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, codeNotFound, "Basic health profile not found; submit height, weight and birthday first")
		return
	}
	if err != nil {
		a.reportFailure(c, "load basic health failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to load basic health profile")
		return
	}
	writeSuccess(c, http.StatusOK, "Basic health profile loaded", row)
}

func (a *App) upsertBasicHealth(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req basicHealthRequest
	if !mustJSON(c, &req) {
		return
	}

	if req.Height == nil || req.Weight == nil || req.Birthday == nil || strings.TrimSpace(*req.Birthday) == "" {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "height, weight and birthday are required")
		return
	}
	if !inRange(*req.Height, 100, 250) || !inRange(*req.Weight, 20, 300) {
		writeError(c, http.StatusBadRequest, codeInputOutOfRange, "height must be 100-250 cm and weight 20-300 kg")
		return
	}
	birthday, err := parseDate(*req.Birthday)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidDateFormat, "birthday must be formatted as YYYY-MM-DD")
		return
	}
	var gender *int16
	if req.Gender != nil {
		if !inRange(*req.Gender, 0, 2) {
			writeError(c, http.StatusBadRequest, codeInvalidGender, "gender must be 0 (male), 1 (female) or 2 (other)")
			return
		}
		value := int16(*req.Gender)
		gender = &value
	}

	ctx := c.Request.Context()
	_, err = a.db.Exec(
		ctx,
		`INSERT INTO basic_health_info (health_id, user_id, height, weight, birthday, gender, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		   height = EXCLUDED.height,
		   weight = EXCLUDED.weight,
		   birthday = EXCLUDED.birthday,
		   gender = EXCLUDED.gender,
		   updated_at = NOW()`,
		uuid.NewString(),
		user.ID,
		*req.Height,
		*req.Weight,
		birthday,
		gender,
	)
	if err != nil {
		a.reportFailure(c, "upsert basic health failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to save basic health profile")
		return
	}

	row, err := a.loadBasicHealth(ctx, a.db, user.ID)
	if err != nil {
		a.reportFailure(c, "reload basic health failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to load basic health profile")
		return
	}
	writeSuccess(c, http.StatusCreated, "Basic health profile updated", row)
}

func (a *App) loadBasicHealth(ctx context.Context, q dbQuerier, userID string) (basicHealthResponse, error) {
	row := basicHealthResponse{}
	err := q.QueryRow(
		ctx,
		`SELECT health_id, user_id, height::float8, weight::float8,
		        to_char(birthday, 'YYYY-MM-DD'), gender,
		        to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		 FROM basic_health_info
		 WHERE user_id = $1`,
		userID,
	).Scan(&row.HealthID, &row.UserID, &row.Height, &row.Weight, &row.Birthday, &row.Gender, &row.UpdatedAt)
	return row, err
}
