package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"healthmate/backend/internal/aicontext"
)

type bloodSugarResponse struct {
	RecordID   string   `json:"record_id"`
	MeasuredAt string   `json:"measurement_date"`
	Context    string   `json:"measurement_context"`
	Value      *float64 `json:"blood_sugar"`
}

type vitalResponse struct {
	VitalID    string `json:"vital_id"`
	MeasuredAt string `json:"measurement_date"`
	HeartRate  *int   `json:"heart_rate"`
	Systolic   *int   `json:"systolic_pressure"`
	Diastolic  *int   `json:"diastolic_pressure"`
}

func (a *App) createBloodSugar(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req bloodSugarRequest
	if !mustJSON(c, &req) {
		return
	}

	measurementCtx := aicontext.ParseMeasurementContext(req.Context)
	if req.Value == nil || !measurementCtx.Valid() {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "blood_sugar and measurement_context (fasting, before_meal, after_meal) are required")
		return
	}
	if !inRange(*req.Value, 10, 1000) {
		writeError(c, http.StatusBadRequest, codeInputOutOfRange, "blood_sugar must be 10-1000 mg/dL")
		return
	}
	measuredAt, err := parseMeasuredAt(req.MeasuredAt, time.Now())
	if err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidDateFormat, "measurement_date must be RFC3339")
		return
	}

	recordID := uuid.NewString()
	_, err = a.db.Exec(
		c.Request.Context(),
		`INSERT INTO blood_sugar_records (record_id, user_id, measurement_date, measurement_context, blood_sugar, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		recordID,
		user.ID,
		measuredAt,
		string(measurementCtx),
		*req.Value,
	)
	if err != nil {
		a.reportFailure(c, "insert blood sugar failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to save blood sugar record")
		return
	}

	writeSuccess(c, http.StatusCreated, "Blood sugar record saved", bloodSugarResponse{
		RecordID:   recordID,
		MeasuredAt: measuredAt.Format(time.RFC3339),
		Context:    string(measurementCtx),
		Value:      req.Value,
	})
}

func (a *App) listBloodSugar(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	days, ok := parseListDays(c)
	if !ok {
		return
	}

	records, err := a.records.ListBloodSugar(c.Request.Context(), user.ID, aicontext.TrailingWindow(time.Now(), days))
	if err != nil {
		a.reportFailure(c, "list blood sugar failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to load blood sugar records")
		return
	}

	items := make([]bloodSugarResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, bloodSugarResponse{
			RecordID:   rec.RecordID,
			MeasuredAt: rec.MeasuredAt.Format(time.RFC3339),
			Context:    string(rec.Context),
			Value:      rec.Value,
		})
	}
	writeSuccess(c, http.StatusOK, "Blood sugar records loaded", gin.H{"days": days, "records": items})
}

func (a *App) createVital(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req vitalRequest
	if !mustJSON(c, &req) {
		return
	}

	if req.HeartRate == nil || req.Systolic == nil || req.Diastolic == nil {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "heart_rate, systolic_pressure and diastolic_pressure are required")
		return
	}
	if !inRange(*req.HeartRate, 20, 250) || !inRange(*req.Systolic, 50, 300) || !inRange(*req.Diastolic, 30, 200) {
		writeError(c, http.StatusBadRequest, codeInputOutOfRange, "heart rate or blood pressure is out of range")
		return
	}
	measuredAt, err := parseMeasuredAt(req.MeasuredAt, time.Now())
	if err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidDateFormat, "measurement_date must be RFC3339")
		return
	}

	vitalID := uuid.NewString()
	_, err = a.db.Exec(
		c.Request.Context(),
		`INSERT INTO vital_records (vital_id, user_id, measurement_date, heart_rate, systolic_pressure, diastolic_pressure, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		vitalID,
		user.ID,
		measuredAt,
		*req.HeartRate,
		*req.Systolic,
		*req.Diastolic,
	)
	if err != nil {
		a.reportFailure(c, "insert vital failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to save vital record")
		return
	}

	writeSuccess(c, http.StatusCreated, "Vital record saved", vitalResponse{
		VitalID:    vitalID,
		MeasuredAt: measuredAt.Format(time.RFC3339),
		HeartRate:  req.HeartRate,
		Systolic:   req.Systolic,
		Diastolic:  req.Diastolic,
	})
}

func (a *App) listVitals(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	days, ok := parseListDays(c)
	if !ok {
		return
	}

	records, err := a.records.ListVitals(c.Request.Context(), user.ID, aicontext.TrailingWindow(time.Now(), days))
	if err != nil {
		a.reportFailure(c, "list vitals failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to load vital records")
		return
	}

	items := make([]vitalResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, vitalResponse{
			VitalID:    rec.VitalID,
			MeasuredAt: rec.MeasuredAt.Format(time.RFC3339),
			HeartRate:  rec.HeartRate,
			Systolic:   rec.Systolic,
			Diastolic:  rec.Diastolic,
		})
	}
	writeSuccess(c, http.StatusOK, "Vital records loaded", gin.H{"days": days, "records": items})
}

func parseListDays(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("days"))
	if raw == "" {
		return defaultListDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxListDays {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "days must be an integer between 1 and 90")
		return 0, false
	}
	return days, true
}
