package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type medicationResponse struct {
	ReminderID string `json:"reminder_id"`
	Name       string `json:"medication_name"`
	Dosage     string `json:"dosage"`
	RemindTime string `json:"remind_time"`
	Enabled    bool   `json:"enabled"`
	Note       string `json:"note"`
	CreatedAt  string `json:"created_at"`
}

func (a *App) createMedication(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req medicationRequest
	if !mustJSON(c, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	dosage := strings.TrimSpace(req.Dosage)
	remindTime := strings.TrimSpace(req.RemindTime)
	if name == "" || remindTime == "" {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "medication_name and remind_time are required")
		return
	}
	if tooLong(name, maxMedicationLength) || tooLong(dosage, maxMedicationLength) {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "medication_name and dosage must be at most 100 characters")
		return
	}
	if !remindTimePattern.MatchString(remindTime) {
		writeError(c, http.StatusBadRequest, codeInvalidDateFormat, "remind_time must be formatted as HH:MM")
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	item := medicationResponse{
		ReminderID: uuid.NewString(),
		Name:       name,
		Dosage:     dosage,
		RemindTime: remindTime,
		Enabled:    enabled,
		Note:       strings.TrimSpace(req.Note),
	}
	var createdAt time.Time
	err := a.db.QueryRow(
		c.Request.Context(),
		`INSERT INTO medication_reminders (reminder_id, user_id, medication_name, dosage, remind_time, enabled, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 RETURNING created_at`,
		item.ReminderID,
		user.ID,
		item.Name,
		item.Dosage,
		item.RemindTime,
		item.Enabled,
		item.Note,
	).Scan(&createdAt)
	if err != nil {
		a.reportFailure(c, "insert medication reminder failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to save medication reminder")
		return
	}
	item.CreatedAt = createdAt.UTC().Format(time.RFC3339)

	writeSuccess(c, http.StatusCreated, "Medication reminder saved", item)
}

func (a *App) listMedications(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT reminder_id, medication_name, dosage, remind_time, enabled, note, created_at
		 FROM medication_reminders
		 WHERE user_id = $1
		 ORDER BY remind_time ASC, created_at ASC`,
		user.ID,
	)
	if err != nil {
		a.reportFailure(c, "list medication reminders failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to load medication reminders")
		return
	}
	defer rows.Close()

	items := make([]medicationResponse, 0)
	for rows.Next() {
		var (
			item      medicationResponse
			createdAt time.Time
		)
		if err := rows.Scan(&item.ReminderID, &item.Name, &item.Dosage, &item.RemindTime, &item.Enabled, &item.Note, &createdAt); err != nil {
			a.reportFailure(c, "scan medication reminder failed", err)
			writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to load medication reminders")
			return
		}
		item.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		a.reportFailure(c, "list medication reminders failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to load medication reminders")
		return
	}

	writeSuccess(c, http.StatusOK, "Medication reminders loaded", items)
}

func (a *App) deleteMedication(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	reminderID := strings.TrimSpace(c.Param("id"))

	tag, err := a.db.Exec(
		c.Request.Context(),
		`DELETE FROM medication_reminders WHERE reminder_id = $1 AND user_id = $2`,
		reminderID,
		user.ID,
	)
	if err != nil {
		a.reportFailure(c, "delete medication reminder failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to delete medication reminder")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(c, http.StatusNotFound, codeNotFound, "Medication reminder not found")
		return
	}

	writeSuccess(c, http.StatusOK, "Medication reminder deleted", gin.H{"reminder_id": reminderID})
}
