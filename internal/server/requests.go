package server

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

type basicHealthRequest struct {
	Height   *float64 `json:"height"`
	Weight   *float64 `json:"weight"`
	Birthday *string  `json:"birthday"`
	Gender   *int     `json:"gender"`
}

type bloodSugarRequest struct {
	Value      *float64 `json:"blood_sugar"`
	Context    string   `json:"measurement_context"`
	MeasuredAt string   `json:"measurement_date"`
}

type vitalRequest struct {
	HeartRate  *int   `json:"heart_rate"`
	Systolic   *int   `json:"systolic_pressure"`
	Diastolic  *int   `json:"diastolic_pressure"`
	MeasuredAt string `json:"measurement_date"`
}

type medicationRequest struct {
	Name       string `json:"medication_name"`
	Dosage     string `json:"dosage"`
	RemindTime string `json:"remind_time"`
	Note       string `json:"note"`
	Enabled    *bool  `json:"enabled"`
}

type issueReportRequest struct {
	Description string `json:"issue_description"`
}

type chatRequest struct {
	Message *string `json:"message"`
}

var errInvalidDate = errors.New("date must be YYYY-MM-DD")

var (
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	datePattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	remindTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

const (
	maxUsernameLength    = 50
	maxEmailLength       = 100
	maxDisplayNameLength = 50
	maxMedicationLength  = 100
	maxIssueLength       = 1000
	defaultListDays      = 7
	maxListDays          = 90
)

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "Invalid request payload")
		return false
	}
	return true
}

func tooLong(value string, limit int) bool {
	return utf8.RuneCountInString(value) > limit
}

// parseDate accepts YYYY-MM-DD only.
func parseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if !datePattern.MatchString(trimmed) {
		return time.Time{}, errInvalidDate
	}
	return time.Parse("2006-01-02", trimmed)
}

// parseMeasuredAt defaults an empty value to now.
func parseMeasuredAt(value string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return now, nil
	}
	return time.Parse(time.RFC3339, trimmed)
}

func inRange[T int | float64](value, low, high T) bool {
	return value >= low && value <= high
}
