package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (a *App) reportIssue(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req issueReportRequest
	if !mustJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "issue_description is required")
		return
	}
	if tooLong(req.Description, maxIssueLength) {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "issue_description must be at most 1000 characters")
		return
	}

	ctx := c.Request.Context()
	report := IssueReport{
		ReportID:    uuid.NewString(),
		UserID:      user.ID,
		Description: req.Description,
	}
	var email *string
	err := a.db.QueryRow(
		ctx,
		`SELECT display_name, email FROM users WHERE user_id = $1`,
		user.ID,
	).Scan(&report.DisplayName, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, codeNotFound, "User not found")
		return
	}
	if err != nil {
		a.reportFailure(c, "load reporting user failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to submit issue report")
		return
	}
	if email != nil {
		report.Email = *email
	}

	err = a.db.QueryRow(
		ctx,
		`INSERT INTO issue_reports (report_id, user_id, issue_description, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING created_at`,
		report.ReportID,
		user.ID,
		report.Description,
	).Scan(&report.ReportedAt)
	if err != nil {
		a.reportFailure(c, "insert issue report failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to submit issue report")
		return
	}

	data := gin.H{"report_id": report.ReportID, "mail_sent": false}
	err = a.mailer.SendIssueReport(ctx, report)
	switch {
	case errors.Is(err, ErrMailDisabled):
		a.logger.Warn("issue report stored without mail delivery", "report_id", report.ReportID)
	case err != nil:
		a.reportFailure(c, "issue report mail failed", err, "report_id", report.ReportID)
		writeErrorDetails(c, http.StatusBadGateway, codeMailError, "Issue report was stored but the notification mail failed", gin.H{
			"report_id": report.ReportID,
		})
		return
	default:
		data["mail_sent"] = true
	}

	data["reported_at"] = report.ReportedAt.UTC().Format(time.RFC3339)
	writeSuccess(c, http.StatusCreated, "Issue reported", data)
}
