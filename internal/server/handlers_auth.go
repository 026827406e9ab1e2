package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

func (a *App) register(c *gin.Context) {
	var req registerRequest
	if !mustJSON(c, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if req.Username == "" || req.Password == "" || req.Email == "" || req.DisplayName == "" {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "username, password, email and display_name are required")
		return
	}
	if tooLong(req.Username, maxUsernameLength) || tooLong(req.Email, maxEmailLength) || tooLong(req.DisplayName, maxDisplayNameLength) {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "username, email or display_name exceeds length limit")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "email format is invalid")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			writeError(c, http.StatusBadRequest, codeInvalidInput, "password is too long")
			return
		}
		a.reportFailure(c, "hash password failed", err)
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to register user")
		return
	}

	userID := uuid.NewString()
	_, err = a.db.Exec(
		c.Request.Context(),
		`INSERT INTO users (user_id, username, password_hash, email, display_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		userID,
		req.Username,
		string(hash),
		req.Email,
		req.DisplayName,
	)
	if isUniqueViolation(err) {
		writeError(c, http.StatusBadRequest, codeDuplicateAccount, "username or email already exists")
		return
	}
	if err != nil {
		a.reportFailure(c, "insert user failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to register user")
		return
	}

	writeSuccess(c, http.StatusCreated, "Registration successful", gin.H{"user_id": userID})
}

func (a *App) login(c *gin.Context) {
	var req loginRequest
	if !mustJSON(c, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "username and password are required")
		return
	}

	var (
		userID       string
		passwordHash string
	)
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT user_id, password_hash FROM users WHERE username = $1`,
		username,
	).Scan(&userID, &passwordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusBadRequest, codeInvalidCredentials, "Invalid username or password")
		return
	}
	if err != nil {
		a.reportFailure(c, "load user failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to sign in")
		return
	}
	// Google-only accounts have no password hash.
	if passwordHash == "" || bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)) != nil {
		writeError(c, http.StatusBadRequest, codeInvalidCredentials, "Invalid username or password")
		return
	}

	a.writeToken(c, userID, "Login successful")
}

func (a *App) googleLogin(c *gin.Context) {
	if strings.TrimSpace(a.cfg.GoogleClientID) == "" {
		writeError(c, http.StatusServiceUnavailable, codeNotConfigured, "Google sign-in is not configured")
		return
	}
	var req googleLoginRequest
	if !mustJSON(c, &req) {
		return
	}
	rawToken := strings.TrimSpace(req.IDToken)
	if rawToken == "" {
		writeError(c, http.StatusBadRequest, codeInvalidInput, "id_token is required")
		return
	}

	payload, err := a.verifyGoogle(c.Request.Context(), rawToken, a.cfg.GoogleClientID)
	if err != nil || payload == nil || strings.TrimSpace(payload.Subject) == "" {
		writeError(c, http.StatusForbidden, codeInvalidToken, "Invalid Google ID token")
		return
	}
	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)

	userID, err := a.findOrCreateGoogleUser(c.Request.Context(), payload.Subject, email, name)
	if isUniqueViolation(err) {
		writeError(c, http.StatusBadRequest, codeDuplicateAccount, "email already belongs to another account")
		return
	}
	if err != nil {
		a.reportFailure(c, "google user upsert failed", err)
		writeError(c, http.StatusInternalServerError, codeDatabaseError, "Failed to sign in")
		return
	}

	a.writeToken(c, userID, "Login successful")
}

// findOrCreateGoogleUser links by google_sub first, then by email, and
// creates a password-less account otherwise.
func (a *App) findOrCreateGoogleUser(ctx context.Context, googleSub, email, name string) (string, error) {
	var userID string
	err := a.db.QueryRow(ctx, `SELECT user_id FROM users WHERE google_sub = $1`, googleSub).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	email = strings.TrimSpace(email)
	if email != "" {
		err = a.db.QueryRow(
			ctx,
			`UPDATE users SET google_sub = $2 WHERE email = $1 AND google_sub IS NULL RETURNING user_id`,
			email,
			googleSub,
		).Scan(&userID)
		if err == nil {
			return userID, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", err
		}
	}

	userID = uuid.NewString()
	displayName := strings.TrimSpace(name)
	if displayName == "" {
		displayName = "user-" + userID[:8]
	}
	var emailValue any
	if email != "" {
		emailValue = email
	}
	_, err = a.db.Exec(
		ctx,
		`INSERT INTO users (user_id, username, password_hash, email, display_name, google_sub, created_at)
		 VALUES ($1, $2, '', $3, $4, $5, NOW())`,
		userID,
		"google-"+googleSub,
		emailValue,
		truncateRunes(displayName, maxDisplayNameLength),
		googleSub,
	)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (a *App) writeToken(c *gin.Context, userID, message string) {
	token, expiresAt, err := a.issueToken(userID, time.Now().UTC())
	if err != nil {
		a.reportFailure(c, "sign token failed", err)
		writeError(c, http.StatusInternalServerError, codeInternal, "Failed to issue token")
		return
	}
	writeSuccess(c, http.StatusOK, message, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expiresAt.Format(time.RFC3339),
		"user_id":    userID,
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
