package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"healthmate/backend/internal/config"
	"healthmate/backend/internal/db"
)

var (
	testPool              *pgxpool.Pool
	baseTestConfig        config.Config
	integrationDBReady    bool
	integrationSkipReason string
	quietLogger           = slog.New(slog.NewJSONHandler(io.Discard, nil))
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	baseTestConfig = newTestConfig()

	testDatabaseURL := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if testDatabaseURL == "" {
		integrationSkipReason = "integration tests skipped: TEST_DATABASE_URL is not set"
		fmt.Fprintln(os.Stderr, integrationSkipReason)
		os.Exit(m.Run())
	}
	testDatabaseURL = withSimpleProtocol(testDatabaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Connect(ctx, testDatabaseURL)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration test setup failed: cannot connect TEST_DATABASE_URL: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	err = db.ApplySchema(ctx, pool)
	cancel()
	if err != nil {
		pool.Close()
		fmt.Fprintf(os.Stderr, "integration test setup failed: apply schema: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	err = ValidateRuntimeSchema(ctx, pool)
	cancel()
	if err != nil {
		pool.Close()
		fmt.Fprintf(os.Stderr, "integration test setup failed: %v\n", err)
		os.Exit(1)
	}

	testPool = pool
	integrationDBReady = true

	exitCode := m.Run()
	testPool.Close()
	os.Exit(exitCode)
}

func withSimpleProtocol(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	queries := parsed.Query()
	queries.Set("default_query_exec_mode", "simple_protocol")
	parsed.RawQuery = queries.Encode()
	return parsed.String()
}

func newTestConfig() config.Config {
	cfg := config.Config{
		AppEnv:           "test",
		AppName:          "Healthmate API Test",
		APIPrefix:        "/api/v1",
		AppPort:          "0",
		DatabaseURL:      "test",
		JWTSecret:        "test-secret-1234567890",
		JWTAlgorithm:     "HS256",
		JWTTTLMinutes:    60,
		AIAPIURL:         "http://127.0.0.1:1",
		AITimeoutSeconds: 2,
		AIWindowDays:     7,
		AvatarStorage:    config.AvatarStorageDB,
		AvatarMaxBytes:   64 * 1024,
		CORSAllowOrigins: []string{
			"http://localhost:5173",
		},
	}

	if v := strings.TrimSpace(os.Getenv("TEST_JWT_SECRET")); v != "" {
		cfg.JWTSecret = v
	}
	return cfg
}

func requireIntegration(t *testing.T) {
	t.Helper()
	if !integrationDBReady {
		if integrationSkipReason == "" {
			integrationSkipReason = "integration tests skipped: TEST_DATABASE_URL is not configured"
		}
		t.Skip(integrationSkipReason)
	}
}

func newTestRouter(t *testing.T, opts ...Option) *gin.Engine {
	t.Helper()
	return newTestRouterWithConfig(t, baseTestConfig, opts...)
}

func newTestRouterWithConfig(t *testing.T, cfg config.Config, opts ...Option) *gin.Engine {
	t.Helper()
	requireIntegration(t)
	opts = append([]Option{WithLogger(quietLogger)}, opts...)
	return New(cfg, testPool, opts...).Router()
}

// newUnitRouter builds a router without a database for handler tests that
// never reach storage.
func newUnitRouter(t *testing.T, opts ...Option) *gin.Engine {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger)}, opts...)
	return New(baseTestConfig, nil, opts...).Router()
}

func resetDatabase(t *testing.T) {
	t.Helper()
	requireIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := testPool.Exec(
		ctx,
		`TRUNCATE TABLE
			issue_reports,
			medication_reminders,
			vital_records,
			blood_sugar_records,
			basic_health_info,
			users
		RESTART IDENTITY CASCADE`,
	)
	if err != nil {
		t.Fatalf("reset database: %v", err)
	}
}

func seedUser(t *testing.T, username, password string) string {
	t.Helper()
	requireIntegration(t)
	userID := testID()
	if strings.TrimSpace(username) == "" {
		username = "user-" + userID[:8]
	}
	hash := ""
	if password != "" {
		raw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		hash = string(raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := testPool.Exec(
		ctx,
		`INSERT INTO users (user_id, username, password_hash, email, display_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		userID,
		username,
		hash,
		username+"@example.com",
		"display "+userID[:8],
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return userID
}

func seedProfile(t *testing.T, userID string, height, weight float64, birthday time.Time, gender *int16) {
	t.Helper()
	requireIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := testPool.Exec(
		ctx,
		`INSERT INTO basic_health_info (health_id, user_id, height, weight, birthday, gender, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		testID(),
		userID,
		height,
		weight,
		birthday,
		gender,
	)
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func seedBloodSugar(t *testing.T, userID string, measuredAt time.Time, measurementContext string, value float64) string {
	t.Helper()
	requireIntegration(t)
	recordID := testID()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := testPool.Exec(
		ctx,
		`INSERT INTO blood_sugar_records (record_id, user_id, measurement_date, measurement_context, blood_sugar, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		recordID,
		userID,
		measuredAt,
		measurementContext,
		value,
	)
	if err != nil {
		t.Fatalf("seed blood sugar: %v", err)
	}
	return recordID
}

func seedVital(t *testing.T, userID string, measuredAt time.Time, heartRate, systolic, diastolic int) string {
	t.Helper()
	requireIntegration(t)
	vitalID := testID()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := testPool.Exec(
		ctx,
		`INSERT INTO vital_records (vital_id, user_id, measurement_date, heart_rate, systolic_pressure, diastolic_pressure, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		vitalID,
		userID,
		measuredAt,
		heartRate,
		systolic,
		diastolic,
	)
	if err != nil {
		t.Fatalf("seed vital: %v", err)
	}
	return vitalID
}

func signToken(t *testing.T, userID string, overrides map[string]any) string {
	t.Helper()
	return signTokenWithConfig(t, baseTestConfig, userID, overrides)
}

func signTokenWithConfig(t *testing.T, cfg config.Config, userID string, overrides map[string]any) string {
	t.Helper()

	claims := jwt.MapClaims{
		"exp": time.Now().UTC().Add(1 * time.Hour).Unix(),
		"iat": time.Now().UTC().Add(-1 * time.Minute).Unix(),
	}
	if strings.TrimSpace(userID) != "" {
		claims["user_id"] = userID
	}
	if strings.TrimSpace(cfg.JWTIssuer) != "" {
		claims["iss"] = cfg.JWTIssuer
	}
	for key, value := range overrides {
		if value == nil {
			delete(claims, key)
			continue
		}
		claims[key] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func performRequest(
	t *testing.T,
	router http.Handler,
	method, targetPath, token string,
	body any,
	headers map[string]string,
) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch v := body.(type) {
	case nil:
	case string:
		payload = []byte(v)
	default:
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, targetPath, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSONMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response JSON: %v; body=%s", err, rec.Body.String())
	}
	return payload
}

func responseErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeJSONMap(t, rec)
	if body["status"] != "error" {
		t.Fatalf("expected error envelope, got %v", body)
	}
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func responseData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := decodeJSONMap(t, rec)
	if body["status"] != "success" {
		t.Fatalf("expected success envelope, got %v", body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %T", body["data"])
	}
	return data
}

func testID() string {
	return uuid.NewString()
}
