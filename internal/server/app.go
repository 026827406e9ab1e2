package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/api/idtoken"

	"healthmate/backend/internal/aicontext"
	"healthmate/backend/internal/config"
)

type dbQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// chatRunner is the slice of aicontext.Pipeline the chat handler needs.
type chatRunner interface {
	Chat(ctx context.Context, userID, message string) (aicontext.Reply, error)
}

type googleVerifier func(ctx context.Context, rawToken, audience string) (*idtoken.Payload, error)

type App struct {
	cfg          config.Config
	db           dbQuerier
	records      *aicontext.PgStore
	chat         chatRunner
	avatars      AvatarStore
	mailer       Mailer
	limiter      *RateLimiter
	verifyGoogle googleVerifier
	logger       *slog.Logger
}

type AuthUser struct {
	ID string
}

type Option func(*App)

func WithChatRunner(runner chatRunner) Option {
	return func(a *App) { a.chat = runner }
}

func WithAvatarStore(store AvatarStore) Option {
	return func(a *App) { a.avatars = store }
}

func WithMailer(mailer Mailer) Option {
	return func(a *App) { a.mailer = mailer }
}

func WithRateLimiter(limiter *RateLimiter) Option {
	return func(a *App) { a.limiter = limiter }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func withGoogleVerifier(verify googleVerifier) Option {
	return func(a *App) { a.verifyGoogle = verify }
}

func New(cfg config.Config, db dbQuerier, opts ...Option) *App {
	app := &App{
		cfg:          cfg,
		db:           db,
		records:      aicontext.NewPgStore(db),
		verifyGoogle: idtoken.Validate,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.chat == nil {
		app.chat = aicontext.NewPipeline(
			app.records,
			newUpstreamClient(cfg),
			aicontext.WithWindowDays(cfg.AIWindowDays),
			aicontext.WithLogger(app.logger),
		)
	}
	if app.avatars == nil {
		app.avatars = NewPgAvatarStore(db)
	}
	if app.mailer == nil {
		app.mailer = NewSMTPMailer(cfg)
	}
	return app
}

func newUpstreamClient(cfg config.Config) aicontext.Client {
	if cfg.AIAPIURL == "" && cfg.IsLocal() {
		return aicontext.EchoClient{}
	}
	return aicontext.NewHTTPClient(cfg.AIAPIURL, time.Duration(cfg.AITimeoutSeconds)*time.Second)
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	if a.cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery(), a.requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)

	api := router.Group(a.cfg.APIPrefix)
	api.POST("/auth/register", a.register)
	api.POST("/auth/login", a.login)
	api.POST("/auth/google", a.googleLogin)

	protected := api.Group("")
	protected.Use(a.authMiddleware())

	protected.GET("/health/basic", a.getBasicHealth)
	protected.POST("/health/basic", a.upsertBasicHealth)
	protected.POST("/health/blood-sugar", a.createBloodSugar)
	protected.GET("/health/blood-sugar", a.listBloodSugar)
	protected.POST("/health/vitals", a.createVital)
	protected.GET("/health/vitals", a.listVitals)
	protected.POST("/health/medications", a.createMedication)
	protected.GET("/health/medications", a.listMedications)
	protected.DELETE("/health/medications/:id", a.deleteMedication)
	protected.POST("/user/avatar", a.uploadAvatar)
	protected.GET("/user/avatar", a.getAvatar)
	protected.POST("/report/issue", a.reportIssue)

	chat := []gin.HandlerFunc{}
	if a.limiter != nil {
		chat = append(chat, a.limiter.Middleware())
	}
	chat = append(chat, a.aiChat)
	protected.POST("/ai/chat", chat...)

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "healthmate-api",
	})
}

type authClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func (a *App) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			writeError(c, http.StatusUnauthorized, codeUnauthorized, "Bearer token required")
			return
		}
		tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
		if tokenString == "" {
			writeError(c, http.StatusUnauthorized, codeUnauthorized, "Bearer token required")
			return
		}

		claims := &authClaims{}
		parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{a.cfg.JWTAlgorithm})}
		if a.cfg.JWTIssuer != "" {
			parserOpts = append(parserOpts, jwt.WithIssuer(a.cfg.JWTIssuer))
		}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return []byte(a.cfg.JWTSecret), nil
		}, parserOpts...)
		if errors.Is(err, jwt.ErrTokenExpired) {
			writeError(c, http.StatusForbidden, codeTokenExpired, "Token has expired")
			return
		}
		if err != nil || !token.Valid {
			writeError(c, http.StatusForbidden, codeInvalidToken, "Invalid bearer token")
			return
		}

		userID := strings.TrimSpace(claims.UserID)
		if userID == "" {
			userID = strings.TrimSpace(claims.Subject)
		}
		if userID == "" {
			writeError(c, http.StatusForbidden, codeInvalidToken, "Token subject missing")
			return
		}

		c.Set("authUser", AuthUser{ID: userID})
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.Scope().SetUser(sentry.User{ID: userID})
		}
		c.Next()
	}
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

// requireUser aborts with 401 when the auth gate did not run.
func requireUser(c *gin.Context) (AuthUser, bool) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, codeUnauthorized, "Unauthorized")
	}
	return user, ok
}

func (a *App) issueToken(userID string, now time.Time) (string, time.Time, error) {
	method := jwt.GetSigningMethod(a.cfg.JWTAlgorithm)
	if method == nil {
		return "", time.Time{}, fmt.Errorf("unsupported signing method %q", a.cfg.JWTAlgorithm)
	}
	expiresAt := now.Add(time.Duration(a.cfg.JWTTTLMinutes) * time.Minute)
	claims := authClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.cfg.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
