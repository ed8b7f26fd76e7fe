package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/MJE43/promo-games-go/internal/games"
	"github.com/MJE43/promo-games-go/internal/promo"
	"github.com/MJE43/promo-games-go/internal/store"
)

// Promotions is the game service behind the HTTP API.
type Promotions interface {
	LoadWheel(ctx context.Context, wheelID, customerID string) (*promo.WheelView, error)
	Spin(ctx context.Context, wheelID, customerID string) (*promo.SpinOutcome, error)
	ClaimSpin(ctx context.Context, receipt string) (*promo.ClaimOutcome, error)
	LoadScratchCard(ctx context.Context, cardID, customerID string) (*promo.ScratchView, error)
	Scratch(ctx context.Context, cardID, customerID string, strokes []promo.Stroke) (*promo.ScratchView, error)
	ClaimScratch(ctx context.Context, cardID, customerID string) (*promo.ClaimOutcome, error)
	LoadQuiz(ctx context.Context, quizID, customerID, gameType string) (*games.Quiz, error)
	SubmitQuiz(ctx context.Context, sub promo.QuizSubmission) (*promo.QuizOutcome, error)
	SubmitContact(ctx context.Context, form promo.ContactForm) (*store.Contact, error)
	SessionCounts() (wheels, cards int)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP server.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// StaticDir, when set, is served as a single-page app.
	StaticDir      string
	RotationPolicy games.RotationPolicy
	Logger         logrus.FieldLogger
}

// Server handles HTTP requests
type Server struct {
	svc            Promotions
	db             Pinger
	opts           Options
	errorHandler   *ErrorHandler
	logger         logrus.FieldLogger
	securityLogger *SecurityLogger
	startTime      time.Time
}

// NewServer creates a new API server
func NewServer(svc Promotions, db Pinger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RotationPolicy == (games.RotationPolicy{}) {
		opts.RotationPolicy = games.DefaultRotationPolicy()
	}
	logger := opts.Logger.WithField("component", "api")
	securityLogger := NewSecurityLogger(opts.Logger)

	server := &Server{
		svc:            svc,
		db:             db,
		opts:           opts,
		errorHandler:   NewErrorHandler(logger, securityLogger),
		logger:         logger,
		securityLogger: securityLogger,
		startTime:      time.Now(),
	}

	securityLogger.LogSystemStartup(map[string]interface{}{
		"games_available":  len(games.ListGames()),
		"database_enabled": db != nil,
		"static_dir":       opts.StaticDir,
	})

	return server
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.SecurityLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(s.CORSMiddleware())

	// Health and monitoring endpoints
	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)

	// Site endpoint kept at its original path.
	r.Post("/api/contact", s.handleContact)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games", s.handleListGames)
		r.Post("/wheel/plan", s.handlePlan)

		r.Route("/spin-wheels", func(r chi.Router) {
			r.Post("/claim", s.handleClaimSpin)
			r.Get("/{wheelID}", s.handleLoadWheel)
			r.Post("/{wheelID}/spin", s.handleSpin)
		})

		r.Route("/scratch-cards/{cardID}", func(r chi.Router) {
			r.Get("/", s.handleLoadScratchCard)
			r.Post("/strokes", s.handleScratch)
			r.Post("/claim", s.handleClaimScratch)
		})

		r.Route("/quizzes/{quizID}", func(r chi.Router) {
			r.Get("/", s.handleLoadQuiz)
			r.Post("/submit", s.handleSubmitQuiz)
		})
	})

	if s.opts.StaticDir != "" {
		r.NotFound(s.spaHandler(s.opts.StaticDir))
	}

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Server-Version", ServerVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("encode response")
	}
}
