package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/IlyasAtabaev731/jar-bank/internal/config"
	"github.com/IlyasAtabaev731/jar-bank/internal/domain/models"
	"github.com/IlyasAtabaev731/jar-bank/internal/ledger"
	"github.com/IlyasAtabaev731/jar-bank/internal/lib/apperr"
	"github.com/IlyasAtabaev731/jar-bank/internal/lib/metrics"
	"github.com/gorilla/mux"
)

// Ledger is the set of account operations the HTTP layer exposes.
type Ledger interface {
	Register(ctx context.Context, username, password string) (int64, error)
	Authenticate(ctx context.Context, username, password string) (models.User, error)
	Transfer(ctx context.Context, senderID int64, receiverUsername string, amount int64) error
	History(ctx context.Context, userID int64) ([]models.HistoryEntry, error)
	Profile(ctx context.Context, userID int64) (models.User, error)
	Overview(ctx context.Context) (int64, error)
	Jars(ctx context.Context, userID int64) ([]models.Jar, error)
	CreateJar(ctx context.Context, userID int64, in ledger.JarInput) (int64, error)
	MoveJarFunds(ctx context.Context, userID, jarID, amount int64, direction string) error
	DeleteJar(ctx context.Context, userID, jarID int64) (int64, error)
	CheckAdmin(ctx context.Context, userID int64) error
	SetBan(ctx context.Context, adminID int64, targetUsername string, change ledger.BanChange) error
}

// Rates returns the current USD to EUR rate, or 0 when none is known.
type Rates interface {
	Get(ctx context.Context) float64
}

type APIServer struct {
	config    *config.Config
	logger    *slog.Logger
	server    *http.Server
	ledger    Ledger
	rates     Rates
	metrics   *metrics.Metrics
	limiter   *rateLimiter
	stopSweep func()
	jwtSecret []byte
	tokenTTL  time.Duration
}

func New(config *config.Config, logger *slog.Logger, ledger Ledger, rates Rates, metrics *metrics.Metrics) *APIServer {
	s := &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:              config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:    ledger,
		rates:     rates,
		metrics:   metrics,
		limiter:   newRateLimiter(config.RateLimit.RPS, config.RateLimit.Burst),
		jwtSecret: []byte(config.JWT.Secret),
		tokenTTL:  config.JWT.TokenTTL,
	}

	s.stopSweep = func() {}
	if s.limiter.rate > 0 {
		s.stopSweep = s.limiter.startCleanup(limiterSweepInterval)
	}

	s.configureRouter()

	return s
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("port", strconv.Itoa(s.config.ApiPort)))

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	s.stopSweep()
	return s.server.Shutdown(ctx)
}

// Handler returns the configured router.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()
	router.Use(s.requestID, s.metrics.Instrument, s.limiter.handler)

	router.HandleFunc("/users", s.registerHandler()).Methods(http.MethodPost)
	router.HandleFunc("/tokens", s.tokenHandler()).Methods(http.MethodPost)
	router.HandleFunc("/main", s.overviewHandler()).Methods(http.MethodGet)

	router.HandleFunc("/users/me", s.authenticate(s.profileHandler())).Methods(http.MethodGet)
	router.HandleFunc("/users/{username}", s.authenticate(s.banHandler())).Methods(http.MethodPatch)
	router.HandleFunc("/transactions", s.authenticate(s.transferHandler())).Methods(http.MethodPost)
	router.HandleFunc("/transactions", s.authenticate(s.historyHandler())).Methods(http.MethodGet)
	router.HandleFunc("/jars", s.authenticate(s.jarsHandler())).Methods(http.MethodGet)
	router.HandleFunc("/jars", s.authenticate(s.createJarHandler())).Methods(http.MethodPost)
	router.HandleFunc("/jars/{id:[0-9]+}/transactions", s.authenticate(s.jarFundsHandler())).Methods(http.MethodPost)
	router.HandleFunc("/jars/{id:[0-9]+}", s.authenticate(s.deleteJarHandler())).Methods(http.MethodDelete)
	router.HandleFunc("/admintools", s.authenticate(s.adminToolsHandler())).Methods(http.MethodGet)

	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	s.server.Handler = router
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		s.logger.Error("Unhandled error",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("error", err.Error()),
		)
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "internal error"})
		return
	}

	s.writeJSON(w, statusOf(appErr.Kind), ErrorResponse{Code: string(appErr.Kind), Message: appErr.Message})
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthenticated, apperr.InvalidCredential:
		return http.StatusUnauthorized
	case apperr.InvalidInput, apperr.InvalidOperation, apperr.InsufficientFunds:
		return http.StatusBadRequest
	case apperr.DuplicateIdentity:
		return http.StatusConflict
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.AccountBanned, apperr.PermissionDenied:
		return http.StatusForbidden
	case apperr.TransientStoreFailure, apperr.RateUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// observe counts the outcome of one ledger call.
func (s *APIServer) observe(operation string, err error) {
	if err == nil {
		s.metrics.ObserveOperation(operation, "ok")
		return
	}
	s.metrics.ObserveOperation(operation, string(apperr.KindOf(err)))
}
