package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/auth"
	"github.com/carelogix/go-vaxtrack/internal/domain/identity"
	"github.com/carelogix/go-vaxtrack/internal/observability/metrics"
)

// AuthHandler handles registration and login endpoints
type AuthHandler struct {
	identity *identity.Service
	secret   string
	issuer   string
	tokenTTL time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewAuthHandler creates a new handler
func NewAuthHandler(svc *identity.Service, secret, issuer string, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		identity: svc,
		secret:   secret,
		issuer:   issuer,
		tokenTTL: ttl,
		metrics:  m,
		logger:   logger,
	}
}

// Routes returns the handler routes
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	return r
}

// RegisterRequest is the request body for creating an account
type RegisterRequest struct {
	FirstName   string `json:"first_name"`
	FamilyName  string `json:"family_name"`
	DateOfBirth string `json:"date_of_birth"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		jsonError(w, "date_of_birth must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	account, err := h.identity.Register(ctx, identity.NewAccount{
		FirstName:   req.FirstName,
		FamilyName:  req.FamilyName,
		DateOfBirth: dob,
		Email:       req.Email,
		Password:    req.Password,
		Role:        identity.RoleKind(req.Role),
	})
	if err != nil {
		domainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.AccountsRegistered.WithLabelValues(string(account.Role.Kind)).Inc()
	}

	writeJSON(w, http.StatusCreated, account)
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the signed session token
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresIn int64            `json:"expires_in"`
	Session   identity.Session `json:"session"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.identity.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		// A missing account and a wrong password are indistinguishable.
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.NewAccessToken(h.secret, h.issuer, h.tokenTTL, *session)
	if err != nil {
		h.logger.Error("token signing failed", zap.Error(err))
		jsonError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("login",
		zap.Int64("person_id", session.PersonID),
		zap.String("role", string(session.Role.Kind)))

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresIn: int64(h.tokenTTL.Seconds()),
		Session:   *session,
	})
}
