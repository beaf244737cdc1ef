package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/partyhop/backend/internal/auth"
	"github.com/partyhop/backend/internal/logging"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/repositories"
)

const (
	maxDisplayNameLength = 60
	minPasswordLength    = 8
)

// AuthHandler implements account and session endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r, "login", true) {
		return
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req credentials
	if !decodeBody(w, r, &req) {
		return
	}
	req.normalize()
	if req.Email == "" || req.Password == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("login user lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}

	h.issue(w, r, user.ID, http.StatusOK)
}

// SignUp handles POST /api/v1/auth/signup requests. The display name defaults
// to the local part of the email address.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r, "signup", true) {
		return
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req credentials
	if !decodeBody(w, r, &req) {
		return
	}
	req.normalize()
	if msg := req.validateSignUp(); msg != "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: msg})
		return
	}

	_, err := h.Users.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		respondJSON(ctx, w, http.StatusConflict, errorResponse{Error: "account already exists"})
		return
	case !errors.Is(err, repositories.ErrNotFound):
		logger.Error("signup user lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
		return
	}

	now := h.now()
	user := models.User{
		ID:          uuid.NewString(),
		Email:       req.Email,
		Password:    string(hashed),
		DisplayName: req.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, errorResponse{Error: "account already exists"})
			return
		}
		logger.Error("create user", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
		return
	}

	h.issue(w, r, user.ID, http.StatusCreated)
}

// Refresh exchanges a refresh token for a new session. Each refresh token is
// single use.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r, "", false) {
		return
	}
	ctx := r.Context()

	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "refresh token is required"})
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, token)
	switch {
	case err == nil:
		respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
	case errors.Is(err, auth.ErrRefreshTokenExpired), errors.Is(err, auth.ErrSessionNotFound):
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "unable to refresh session"})
	default:
		logging.FromContext(ctx).Error("refresh session", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
	}
}

// Logout revokes the posted refresh token and the bearer access token the
// request was made with. An empty body is allowed.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r, "", false) {
		return
	}
	ctx := r.Context()

	var req refreshRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	if token := strings.TrimSpace(req.RefreshToken); token != "" {
		h.Sessions.Revoke(ctx, token)
	}
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			h.Sessions.Revoke(ctx, token)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset requests. The
// response never reveals whether the account exists.
func (h AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	if h.Users == nil {
		logging.FromContext(ctx).Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "authentication services unavailable"})
		return
	}

	var req credentials
	if !decodeBody(w, r, &req) {
		return
	}
	req.normalize()
	if _, err := mail.ParseAddress(req.Email); req.Email == "" || err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "a valid email is required"})
		return
	}

	if _, err := h.Users.FindByEmail(ctx, req.Email); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logging.FromContext(ctx).Error("password reset lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "Something went wrong"})
		return
	}

	respondJSON(ctx, w, http.StatusAccepted, map[string]string{
		"status": "If an account exists for that email, password reset instructions have been sent.",
	})
}

// accept checks the method, the wired dependencies and, when scope is set,
// the rate limit. It writes the response itself when the request is refused.
func (h AuthHandler) accept(w http.ResponseWriter, r *http.Request, scope string, needUsers bool) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if h.Sessions == nil || (needUsers && h.Users == nil) {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "authentication services unavailable"})
		return false
	}
	if scope != "" && !allowRequest(h.Limiter, r, scope) {
		logger.Warn("auth rate limited", "scope", scope, "ip", clientIP(r))
		respondJSON(ctx, w, http.StatusTooManyRequests, errorResponse{Error: "too many attempts, try again later"})
		return false
	}
	return true
}

func (h AuthHandler) issue(w http.ResponseWriter, r *http.Request, userID string, status int) {
	ctx := r.Context()
	tokens, err := h.Sessions.Issue(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("issue session", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to create session"})
		return
	}
	respondJSON(ctx, w, status, authResponse{Tokens: tokens})
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (c *credentials) normalize() {
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	c.DisplayName = strings.TrimSpace(c.DisplayName)
}

// validateSignUp fills the default display name and returns a message for the
// first invalid field.
func (c *credentials) validateSignUp() string {
	if c.Email == "" || c.Password == "" {
		return "email and password are required"
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return "invalid email address"
	}
	if c.DisplayName == "" {
		c.DisplayName, _, _ = strings.Cut(c.Email, "@")
	}
	if utf8.RuneCountInString(c.DisplayName) > maxDisplayNameLength {
		return "display name must be at most 60 characters"
	}
	if len(c.Password) < minPasswordLength {
		return "password must be at least 8 characters"
	}
	return ""
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
}
