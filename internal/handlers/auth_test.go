package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/partyhop/backend/internal/auth"
	"github.com/partyhop/backend/internal/models"
	"github.com/partyhop/backend/internal/repositories"
)

type inMemoryUserStore struct {
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	if _, exists := s.users[user.Email]; exists {
		return repositories.ErrConflict
	}
	s.users[user.Email] = user
	return nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func newTestManager() *auth.Manager {
	return auth.NewManager(time.Minute, time.Hour, auth.NewInMemorySessionStore())
}

func TestAuthHandlerSignUp(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Sessions: newTestManager()}

	body, err := json.Marshal(credentials{Email: "Test@Example.com", Password: "supersafe", DisplayName: "  Tess "})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.SignUp(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}

	stored, err := store.FindByEmail(context.Background(), "test@example.com")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("supersafe")) != nil {
		t.Fatal("stored password is not hashed")
	}
	if stored.DisplayName != "Tess" {
		t.Fatalf("expected trimmed display name, got %q", stored.DisplayName)
	}
}

func TestAuthHandlerSignUpDefaultsDisplayName(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Sessions: newTestManager()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader([]byte(`{"email":"max@example.com","password":"longenough"}`)))
	rec := httptest.NewRecorder()
	handler.SignUp(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}
	if got := store.users["max@example.com"].DisplayName; got != "max" {
		t.Fatalf("expected display name from email, got %q", got)
	}
}

func TestAuthHandlerSignUpFailures(t *testing.T) {
	existing := newInMemoryUserStore()
	existing.users["taken@example.com"] = models.User{ID: "user-1", Email: "taken@example.com"}

	cases := []struct {
		name       string
		handler    AuthHandler
		body       string
		wantStatus int
	}{
		{"missingDeps", AuthHandler{}, `{"email":"a@example.com","password":"longenough"}`, http.StatusInternalServerError},
		{"badJSON", AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestManager()}, `{`, http.StatusBadRequest},
		{"invalidEmail", AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestManager()}, `{"email":"nope","password":"longenough"}`, http.StatusBadRequest},
		{"shortPassword", AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestManager()}, `{"email":"a@example.com","password":"short"}`, http.StatusBadRequest},
		{"existing", AuthHandler{Users: existing, Sessions: newTestManager()}, `{"email":"taken@example.com","password":"longenough"}`, http.StatusConflict},
		{"rateLimited", AuthHandler{Users: newInMemoryUserStore(), Sessions: newTestManager(), Limiter: denyAllLimiter{}}, `{"email":"a@example.com","password":"longenough"}`, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader([]byte(tc.body)))
			rec := httptest.NewRecorder()

			tc.handler.SignUp(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	store := newInMemoryUserStore()
	handler := AuthHandler{Users: store, Sessions: newTestManager()}

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	store.users["login@example.com"] = models.User{ID: "user-1", Email: "login@example.com", Password: string(hashed)}

	body, err := json.Marshal(credentials{Email: "login@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}

	body, _ = json.Marshal(credentials{Email: "login@example.com", Password: "wrong-password"})
	rec = httptest.NewRecorder()
	handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d for bad password got %d", http.StatusUnauthorized, rec.Code)
	}

	handler.Limiter = denyAllLimiter{}
	rec = httptest.NewRecorder()
	handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d when rate limited got %d", http.StatusTooManyRequests, rec.Code)
	}
}

func TestAuthHandlerRefresh(t *testing.T) {
	manager := newTestManager()
	tokens, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Sessions: manager}

	body, err := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Tokens.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected a new refresh token to be issued")
	}

	rec = httptest.NewRecorder()
	handler.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected reused refresh token to be rejected, got %d", rec.Code)
	}
}

func TestAuthHandlerLogout(t *testing.T) {
	store := auth.NewInMemorySessionStore()
	manager := auth.NewManager(time.Minute, time.Hour, store)
	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Sessions: manager}
	body, _ := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d got %d", http.StatusNoContent, rec.Code)
	}
	if store.Has(tokens.RefreshToken) || store.Has(tokens.AccessToken) {
		t.Fatal("expected both tokens to be revoked")
	}
}

func TestAuthHandlerPasswordReset(t *testing.T) {
	store := newInMemoryUserStore()
	store.users["known@example.com"] = models.User{ID: "user-1", Email: "known@example.com"}
	handler := AuthHandler{Users: store}

	cases := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"known", `{"email":"Known@Example.com"}`, http.StatusAccepted},
		{"unknown", `{"email":"ghost@example.com"}`, http.StatusAccepted},
		{"invalid", `{"email":"nope"}`, http.StatusBadRequest},
		{"missing", `{}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password-reset", bytes.NewReader([]byte(tc.body)))
			rec := httptest.NewRecorder()
			handler.RequestPasswordReset(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}
