package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"homebase/api/internal/auth"
	"homebase/api/internal/authpw"
	"homebase/api/internal/store"
)

// fakeUserStore backs the password auth service with in-memory users.
type fakeUserStore struct {
	mu     sync.Mutex
	byID   map[string]store.User
	resets map[string]string // reset token -> user ID
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byID: map[string]store.User{}, resets: map[string]string{}}
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, errors.New("user not found")
}
func (f *fakeUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[id]
	if !ok {
		return store.User{}, errors.New("user not found")
	}
	return user, nil
}
func (f *fakeUserStore) CreateUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[user.ID] = user
	return nil
}
func (f *fakeUserStore) UpdateUserVerificationToken(_ context.Context, userID, token string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.VerificationToken = token
	f.byID[userID] = user
	return nil
}
func (f *fakeUserStore) VerifyUserEmail(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, user := range f.byID {
		if user.VerificationToken == token && token != "" {
			user.IsEmailVerified = true
			user.VerificationToken = ""
			f.byID[id] = user
			return nil
		}
	}
	return errors.New("token not found")
}
func (f *fakeUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.PasswordHash = passwordHash
	f.byID[userID] = user
	return nil
}
func (f *fakeUserStore) CreatePasswordReset(_ context.Context, userID, token string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[token] = userID
	return nil
}
func (f *fakeUserStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.resets[token]
	if !ok {
		return "", errors.New("reset not found")
	}
	return userID, nil
}
func (f *fakeUserStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.resets, token)
	return nil
}

// newAuthTestServer wires the password auth service and the session store to
// the same in-memory users so full flows work end to end.
func newAuthTestServer() (*HTTPServer, *fakeUserStore) {
	users := newFakeUserStore()
	fs := &fakeStore{
		getUserByIDFn: users.GetUserByID,
	}
	svc := newTestService(fs)
	svc.authpw = authpw.NewService(users)
	return NewHTTPServer(svc, "*"), users
}

func postJSON(t *testing.T, server *HTTPServer, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func parseBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func TestSignUpSignInFlow(t *testing.T) {
	server, _ := newAuthTestServer()

	rr := postJSON(t, server, "/api/auth/signup",
		`{"email":"owner@example.com","password":"hunter2hunter2","businessName":"Rose City Plumbing"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	signup := parseBody(t, rr)
	verifyToken, _ := signup["devVerificationToken"].(string)
	if verifyToken == "" {
		t.Fatal("expected devVerificationToken when SMTP is not configured")
	}

	// Unverified accounts cannot sign in yet.
	rr = postJSON(t, server, "/api/auth/signin",
		`{"email":"owner@example.com","password":"hunter2hunter2"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unverified signin: expected 403, got %d", rr.Code)
	}
	if code := parseBody(t, rr)["code"]; code != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("expected EMAIL_NOT_VERIFIED, got %v", code)
	}

	rr = postJSON(t, server, "/api/auth/verify-email", `{"token":"`+verifyToken+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = postJSON(t, server, "/api/auth/signin",
		`{"email":"owner@example.com","password":"hunter2hunter2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	signin := parseBody(t, rr)
	accessToken, _ := signin["accessToken"].(string)
	refreshToken, _ := signin["refreshToken"].(string)
	if accessToken == "" || refreshToken == "" {
		t.Fatalf("expected token pair, got %v", signin)
	}
	if signin["userName"] != "Rose City Plumbing" || signin["role"] != "owner" {
		t.Fatalf("unexpected session payload: %v", signin)
	}

	// The access token resolves a session.
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	sessionRR := httptest.NewRecorder()
	server.Handler().ServeHTTP(sessionRR, req)
	if sessionRR.Code != http.StatusOK {
		t.Fatalf("session: expected 200, got %d", sessionRR.Code)
	}
	if session := parseBody(t, sessionRR); session["authenticated"] != true {
		t.Fatalf("expected authenticated session, got %v", session)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	server, _ := newAuthTestServer()

	body := `{"email":"owner@example.com","password":"hunter2hunter2","businessName":"Rose City Plumbing"}`
	if rr := postJSON(t, server, "/api/auth/signup", body); rr.Code != http.StatusCreated {
		t.Fatalf("first signup: expected 201, got %d", rr.Code)
	}

	rr := postJSON(t, server, "/api/auth/signup", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", rr.Code)
	}
	if code := parseBody(t, rr)["code"]; code != "EMAIL_EXISTS" {
		t.Fatalf("expected EMAIL_EXISTS, got %v", code)
	}
}

func TestSignInInvalidCredentials(t *testing.T) {
	server, _ := newAuthTestServer()

	rr := postJSON(t, server, "/api/auth/signin",
		`{"email":"nobody@example.com","password":"wrongwrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := parseBody(t, rr)["code"]; code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	server, _ := newAuthTestServer()

	rr := postJSON(t, server, "/api/auth/signup",
		`{"email":"owner@example.com","password":"hunter2hunter2","businessName":"Rose City Plumbing"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d", rr.Code)
	}
	verifyToken, _ := parseBody(t, rr)["devVerificationToken"].(string)
	if rr := postJSON(t, server, "/api/auth/verify-email", `{"token":"`+verifyToken+`"}`); rr.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", rr.Code)
	}

	rr = postJSON(t, server, "/api/auth/reset-password/request", `{"email":"owner@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset request: expected 200, got %d", rr.Code)
	}
	resetToken, _ := parseBody(t, rr)["devResetToken"].(string)
	if resetToken == "" {
		t.Fatal("expected devResetToken when SMTP is not configured")
	}

	rr = postJSON(t, server, "/api/auth/reset-password",
		`{"token":"`+resetToken+`","newPassword":"swordfish99"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	if rr := postJSON(t, server, "/api/auth/signin",
		`{"email":"owner@example.com","password":"hunter2hunter2"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("old password: expected 401, got %d", rr.Code)
	}
	if rr := postJSON(t, server, "/api/auth/signin",
		`{"email":"owner@example.com","password":"swordfish99"}`); rr.Code != http.StatusOK {
		t.Fatalf("new password: expected 200, got %d", rr.Code)
	}
}

func TestResetRequestNeverRevealsAccounts(t *testing.T) {
	server, _ := newAuthTestServer()

	rr := postJSON(t, server, "/api/auth/reset-password/request", `{"email":"nobody@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown email, got %d", rr.Code)
	}
	if _, ok := parseBody(t, rr)["devResetToken"]; ok {
		t.Fatal("unknown email must not produce a reset token")
	}
}

func TestProtectedRoutesRejectBadTokens(t *testing.T) {
	server, _ := newAuthTestServer()

	expired, err := auth.IssueToken([]byte("test-secret"), auth.Claims{
		Sub:  "user-1",
		Name: "Avery",
		Role: "owner",
		JTI:  "jti-old",
		Exp:  time.Now().Add(-time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	wrongKey, err := auth.IssueToken([]byte("other-secret"), auth.Claims{
		Sub: "user-1",
		Exp: time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing bearer", ""},
		{"garbage token", "Bearer not-a-token"},
		{"expired token", "Bearer " + expired},
		{"wrong signing key", "Bearer " + wrongKey},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/inbox/threads", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			server.Handler().ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
			}
			if code := parseBody(t, rr)["code"]; code != "UNAUTHORIZED" {
				t.Fatalf("expected UNAUTHORIZED, got %v", code)
			}
		})
	}
}

func TestSessionEndpointWithoutToken(t *testing.T) {
	server, _ := newAuthTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if payload := parseBody(t, rr); payload["authenticated"] != false {
		t.Fatalf("expected unauthenticated session, got %v", payload)
	}
}

func TestSessionRefreshEndpoint(t *testing.T) {
	server, users := newAuthTestServer()
	if err := users.CreateUser(context.Background(), store.User{
		ID: "user-1", DisplayName: "Avery", Role: "owner", Email: "owner@example.com", IsEmailVerified: true,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	session, err := server.service.CreateSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	rr := postJSON(t, server, "/api/session/refresh", `{"refreshToken":"`+session.RefreshToken+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	if payload["token"] == "" || payload["refreshToken"] == session.RefreshToken {
		t.Fatalf("expected rotated tokens, got %v", payload)
	}
	if payload["userName"] != "Avery" {
		t.Fatalf("expected userName Avery, got %v", payload["userName"])
	}

	rr = postJSON(t, server, "/api/session/refresh", `{"refreshToken":"`+session.RefreshToken+`"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("stale refresh: expected 401, got %d", rr.Code)
	}
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	server, _ := newAuthTestServer()

	rr := postJSON(t, server, "/api/session/logout", `{"refreshToken":"whatever"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if payload := parseBody(t, rr); payload["ok"] != true {
		t.Fatalf("expected ok=true, got %v", payload)
	}
}
