package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/auth"
	"go.uber.org/zap"
)

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		24*time.Hour,
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

type stubFetcher map[string]*auth.SessionUser

func (f stubFetcher) FetchUser(_ context.Context, id string) *auth.SessionUser { return f[id] }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestNewSessionManager_EmptyKey(t *testing.T) {
	if _, err := auth.NewSessionManager("", "s", "", time.Hour, false, zap.NewNop()); err == nil {
		t.Error("expected error for empty session key")
	}
}

func TestRequireSignedIn_NoUser_Returns401(t *testing.T) {
	sm := newTestSessionManager(t)
	rec := httptest.NewRecorder()
	sm.RequireSignedIn(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRequireUserID(t *testing.T) {
	sm := newTestSessionManager(t)

	tests := []struct {
		name string
		user *auth.SessionUser
		want int
	}{
		{"no session", nil, http.StatusUnauthorized},
		{"no handle", &auth.SessionUser{ID: "abc"}, http.StatusForbidden},
		{"with handle", &auth.SessionUser{ID: "abc", UserID: "alice"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/groups", nil)
			if tt.user != nil {
				req = auth.WithTestUser(req, tt.user)
			}
			rec := httptest.NewRecorder()
			sm.RequireUserID(okHandler()).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSignIn_LoadSessionUser_RoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetUserFetcher(stubFetcher{"u1": {ID: "u1", UserID: "alice", Name: "Alice"}})

	signIn := httptest.NewRecorder()
	if err := sm.SignIn(signIn, httptest.NewRequest("GET", "/auth/google/callback", nil), "u1"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	req := httptest.NewRequest("GET", "/me", nil)
	for _, c := range signIn.Result().Cookies() {
		req.AddCookie(c)
	}

	var got, detached *auth.SessionUser
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
		// Services receive only the context, often detached from the request.
		detached, _ = auth.FromContext(context.WithoutCancel(r.Context()))
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.UserID != "alice" {
		t.Fatalf("expected alice in context, got %+v", got)
	}
	if detached != got {
		t.Errorf("context user = %+v, want the request's user", detached)
	}
}

func TestLoadSessionUser_UnknownUserIsSignedOut(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetUserFetcher(stubFetcher{})

	signIn := httptest.NewRecorder()
	_ = sm.SignIn(signIn, httptest.NewRequest("GET", "/", nil), "gone")

	req := httptest.NewRequest("GET", "/me", nil)
	for _, c := range signIn.Result().Cookies() {
		req.AddCookie(c)
	}
	found := true
	sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = auth.CurrentUser(r)
	})).ServeHTTP(httptest.NewRecorder(), req)

	if found {
		t.Error("expected no user for an id the fetcher does not know")
	}
}

func TestLoadSessionUser_TamperedCookie(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetUserFetcher(stubFetcher{"u1": {ID: "u1"}})

	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: "test-session", Value: "not-a-valid-cookie"})
	found := true
	sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = auth.CurrentUser(r)
	})).ServeHTTP(httptest.NewRecorder(), req)

	if found {
		t.Error("expected tampered cookie to be ignored")
	}
}

func TestCurrentUser_NoUser(t *testing.T) {
	if _, ok := auth.CurrentUser(httptest.NewRequest("GET", "/", nil)); ok {
		t.Error("expected no user")
	}
}
