package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/subwatch/internal/model"
)

type mockAuthService struct {
	GetLoginURLFunc    func(state string) string
	HandleCallbackFunc func(ctx context.Context, code string) (*model.Session, error)
	LogoutFunc         func(ctx context.Context, sessionID string) error
	GetCurrentUserFunc func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.GetLoginURLFunc != nil {
		return m.GetLoginURLFunc(state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.HandleCallbackFunc != nil {
		return m.HandleCallbackFunc(ctx, code)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.GetCurrentUserFunc != nil {
		return m.GetCurrentUserFunc(ctx, sessionID)
	}
	return nil, errors.New("not implemented")
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		SessionMaxAge: 86400,
	}
}

func TestLoginRedirectsWithState(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("ステータスコードが不正です: %d", rec.Code)
	}

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("stateクッキーが設定されていません")
	}
	if !stateCookie.HttpOnly {
		t.Error("stateクッキーはHttpOnlyであるべきです")
	}
}

func TestCallbackStateMismatch(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=xyz&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "original"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("state不一致は400になるべきです: %d", rec.Code)
	}
}

func TestCallbackSetsSessionCookie(t *testing.T) {
	service := &mockAuthService{
		HandleCallbackFunc: func(ctx context.Context, code string) (*model.Session, error) {
			if code != "auth-code" {
				t.Errorf("認可コードが不正です: %s", code)
			}
			return &model.Session{ID: "sess-1", UserID: "user-1"}, nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=st", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "st"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("ステータスコードが不正です: %d", rec.Code)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value != "sess-1" {
		t.Fatal("セッションクッキーが設定されていません")
	}
	if !sessionCookie.HttpOnly {
		t.Error("セッションクッキーはHttpOnlyであるべきです")
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	var loggedOut string
	service := &mockAuthService{
		LogoutFunc: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if loggedOut != "sess-1" {
		t.Errorf("ログアウト対象のセッションIDが不正です: %s", loggedOut)
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge != -1 {
			t.Error("セッションクッキーがクリアされていません")
		}
	}
}

func TestMe(t *testing.T) {
	service := &mockAuthService{
		GetCurrentUserFunc: func(ctx context.Context, sessionID string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: "alice@example.com", Name: "Alice"}, nil
		},
	}
	h := NewAuthHandler(service, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータスコードが不正です: %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["email"] != "alice@example.com" {
		t.Errorf("レスポンスが不正です: %v", body)
	}
}

func TestMeWithoutSession(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("セッションなしは401になるべきです: %d", rec.Code)
	}
}
