package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/subwatch/internal/model"
)

type mockSessionFinder struct {
	FindByIDFunc func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func TestSessionMiddlewareNoCookie(t *testing.T) {
	mw := NewSessionMiddleware(&mockSessionFinder{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("未認証リクエストでハンドラーが呼ばれました")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/monitors", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ステータスコードが不正です: %d", rec.Code)
	}
	var body ErrorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗しました: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("エラーコードが不正です: %s", body.Code)
	}
}

func TestSessionMiddlewareExpiredSession(t *testing.T) {
	// 期限切れセッションはFinderがnilを返す
	mw := NewSessionMiddleware(&mockSessionFinder{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("期限切れセッションでハンドラーが呼ばれました")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/monitors", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "expired"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ステータスコードが不正です: %d", rec.Code)
	}
}

func TestSessionMiddlewareValidSession(t *testing.T) {
	finder := &mockSessionFinder{
		FindByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:        id,
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		},
	}

	var gotUserID string
	mw := NewSessionMiddleware(finder)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/monitors", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ステータスコードが不正です: %d", rec.Code)
	}
	if gotUserID != "user-1" {
		t.Errorf("コンテキストのユーザーIDが不正です: %s", gotUserID)
	}
}

func TestUserIDFromContextMissing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("ユーザーIDがない場合はエラーが返るべきです")
	}
}
