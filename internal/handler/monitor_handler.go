package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/subwatch/internal/middleware"
	"github.com/hitoshi/subwatch/internal/model"
	"github.com/hitoshi/subwatch/internal/monitor"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var validate = validator.New()

// MonitorServiceInterface はモニターハンドラーが必要とするサービスインターフェース。
type MonitorServiceInterface interface {
	CreateMonitor(ctx context.Context, userID string, input monitor.CreateInput) (*model.Monitor, error)
	GetMonitor(ctx context.Context, id, userID string) (*model.Monitor, error)
	ListMonitors(ctx context.Context, userID string, limit, offset int) ([]*model.Monitor, error)
	UpdateMonitor(ctx context.Context, id, userID string, update *model.MonitorUpdate) (*model.Monitor, error)
	DeleteMonitor(ctx context.Context, id, userID string) error
	TriggerRun(ctx context.Context, id, userID string) (*model.RunResult, error)
	ListPosts(ctx context.Context, id, userID string, limit, offset int) ([]*model.Post, error)
	ListComments(ctx context.Context, id, userID string, limit, offset int) ([]*model.Comment, error)
	ListRuns(ctx context.Context, id, userID string, limit, offset int) ([]*model.MonitorRun, error)
	MonitorStats(ctx context.Context, id, userID string) (*model.MonitorStats, error)
	DashboardStats(ctx context.Context, userID string) (*model.DashboardStats, error)
	IsScheduled(monitorID string) bool
}

// MonitorHandler はモニター管理のHTTPハンドラー。
type MonitorHandler struct {
	service MonitorServiceInterface
}

// NewMonitorHandler はMonitorHandlerを生成する。
func NewMonitorHandler(service MonitorServiceInterface) *MonitorHandler {
	return &MonitorHandler{service: service}
}

// createMonitorRequest はモニター作成リクエストのボディ。
type createMonitorRequest struct {
	Name          string   `json:"name" validate:"required,max=100"`
	Description   string   `json:"description" validate:"max=500"`
	Subreddits    []string `json:"subreddits" validate:"required,min=1,max=20"`
	Keywords      []string `json:"keywords" validate:"required,min=1,max=50"`
	CheckInterval int      `json:"check_interval" validate:"omitempty,min=1,max=60"`
}

// updateMonitorRequest はモニター更新リクエストのボディ。nilのフィールドは変更しない。
type updateMonitorRequest struct {
	Name          *string  `json:"name" validate:"omitempty,max=100"`
	Description   *string  `json:"description" validate:"omitempty,max=500"`
	Subreddits    []string `json:"subreddits" validate:"omitempty,min=1,max=20"`
	Keywords      []string `json:"keywords" validate:"omitempty,min=1,max=50"`
	CheckInterval *int     `json:"check_interval" validate:"omitempty,min=1,max=60"`
	IsActive      *bool    `json:"is_active"`
}

// monitorResponse はモニター情報のAPIレスポンス。
type monitorResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Subreddits    []string   `json:"subreddits"`
	Keywords      []string   `json:"keywords"`
	CheckInterval int        `json:"check_interval"`
	IsActive      bool       `json:"is_active"`
	IsScheduled   bool       `json:"is_scheduled"`
	LastChecked   *time.Time `json:"last_checked"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (h *MonitorHandler) toMonitorResponse(m *model.Monitor) monitorResponse {
	return monitorResponse{
		ID:            m.ID,
		Name:          m.Name,
		Description:   m.Description,
		Subreddits:    m.Subreddits,
		Keywords:      m.Keywords,
		CheckInterval: m.CheckInterval,
		IsActive:      m.IsActive,
		IsScheduled:   h.service.IsScheduled(m.ID),
		LastChecked:   m.LastChecked,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// postResponse は保存済み投稿のAPIレスポンス。
type postResponse struct {
	ID              string    `json:"id"`
	RedditID        string    `json:"reddit_id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Author          string    `json:"author"`
	Subreddit       string    `json:"subreddit"`
	URL             string    `json:"url"`
	Permalink       string    `json:"permalink"`
	Score           int       `json:"score"`
	NumComments     int       `json:"num_comments"`
	IsNSFW          bool      `json:"is_nsfw"`
	MatchedKeywords []string  `json:"matched_keywords"`
	MonitorID       string    `json:"monitor_id"`
	CreatedAt       time.Time `json:"created_at"`
	FoundAt         time.Time `json:"found_at"`
}

// commentResponse は保存済みコメントのAPIレスポンス。
type commentResponse struct {
	ID              string    `json:"id"`
	RedditID        string    `json:"reddit_id"`
	Content         string    `json:"content"`
	Author          string    `json:"author"`
	Subreddit       string    `json:"subreddit"`
	PostRedditID    string    `json:"post_reddit_id"`
	Permalink       string    `json:"permalink"`
	Score           int       `json:"score"`
	IsNSFW          bool      `json:"is_nsfw"`
	MatchedKeywords []string  `json:"matched_keywords"`
	MonitorID       string    `json:"monitor_id"`
	CreatedAt       time.Time `json:"created_at"`
	FoundAt         time.Time `json:"found_at"`
}

// runResponse は実行記録のAPIレスポンス。
type runResponse struct {
	ID            string     `json:"id"`
	MonitorID     string     `json:"monitor_id"`
	Status        string     `json:"status"`
	PostsFound    int        `json:"posts_found"`
	CommentsFound int        `json:"comments_found"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

// runResultResponse は手動実行のAPIレスポンス。
type runResultResponse struct {
	PostsFound    int      `json:"posts_found"`
	CommentsFound int      `json:"comments_found"`
	Errors        []string `json:"errors"`
}

// List はモニター一覧を返す。
// GET /api/monitors
func (h *MonitorHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	limit, offset := parsePagination(r)
	mons, err := h.service.ListMonitors(r.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]monitorResponse, 0, len(mons))
	for _, m := range mons {
		resp = append(resp, h.toMonitorResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はモニターを作成する。
// POST /api/monitors
func (h *MonitorHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました。")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeInvalidRequest(w, "入力値の検証に失敗しました。")
		return
	}

	mon, err := h.service.CreateMonitor(r.Context(), userID, monitor.CreateInput{
		Name:          req.Name,
		Description:   req.Description,
		Subreddits:    req.Subreddits,
		Keywords:      req.Keywords,
		CheckInterval: req.CheckInterval,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toMonitorResponse(mon))
}

// Get はモニター詳細を返す。
// GET /api/monitors/{id}
func (h *MonitorHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	mon, err := h.service.GetMonitor(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toMonitorResponse(mon))
}

// Update はモニターを部分更新する。
// PATCH /api/monitors/{id}
func (h *MonitorHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました。")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeInvalidRequest(w, "入力値の検証に失敗しました。")
		return
	}

	mon, err := h.service.UpdateMonitor(r.Context(), chi.URLParam(r, "id"), userID, &model.MonitorUpdate{
		Name:          req.Name,
		Description:   req.Description,
		Subreddits:    req.Subreddits,
		Keywords:      req.Keywords,
		CheckInterval: req.CheckInterval,
		IsActive:      req.IsActive,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toMonitorResponse(mon))
}

// Delete はモニターと関連データを削除する。
// DELETE /api/monitors/{id}
func (h *MonitorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteMonitor(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerRun はモニターを即時実行し、結果サマリーを返す。
// POST /api/monitors/{id}/run
func (h *MonitorHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	result, err := h.service.TriggerRun(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, runResultResponse{
		PostsFound:    result.PostsFound,
		CommentsFound: result.CommentsFound,
		Errors:        errs,
	})
}

// ListPosts はモニターの保存済み投稿一覧を返す。
// GET /api/monitors/{id}/posts
func (h *MonitorHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	limit, offset := parsePagination(r)
	posts, err := h.service.ListPosts(r.Context(), chi.URLParam(r, "id"), userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		resp = append(resp, postResponse{
			ID:              p.ID,
			RedditID:        p.RedditID,
			Title:           p.Title,
			Content:         p.Content,
			Author:          p.Author,
			Subreddit:       p.Subreddit,
			URL:             p.URL,
			Permalink:       p.Permalink,
			Score:           p.Score,
			NumComments:     p.NumComments,
			IsNSFW:          p.IsNSFW,
			MatchedKeywords: p.MatchedKeywords,
			MonitorID:       p.MonitorID,
			CreatedAt:       p.CreatedAt,
			FoundAt:         p.FoundAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListComments はモニターの保存済みコメント一覧を返す。
// GET /api/monitors/{id}/comments
func (h *MonitorHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	limit, offset := parsePagination(r)
	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "id"), userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		resp = append(resp, commentResponse{
			ID:              c.ID,
			RedditID:        c.RedditID,
			Content:         c.Content,
			Author:          c.Author,
			Subreddit:       c.Subreddit,
			PostRedditID:    c.PostRedditID,
			Permalink:       c.Permalink,
			Score:           c.Score,
			IsNSFW:          c.IsNSFW,
			MatchedKeywords: c.MatchedKeywords,
			MonitorID:       c.MonitorID,
			CreatedAt:       c.CreatedAt,
			FoundAt:         c.FoundAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListRuns はモニターの実行履歴を返す。
// GET /api/monitors/{id}/runs
func (h *MonitorHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	limit, offset := parsePagination(r)
	runs, err := h.service.ListRuns(r.Context(), chi.URLParam(r, "id"), userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, runResponse{
			ID:            run.ID,
			MonitorID:     run.MonitorID,
			Status:        string(run.Status),
			PostsFound:    run.PostsFound,
			CommentsFound: run.CommentsFound,
			ErrorMessage:  run.ErrorMessage,
			StartedAt:     run.StartedAt,
			CompletedAt:   run.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stats はモニター単位の統計を返す。
// GET /api/monitors/{id}/stats
func (h *MonitorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	stats, err := h.service.MonitorStats(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"total_posts":     stats.TotalPosts,
		"total_comments":  stats.TotalComments,
		"total_runs":      stats.TotalRuns,
		"recent_posts":    stats.RecentPosts,
		"recent_comments": stats.RecentComments,
	})
}

// DashboardStats はユーザーの全モニターを横断した統計を返す。
// GET /api/dashboard/stats
func (h *MonitorHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	stats, err := h.service.DashboardStats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"total_monitors":  stats.TotalMonitors,
		"active_monitors": stats.ActiveMonitors,
		"total_posts":     stats.TotalPosts,
		"total_comments":  stats.TotalComments,
		"recent_posts":    stats.RecentPosts,
		"recent_comments": stats.RecentComments,
	})
}

// parsePagination はlimit/offsetクエリパラメータを解析する。
func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
