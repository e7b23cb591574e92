package monitor

import (
	"context"
	"time"

	"github.com/hitoshi/subwatch/internal/model"
)

type mockContentSource struct {
	FetchRecentPostsFunc func(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error)
	FetchCommentsFunc    func(ctx context.Context, postRedditID string, limit int) ([]model.CommentDraft, error)
}

func (m *mockContentSource) FetchRecentPosts(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error) {
	if m.FetchRecentPostsFunc != nil {
		return m.FetchRecentPostsFunc(ctx, subreddit, limit)
	}
	return nil, nil
}

func (m *mockContentSource) FetchComments(ctx context.Context, postRedditID string, limit int) ([]model.CommentDraft, error) {
	if m.FetchCommentsFunc != nil {
		return m.FetchCommentsFunc(ctx, postRedditID, limit)
	}
	return nil, nil
}

type mockMonitorRepo struct {
	FindByIDFunc          func(ctx context.Context, id string) (*model.Monitor, error)
	FindByIDAndUserFunc   func(ctx context.Context, id, userID string) (*model.Monitor, error)
	CreateFunc            func(ctx context.Context, monitor *model.Monitor) error
	UpdateFunc            func(ctx context.Context, monitor *model.Monitor) error
	DeleteFunc            func(ctx context.Context, id, userID string) (bool, error)
	ListByUserFunc        func(ctx context.Context, userID string, limit, offset int) ([]*model.Monitor, error)
	ListActiveFunc        func(ctx context.Context) ([]*model.Monitor, error)
	UpdateLastCheckedFunc func(ctx context.Context, id string, checkedAt time.Time) error
}

func (m *mockMonitorRepo) FindByID(ctx context.Context, id string) (*model.Monitor, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockMonitorRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Monitor, error) {
	if m.FindByIDAndUserFunc != nil {
		return m.FindByIDAndUserFunc(ctx, id, userID)
	}
	return nil, nil
}

func (m *mockMonitorRepo) Create(ctx context.Context, monitor *model.Monitor) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, monitor)
	}
	return nil
}

func (m *mockMonitorRepo) Update(ctx context.Context, monitor *model.Monitor) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, monitor)
	}
	return nil
}

func (m *mockMonitorRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, userID)
	}
	return false, nil
}

func (m *mockMonitorRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Monitor, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit, offset)
	}
	return nil, nil
}

func (m *mockMonitorRepo) ListActive(ctx context.Context) ([]*model.Monitor, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx)
	}
	return nil, nil
}

func (m *mockMonitorRepo) UpdateLastChecked(ctx context.Context, id string, checkedAt time.Time) error {
	if m.UpdateLastCheckedFunc != nil {
		return m.UpdateLastCheckedFunc(ctx, id, checkedAt)
	}
	return nil
}

type mockPostRepo struct {
	ExistsByRedditIDFunc func(ctx context.Context, redditID string) (bool, error)
	CreateFunc           func(ctx context.Context, post *model.Post) error
	ListByMonitorFunc    func(ctx context.Context, monitorID string, limit, offset int) ([]*model.Post, error)
}

func (m *mockPostRepo) ExistsByRedditID(ctx context.Context, redditID string) (bool, error) {
	if m.ExistsByRedditIDFunc != nil {
		return m.ExistsByRedditIDFunc(ctx, redditID)
	}
	return false, nil
}

func (m *mockPostRepo) Create(ctx context.Context, post *model.Post) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, post)
	}
	return nil
}

func (m *mockPostRepo) ListByMonitor(ctx context.Context, monitorID string, limit, offset int) ([]*model.Post, error) {
	if m.ListByMonitorFunc != nil {
		return m.ListByMonitorFunc(ctx, monitorID, limit, offset)
	}
	return nil, nil
}

type mockCommentRepo struct {
	ExistsByRedditIDFunc func(ctx context.Context, redditID string) (bool, error)
	CreateFunc           func(ctx context.Context, comment *model.Comment) error
	ListByMonitorFunc    func(ctx context.Context, monitorID string, limit, offset int) ([]*model.Comment, error)
}

func (m *mockCommentRepo) ExistsByRedditID(ctx context.Context, redditID string) (bool, error) {
	if m.ExistsByRedditIDFunc != nil {
		return m.ExistsByRedditIDFunc(ctx, redditID)
	}
	return false, nil
}

func (m *mockCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, comment)
	}
	return nil
}

func (m *mockCommentRepo) ListByMonitor(ctx context.Context, monitorID string, limit, offset int) ([]*model.Comment, error) {
	if m.ListByMonitorFunc != nil {
		return m.ListByMonitorFunc(ctx, monitorID, limit, offset)
	}
	return nil, nil
}

type mockRunRepo struct {
	CreateFunc        func(ctx context.Context, run *model.MonitorRun) error
	UpdateResultFunc  func(ctx context.Context, run *model.MonitorRun) error
	ListByMonitorFunc func(ctx context.Context, monitorID string, limit, offset int) ([]*model.MonitorRun, error)
}

func (m *mockRunRepo) Create(ctx context.Context, run *model.MonitorRun) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, run)
	}
	return nil
}

func (m *mockRunRepo) UpdateResult(ctx context.Context, run *model.MonitorRun) error {
	if m.UpdateResultFunc != nil {
		return m.UpdateResultFunc(ctx, run)
	}
	return nil
}

func (m *mockRunRepo) ListByMonitor(ctx context.Context, monitorID string, limit, offset int) ([]*model.MonitorRun, error) {
	if m.ListByMonitorFunc != nil {
		return m.ListByMonitorFunc(ctx, monitorID, limit, offset)
	}
	return nil, nil
}

type mockStatsRepo struct {
	MonitorStatsFunc   func(ctx context.Context, monitorID string) (*model.MonitorStats, error)
	DashboardStatsFunc func(ctx context.Context, userID string) (*model.DashboardStats, error)
}

func (m *mockStatsRepo) MonitorStats(ctx context.Context, monitorID string) (*model.MonitorStats, error) {
	if m.MonitorStatsFunc != nil {
		return m.MonitorStatsFunc(ctx, monitorID)
	}
	return &model.MonitorStats{}, nil
}

func (m *mockStatsRepo) DashboardStats(ctx context.Context, userID string) (*model.DashboardStats, error) {
	if m.DashboardStatsFunc != nil {
		return m.DashboardStatsFunc(ctx, userID)
	}
	return &model.DashboardStats{}, nil
}
