package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/subwatch/internal/model"
	"github.com/hitoshi/subwatch/internal/repository"
)

// defaultCheckInterval はチェック間隔が未指定の場合の既定値（分）。
const defaultCheckInterval = 5

// ScheduleManager はサービスがスケジュール変更を委譲するインターフェース。
type ScheduleManager interface {
	Schedule(mon *model.Monitor)
	Unschedule(monitorID string)
	IsScheduled(monitorID string) bool
}

// Service はモニターのアプリケーションサービス。
// 全操作は所有者チェック付きで、他ユーザーのモニターは存在しないものとして
// 扱う。execとschedulerはReddit認証情報が未設定の場合nilになる。
type Service struct {
	monitors  repository.MonitorRepository
	posts     repository.PostRepository
	comments  repository.CommentRepository
	runs      repository.RunRepository
	stats     repository.StatsRepository
	exec      RunExecutor
	scheduler ScheduleManager
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	monitors repository.MonitorRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	runs repository.RunRepository,
	stats repository.StatsRepository,
	exec RunExecutor,
	scheduler ScheduleManager,
	logger *slog.Logger,
) *Service {
	return &Service{
		monitors:  monitors,
		posts:     posts,
		comments:  comments,
		runs:      runs,
		stats:     stats,
		exec:      exec,
		scheduler: scheduler,
		logger:    logger,
	}
}

// CreateInput はモニター作成の入力。
type CreateInput struct {
	Name          string
	Description   string
	Subreddits    []string
	Keywords      []string
	CheckInterval int // 0の場合は既定値を使用
}

// CreateMonitor はモニターを作成し、アクティブとしてスケジュールする。
func (s *Service) CreateMonitor(ctx context.Context, userID string, input CreateInput) (*model.Monitor, error) {
	interval := input.CheckInterval
	if interval == 0 {
		interval = defaultCheckInterval
	}

	subreddits := normalizeSubreddits(input.Subreddits)
	keywords := normalizeKeywords(input.Keywords)
	if err := validateMonitorFields(subreddits, keywords, interval); err != nil {
		return nil, err
	}

	now := time.Now()
	mon := &model.Monitor{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          input.Name,
		Description:   input.Description,
		Subreddits:    subreddits,
		Keywords:      keywords,
		CheckInterval: interval,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.monitors.Create(ctx, mon); err != nil {
		return nil, fmt.Errorf("モニターの作成に失敗しました: %w", err)
	}

	if s.scheduler != nil {
		s.scheduler.Schedule(mon)
	}

	s.logger.Info("モニターを作成しました",
		slog.String("monitor_id", mon.ID),
		slog.String("user_id", userID),
	)
	return mon, nil
}

// GetMonitor は所有者のモニターを取得する。
func (s *Service) GetMonitor(ctx context.Context, id, userID string) (*model.Monitor, error) {
	mon, err := s.monitors.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("モニターの取得に失敗しました: %w", err)
	}
	if mon == nil {
		return nil, model.NewMonitorNotFoundError(id)
	}
	return mon, nil
}

// ListMonitors は所有者のモニター一覧を返す。
func (s *Service) ListMonitors(ctx context.Context, userID string, limit, offset int) ([]*model.Monitor, error) {
	mons, err := s.monitors.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("モニター一覧の取得に失敗しました: %w", err)
	}
	return mons, nil
}

// IsScheduled はモニターが現在スケジュール済みかを返す。
// スケジューラ無効時（Reddit認証情報なし）は常にfalse。
func (s *Service) IsScheduled(monitorID string) bool {
	if s.scheduler == nil {
		return false
	}
	return s.scheduler.IsScheduled(monitorID)
}

// UpdateMonitor はモニターを部分更新し、スケジュールを追随させる。
// チェック間隔の変更とアクティブ化は再登録、非アクティブ化は解除となる。
func (s *Service) UpdateMonitor(ctx context.Context, id, userID string, update *model.MonitorUpdate) (*model.Monitor, error) {
	mon, err := s.GetMonitor(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		mon.Name = *update.Name
	}
	if update.Description != nil {
		mon.Description = *update.Description
	}
	if update.Subreddits != nil {
		mon.Subreddits = normalizeSubreddits(update.Subreddits)
	}
	if update.Keywords != nil {
		mon.Keywords = normalizeKeywords(update.Keywords)
	}
	if update.CheckInterval != nil {
		mon.CheckInterval = *update.CheckInterval
	}
	if update.IsActive != nil {
		mon.IsActive = *update.IsActive
	}

	if err := validateMonitorFields(mon.Subreddits, mon.Keywords, mon.CheckInterval); err != nil {
		return nil, err
	}

	mon.UpdatedAt = time.Now()
	if err := s.monitors.Update(ctx, mon); err != nil {
		return nil, fmt.Errorf("モニターの更新に失敗しました: %w", err)
	}

	// スケジュールの追随は間隔の変更とアクティブ化のみ。名前や説明だけの
	// 更新で進行中の周期をリセットしない。
	if s.scheduler != nil {
		switch {
		case !mon.IsActive:
			s.scheduler.Unschedule(mon.ID)
		case update.CheckInterval != nil || (update.IsActive != nil && *update.IsActive):
			s.scheduler.Schedule(mon)
		}
	}

	s.logger.Info("モニターを更新しました",
		slog.String("monitor_id", mon.ID),
		slog.Bool("is_active", mon.IsActive),
	)
	return mon, nil
}

// DeleteMonitor はモニターと関連データを削除する。
// レコード削除前にスケジュールを解除し、削除後の発火を防ぐ。
func (s *Service) DeleteMonitor(ctx context.Context, id, userID string) error {
	if s.scheduler != nil {
		s.scheduler.Unschedule(id)
	}

	deleted, err := s.monitors.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("モニターの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewMonitorNotFoundError(id)
	}

	s.logger.Info("モニターを削除しました",
		slog.String("monitor_id", id),
		slog.String("user_id", userID),
	)
	return nil
}

// TriggerRun はモニターを即時実行する。
// Reddit認証情報が未設定の場合、および同一モニターの実行が進行中の
// 場合はエラーを返す。
func (s *Service) TriggerRun(ctx context.Context, id, userID string) (*model.RunResult, error) {
	if s.exec == nil {
		return nil, model.NewRedditNotConfiguredError()
	}
	if _, err := s.GetMonitor(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.exec.Execute(ctx, id)
}

// ListPosts は所有者のモニターの保存済み投稿を返す。
func (s *Service) ListPosts(ctx context.Context, id, userID string, limit, offset int) ([]*model.Post, error) {
	if _, err := s.GetMonitor(ctx, id, userID); err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByMonitor(ctx, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return posts, nil
}

// ListComments は所有者のモニターの保存済みコメントを返す。
func (s *Service) ListComments(ctx context.Context, id, userID string, limit, offset int) ([]*model.Comment, error) {
	if _, err := s.GetMonitor(ctx, id, userID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByMonitor(ctx, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	return comments, nil
}

// ListRuns は所有者のモニターの実行履歴を返す。
func (s *Service) ListRuns(ctx context.Context, id, userID string, limit, offset int) ([]*model.MonitorRun, error) {
	if _, err := s.GetMonitor(ctx, id, userID); err != nil {
		return nil, err
	}
	runs, err := s.runs.ListByMonitor(ctx, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("実行履歴の取得に失敗しました: %w", err)
	}
	return runs, nil
}

// MonitorStats は所有者のモニターの統計を返す。
func (s *Service) MonitorStats(ctx context.Context, id, userID string) (*model.MonitorStats, error) {
	if _, err := s.GetMonitor(ctx, id, userID); err != nil {
		return nil, err
	}
	stats, err := s.stats.MonitorStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("モニター統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}

// DashboardStats はユーザーの全モニターを横断した統計を返す。
func (s *Service) DashboardStats(ctx context.Context, userID string) (*model.DashboardStats, error) {
	stats, err := s.stats.DashboardStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ダッシュボード統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}

// validateMonitorFields はモニターの必須フィールドを検証する。
func validateMonitorFields(subreddits, keywords []string, interval int) error {
	if len(subreddits) == 0 {
		return model.NewEmptySubredditsError()
	}
	if len(keywords) == 0 {
		return model.NewEmptyKeywordsError()
	}
	if interval < 1 || interval > 60 {
		return model.NewInvalidCheckIntervalError(interval)
	}
	return nil
}

// normalizeSubreddits は空白と "r/" プレフィックスを取り除き、空要素を捨てる。
func normalizeSubreddits(subreddits []string) []string {
	out := make([]string, 0, len(subreddits))
	for _, sub := range subreddits {
		sub = strings.TrimSpace(sub)
		sub = strings.TrimPrefix(sub, "r/")
		if sub != "" {
			out = append(out, sub)
		}
	}
	return out
}

// normalizeKeywords は空白を取り除き、空要素を捨てる。
func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
