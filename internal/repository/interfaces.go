// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/subwatch/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByGoogleSubject はGoogle OAuthのsubjectでユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByGoogleSubject(ctx context.Context, subject string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// MonitorRepository はモニターデータの永続化インターフェース。
type MonitorRepository interface {
	// FindByID は指定IDのモニターを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Monitor, error)

	// FindByIDAndUser は指定IDかつ指定所有者のモニターを取得する。
	// 見つからない、または所有者が異なる場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Monitor, error)

	// Create はモニターを作成する。
	Create(ctx context.Context, monitor *model.Monitor) error

	// Update はモニターの全フィールドを上書き更新する。
	Update(ctx context.Context, monitor *model.Monitor) error

	// Delete は指定IDかつ指定所有者のモニターを削除する。
	// posts、comments、monitor_runsはCASCADE削除される。
	// 削除対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)

	// ListByUser は所有者のモニター一覧をcreated_at降順で返す。
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Monitor, error)

	// ListActive はis_active = trueの全モニターを返す。
	// スケジューラのブートストラップで使用する。
	ListActive(ctx context.Context) ([]*model.Monitor, error)

	// UpdateLastChecked はモニターのlast_checkedを更新する。
	UpdateLastChecked(ctx context.Context, id string, checkedAt time.Time) error
}

// PostRepository は保存済み投稿データの永続化インターフェース。
type PostRepository interface {
	// ExistsByRedditID は指定Reddit IDの投稿が保存済みかを返す。
	ExistsByRedditID(ctx context.Context, redditID string) (bool, error)

	// Create は投稿を作成する。reddit_idの一意制約違反はそのまま返す
	// （呼び出し元がIsUniqueViolationで判定する）。
	Create(ctx context.Context, post *model.Post) error

	// ListByMonitor はモニターの投稿一覧をfound_at降順で返す。
	ListByMonitor(ctx context.Context, monitorID string, limit, offset int) ([]*model.Post, error)
}

// CommentRepository は保存済みコメントデータの永続化インターフェース。
type CommentRepository interface {
	// ExistsByRedditID は指定Reddit IDのコメントが保存済みかを返す。
	ExistsByRedditID(ctx context.Context, redditID string) (bool, error)

	// Create はコメントを作成する。reddit_idの一意制約違反はそのまま返す。
	Create(ctx context.Context, comment *model.Comment) error

	// ListByMonitor はモニターのコメント一覧をfound_at降順で返す。
	ListByMonitor(ctx context.Context, monitorID string, limit, offset int) ([]*model.Comment, error)
}

// RunRepository は実行記録の永続化インターフェース。
type RunRepository interface {
	// Create は実行記録を作成する。Statusはrunningで作成されることを想定する。
	Create(ctx context.Context, run *model.MonitorRun) error

	// UpdateResult は実行記録の終端状態（status、件数、エラー、完了日時）を更新する。
	UpdateResult(ctx context.Context, run *model.MonitorRun) error

	// ListByMonitor はモニターの実行履歴をstarted_at降順で返す。
	ListByMonitor(ctx context.Context, monitorID string, limit, offset int) ([]*model.MonitorRun, error)
}

// StatsRepository は集計統計の取得インターフェース。
type StatsRepository interface {
	// MonitorStats はモニター単位の統計を返す。
	MonitorStats(ctx context.Context, monitorID string) (*model.MonitorStats, error)

	// DashboardStats はユーザーの全モニターを横断した統計を返す。
	DashboardStats(ctx context.Context, userID string) (*model.DashboardStats, error)
}

// IsUniqueViolation はPostgreSQLの一意制約違反エラーかを判定する。
// 同一Reddit IDの同時挿入レースの検出に使用する。
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
