package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/subwatch/internal/model"
)

// PostgresStatsRepo はPostgreSQLを使用した統計リポジトリ。
// モニター単位・ユーザー単位の集計を単発のSQLで取得する。
type PostgresStatsRepo struct {
	db *sql.DB
}

// NewPostgresStatsRepo はPostgresStatsRepoを生成する。
func NewPostgresStatsRepo(db *sql.DB) *PostgresStatsRepo {
	return &PostgresStatsRepo{db: db}
}

// MonitorStats はモニター単位の統計を返す。
// 直近はfound_atが過去24時間以内のレコードを対象とする。
func (r *PostgresStatsRepo) MonitorStats(ctx context.Context, monitorID string) (*model.MonitorStats, error) {
	stats := &model.MonitorStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		    (SELECT COUNT(*) FROM posts WHERE monitor_id = $1),
		    (SELECT COUNT(*) FROM comments WHERE monitor_id = $1),
		    (SELECT COUNT(*) FROM monitor_runs WHERE monitor_id = $1),
		    (SELECT COUNT(*) FROM posts WHERE monitor_id = $1 AND found_at >= now() - interval '24 hours'),
		    (SELECT COUNT(*) FROM comments WHERE monitor_id = $1 AND found_at >= now() - interval '24 hours')`,
		monitorID,
	).Scan(
		&stats.TotalPosts, &stats.TotalComments, &stats.TotalRuns,
		&stats.RecentPosts, &stats.RecentComments,
	)
	if err != nil {
		return nil, fmt.Errorf("モニター統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}

// DashboardStats はユーザーの全モニターを横断した統計を返す。
func (r *PostgresStatsRepo) DashboardStats(ctx context.Context, userID string) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
		    (SELECT COUNT(*) FROM monitors WHERE user_id = $1),
		    (SELECT COUNT(*) FROM monitors WHERE user_id = $1 AND is_active = true),
		    (SELECT COUNT(*) FROM posts p JOIN monitors m ON p.monitor_id = m.id WHERE m.user_id = $1),
		    (SELECT COUNT(*) FROM comments c JOIN monitors m ON c.monitor_id = m.id WHERE m.user_id = $1),
		    (SELECT COUNT(*) FROM posts p JOIN monitors m ON p.monitor_id = m.id
		       WHERE m.user_id = $1 AND p.found_at >= now() - interval '24 hours'),
		    (SELECT COUNT(*) FROM comments c JOIN monitors m ON c.monitor_id = m.id
		       WHERE m.user_id = $1 AND c.found_at >= now() - interval '24 hours')`,
		userID,
	).Scan(
		&stats.TotalMonitors, &stats.ActiveMonitors,
		&stats.TotalPosts, &stats.TotalComments,
		&stats.RecentPosts, &stats.RecentComments,
	)
	if err != nil {
		return nil, fmt.Errorf("ダッシュボード統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}

// compile-time interface check
var _ StatsRepository = (*PostgresStatsRepo)(nil)
