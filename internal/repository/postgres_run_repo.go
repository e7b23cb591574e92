package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/subwatch/internal/model"
)

// PostgresRunRepo はPostgreSQLを使用した実行記録リポジトリ。
type PostgresRunRepo struct {
	db *sql.DB
}

// NewPostgresRunRepo はPostgresRunRepoを生成する。
func NewPostgresRunRepo(db *sql.DB) *PostgresRunRepo {
	return &PostgresRunRepo{db: db}
}

// Create は実行記録を作成する。
func (r *PostgresRunRepo) Create(ctx context.Context, run *model.MonitorRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO monitor_runs (id, monitor_id, status, posts_found, comments_found,
		                           error_message, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.MonitorID, run.Status, run.PostsFound, run.CommentsFound,
		nullString(run.ErrorMessage), run.StartedAt, nullTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("実行記録の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateResult は実行記録の終端状態を更新する。
func (r *PostgresRunRepo) UpdateResult(ctx context.Context, run *model.MonitorRun) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE monitor_runs SET
		    status = $2, posts_found = $3, comments_found = $4,
		    error_message = $5, completed_at = $6
		 WHERE id = $1`,
		run.ID, run.Status, run.PostsFound, run.CommentsFound,
		nullString(run.ErrorMessage), nullTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("実行記録の更新に失敗しました: %w", err)
	}
	return nil
}

// ListByMonitor はモニターの実行履歴をstarted_at降順で返す。
func (r *PostgresRunRepo) ListByMonitor(ctx context.Context, monitorID string, limit, offset int) ([]*model.MonitorRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, monitor_id, status, posts_found, comments_found,
		        error_message, started_at, completed_at
		 FROM monitor_runs
		 WHERE monitor_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`,
		monitorID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("実行履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var runs []*model.MonitorRun
	for rows.Next() {
		run := &model.MonitorRun{}
		var errorMessage sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(
			&run.ID, &run.MonitorID, &run.Status, &run.PostsFound, &run.CommentsFound,
			&errorMessage, &run.StartedAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("実行記録行の読み取りに失敗しました: %w", err)
		}
		run.ErrorMessage = nullStringValue(errorMessage)
		if completedAt.Valid {
			t := completedAt.Time
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("実行履歴の走査に失敗しました: %w", err)
	}
	return runs, nil
}

// compile-time interface check
var _ RunRepository = (*PostgresRunRepo)(nil)
