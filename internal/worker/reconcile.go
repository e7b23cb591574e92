// Package worker はバックグラウンドジョブを提供する。
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// reconcileInterval は定期リコンサイルの実行間隔。
const reconcileInterval = 24 * time.Hour

// Executor はSQLの実行に必要なインターフェース。*sql.DBの部分集合。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ReconcileJob はプロセス異常終了で放棄されたrunning状態の実行記録を
// failedに遷移させるジョブ。実行記録の終端性を保証する。
type ReconcileJob struct {
	db     Executor
	grace  time.Duration
	logger *slog.Logger
}

// NewReconcileJob はReconcileJobを生成する。
// graceより古いrunning実行を放棄とみなす。
func NewReconcileJob(db Executor, grace time.Duration, logger *slog.Logger) *ReconcileJob {
	return &ReconcileJob{
		db:     db,
		grace:  grace,
		logger: logger,
	}
}

// Run は放棄された実行記録を1回リコンサイルする。
func (j *ReconcileJob) Run(ctx context.Context) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE monitor_runs SET
		    status = 'failed',
		    error_message = 'interrupted',
		    completed_at = now()
		 WHERE status = 'running'
		   AND started_at < now() - $1 * interval '1 second'`,
		int64(j.grace.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("放棄された実行記録の回収に失敗しました: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("回収件数の取得に失敗しました: %w", err)
	}
	if affected > 0 {
		j.logger.Warn("放棄された実行記録を回収しました",
			slog.Int64("count", affected),
		)
	}
	return nil
}

// Start は起動時に1回実行した後、定期的にリコンサイルを繰り返す。
// ctxのキャンセルで停止する。
func (j *ReconcileJob) Start(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("リコンサイルに失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("リコンサイルに失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
