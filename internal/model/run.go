// Package model はドメインモデルを定義する。
package model

import "time"

// RunStatus はモニター実行の状態を表す。
type RunStatus string

const (
	// RunStatusRunning は実行中の状態。
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted は正常終了した状態。subreddit単位のエラーがあっても
	// バリデーションを通過した実行はcompletedになる。
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed はバリデーション失敗または予期しないエラーで終了した状態。
	RunStatusFailed RunStatus = "failed"
)

// MonitorRun はモニターの1回の実行記録を表す。
// 実行はrunning状態で作成され、必ずcompletedまたはfailedの終端状態に遷移する。
type MonitorRun struct {
	ID            string
	MonitorID     string
	Status        RunStatus
	PostsFound    int
	CommentsFound int
	ErrorMessage  string // 複数エラーは "; " で連結
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// RunResult はモニター実行の呼び出し元へ返す結果サマリーを表す。
// Errorsが空であればsubredditレベルのエラーが一切なかったことを示す。
type RunResult struct {
	PostsFound    int
	CommentsFound int
	Errors        []string
}
