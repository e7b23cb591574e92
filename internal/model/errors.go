// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, monitor, reddit, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMonitorNotFound       = "MONITOR_NOT_FOUND"
	ErrCodeInvalidCheckInterval  = "INVALID_CHECK_INTERVAL"
	ErrCodeEmptySubreddits       = "EMPTY_SUBREDDITS"
	ErrCodeEmptyKeywords         = "EMPTY_KEYWORDS"
	ErrCodeRunInProgress         = "RUN_IN_PROGRESS"
	ErrCodeRedditNotConfigured   = "REDDIT_NOT_CONFIGURED"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
)

// NewMonitorNotFoundError はモニター未検出エラーを生成する。
// 存在しない場合と所有者が異なる場合のどちらも同じエラーを返す。
func NewMonitorNotFoundError(monitorID string) *APIError {
	return &APIError{
		Code:     ErrCodeMonitorNotFound,
		Message:  fmt.Sprintf("指定されたモニターが見つかりません: %s", monitorID),
		Category: "monitor",
		Action:   "モニターIDを確認してください。",
	}
}

// NewInvalidCheckIntervalError はチェック間隔が無効な場合のエラーを生成する。
func NewInvalidCheckIntervalError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCheckInterval,
		Message:  fmt.Sprintf("無効なチェック間隔です: %d分", minutes),
		Category: "validation",
		Action:   "チェック間隔は1分から60分の範囲で指定してください。",
	}
}

// NewEmptySubredditsError はsubredditが1件も指定されていない場合のエラーを生成する。
func NewEmptySubredditsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptySubreddits,
		Message:  "監視対象のsubredditが指定されていません。",
		Category: "validation",
		Action:   "subredditを1件以上指定してください。",
	}
}

// NewEmptyKeywordsError はキーワードが1件も指定されていない場合のエラーを生成する。
func NewEmptyKeywordsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyKeywords,
		Message:  "監視キーワードが指定されていません。",
		Category: "validation",
		Action:   "キーワードを1件以上指定してください。",
	}
}

// NewRunInProgressError は同一モニターの実行が進行中の場合のエラーを生成する。
func NewRunInProgressError(monitorID string) *APIError {
	return &APIError{
		Code:     ErrCodeRunInProgress,
		Message:  fmt.Sprintf("モニターは現在実行中です: %s", monitorID),
		Category: "monitor",
		Action:   "実行が完了してから再度お試しください。",
	}
}

// NewRedditNotConfiguredError はReddit API認証情報が未設定の場合のエラーを生成する。
func NewRedditNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeRedditNotConfigured,
		Message:  "Reddit APIの認証情報が設定されていません。",
		Category: "system",
		Action:   "環境変数 REDDIT_CLIENT_ID と REDDIT_CLIENT_SECRET を設定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
