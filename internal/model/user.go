// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// GoogleSubjectはGoogle OAuthのsubjectクレームで、外部IdPとの紐付けに使う。
type User struct {
	ID            string
	GoogleSubject string
	Email         string
	Name          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
