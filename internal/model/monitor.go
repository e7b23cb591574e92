// Package model はドメインモデルを定義する。
package model

import "time"

// Monitor はユーザーが定義するReddit監視設定を表す。
// 対象subreddit群とキーワード群、チェック間隔を保持する。
type Monitor struct {
	ID            string
	UserID        string
	Name          string
	Description   string
	Subreddits    []string
	Keywords      []string
	CheckInterval int // 分単位（1〜60）
	IsActive      bool
	LastChecked   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MonitorUpdate はモニター更新リクエストの部分更新フィールドを表す。
// nilのフィールドは変更しない。
type MonitorUpdate struct {
	Name          *string
	Description   *string
	Subreddits    []string
	Keywords      []string
	CheckInterval *int
	IsActive      *bool
}

// MonitorStats はモニター単位の集計統計を表す。
type MonitorStats struct {
	TotalPosts     int
	TotalComments  int
	TotalRuns      int
	RecentPosts    int // 直近24時間
	RecentComments int // 直近24時間
}

// DashboardStats はユーザーの全モニターを横断した集計統計を表す。
type DashboardStats struct {
	TotalMonitors  int
	ActiveMonitors int
	TotalPosts     int
	TotalComments  int
	RecentPosts    int // 直近24時間
	RecentComments int // 直近24時間
}
