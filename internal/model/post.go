// Package model はドメインモデルを定義する。
package model

import "time"

// Post はキーワードにマッチして保存されたReddit投稿を表す。
// RedditIDはReddit側の一意なIDで、モニターを横断した重複排除キーとなる。
// マッチしたために存在するレコードであり、MatchedKeywordsは常に非空。
type Post struct {
	ID              string
	RedditID        string
	Title           string
	Content         string
	Author          string
	Subreddit       string
	URL             string
	Permalink       string
	Score           int
	NumComments     int
	IsNSFW          bool
	MatchedKeywords []string
	MonitorID       string
	CreatedAt       time.Time // Reddit側の投稿日時
	FoundAt         time.Time // 発見（保存）日時
}

// Comment はキーワードにマッチして保存されたRedditコメントを表す。
// PostRedditIDは親投稿のReddit IDを参照する。
type Comment struct {
	ID              string
	RedditID        string
	Content         string
	Author          string
	Subreddit       string
	PostRedditID    string
	Permalink       string
	Score           int
	IsNSFW          bool
	MatchedKeywords []string
	MonitorID       string
	CreatedAt       time.Time // Reddit側のコメント日時
	FoundAt         time.Time // 発見（保存）日時
}

// PostDraft はRedditから取得した未保存の投稿データを表す。
// アダプターが生のAPIレスポンスを正規化した直後の形で、
// キーワードマッチングを経てPostとして保存される。
type PostDraft struct {
	RedditID    string
	Title       string
	Content     string
	Author      string
	Subreddit   string
	URL         string
	Permalink   string
	Score       int
	NumComments int
	IsNSFW      bool
	CreatedAt   time.Time
}

// CommentDraft はRedditから取得した未保存のコメントデータを表す。
type CommentDraft struct {
	RedditID     string
	Content      string
	Author       string
	Subreddit    string
	PostRedditID string
	Permalink    string
	Score        int
	IsNSFW       bool
	CreatedAt    time.Time
}
