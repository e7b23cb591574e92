package reddit

import (
	"encoding/json"
	"time"

	"github.com/hitoshi/subwatch/internal/model"
)

// deletedAuthor は作者が取得できない場合のフォールバック値。
const deletedAuthor = "[deleted]"

// permalinkBase はAPIが返す相対permalinkに付与するベースURL。
const permalinkBase = "https://reddit.com"

// rawListing はListing型レスポンスの外形。
type rawListing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []rawThing `json:"children"`
	} `json:"data"`
}

// rawThing はListing内の1要素。Kindで実体の型（t1=コメント、t3=投稿）を
// 判別し、Dataは型ごとにパースする。
type rawThing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// rawPost はAPIが返す投稿レコードのうち利用するフィールド。
type rawPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Over18      bool    `json:"over_18"`
	CreatedUTC  float64 `json:"created_utc"`
}

// rawComment はAPIが返すコメントレコードのうち利用するフィールド。
// Repliesは返信がない場合に空文字列、ある場合はListingオブジェクトに
// なるため、RawMessageのまま保持する。
type rawComment struct {
	ID         string          `json:"id"`
	Body       string          `json:"body"`
	Author     string          `json:"author"`
	Subreddit  string          `json:"subreddit"`
	Permalink  string          `json:"permalink"`
	Score      int             `json:"score"`
	Over18     bool            `json:"over_18"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

// normalizePost は生の投稿レコードをドラフトに変換する。
// 作者が空の場合は[deleted]に、本文が空の場合はリンクURLに
// フォールバックし、エポック秒の日時をtime.Timeへ変換する。
func normalizePost(raw rawPost) model.PostDraft {
	content := raw.Selftext
	if content == "" {
		content = raw.URL
	}
	return model.PostDraft{
		RedditID:    raw.ID,
		Title:       raw.Title,
		Content:     content,
		Author:      fallbackAuthor(raw.Author),
		Subreddit:   raw.Subreddit,
		URL:         raw.URL,
		Permalink:   permalinkBase + raw.Permalink,
		Score:       raw.Score,
		NumComments: raw.NumComments,
		IsNSFW:      raw.Over18,
		CreatedAt:   epochToTime(raw.CreatedUTC),
	}
}

// normalizeComment は生のコメントレコードをドラフトに変換する。
func normalizeComment(raw rawComment, postRedditID string) model.CommentDraft {
	return model.CommentDraft{
		RedditID:     raw.ID,
		Content:      raw.Body,
		Author:       fallbackAuthor(raw.Author),
		Subreddit:    raw.Subreddit,
		PostRedditID: postRedditID,
		Permalink:    permalinkBase + raw.Permalink,
		Score:        raw.Score,
		IsNSFW:       raw.Over18,
		CreatedAt:    epochToTime(raw.CreatedUTC),
	}
}

func fallbackAuthor(author string) string {
	if author == "" {
		return deletedAuthor
	}
	return author
}

func epochToTime(epoch float64) time.Time {
	return time.Unix(int64(epoch), 0).UTC()
}
