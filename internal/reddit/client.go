// Package reddit はReddit APIのクライアントを提供する。
// OAuth2トークンの取得・更新、新着投稿とコメントツリーの取得、
// レート制限を守るためのリクエストペーシングを含む。
// 生のAPIレスポンスはこのパッケージの正規化境界でドメインのドラフト型に
// 変換され、外部のシェイプがアダプターの外へ漏れることはない。
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/subwatch/internal/model"
)

const (
	// defaultTokenURL はOAuth2トークン取得エンドポイント。
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	// defaultAPIBaseURL は認証済みAPIのベースURL。
	defaultAPIBaseURL = "https://oauth.reddit.com"
	// tokenExpiryMargin はトークンを期限より早めに失効扱いにする余裕。
	tokenExpiryMargin = time.Minute
)

// Config はReddit APIクライアントの認証設定。
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string // 空の場合はclient_credentialsグラントを使用する
	UserAgent    string
}

// Client はReddit APIのクライアント。
// 全リクエストはrate.Limiterを通過するため、呼び出し間隔の下限が
// 保証される（ベストエフォートではなくブロッキング制約）。
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter

	tokenURL   string // テスト用にエンドポイントを差し替え可能
	apiBaseURL string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient はClientの新しいインスタンスを生成する。
// apiIntervalはリクエスト間の最低間隔で、0以下の場合は1.1秒を使用する。
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger, apiInterval time.Duration) *Client {
	if apiInterval <= 0 {
		apiInterval = 1100 * time.Millisecond
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(apiInterval), 1),
		tokenURL:   defaultTokenURL,
		apiBaseURL: defaultAPIBaseURL,
	}
}

// FetchRecentPosts はsubredditの新着投稿を新しい順に取得する。
func (c *Client) FetchRecentPosts(ctx context.Context, subreddit string, limit int) ([]model.PostDraft, error) {
	path := fmt.Sprintf("/r/%s/new", url.PathEscape(subreddit))
	body, err := c.get(ctx, path, url.Values{
		"limit":    {fmt.Sprintf("%d", limit)},
		"raw_json": {"1"},
	})
	if err != nil {
		return nil, fmt.Errorf("subreddit %s の新着投稿の取得に失敗しました: %w", subreddit, err)
	}

	var listing rawListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("新着投稿レスポンスのパースに失敗しました: %w", err)
	}

	drafts := make([]model.PostDraft, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		var raw rawPost
		if err := json.Unmarshal(child.Data, &raw); err != nil {
			return nil, fmt.Errorf("投稿レコードのパースに失敗しました: %w", err)
		}
		drafts = append(drafts, normalizePost(raw))
	}

	return drafts, nil
}

// FetchComments は投稿のコメントを取得する。
// 返信ツリーを平坦化し、削除済みマーカー（[deleted]/[removed]）の
// コメントを除外したうえで、limit件に切り詰めて返す。
func (c *Client) FetchComments(ctx context.Context, postRedditID string, limit int) ([]model.CommentDraft, error) {
	path := fmt.Sprintf("/comments/%s", url.PathEscape(postRedditID))
	body, err := c.get(ctx, path, url.Values{
		"limit":    {fmt.Sprintf("%d", limit)},
		"raw_json": {"1"},
	})
	if err != nil {
		return nil, fmt.Errorf("投稿 %s のコメントの取得に失敗しました: %w", postRedditID, err)
	}

	// コメントエンドポイントは [投稿のListing, コメントのListing] の2要素配列を返す
	var listings []rawListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("コメントレスポンスのパースに失敗しました: %w", err)
	}
	if len(listings) < 2 {
		return nil, fmt.Errorf("コメントレスポンスの形式が不正です: 要素数 %d", len(listings))
	}

	var flat []rawComment
	flattenComments(listings[1].Data.Children, &flat)

	if len(flat) > limit {
		flat = flat[:limit]
	}

	drafts := make([]model.CommentDraft, 0, len(flat))
	for _, raw := range flat {
		drafts = append(drafts, normalizeComment(raw, postRedditID))
	}

	return drafts, nil
}

// flattenComments は返信ツリーを深さ優先で平坦化する。
// 本文が削除済みマーカーのコメントと "more" プレースホルダはスキップする。
func flattenComments(children []rawThing, out *[]rawComment) {
	for _, child := range children {
		if child.Kind != "t1" {
			continue
		}
		var raw rawComment
		if err := json.Unmarshal(child.Data, &raw); err != nil {
			continue
		}
		if raw.Body != "" && raw.Body != "[deleted]" && raw.Body != "[removed]" {
			*out = append(*out, raw)
		}
		// repliesは返信がない場合に空文字列になるため、Listingとして
		// パースできた場合のみ再帰する
		if len(raw.Replies) > 0 {
			var replies rawListing
			if err := json.Unmarshal(raw.Replies, &replies); err == nil {
				flattenComments(replies.Data.Children, out)
			}
		}
	}
}

// get は認証済みAPIへのGETリクエストを実行する。
// リクエスト前にペーシング制約で待機し、必要ならトークンを更新する。
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ペーシング待機が中断されました: %w", err)
	}

	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := c.apiBaseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Reddit APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Reddit APIがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("Reddit APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return body, nil
}

// ensureToken は有効なアクセストークンを返す。
// 未取得または期限切れ間近の場合はトークンエンドポイントから再取得する。
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	if c.cfg.RefreshToken != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", c.cfg.RefreshToken)
	} else {
		form.Set("grant_type", "client_credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("トークンリクエストの作成に失敗しました: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("トークンの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("トークンエンドポイントがステータス %d を返しました", resp.StatusCode)
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("トークンレスポンスのパースに失敗しました: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("トークンレスポンスにaccess_tokenが含まれていません")
	}

	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)

	c.logger.Info("Reddit APIトークンを更新しました",
		slog.Int("expires_in_sec", tr.ExpiresIn),
	)

	return c.accessToken, nil
}
