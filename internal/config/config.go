// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `validate:"required"`

	// OAuth
	GoogleClientID     string `validate:"required"`
	GoogleClientSecret string `validate:"required"`
	GoogleRedirectURL  string `validate:"required,url"`

	// Session
	SessionSecret string `validate:"required"`
	SessionMaxAge int    `validate:"gt=0"`

	// Reddit API（未設定の場合はスケジューリングが無効化される）
	RedditClientID     string
	RedditClientSecret string
	RedditRefreshToken string
	RedditUserAgent    string

	// Monitoring
	RedditAPIInterval time.Duration `validate:"gt=0"` // API呼び出しの最低間隔
	PostFetchLimit    int           `validate:"gt=0"` // 投稿監視で取得する新着投稿数
	CommentPostLimit  int           `validate:"gt=0"` // コメント監視の対象とする新着投稿数
	CommentFetchLimit int           `validate:"gt=0"` // 1投稿あたりの取得コメント数
	TrailingWindow    time.Duration `validate:"gt=0"` // この期間より古いコンテンツは無視する
	RunTimeout        time.Duration `validate:"gt=0"` // 1回の実行全体のタイムアウト
	ReconcileGrace    time.Duration `validate:"gt=0"` // running実行を放棄とみなすまでの猶予

	// Rate Limit（req/min/user）
	RateLimitGeneral int `validate:"gt=0"`
	RateLimitRun     int `validate:"gt=0"`

	// Server
	ServerPort string `validate:"required"`
	BaseURL    string `validate:"required,url"`

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// RedditEnabled はReddit APIの認証情報が設定されているかを返す。
// falseの場合、モニターの作成は可能だがスケジューリングと実行は行われない。
func (c *Config) RedditEnabled() bool {
	return c.RedditClientID != "" && c.RedditClientSecret != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Reddit認証情報は任意。未設定でも起動は継続する。
	cfg.RedditClientID = os.Getenv("REDDIT_CLIENT_ID")
	cfg.RedditClientSecret = os.Getenv("REDDIT_CLIENT_SECRET")
	cfg.RedditRefreshToken = os.Getenv("REDDIT_REFRESH_TOKEN")
	cfg.RedditUserAgent = getEnvString("REDDIT_USER_AGENT", "subwatch/1.0 reddit keyword monitor")

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RedditAPIInterval = getEnvDuration("REDDIT_API_INTERVAL", 1100*time.Millisecond)
	cfg.PostFetchLimit = getEnvInt("POST_FETCH_LIMIT", 50)
	cfg.CommentPostLimit = getEnvInt("COMMENT_POST_LIMIT", 10)
	cfg.CommentFetchLimit = getEnvInt("COMMENT_FETCH_LIMIT", 50)
	cfg.TrailingWindow = getEnvDuration("TRAILING_WINDOW", time.Hour)
	cfg.RunTimeout = getEnvDuration("RUN_TIMEOUT", 10*time.Minute)
	cfg.ReconcileGrace = getEnvDuration("RECONCILE_GRACE", 30*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitRun = getEnvInt("RATE_LIMIT_RUN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
