package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/subwatch/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// ExistsByRedditID は指定Reddit IDの投稿が保存済みかを返す。
func (r *PostgresPostRepo) ExistsByRedditID(ctx context.Context, redditID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM posts WHERE reddit_id = $1)`,
		redditID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("投稿の存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create は投稿を作成する。reddit_idの一意制約違反はそのまま返す。
func (r *PostgresPostRepo) Create(ctx context.Context, p *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, reddit_id, title, content, author, subreddit, url,
		                    permalink, score, num_comments, is_nsfw, matched_keywords,
		                    monitor_id, created_at, found_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.RedditID, p.Title, nullString(p.Content), p.Author, p.Subreddit,
		nullString(p.URL), p.Permalink, p.Score, p.NumComments, p.IsNSFW,
		pq.StringArray(p.MatchedKeywords), p.MonitorID, p.CreatedAt, p.FoundAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// ListByMonitor はモニターの投稿一覧をfound_at降順で返す。
func (r *PostgresPostRepo) ListByMonitor(ctx context.Context, monitorID string, limit, offset int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reddit_id, title, content, author, subreddit, url,
		        permalink, score, num_comments, is_nsfw, matched_keywords,
		        monitor_id, created_at, found_at
		 FROM posts
		 WHERE monitor_id = $1
		 ORDER BY found_at DESC
		 LIMIT $2 OFFSET $3`,
		monitorID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		p := &model.Post{}
		var content, url sql.NullString
		var matched pq.StringArray
		if err := rows.Scan(
			&p.ID, &p.RedditID, &p.Title, &content, &p.Author, &p.Subreddit, &url,
			&p.Permalink, &p.Score, &p.NumComments, &p.IsNSFW, &matched,
			&p.MonitorID, &p.CreatedAt, &p.FoundAt,
		); err != nil {
			return nil, fmt.Errorf("投稿行の読み取りに失敗しました: %w", err)
		}
		p.Content = nullStringValue(content)
		p.URL = nullStringValue(url)
		p.MatchedKeywords = []string(matched)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
