package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/subwatch/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// ExistsByRedditID は指定Reddit IDのコメントが保存済みかを返す。
func (r *PostgresCommentRepo) ExistsByRedditID(ctx context.Context, redditID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM comments WHERE reddit_id = $1)`,
		redditID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("コメントの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create はコメントを作成する。reddit_idの一意制約違反はそのまま返す。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, reddit_id, content, author, subreddit, post_reddit_id,
		                       permalink, score, is_nsfw, matched_keywords,
		                       monitor_id, created_at, found_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.RedditID, c.Content, c.Author, c.Subreddit, c.PostRedditID,
		c.Permalink, c.Score, c.IsNSFW, pq.StringArray(c.MatchedKeywords),
		c.MonitorID, c.CreatedAt, c.FoundAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByMonitor はモニターのコメント一覧をfound_at降順で返す。
func (r *PostgresCommentRepo) ListByMonitor(ctx context.Context, monitorID string, limit, offset int) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reddit_id, content, author, subreddit, post_reddit_id,
		        permalink, score, is_nsfw, matched_keywords,
		        monitor_id, created_at, found_at
		 FROM comments
		 WHERE monitor_id = $1
		 ORDER BY found_at DESC
		 LIMIT $2 OFFSET $3`,
		monitorID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		c := &model.Comment{}
		var matched pq.StringArray
		if err := rows.Scan(
			&c.ID, &c.RedditID, &c.Content, &c.Author, &c.Subreddit, &c.PostRedditID,
			&c.Permalink, &c.Score, &c.IsNSFW, &matched,
			&c.MonitorID, &c.CreatedAt, &c.FoundAt,
		); err != nil {
			return nil, fmt.Errorf("コメント行の読み取りに失敗しました: %w", err)
		}
		c.MatchedKeywords = []string(matched)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント一覧の走査に失敗しました: %w", err)
	}
	return comments, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
