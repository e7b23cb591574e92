package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/subwatch/internal/model"
)

// PostgresMonitorRepo はPostgreSQLを使用したモニターリポジトリ。
type PostgresMonitorRepo struct {
	db *sql.DB
}

// NewPostgresMonitorRepo はPostgresMonitorRepoを生成する。
func NewPostgresMonitorRepo(db *sql.DB) *PostgresMonitorRepo {
	return &PostgresMonitorRepo{db: db}
}

const monitorColumns = `id, user_id, name, description, subreddits, keywords,
	check_interval, is_active, last_checked, created_at, updated_at`

// scanMonitor は1行分のモニターを読み取る。
func scanMonitor(row interface{ Scan(...any) error }) (*model.Monitor, error) {
	m := &model.Monitor{}
	var description sql.NullString
	var lastChecked sql.NullTime
	var subreddits, keywords pq.StringArray

	if err := row.Scan(
		&m.ID, &m.UserID, &m.Name, &description, &subreddits, &keywords,
		&m.CheckInterval, &m.IsActive, &lastChecked, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.Description = nullStringValue(description)
	m.Subreddits = []string(subreddits)
	m.Keywords = []string(keywords)
	if lastChecked.Valid {
		t := lastChecked.Time
		m.LastChecked = &t
	}

	return m, nil
}

// FindByID は指定IDのモニターを取得する。見つからない場合はnilを返す。
func (r *PostgresMonitorRepo) FindByID(ctx context.Context, id string) (*model.Monitor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE id = $1`,
		id,
	)
	m, err := scanMonitor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("モニターの取得に失敗しました: %w", err)
	}
	return m, nil
}

// FindByIDAndUser は指定IDかつ指定所有者のモニターを取得する。
// 見つからない、または所有者が異なる場合はnilを返す。
func (r *PostgresMonitorRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Monitor, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	m, err := scanMonitor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("所有者によるモニターの検索に失敗しました: %w", err)
	}
	return m, nil
}

// Create はモニターを作成する。
func (r *PostgresMonitorRepo) Create(ctx context.Context, m *model.Monitor) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO monitors (id, user_id, name, description, subreddits, keywords,
		                       check_interval, is_active, last_checked, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.UserID, m.Name, nullString(m.Description),
		pq.StringArray(m.Subreddits), pq.StringArray(m.Keywords),
		m.CheckInterval, m.IsActive, nullTime(m.LastChecked),
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("モニターの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はモニターの全フィールドを上書き更新する。
func (r *PostgresMonitorRepo) Update(ctx context.Context, m *model.Monitor) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE monitors SET
		    name = $2, description = $3, subreddits = $4, keywords = $5,
		    check_interval = $6, is_active = $7, updated_at = $8
		 WHERE id = $1`,
		m.ID, m.Name, nullString(m.Description),
		pq.StringArray(m.Subreddits), pq.StringArray(m.Keywords),
		m.CheckInterval, m.IsActive, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("モニターの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDかつ指定所有者のモニターを削除する。
// 関連するposts、comments、monitor_runsはCASCADE削除される。
func (r *PostgresMonitorRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM monitors WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("モニターの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListByUser は所有者のモニター一覧をcreated_at降順で返す。
func (r *PostgresMonitorRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Monitor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("モニター一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var monitors []*model.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("モニター行の読み取りに失敗しました: %w", err)
		}
		monitors = append(monitors, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("モニター一覧の走査に失敗しました: %w", err)
	}
	return monitors, nil
}

// ListActive はis_active = trueの全モニターを返す。
func (r *PostgresMonitorRepo) ListActive(ctx context.Context) ([]*model.Monitor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors
		 WHERE is_active = true
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("アクティブなモニター一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var monitors []*model.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("アクティブなモニター行の読み取りに失敗しました: %w", err)
		}
		monitors = append(monitors, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アクティブなモニター一覧の走査に失敗しました: %w", err)
	}
	return monitors, nil
}

// UpdateLastChecked はモニターのlast_checkedを更新する。
func (r *PostgresMonitorRepo) UpdateLastChecked(ctx context.Context, id string, checkedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE monitors SET last_checked = $2, updated_at = now() WHERE id = $1`,
		id, checkedAt,
	)
	if err != nil {
		return fmt.Errorf("最終チェック日時の更新に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTime は*time.Timeをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var _ MonitorRepository = (*PostgresMonitorRepo)(nil)
