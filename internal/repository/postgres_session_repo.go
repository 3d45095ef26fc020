package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/tarkam/internal/model"
)

// セッションテーブルに対するSQL。有効期限の判定はDB時刻で行う。
const (
	sessionInsertSQL = `INSERT INTO sessions (id, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`

	sessionSelectActiveSQL = `SELECT s.id, s.user_id, u.username, s.expires_at, s.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.expires_at > now()`

	sessionExtendSQL = `UPDATE sessions SET expires_at = $2 WHERE id = $1`

	sessionDeleteSQL = `DELETE FROM sessions WHERE id = $1`
)

// PostgresSessionRepo はsessionsテーブルをストアとするセッションリポジトリ。
// 所有ユーザー名はusersとのJOINで解決する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

func (r *PostgresSessionRepo) Create(ctx context.Context, s *model.Session) error {
	return r.exec(ctx, "create session", sessionInsertSQL, s.ID, s.UserID, s.ExpiresAt, s.CreatedAt)
}

// FindByID は有効期限内のセッションを返す。存在しないか期限切れならnil。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := r.db.QueryRowContext(ctx, sessionSelectActiveSQL, id).
		Scan(&s.ID, &s.UserID, &s.Username, &s.ExpiresAt, &s.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &s, nil
}

func (r *PostgresSessionRepo) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	return r.exec(ctx, "update session expiry", sessionExtendSQL, id, expiresAt)
}

// DeleteByID はセッションを削除する。対象がなくてもエラーにしない。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return r.exec(ctx, "delete session", sessionDeleteSQL, id)
}

func (r *PostgresSessionRepo) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)
