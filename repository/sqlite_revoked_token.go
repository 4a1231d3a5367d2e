package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/akinalp/custodian/database"
	"github.com/akinalp/custodian/models"
)

type sqliteRevokedTokenRepo struct {
	db database.TxQuerier
}

// NewSQLiteRevokedTokenRepo, constructor.
func NewSQLiteRevokedTokenRepo(db database.TxQuerier) RevokedTokenRepository {
	return &sqliteRevokedTokenRepo{db: db}
}

func (r *sqliteRevokedTokenRepo) Create(ctx context.Context, token *models.RevokedToken) error {
	token.CreatedAt = nowOr(token.CreatedAt)

	query := `INSERT OR IGNORE INTO revoked_tokens (jti, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		token.JTI, token.UserID, token.ExpiresAt.UTC(), token.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record revoked token: %w", err)
	}
	return nil
}

func (r *sqliteRevokedTokenRepo) ListActive(ctx context.Context, now time.Time) ([]models.RevokedToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT jti, user_id, expires_at, created_at FROM revoked_tokens WHERE expires_at > ?`,
		now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list revoked tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.RevokedToken
	for rows.Next() {
		var t models.RevokedToken
		if err := rows.Scan(&t.JTI, &t.UserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revoked token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revoked token rows: %w", err)
	}

	return tokens, nil
}

func (r *sqliteRevokedTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired revoked tokens: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
