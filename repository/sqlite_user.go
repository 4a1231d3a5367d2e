package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akinalp/custodian/database"
	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg"
)

type sqliteUserRepo struct {
	db database.TxQuerier
}

// NewSQLiteUserRepo, UserRepository'nin SQLite implementasyonunu döner.
func NewSQLiteUserRepo(db database.TxQuerier) UserRepository {
	return &sqliteUserRepo{db: db}
}

const userColumns = `id, username, display_name, email, password_hash, is_admin,
	is_active, is_deleted, is_anonymized, created_at, updated_at,
	deactivated_at, deleted_at, anonymized_at`

// rowScanner, *sql.Row ve *sql.Rows'un ortak Scan'i.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash, &u.IsAdmin,
		&u.IsActive, &u.IsDeleted, &u.IsAnonymized, &u.CreatedAt, &u.UpdatedAt,
		&u.DeactivatedAt, &u.DeletedAt, &u.AnonymizedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = nowOr(user.CreatedAt)
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	query := `
		INSERT INTO users (id, username, display_name, email, password_hash, is_admin,
			is_active, is_deleted, is_anonymized, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.DisplayName,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.IsActive,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "email") {
				return fmt.Errorf("%w: email already in use", pkg.ErrAlreadyExists)
			}
			return fmt.Errorf("%w: username already taken", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *sqliteUserRepo) getOne(ctx context.Context, what, where string, arg any) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", what, err)
	}
	return user, nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id", "id = ?", id)
}

func (r *sqliteUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username", "username = ? COLLATE NOCASE", username)
}

func (r *sqliteUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email", "email = ?", strings.ToLower(email))
}

// Update, profil alanlarını yazar. Anonymized satıra yazılmaz: okuma ile
// yazma arasında commit edilen bir anonymize, PII'yi geri getiremez.
func (r *sqliteUserRepo) Update(ctx context.Context, user *models.User) error {
	query := `UPDATE users SET display_name = ?, email = ?, updated_at = ?
		WHERE id = ? AND is_anonymized = 0`

	user.UpdatedAt = nowOr(user.UpdatedAt)
	result, err := r.db.ExecContext(ctx, query,
		user.DisplayName, user.Email, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already in use", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return r.expectWritable(ctx, result, user.ID)
}

func (r *sqliteUserRepo) UpdatePassword(ctx context.Context, userID string, newPasswordHash string, at time.Time) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND is_anonymized = 0`

	result, err := r.db.ExecContext(ctx, query, newPasswordHash, nowOr(at), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return r.expectWritable(ctx, result, userID)
}

// UpdateEmail, nil → email kaldırılır (NULL).
func (r *sqliteUserRepo) UpdateEmail(ctx context.Context, userID string, email *string, at time.Time) error {
	query := `UPDATE users SET email = ?, updated_at = ? WHERE id = ? AND is_anonymized = 0`

	result, err := r.db.ExecContext(ctx, query, email, nowOr(at), userID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already in use", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to update email: %w", err)
	}

	return r.expectWritable(ctx, result, userID)
}

// expectWritable, 0 satır etkilendiyse satırın yok mu yoksa anonymized mı
// olduğunu ayırır.
func (r *sqliteUserRepo) expectWritable(ctx context.Context, result sql.Result, id string) error {
	err := expectAffected(result)
	if !errors.Is(err, pkg.ErrNotFound) {
		return err
	}

	var anonymized bool
	scanErr := r.db.QueryRowContext(ctx, `SELECT is_anonymized FROM users WHERE id = ?`, id).Scan(&anonymized)
	switch {
	case errors.Is(scanErr, sql.ErrNoRows):
		return pkg.ErrNotFound
	case scanErr != nil:
		return fmt.Errorf("failed to check user state: %w", scanErr)
	case anonymized:
		return fmt.Errorf("%w: anonymized accounts cannot be updated", pkg.ErrInvalidTransition)
	}
	return pkg.ErrNotFound
}

func (r *sqliteUserRepo) UpdateLifecycle(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			username = ?, display_name = ?, email = ?, password_hash = ?,
			is_active = ?, is_deleted = ?, is_anonymized = ?,
			deactivated_at = ?, deleted_at = ?, anonymized_at = ?,
			updated_at = ?
		WHERE id = ? AND is_anonymized = 0`

	result, err := r.db.ExecContext(ctx, query,
		user.Username, user.DisplayName, user.Email, user.PasswordHash,
		user.IsActive, user.IsDeleted, user.IsAnonymized,
		utcPtr(user.DeactivatedAt), utcPtr(user.DeletedAt), utcPtr(user.AnonymizedAt),
		nowOr(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user lifecycle: %w", err)
	}

	return expectAffected(result)
}

func (r *sqliteUserRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *sqliteUserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectAffected(result)
}

// expectAffected, 0 satır etkilendiyse ErrNotFound döner.
func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nowOr, çağıran zaman damgası vermediyse duvar saatine düşer. Service'ler
// kendi clock'larından verir; sıfır değer sadece doğrudan repo kullanımında gelir.
func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
