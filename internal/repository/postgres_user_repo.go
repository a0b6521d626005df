package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, name, email, password_hash, mobile, dob, image, preferences, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var dob sql.NullTime
	var prefs pq.StringArray
	if err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Mobile,
		&dob, &u.Image, &prefs, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if dob.Valid {
		t := dob.Time
		u.DOB = &t
	}
	u.Preferences = toCategories(prefs)
	return u, nil
}

func (r *PostgresUserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where,
		arg,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := r.findOne(ctx, "id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return u, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := r.findOne(ctx, "email = $1", email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return u, nil
}

// FindByMobile は電話番号でユーザーを検索する。複数該当する場合は最古のユーザーを返す。
func (r *PostgresUserRepo) FindByMobile(ctx context.Context, mobile string) (*model.User, error) {
	u, err := r.findOne(ctx, "mobile = $1 ORDER BY created_at LIMIT 1", mobile)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by mobile: %w", err)
	}
	return u, nil
}

// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, mobile, dob, image, preferences, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Mobile,
		nullTime(user.DOB), user.Image, pq.StringArray(model.CategoryStrings(user.Preferences)),
		user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile はプロフィール項目を上書きする。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, mobile = $3, dob = $4, image = $5, preferences = $6, updated_at = now()
		 WHERE id = $1`,
		user.ID, user.Name, user.Mobile, nullTime(user.DOB), user.Image,
		pq.StringArray(model.CategoryStrings(user.Preferences)),
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return expectOneRow(result, "user", user.ID)
}

// UpdatePassword はパスワードハッシュを更新する。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return expectOneRow(result, "user", userID)
}

// UpdatePreferences は興味カテゴリのみを更新する。
func (r *PostgresUserRepo) UpdatePreferences(ctx context.Context, userID string, prefs []model.Category) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET preferences = $2, updated_at = now() WHERE id = $1`,
		userID, pq.StringArray(model.CategoryStrings(prefs)),
	)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	return expectOneRow(result, "user", userID)
}

func expectOneRow(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func toCategories(values []string) []model.Category {
	out := make([]model.Category, len(values))
	for i, v := range values {
		out[i] = model.Category(v)
	}
	return out
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
