package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"identity-server/internal/model"
)

const bcryptCost = 12

const uniqueViolation = "23505"

// UserRepository is the PostgreSQL credential store. It owns password
// hashing: plaintext never reaches a column.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, username, email, phone, display_name, password_hash,
	        refresh_token, refresh_token_expires_at, created_at, updated_at`

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users WHERE lower(username) = lower($1)`, strings.TrimSpace(username)).
		Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.DisplayName, &u.PasswordHash,
			&u.RefreshToken, &u.RefreshTokenExpiresAt, &u.CreatedAt, &u.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User, password string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	_, err = r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, phone, display_name, password_hash,
		                    refresh_token, refresh_token_expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Username, u.Email, u.Phone, u.DisplayName, u.PasswordHash,
		u.RefreshToken, u.RefreshTokenExpiresAt, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return model.User{}, model.ErrUserAlreadyExists
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, u model.User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET email = $2, phone = $3, display_name = $4, updated_at = $5
		 WHERE id = $1`,
		u.ID, u.Email, u.Phone, u.DisplayName, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, username string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM users WHERE lower(username) = lower($1)`, strings.TrimSpace(username))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) CheckPassword(ctx context.Context, username string, password string) (model.User, error) {
	u, err := r.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return model.User{}, model.ErrInvalidCredentials
	}
	return u, nil
}

// SetRefreshToken overwrites the single stored refresh token for the
// user. The store's row update is the only concurrency control; two
// racing rotations resolve last-write-wins.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID string, token string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $2, refresh_token_expires_at = $3, updated_at = $4
		 WHERE id = $1`,
		userID, token, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) AddRoleToUser(ctx context.Context, userID string, roleName string) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT $1, id FROM roles WHERE normalized_name = $2
		 ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, model.NormalizeRoleName(roleName))
	if err != nil {
		return fmt.Errorf("add role to user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the role vanished or the assignment already existed;
		// disambiguate so callers see a real error only for the former.
		exists, lookupErr := roleExists(ctx, r.pool, roleName)
		if lookupErr != nil {
			return lookupErr
		}
		if !exists {
			return model.ErrRoleNotFound
		}
	}
	return nil
}

func (r *UserRepository) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("roles for user: %w", err)
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role name: %w", err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
