package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/juanfcarrillo/pet-vet/libs/db"
)

type User struct {
	ID                 string
	FullName           string
	Email              string
	PasswordHash       string
	SecurityQuestion   string
	SecurityAnswerHash string
	Role               string
	IsActive           bool
}

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, full_name, email, password_hash, security_question, security_answer_hash, role, is_active`

func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, user User) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, full_name, email, password_hash, security_question, security_answer_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.FullName, user.Email, user.PasswordHash, user.SecurityQuestion, user.SecurityAnswerHash, user.Role)
	return err
}

// GetByEmail returns the active user with the given email. Deactivated
// accounts behave as if they do not exist.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1 AND is_active
	`, email)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND is_active
	`, id)
	return scanUser(row)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2,
			updated_at = now()
		WHERE id = $1 AND is_active
	`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.PasswordHash,
		&user.SecurityQuestion,
		&user.SecurityAnswerHash,
		&user.Role,
		&user.IsActive,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}
