package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/uhhharsh/VidShare/internal/common"
	"github.com/uhhharsh/VidShare/internal/dbx"
	"github.com/uhhharsh/VidShare/internal/server/models"
)

const (
	pgUniqueViolation = "23505"
	pgInvalidText     = "22P02"
)

const userColumns = `id, username, email, full_name, avatar, cover_image, password_hash, refresh_token, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var refresh sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Avatar, &u.CoverImage,
		&u.PasswordHash, &refresh, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if refresh.Valid {
		u.RefreshToken = &refresh.String
	}
	return u, nil
}

// mapError turns driver errors into error kinds where one applies.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return common.NewError(common.ErrorConflict, "user with email or username already exists")
		case pgInvalidText:
			// malformed uuid: no such user
			return common.ErrorNotFound
		}
	}

	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, full_name, avatar, cover_image, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.Avatar, user.CoverImage, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

func (r *PostgresRepository) FindByLogin(ctx context.Context, username, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		 LIMIT 1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, username, email))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if upd.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	sets := make([]string, 0, 7)
	args := make([]any, 0, 7)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.FullName != nil {
		add("full_name", *upd.FullName)
	}
	if upd.Avatar != nil {
		add("avatar", *upd.Avatar)
	}
	if upd.CoverImage != nil {
		add("cover_image", *upd.CoverImage)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.ClearRefreshToken {
		sets = append(sets, "refresh_token = NULL")
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) GetRefreshToken(ctx context.Context, id string) (*string, error) {
	query := `SELECT refresh_token FROM users WHERE id = $1`

	var token sql.NullString
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&token); err != nil {
		return nil, mapError(err)
	}
	if !token.Valid {
		return nil, nil
	}
	return &token.String, nil
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	query := `UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// SwapRefreshToken locks the row, compares and writes in one transaction.
func (r *PostgresRepository) SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	swapped := false

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var stored sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT refresh_token FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&stored)
		if err != nil {
			return mapError(err)
		}

		if !stored.Valid || stored.String != current {
			return nil
		}

		_, err = tx.ExecContext(ctx, `UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`, id, next)
		if err != nil {
			return mapError(err)
		}

		swapped = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return swapped, nil
}
