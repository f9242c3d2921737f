package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/dbx"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation   = "23505"
	pgInvalidTextFormat = "22P02"
)

const publicColumns = `id, username, email, fullname, avatar_url, avatar_key, cover_url, cover_key, created_at, updated_at`

const secretColumns = publicColumns + `, password_hash, refresh_token`

// PostgresRepository implements Repository over dbx.DBTX, so it works both
// with *sql.DB and inside a transaction.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (username, email, fullname, password_hash, avatar_url, avatar_key, cover_url, cover_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		account.UserName, account.Email, account.FullName, account.PasswordHash,
		account.Avatar.URL, account.Avatar.ID, account.Cover.URL, account.Cover.ID,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	return account, nil
}

func (r *PostgresRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.Account, error) {
	query := `SELECT ` + secretColumns + `
		FROM accounts
		WHERE username = $1 OR email = $2
		LIMIT 1
	`
	return scanAccount(r.db.QueryRowContext(ctx, query, username, email), true)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + publicColumns + `
		FROM accounts
		WHERE id = $1
	`
	return scanAccount(r.db.QueryRowContext(ctx, query, id), false)
}

func (r *PostgresRepository) FindByIDWithSecrets(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + secretColumns + `
		FROM accounts
		WHERE id = $1
	`
	return scanAccount(r.db.QueryRowContext(ctx, query, id), true)
}

func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, id string, token *string) error {
	query := `
		UPDATE accounts SET refresh_token = $2, updated_at = now()
		WHERE id = $1
	`
	var value sql.NullString
	if token != nil {
		value = sql.NullString{String: *token, Valid: true}
	}
	return r.exec(ctx, query, id, value)
}

func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	query := `
		UPDATE accounts SET refresh_token = $3, updated_at = now()
		WHERE id = $1 AND refresh_token = $2
	`
	return r.exec(ctx, query, id, current, next)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	query := `
		UPDATE accounts SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, id, fullName, email string) (*models.Account, error) {
	query := `
		UPDATE accounts SET fullname = $2, email = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + publicColumns
	return scanAccount(r.db.QueryRowContext(ctx, query, id, fullName, email), false)
}

func (r *PostgresRepository) UpdateMedia(ctx context.Context, id string, media models.Media) (*models.Account, error) {
	var query string
	switch media.Kind {
	case models.MediaAvatar:
		query = `
		UPDATE accounts SET avatar_url = $2, avatar_key = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + publicColumns
	case models.MediaCover:
		query = `
		UPDATE accounts SET cover_url = $2, cover_key = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + publicColumns
	default:
		return nil, fmt.Errorf("unknown media kind %q", media.Kind)
	}
	return scanAccount(r.db.QueryRowContext(ctx, query, id, media.URL, media.ID), false)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM accounts
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func scanAccount(row *sql.Row, withSecrets bool) (*models.Account, error) {
	a := &models.Account{
		Avatar: models.Media{Kind: models.MediaAvatar},
		Cover:  models.Media{Kind: models.MediaCover},
	}
	dest := []any{
		&a.ID, &a.UserName, &a.Email, &a.FullName,
		&a.Avatar.URL, &a.Avatar.ID, &a.Cover.URL, &a.Cover.ID,
		&a.CreatedAt, &a.UpdatedAt,
	}

	var refresh sql.NullString
	if withSecrets {
		dest = append(dest, &a.PasswordHash, &refresh)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, mapError(err)
	}

	if refresh.Valid {
		a.RefreshToken = &refresh.String
	}
	return a, nil
}

// mapError translates driver errors into the repository contract.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", common.ErrConflict, pgErr.ConstraintName)
		case pgInvalidTextFormat:
			// malformed uuid can never match a row
			return common.ErrorNotFound
		}
	}

	return fmt.Errorf("db error: %w", err)
}
