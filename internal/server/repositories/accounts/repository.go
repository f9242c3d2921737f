// Package accounts declares the persistence contract for account records and
// its PostgreSQL implementation.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
)

// Repository persists accounts. Username and email are unique; a write that
// would violate this returns common.ErrConflict. Lookups of absent rows
// return common.ErrorNotFound.
type Repository interface {
	// Create inserts the account and returns it with ID and timestamps set.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	// FindByUsernameOrEmail loads an account matching either value, including
	// the password hash and stored refresh token.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.Account, error)

	// FindByID loads the sanitized account (no password hash, no refresh token).
	FindByID(ctx context.Context, id string) (*models.Account, error)

	// FindByIDWithSecrets loads the account including credential material.
	FindByIDWithSecrets(ctx context.Context, id string) (*models.Account, error)

	// UpdateRefreshToken overwrites the stored refresh token; nil clears it.
	UpdateRefreshToken(ctx context.Context, id string, token *string) error

	// RotateRefreshToken replaces current with next only if current is still
	// the stored token. A mismatch returns common.ErrorNotFound.
	RotateRefreshToken(ctx context.Context, id, current, next string) error

	UpdatePassword(ctx context.Context, id string, passwordHash string) error

	// UpdateDetails changes full name and email and returns the sanitized account.
	UpdateDetails(ctx context.Context, id, fullName, email string) (*models.Account, error)

	// UpdateMedia replaces the avatar or cover reference and returns the
	// sanitized account.
	UpdateMedia(ctx context.Context, id string, media models.Media) (*models.Account, error)

	Delete(ctx context.Context, id string) error
}
