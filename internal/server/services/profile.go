package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/cryptox"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
)

// CurrentAccount returns the sanitized account.
func (s *AccountService) CurrentAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.repomanager.Accounts(s.db).FindByID(ctx, accountID)
	if err != nil {
		return nil, s.notFoundOrInternal(ctx, "load account", err)
	}
	return account, nil
}

func (s *AccountService) UpdateAccountDetails(ctx context.Context, accountID, fullName, email string) (*models.Account, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeIdentifier(email)
	if err := validateFields(
		required("fullname", fullName),
		required("email", email, emailRules...),
	); err != nil {
		return nil, err
	}

	account, err := s.repomanager.Accounts(s.db).UpdateDetails(ctx, accountID, fullName, email)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("%w: email", common.ErrConflict)
		}
		return nil, s.notFoundOrInternal(ctx, "update account details", err)
	}
	return account, nil
}

// ChangePassword replaces the password hash after checking the old password.
func (s *AccountService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	fields := append([]field{required("old password", oldPassword)}, password("new password", newPassword)...)
	if err := validateFields(fields...); err != nil {
		return err
	}

	repo := s.repomanager.Accounts(s.db)
	account, err := repo.FindByIDWithSecrets(ctx, accountID)
	if err != nil {
		return s.notFoundOrInternal(ctx, "load account", err)
	}
	if !account.CheckPassword(oldPassword) {
		return fmt.Errorf("%w: invalid old password", common.ErrorUnauthorized)
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return s.internal(ctx, "hash password", err)
	}
	if err := repo.UpdatePassword(ctx, accountID, hash); err != nil {
		return s.notFoundOrInternal(ctx, "update password", err)
	}

	s.logger.Info(ctx, "password changed", "account_id", accountID)
	return nil
}

func (s *AccountService) UpdateAvatar(ctx context.Context, accountID string, f *Upload) (*models.Account, error) {
	return s.replaceMedia(ctx, accountID, f, models.MediaAvatar)
}

func (s *AccountService) UpdateCover(ctx context.Context, accountID string, f *Upload) (*models.Account, error) {
	return s.replaceMedia(ctx, accountID, f, models.MediaCover)
}

// replaceMedia uploads f, points the account at it and then deletes the
// previous object. If the account cannot be updated the new object is
// deleted instead.
func (s *AccountService) replaceMedia(ctx context.Context, accountID string, f *Upload, kind models.MediaKind) (*models.Account, error) {
	if !f.present() {
		return nil, fmt.Errorf("%w: %s file is required", common.ErrValidation, kind)
	}

	repo := s.repomanager.Accounts(s.db)
	current, err := repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, s.notFoundOrInternal(ctx, "load account", err)
	}

	uploaded, err := s.upload(ctx, f, kind)
	if err != nil {
		s.logger.Warn(ctx, "media upload failed", "account_id", accountID, "kind", kind, "error", err)
		return nil, err
	}

	account, err := repo.UpdateMedia(ctx, accountID, *uploaded)
	if err != nil {
		s.discardMedia(ctx, uploaded)
		return nil, s.notFoundOrInternal(ctx, "update "+string(kind), err)
	}

	previous := current.Avatar
	if kind == models.MediaCover {
		previous = current.Cover
	}
	if previous.ID != uploaded.ID {
		s.discardMedia(ctx, &previous)
	}

	return account, nil
}

func (s *AccountService) notFoundOrInternal(ctx context.Context, op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("%w: account", common.ErrorNotFound)
	}
	return s.internal(ctx, op, err)
}
