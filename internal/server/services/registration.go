package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/cryptox"
	"github.com/dmitrijs2005/tubekeeper/internal/dbx"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
)

// RegisterInput carries the registration form. Avatar is required, Cover is
// optional.
type RegisterInput struct {
	FullName string
	Email    string
	UserName string
	Password string
	Avatar   *Upload
	Cover    *Upload
}

func (in RegisterInput) normalized() RegisterInput {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeIdentifier(in.Email)
	in.UserName = normalizeIdentifier(in.UserName)
	return in
}

func (in RegisterInput) validate() error {
	fields := []field{
		required("fullname", in.FullName),
		required("email", in.Email, emailRules...),
		required("username", in.UserName),
	}
	return validateFields(append(fields, password("password", in.Password)...)...)
}

// Register creates an account with its avatar and optional cover.
//
// Either the account row and every uploaded asset exist afterwards, or none
// do: any failure after an upload deletes what was already uploaded, and the
// insert plus its read-back run in one transaction.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	in = in.normalized()
	if err := in.validate(); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	_, err := repo.FindByUsernameOrEmail(ctx, in.UserName, in.Email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: username or email", common.ErrConflict)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, s.internal(ctx, "lookup existing account", err)
	}

	if !in.Avatar.present() {
		return nil, fmt.Errorf("%w: avatar file is required", common.ErrValidation)
	}

	avatar, err := s.upload(ctx, in.Avatar, models.MediaAvatar)
	if err != nil {
		s.logger.Warn(ctx, "avatar upload failed", "username", in.UserName, "error", err)
		return nil, err
	}

	var cover *models.Media
	if in.Cover.present() {
		cover, err = s.upload(ctx, in.Cover, models.MediaCover)
		if err != nil {
			s.logger.Warn(ctx, "cover upload failed", "username", in.UserName, "error", err)
			s.discardMedia(ctx, avatar)
			return nil, err
		}
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		s.discardMedia(ctx, avatar, cover)
		return nil, s.internal(ctx, "hash password", err)
	}

	account := &models.Account{
		UserName:     in.UserName,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		Avatar:       *avatar,
		Cover:        models.Media{Kind: models.MediaCover},
	}
	if cover != nil {
		account.Cover = *cover
	}

	var created *models.Account
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.repomanager.Accounts(tx)
		a, err := txRepo.Create(ctx, account)
		if err != nil {
			return err
		}
		created, err = txRepo.FindByID(ctx, a.ID)
		return err
	})
	if err != nil {
		s.discardMedia(ctx, avatar, cover)
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("%w: username or email", common.ErrConflict)
		}
		return nil, s.internal(ctx, "create account", err)
	}

	s.logger.Info(ctx, "account registered", "account_id", created.ID, "username", created.UserName)
	return created, nil
}
