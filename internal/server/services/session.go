package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/cryptox"
	"github.com/dmitrijs2005/tubekeeper/internal/server/auth"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
)

// LoginInput identifies the account by username or email; at least one is
// required.
type LoginInput struct {
	UserName string
	Email    string
	Password string
}

// Session is the result of a successful login.
type Session struct {
	Account *models.Account
	Tokens  *models.TokenPair
}

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", common.ErrorUnauthorized)

// dummyHash is compared against when the account does not exist, so the
// response time does not reveal which identifiers are registered.
var dummyHash = sync.OnceValue(func() string {
	h, _ := cryptox.HashPassword("tubekeeper-dummy-password")
	return h
})

// Login verifies credentials, issues a token pair and stores the refresh
// token as the account's only valid one.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.UserName = normalizeIdentifier(in.UserName)
	in.Email = normalizeIdentifier(in.Email)

	if in.UserName == "" && in.Email == "" {
		return nil, fmt.Errorf("%w: username or email is required", common.ErrValidation)
	}
	if err := validateFields(
		optional("email", in.Email, emailRules...),
		required("password", in.Password),
	); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	account, err := repo.FindByUsernameOrEmail(ctx, in.UserName, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.CheckPassword(dummyHash(), in.Password)
			return nil, errInvalidCredentials
		}
		return nil, s.internal(ctx, "lookup account", err)
	}

	if !account.CheckPassword(in.Password) {
		s.logger.Info(ctx, "login rejected", "account_id", account.ID)
		return nil, errInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(account.ID)
	if err != nil {
		return nil, s.internal(ctx, "issue tokens", err)
	}
	if err := repo.UpdateRefreshToken(ctx, account.ID, &pair.RefreshToken); err != nil {
		return nil, s.internal(ctx, "store refresh token", err)
	}

	s.logger.Info(ctx, "account logged in", "account_id", account.ID)
	return &Session{Account: account.Sanitized(), Tokens: pair}, nil
}

// RefreshToken exchanges a valid refresh token for a new pair. The presented
// token must equal the stored one; it stops working once rotated.
func (s *AccountService) RefreshToken(ctx context.Context, token string) (*models.TokenPair, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: refresh token is required", common.ErrorUnauthorized)
	}

	accountID, err := s.tokens.Verify(token, auth.RefreshToken)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	account, err := repo.FindByIDWithSecrets(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: account not found", common.ErrorUnauthorized)
		}
		return nil, s.internal(ctx, "lookup account", err)
	}

	if !account.HasRefreshToken(token) {
		s.logger.Warn(ctx, "stale refresh token presented", "account_id", account.ID)
		return nil, fmt.Errorf("%w: refresh token is expired or used", common.ErrorUnauthorized)
	}

	pair, err := s.tokens.IssuePair(account.ID)
	if err != nil {
		return nil, s.internal(ctx, "issue tokens", err)
	}

	if err := repo.RotateRefreshToken(ctx, account.ID, token, pair.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: refresh token is expired or used", common.ErrorUnauthorized)
		}
		return nil, s.internal(ctx, "rotate refresh token", err)
	}

	return pair, nil
}

// Logout clears the stored refresh token. Access tokens already issued stay
// valid until they expire.
func (s *AccountService) Logout(ctx context.Context, accountID string) error {
	err := s.repomanager.Accounts(s.db).UpdateRefreshToken(ctx, accountID, nil)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: account", common.ErrorNotFound)
		}
		return s.internal(ctx, "clear refresh token", err)
	}
	s.logger.Info(ctx, "account logged out", "account_id", accountID)
	return nil
}
