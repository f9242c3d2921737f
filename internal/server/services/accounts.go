// Package services contains server-side business logic. AccountService
// orchestrates registration, login, token refresh/revocation and profile
// mutations over the account repository, the media store and the token
// issuer.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/logging"
	"github.com/dmitrijs2005/tubekeeper/internal/server/auth"
	"github.com/dmitrijs2005/tubekeeper/internal/server/media"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
	"github.com/dmitrijs2005/tubekeeper/internal/server/repositories/repomanager"
)

// TokenIssuer mints and verifies access/refresh tokens.
type TokenIssuer interface {
	IssuePair(accountID string) (*models.TokenPair, error)
	Verify(token string, kind auth.TokenKind) (string, error)
}

// Upload is a file the transport has spooled to local disk. A nil *Upload
// means the field was not sent.
type Upload struct {
	Path string
	Name string
}

func (u *Upload) present() bool {
	return u != nil && u.Path != ""
}

// AccountService is reentrant; it keeps no per-request state.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	media       media.Store
	tokens      TokenIssuer
	logger      logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, store media.Store, tokens TokenIssuer, logger logging.Logger) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		media:       store,
		tokens:      tokens,
		logger:      logger.With("module", "account_service"),
	}
}

// discardMedia deletes uploaded objects as a compensating action. Failures
// are logged and never replace the error that triggered the rollback.
func (s *AccountService) discardMedia(ctx context.Context, uploaded ...*models.Media) {
	ctx = context.WithoutCancel(ctx)
	for _, m := range uploaded {
		if m == nil || m.ID == "" {
			continue
		}
		if err := s.media.Delete(ctx, m.ID); err != nil {
			s.logger.Warn(ctx, "media rollback failed", "media_id", m.ID, "kind", m.Kind, "error", err)
		}
	}
}

// upload pushes f and normalizes the failure to common.ErrUpload.
func (s *AccountService) upload(ctx context.Context, f *Upload, kind models.MediaKind) (*models.Media, error) {
	m, err := s.media.Upload(ctx, f.Path, kind)
	if err != nil {
		if !errors.Is(err, common.ErrUpload) {
			err = fmt.Errorf("%w: %v", common.ErrUpload, err)
		}
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return m, nil
}

// internal logs an unexpected failure and hides its details from callers.
func (s *AccountService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return fmt.Errorf("%w: %s", common.ErrorInternal, op)
}
