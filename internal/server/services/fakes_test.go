package services

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/cryptox"
	"github.com/dmitrijs2005/tubekeeper/internal/dbx"
	"github.com/dmitrijs2005/tubekeeper/internal/logging"
	"github.com/dmitrijs2005/tubekeeper/internal/server/auth"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
	"github.com/dmitrijs2005/tubekeeper/internal/server/repositories/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memAccounts is an in-memory accounts.Repository enforcing the same
// uniqueness rules as the database. Err fields inject failures.
type memAccounts struct {
	mu   sync.Mutex
	rows map[string]*models.Account
	seq  int

	lookupErr      error
	createErr      error
	findByIDErr    error
	updateMediaErr error
	updateTokenErr error
	beforeRotate   func()
	findByIDCalls  int
}

var _ accounts.Repository = (*memAccounts)(nil)

func newMemAccounts() *memAccounts {
	return &memAccounts{rows: map[string]*models.Account{}}
}

func clone(a *models.Account) *models.Account {
	c := *a
	if a.RefreshToken != nil {
		t := *a.RefreshToken
		c.RefreshToken = &t
	}
	return &c
}

func (r *memAccounts) taken(exceptID, username, email string) bool {
	for id, a := range r.rows {
		if id == exceptID {
			continue
		}
		if (username != "" && a.UserName == username) || (email != "" && a.Email == email) {
			return true
		}
	}
	return false
}

func (r *memAccounts) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if r.taken("", a.UserName, a.Email) {
		return nil, fmt.Errorf("%w: accounts_username_key", common.ErrConflict)
	}
	r.seq++
	a.ID = fmt.Sprintf("acc-%d", r.seq)
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.rows[a.ID] = clone(a)
	return clone(a), nil
}

func (r *memAccounts) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, a := range r.rows {
		if a.UserName == username || a.Email == email {
			return clone(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memAccounts) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findByIDCalls++
	if r.findByIDErr != nil {
		return nil, r.findByIDErr
	}
	a, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a.Sanitized(), nil
}

func (r *memAccounts) FindByIDWithSecrets(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(a), nil
}

func (r *memAccounts) UpdateRefreshToken(ctx context.Context, id string, token *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateTokenErr != nil {
		return r.updateTokenErr
	}
	a, ok := r.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	if token == nil {
		a.RefreshToken = nil
		return nil
	}
	t := *token
	a.RefreshToken = &t
	return nil
}

func (r *memAccounts) RotateRefreshToken(ctx context.Context, id, current, next string) error {
	if r.beforeRotate != nil {
		r.beforeRotate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok || a.RefreshToken == nil || *a.RefreshToken != current {
		return common.ErrorNotFound
	}
	a.RefreshToken = &next
	return nil
}

func (r *memAccounts) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (r *memAccounts) UpdateDetails(ctx context.Context, id, fullName, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if r.taken(id, "", email) {
		return nil, fmt.Errorf("%w: accounts_email_key", common.ErrConflict)
	}
	a.FullName, a.Email = fullName, email
	return a.Sanitized(), nil
}

func (r *memAccounts) UpdateMedia(ctx context.Context, id string, media models.Media) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateMediaErr != nil {
		return nil, r.updateMediaErr
	}
	a, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if media.Kind == models.MediaCover {
		a.Cover = media
	} else {
		a.Avatar = media
	}
	return a.Sanitized(), nil
}

func (r *memAccounts) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memAccounts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type fakeRepoManager struct {
	accounts *memAccounts
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository     { return m.accounts }

// fakeStore records live objects so tests can assert nothing is orphaned.
type fakeStore struct {
	mu        sync.Mutex
	seq       int
	live      map[string]models.MediaKind
	deleted   []string
	uploadErr map[models.MediaKind]error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{live: map[string]models.MediaKind{}, uploadErr: map[models.MediaKind]error{}}
}

func (f *fakeStore) Upload(ctx context.Context, path string, kind models.MediaKind) (*models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.uploadErr[kind]; err != nil {
		return nil, err
	}
	f.seq++
	id := fmt.Sprintf("%ss/%d%s", kind, f.seq, filepath.Ext(path))
	f.live[id] = kind
	return &models.Media{ID: id, URL: "http://s3.local/media/" + id, Kind: kind}, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.live, id)
	return nil
}

func (f *fakeStore) liveIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.live))
	for id := range f.live {
		ids = append(ids, id)
	}
	return ids
}

type fixture struct {
	svc    *AccountService
	repo   *memAccounts
	store  *fakeStore
	issuer *auth.Issuer
	mock   sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	repo := newMemAccounts()
	store := newFakeStore()
	issuer := auth.NewIssuer([]byte("access-secret"), []byte("refresh-secret"), time.Minute, time.Hour)
	svc := NewAccountService(db, &fakeRepoManager{accounts: repo}, store, issuer, logging.Nop())

	return &fixture{svc: svc, repo: repo, store: store, issuer: issuer, mock: mock}
}

// seed stores an account directly, bypassing registration.
func (f *fixture) seed(t *testing.T, username, email, password string) *models.Account {
	t.Helper()
	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	a, err := f.repo.Create(context.Background(), &models.Account{
		UserName: username, Email: email, FullName: "Seeded " + username, PasswordHash: hash,
		Avatar: models.Media{ID: "avatars/seed-" + username + ".png", URL: "http://s3.local/media/avatars/seed-" + username + ".png", Kind: models.MediaAvatar},
		Cover:  models.Media{Kind: models.MediaCover},
	})
	require.NoError(t, err)
	f.store.live[a.Avatar.ID] = models.MediaAvatar
	return a
}

func upload(name string) *Upload {
	return &Upload{Path: filepath.Join("/tmp/uploads", name), Name: name}
}
