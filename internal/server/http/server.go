// Package http exposes the account API over HTTP/JSON. Routing uses
// httprouter; every response uses the same envelope.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tubekeeper/internal/logging"
	"github.com/dmitrijs2005/tubekeeper/internal/server/auth"
	"github.com/dmitrijs2005/tubekeeper/internal/server/config"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
	"github.com/dmitrijs2005/tubekeeper/internal/server/services"
	"github.com/julienschmidt/httprouter"
)

const (
	BasePath = "/api/v1/users"

	shutdownTimeout = 10 * time.Second
)

// AccountService is the subset of services.AccountService the transport calls.
type AccountService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Account, error)
	Login(ctx context.Context, in services.LoginInput) (*services.Session, error)
	RefreshToken(ctx context.Context, token string) (*models.TokenPair, error)
	Logout(ctx context.Context, accountID string) error
	CurrentAccount(ctx context.Context, accountID string) (*models.Account, error)
	UpdateAccountDetails(ctx context.Context, accountID, fullName, email string) (*models.Account, error)
	ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error
	UpdateAvatar(ctx context.Context, accountID string, f *services.Upload) (*models.Account, error)
	UpdateCover(ctx context.Context, accountID string, f *services.Upload) (*models.Account, error)
}

// TokenVerifier checks access tokens presented by clients.
type TokenVerifier interface {
	Verify(token string, kind auth.TokenKind) (string, error)
}

type HTTPServer struct {
	address    string
	logger     logging.Logger
	accounts   AccountService
	tokens     TokenVerifier
	uploadDir  string
	corsOrigin string
	cookies    cookiePolicy
}

// NewHTTPServer builds the transport. uploadDir must already exist.
func NewHTTPServer(cfg *config.Config, l logging.Logger, accounts AccountService, tokens TokenVerifier, uploadDir string) *HTTPServer {
	return &HTTPServer{
		address:    cfg.EndpointAddrHTTP,
		logger:     l.With("module", "http_server"),
		accounts:   accounts,
		tokens:     tokens,
		uploadDir:  uploadDir,
		corsOrigin: cfg.CORSOrigin,
		cookies: cookiePolicy{
			secure:          cfg.IsProduction(),
			accessValidity:  cfg.AccessTokenValidityDuration,
			refreshValidity: cfg.RefreshTokenValidityDuration,
		},
	}
}

// Handler returns the routed API wrapped in the access-log and CORS
// middleware.
func (s *HTTPServer) Handler() http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, p any) {
		s.logger.Error(r.Context(), "handler panic", "panic", p, "request_id", requestID(r.Context()))
		writeFailure(w, http.StatusInternalServerError, "internal server error")
	}

	router.HandlerFunc(http.MethodGet, "/healthz", s.handleHealth)

	router.HandlerFunc(http.MethodPost, BasePath+"/register", s.handleRegister)
	router.HandlerFunc(http.MethodPost, BasePath+"/login", s.handleLogin)
	router.HandlerFunc(http.MethodPost, BasePath+"/refresh-token", s.handleRefreshToken)

	router.Handler(http.MethodPost, BasePath+"/logout", s.requireAuth(s.handleLogout))
	router.Handler(http.MethodPost, BasePath+"/change-password", s.requireAuth(s.handleChangePassword))
	router.Handler(http.MethodGet, BasePath+"/current-user", s.requireAuth(s.handleCurrentAccount))
	router.Handler(http.MethodPatch, BasePath+"/update-account", s.requireAuth(s.handleUpdateAccount))
	router.Handler(http.MethodPatch, BasePath+"/avatar", s.requireAuth(s.handleUpdateAvatar))
	router.Handler(http.MethodPatch, BasePath+"/cover-image", s.requireAuth(s.handleUpdateCover))

	return s.accessLog(s.cors(router))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
