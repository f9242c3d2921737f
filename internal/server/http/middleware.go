package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/server/auth"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
	"github.com/rs/cors"
	"github.com/rs/xid"
)

type ctxKey string

const (
	requestIDKey ctxKey = "requestID"
	accountKey   ctxKey = "account"

	RequestIDHeader = "X-Request-Id"
)

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// accountFrom returns the account loaded by requireAuth.
func accountFrom(ctx context.Context) *models.Account {
	a, _ := ctx.Value(accountKey).(*models.Account)
	return a
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// accessLog tags the request with an xid and logs one line when it completes.
func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := xid.New().String()
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(rec, r.WithContext(ctx))

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.logger.Info(ctx, "request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", time.Since(start),
		)
	})
}

// cors allows the configured origin to call the API with credentials. A "*"
// origin echoes the caller's Origin, since browsers reject a wildcard when
// credentials are involved.
func (s *HTTPServer) cors(next http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}
	if s.corsOrigin == "*" {
		opts.AllowOriginFunc = func(string) bool { return true }
	} else {
		opts.AllowedOrigins = []string{s.corsOrigin}
	}
	return cors.New(opts).Handler(next)
}

// accessToken reads the token from the cookie, falling back to a bearer
// Authorization header.
func accessToken(r *http.Request) string {
	if c, err := r.Cookie(common.AccessTokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get(common.AuthorizationHeaderName)
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// requireAuth verifies the access token and loads the account into the
// request context.
func (s *HTTPServer) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		if token == "" {
			writeFailure(w, http.StatusUnauthorized, "unauthorized request")
			return
		}

		accountID, err := s.tokens.Verify(token, auth.AccessToken)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		account, err := s.accounts.CurrentAccount(r.Context(), accountID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				writeFailure(w, http.StatusUnauthorized, "invalid access token")
				return
			}
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
