// Package auth issues and verifies the signed access/refresh token pair.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/server/config"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the two credentials. Each kind has its own secret
// and lifetime.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims carries the registered claims plus the account id and token kind.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string    `json:"account_id"`
	Kind      TokenKind `json:"kind"`
}

type keyring struct {
	secret   []byte
	validity time.Duration
}

// Issuer signs and verifies tokens. It holds no mutable state and is safe for
// concurrent use.
type Issuer struct {
	keys map[TokenKind]keyring
	now  func() time.Time
}

// NewIssuer builds an Issuer from explicit secrets and lifetimes.
func NewIssuer(accessSecret, refreshSecret []byte, accessValidity, refreshValidity time.Duration) *Issuer {
	return &Issuer{
		keys: map[TokenKind]keyring{
			AccessToken:  {secret: accessSecret, validity: accessValidity},
			RefreshToken: {secret: refreshSecret, validity: refreshValidity},
		},
		now: time.Now,
	}
}

// NewIssuerFromConfig reads the token settings out of cfg once.
func NewIssuerFromConfig(cfg *config.Config) *Issuer {
	return NewIssuer(
		[]byte(cfg.AccessTokenSecret),
		[]byte(cfg.RefreshTokenSecret),
		cfg.AccessTokenValidityDuration,
		cfg.RefreshTokenValidityDuration,
	)
}

func (i *Issuer) IssueAccessToken(accountID string) (string, error) {
	return i.issue(accountID, AccessToken)
}

func (i *Issuer) IssueRefreshToken(accountID string) (string, error) {
	return i.issue(accountID, RefreshToken)
}

// IssuePair mints a fresh access/refresh pair for accountID.
func (i *Issuer) IssuePair(accountID string) (*models.TokenPair, error) {
	access, err := i.IssueAccessToken(accountID)
	if err != nil {
		return nil, err
	}
	refresh, err := i.IssueRefreshToken(accountID)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) issue(accountID string, kind TokenKind) (string, error) {
	k, ok := i.keys[kind]
	if !ok {
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
	return GenerateToken(accountID, kind, k.secret, i.now(), k.validity)
}

// Verify checks signature, expiry and kind, and returns the embedded account id.
// Every failure matches common.ErrInvalidToken; expiry additionally matches
// common.ErrTokenExpired.
func (i *Issuer) Verify(tokenString string, kind TokenKind) (string, error) {
	k, ok := i.keys[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown token kind %q", common.ErrInvalidToken, kind)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return k.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Kind != kind || claims.AccountID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.AccountID, nil
}

// GenerateToken signs an HS256 token for accountID. Every token carries a
// unique id, so two tokens minted within the same second still differ.
func GenerateToken(accountID string, kind TokenKind, secretKey []byte, now time.Time, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		AccountID: accountID,
		Kind:      kind,
	})

	return token.SignedString(secretKey)
}
