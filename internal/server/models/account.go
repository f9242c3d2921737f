// Package models defines the server-side records persisted in the database
// and exchanged between services and transport.
package models

import (
	"crypto/subtle"
	"time"

	"github.com/dmitrijs2005/tubekeeper/internal/cryptox"
)

// Account is the identity record. PasswordHash and RefreshToken are only
// populated when the account was loaded with its secrets; the sanitized
// form returned to callers leaves both empty.
type Account struct {
	ID       string
	UserName string
	Email    string
	FullName string

	// Avatar is always present once the account exists.
	Avatar Media
	// Cover is optional; its zero value means "no cover".
	Cover Media

	PasswordHash string
	// RefreshToken holds the currently valid refresh credential, nil once
	// revoked or never issued.
	RefreshToken *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckPassword verifies a plaintext password against the stored hash.
func (a *Account) CheckPassword(password string) bool {
	return cryptox.CheckPassword(a.PasswordHash, password)
}

// Sanitized returns a copy without credential material.
func (a *Account) Sanitized() *Account {
	c := *a
	c.PasswordHash = ""
	c.RefreshToken = nil
	return &c
}

// HasRefreshToken reports whether token equals the stored refresh credential.
func (a *Account) HasRefreshToken(token string) bool {
	if a.RefreshToken == nil || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*a.RefreshToken), []byte(token)) == 1
}
