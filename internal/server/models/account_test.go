package models

import (
	"testing"

	"github.com/dmitrijs2005/tubekeeper/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_CheckPassword(t *testing.T) {
	h, err := cryptox.HashPassword("secret1")
	require.NoError(t, err)

	a := &Account{PasswordHash: h}
	assert.True(t, a.CheckPassword("secret1"))
	assert.False(t, a.CheckPassword("Secret1"))

	assert.False(t, (&Account{}).CheckPassword("secret1"), "sanitized account never verifies")
}

func TestAccount_Sanitized(t *testing.T) {
	tok := "r1"
	a := &Account{ID: "1", UserName: "ada", PasswordHash: "h", RefreshToken: &tok}

	s := a.Sanitized()

	assert.Equal(t, "ada", s.UserName)
	assert.Empty(t, s.PasswordHash)
	assert.Nil(t, s.RefreshToken)
	assert.Equal(t, "h", a.PasswordHash, "original untouched")
	assert.NotNil(t, a.RefreshToken)
}

func TestAccount_HasRefreshToken(t *testing.T) {
	tok := "current"
	a := &Account{RefreshToken: &tok}

	assert.True(t, a.HasRefreshToken("current"))
	assert.False(t, a.HasRefreshToken("previous"))
	assert.False(t, a.HasRefreshToken(""))
	assert.False(t, (&Account{}).HasRefreshToken("current"))
}

func TestMedia_IsZero(t *testing.T) {
	assert.True(t, Media{}.IsZero())
	assert.True(t, Media{Kind: MediaCover}.IsZero())
	assert.False(t, Media{ID: "k", URL: "u"}.IsZero())
}
