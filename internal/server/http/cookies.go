package http

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
)

// cookiePolicy sets the token cookies. Secure is on in production only.
type cookiePolicy struct {
	secure          bool
	accessValidity  time.Duration
	refreshValidity time.Duration
}

func (p cookiePolicy) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   p.secure,
	}
}

func (p cookiePolicy) set(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, p.cookie(common.AccessTokenCookieName, pair.AccessToken, p.accessValidity))
	http.SetCookie(w, p.cookie(common.RefreshTokenCookieName, pair.RefreshToken, p.refreshValidity))
}

func (p cookiePolicy) clear(w http.ResponseWriter) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		c := p.cookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
