package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
	"github.com/dmitrijs2005/tubekeeper/internal/server/services"
)

const maxJSONBytes = 1 << 20

func isJSON(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body", common.ErrValidation)
	}
	return nil
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, "healthy")
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	form, err := s.readMultipart(w, r, avatarField, coverField)
	defer form.cleanup()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	account, err := s.accounts.Register(r.Context(), services.RegisterInput{
		FullName: form.value("fullname"),
		Email:    form.value("email"),
		UserName: form.value("username"),
		Password: form.value("password"),
		Avatar:   form.file(avatarField),
		Cover:    form.file(coverField),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, newAccountResponse(account), "User registered successfully")
}

type loginRequest struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSON(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: malformed form body", common.ErrValidation))
			return
		}
		req = loginRequest{UserName: r.PostFormValue("username"), Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	}

	sess, err := s.accounts.Login(r.Context(), services.LoginInput{UserName: req.UserName, Email: req.Email, Password: req.Password})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.cookies.set(w, sess.Tokens)
	writeSuccess(w, http.StatusOK, loginResponse{
		User:           newAccountResponse(sess.Account),
		tokensResponse: tokensResponse{AccessToken: sess.Tokens.AccessToken, RefreshToken: sess.Tokens.RefreshToken},
	}, "User logged in successfully")
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r.Context())
	if err := s.accounts.Logout(r.Context(), account.ID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.cookies.clear(w)
	writeSuccess(w, http.StatusOK, struct{}{}, "User logged out")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *HTTPServer) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil {
		token = c.Value
	}
	if token == "" && isJSON(r) {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		token = req.RefreshToken
	}

	pair, err := s.accounts.RefreshToken(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.cookies.set(w, pair)
	writeSuccess(w, http.StatusOK, tokensResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, "Access token refreshed")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	account := accountFrom(r.Context())
	if err := s.accounts.ChangePassword(r.Context(), account.ID, req.OldPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

func (s *HTTPServer) handleCurrentAccount(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, newAccountResponse(accountFrom(r.Context())), "User fetched successfully")
}

type updateAccountRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
}

func (s *HTTPServer) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	account, err := s.accounts.UpdateAccountDetails(r.Context(), accountFrom(r.Context()).ID, req.FullName, req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, newAccountResponse(account), "Account details updated successfully")
}

func (s *HTTPServer) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	s.handleMediaUpdate(w, r, avatarField, s.accounts.UpdateAvatar, "Avatar updated successfully")
}

func (s *HTTPServer) handleUpdateCover(w http.ResponseWriter, r *http.Request) {
	s.handleMediaUpdate(w, r, coverField, s.accounts.UpdateCover, "Cover image updated successfully")
}

type mediaUpdater func(ctx context.Context, accountID string, f *services.Upload) (*models.Account, error)

func (s *HTTPServer) handleMediaUpdate(w http.ResponseWriter, r *http.Request, field string, update mediaUpdater, message string) {
	form, err := s.readMultipart(w, r, field)
	defer form.cleanup()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	account, err := update(r.Context(), accountFrom(r.Context()).ID, form.file(field))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, newAccountResponse(account), message)
}
