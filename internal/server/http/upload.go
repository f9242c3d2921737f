package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrijs2005/tubekeeper/internal/common"
	"github.com/dmitrijs2005/tubekeeper/internal/filex"
	"github.com/dmitrijs2005/tubekeeper/internal/server/services"
)

const (
	maxRequestBytes = 32 << 20
	maxFieldBytes   = 64 << 10

	avatarField = "avatar"
	coverField  = "coverImage"
)

// multipartForm is a parsed multipart body whose files were spooled into the
// upload directory. cleanup removes them and must always be called.
type multipartForm struct {
	values map[string]string
	files  map[string]*services.Upload
}

func (f *multipartForm) value(name string) string {
	return f.values[name]
}

// file returns nil when the field was not sent.
func (f *multipartForm) file(name string) *services.Upload {
	return f.files[name]
}

func (f *multipartForm) cleanup() {
	for _, u := range f.files {
		_ = filex.Remove(u.Path)
	}
}

// readMultipart streams the body part by part. Only the named file fields
// are accepted; each may appear once.
func (s *HTTPServer) readMultipart(w http.ResponseWriter, r *http.Request, fileFields ...string) (*multipartForm, error) {
	form := &multipartForm{values: map[string]string{}, files: map[string]*services.Upload{}}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return form, fmt.Errorf("%w: expected multipart/form-data body", common.ErrValidation)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return form, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	allowed := map[string]bool{}
	for _, name := range fileFields {
		allowed[name] = true
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return form, fmt.Errorf("%w: malformed multipart body: %v", common.ErrValidation, err)
		}

		name := part.FormName()
		if part.FileName() == "" {
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			part.Close()
			if err != nil {
				return form, fmt.Errorf("%w: read field %s: %v", common.ErrValidation, name, err)
			}
			if len(b) > maxFieldBytes {
				return form, fmt.Errorf("%w: field %s is too large", common.ErrValidation, name)
			}
			form.values[name] = string(b)
			continue
		}

		if !allowed[name] {
			part.Close()
			return form, fmt.Errorf("%w: unexpected file field %s", common.ErrValidation, name)
		}
		if _, dup := form.files[name]; dup {
			part.Close()
			return form, fmt.Errorf("%w: file field %s sent more than once", common.ErrValidation, name)
		}

		path, err := filex.SaveTemp(s.uploadDir, part.FileName(), part)
		part.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return form, fmt.Errorf("%w: request body too large", common.ErrValidation)
			}
			s.logger.Error(r.Context(), "spool upload failed", "field", name, "error", err, "request_id", requestID(r.Context()))
			return form, fmt.Errorf("%w: spool %s", common.ErrorInternal, name)
		}
		form.files[name] = &services.Upload{Path: path, Name: part.FileName()}
	}
}
