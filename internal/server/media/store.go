// Package media uploads account images to an S3-compatible object store and
// deletes them by identifier. It knows nothing about accounts.
package media

import (
	"context"

	"github.com/dmitrijs2005/tubekeeper/internal/server/models"
)

// Store is the contract the account services depend on.
type Store interface {
	// Upload pushes the local file at path to the store and returns the new
	// object's identifier and URL. The local file is removed whether or not
	// the upload succeeds. Failures match common.ErrUpload.
	Upload(ctx context.Context, path string, kind models.MediaKind) (*models.Media, error)

	// Delete removes the object with the given identifier. Deleting an
	// absent object is not an error.
	Delete(ctx context.Context, id string) error
}
