package models

// MediaKind tells what an uploaded object is used for.
type MediaKind string

const (
	MediaAvatar MediaKind = "avatar"
	MediaCover  MediaKind = "cover"
)

// Media references an object held by the media store.
type Media struct {
	// ID is the store-assigned identifier (object key).
	ID string
	// URL is the public retrieval URL.
	URL string
	// Kind is informational and is not persisted.
	Kind MediaKind
}

// IsZero reports whether no object is referenced.
func (m Media) IsZero() bool {
	return m.ID == "" && m.URL == ""
}
