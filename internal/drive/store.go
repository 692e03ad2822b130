// Package drive stores registration images in a Google Drive folder.
package drive

import (
	"bytes"
	"context"
	"fmt"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/registrations/internal/registration"
)

const publicURLPrefix = "https://drive.google.com/uc?id="

// PublicURL is the download URL recorded for an uploaded file.
func PublicURL(fileID string) string {
	return publicURLPrefix + fileID
}

// Store uploads files into a single Drive folder.
type Store struct {
	svc        *gdrive.Service
	folderID   string
	publicLink bool
}

type Option func(*Store)

// WithPublicLink grants "anyone with the link" read access to each upload so
// the recorded URL works without a Google login.
func WithPublicLink(enabled bool) Option {
	return func(s *Store) { s.publicLink = enabled }
}

func NewStore(svc *gdrive.Service, folderID string, opts ...Option) *Store {
	s := &Store{svc: svc, folderID: folderID}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload creates the file in the folder, keeping the client's filename and
// content type.
func (s *Store) Upload(ctx context.Context, file registration.File) (registration.StoredImage, error) {
	meta := &gdrive.File{
		Name:     file.Name,
		MimeType: file.ContentType,
		Parents:  []string{s.folderID},
	}

	created, err := s.svc.Files.Create(meta).
		Media(bytes.NewReader(file.Data), googleapi.ContentType(file.ContentType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return registration.StoredImage{}, fmt.Errorf("drive create %q: %w", file.Name, err)
	}

	if s.publicLink {
		perm := &gdrive.Permission{Type: "anyone", Role: "reader"}
		_, err := s.svc.Permissions.Create(created.Id, perm).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return registration.StoredImage{}, fmt.Errorf("drive share %s: %w", created.Id, err)
		}
	}

	return registration.StoredImage{ID: created.Id, URL: PublicURL(created.Id)}, nil
}
