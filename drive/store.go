// Package drive stores press-review files in a Google Drive folder, with
// existence checks by exact name so uploads stay idempotent.
package drive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// File identifies a stored file.
type File struct {
	ID   string
	Name string
}

// Store wraps the Drive API scoped to a single destination folder.
type Store struct {
	srv      *drive.Service
	folderID string
	log      *slog.Logger
}

// NewStore builds a Store on top of an authorized HTTP client.
func NewStore(ctx context.Context, httpClient *http.Client, folderID string, log *slog.Logger) (*Store, error) {
	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Store{srv: srv, folderID: folderID, log: log}, nil
}

// Exists looks the destination folder up by exact file name. A nil File
// with nil error means the name is free.
func (s *Store) Exists(ctx context.Context, name string) (*File, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQueryTerm(name), escapeQueryTerm(s.folderID))
	res, err := s.srv.Files.List().Q(q).Fields("files(id,name)").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("query drive for %s: %w", name, err)
	}
	if len(res.Files) == 0 {
		return nil, nil
	}
	return &File{ID: res.Files[0].Id, Name: res.Files[0].Name}, nil
}

// Put uploads content under name into the destination folder as a single
// atomic create. The file only exists once Drive confirms the write.
func (s *Store) Put(ctx context.Context, name string, content []byte) (*File, error) {
	meta := &drive.File{Name: name, Parents: []string{s.folderID}}
	created, err := s.srv.Files.Create(meta).
		Media(bytes.NewReader(content), googleapi.ContentType("application/pdf")).
		Fields("id", "name").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	s.log.Info("uploaded to drive", "name", created.Name, "id", created.Id, "bytes", len(content))
	return &File{ID: created.Id, Name: created.Name}, nil
}

// Remove deletes a stored file, used by the force-overwrite path.
func (s *Store) Remove(ctx context.Context, fileID string) error {
	if err := s.srv.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete drive file %s: %w", fileID, err)
	}
	return nil
}

// escapeQueryTerm escapes a value for interpolation into a Drive search
// query, which single-quotes its string literals.
func escapeQueryTerm(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
