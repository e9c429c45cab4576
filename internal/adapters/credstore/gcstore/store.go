// Package gcstore persists credential-group tokens as a single JSON object in
// a Cloud Storage bucket. The object generation doubles as the store version:
// writes are conditioned on the generation read earlier, so a concurrent run
// that rotated and wrote first makes this run's write fail with ErrConflict
// instead of silently resurrecting a consumed token.
package gcstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/SscSPs/brokerage_sync_app/internal/apperrors"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type document struct {
	Tokens map[string]string `json:"tokens"`
}

// Store is a Cloud Storage backed CredentialStore.
type Store struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a store over gs://bucket/object.
func New(ctx context.Context, bucket, object string, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket, object: object}, nil
}

var _ clients.CredentialStore = (*Store)(nil)

// Read loads the current token set and the object generation it came from.
func (s *Store) Read(ctx context.Context) (map[string]string, clients.StoreVersion, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return make(map[string]string), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("opening credential object: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("reading credential object: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("parsing credential object gs://%s/%s: %w", s.bucket, s.object, err)
	}
	if doc.Tokens == nil {
		doc.Tokens = make(map[string]string)
	}
	return doc.Tokens, clients.StoreVersion(r.Attrs.Generation), nil
}

// Write replaces the object, conditioned on the generation read earlier.
func (s *Store) Write(ctx context.Context, tokens map[string]string, version clients.StoreVersion) error {
	encoded, err := json.Marshal(document{Tokens: tokens})
	if err != nil {
		return fmt.Errorf("encoding credential object: %w", err)
	}

	obj := s.client.Bucket(s.bucket).Object(s.object)
	if version == 0 {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	} else {
		obj = obj.If(storage.Conditions{GenerationMatch: int64(version)})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(encoded); err != nil {
		w.Close()
		return fmt.Errorf("writing credential object: %w", err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: credential object changed since read", apperrors.ErrConflict)
		}
		return fmt.Errorf("committing credential object: %w", err)
	}
	return nil
}

// Close releases the underlying storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
