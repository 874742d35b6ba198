package licenses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mdmops/console/internal/platform/docstore"
)

// Documents is the subset of the document store used here.
type Documents interface {
	Get(ctx context.Context, collection, id string, dest any) (time.Time, error)
	Set(ctx context.Context, collection, id string, value any) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]docstore.Document, error)
}

// Repository persists licenses as documents.
type Repository struct {
	docs Documents
}

// NewRepository constructs a Repository.
func NewRepository(docs Documents) *Repository {
	return &Repository{docs: docs}
}

// List returns all licenses ordered by id.
func (r *Repository) List(ctx context.Context) ([]License, error) {
	docs, err := r.docs.List(ctx, Collection)
	if err != nil {
		return nil, err
	}
	out := make([]License, 0, len(docs))
	for _, doc := range docs {
		var l License
		if err := doc.Decode(&l); err != nil {
			return nil, err
		}
		l.ID = doc.ID
		l.UpdatedAt = doc.UpdatedAt
		out = append(out, l)
	}
	return out, nil
}

// Get loads one license.
func (r *Repository) Get(ctx context.Context, id string) (License, error) {
	var l License
	updatedAt, err := r.docs.Get(ctx, Collection, id, &l)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return License{}, ErrNotFound
		}
		return License{}, err
	}
	l.ID = id
	l.UpdatedAt = updatedAt
	return l, nil
}

// Save writes l under its id.
func (r *Repository) Save(ctx context.Context, l License) error {
	if l.ID == "" {
		return fmt.Errorf("licenses: save: missing id")
	}
	return r.docs.Set(ctx, Collection, l.ID, l)
}

// Delete removes a license.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.docs.Delete(ctx, Collection, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
