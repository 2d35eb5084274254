package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"salonbook/internal/models"
)

var (
	// ErrVersionConflict is returned by a store when the document changed
	// since the version the caller loaded.
	ErrVersionConflict = errors.New("document version conflict")
	// ErrNoDocument is returned when the store holds nothing yet.
	ErrNoDocument = errors.New("no stored document")
)

// DocumentStore persists the shared document.
type DocumentStore interface {
	Load(ctx context.Context) (*models.Document, error)
	// Save writes doc. Stores that support compare-and-swap reject the write
	// with ErrVersionConflict when doc.Version is stale, and bump the version on success.
	Save(ctx context.Context, doc *models.Document) error
}

// IDGenerator produces unique identifiers.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string {
	return uuid.NewString()
}
