package guideline

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists versioned rule-set documents.
type Repository interface {
	// Create stores the rule set, assigning the next version number for
	// its name and deactivating prior active versions.
	Create(ctx context.Context, rs *RuleSet) error

	// GetByID returns the rule set, or (nil, nil) when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*RuleSet, error)

	// List returns every stored rule set, newest first.
	List(ctx context.Context) ([]*RuleSet, error)

	// ActiveByName returns the active version of the named rule set, or
	// (nil, nil) when none is active.
	ActiveByName(ctx context.Context, name string) (*RuleSet, error)

	// SetActive makes the given version the only active one for its name.
	SetActive(ctx context.Context, id uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error
}
