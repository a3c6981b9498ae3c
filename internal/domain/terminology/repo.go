package terminology

import "context"

// Repository is the read-only data access surface over the ontology
// dataset. All methods tolerate an empty dataset by returning zero values.
type Repository interface {
	// SchemaVersion returns the dataset's meta schema_version value
	// (e.g. "1.2"), or "" when the meta table has no such row.
	SchemaVersion(ctx context.Context) (string, error)

	// BestConceptMatch finds the active concept whose active description
	// contains the given text, preferring the shortest matching term.
	// Returns (nil, nil) when nothing matches.
	BestConceptMatch(ctx context.Context, text string) (*Concept, error)

	// ConceptForFeatureKey resolves an internal feature key through the
	// bridge table. Returns (nil, nil) when unmapped.
	ConceptForFeatureKey(ctx context.Context, key string) (*Concept, error)

	// ConceptsForFeatureKeys resolves many feature keys in one round trip.
	// Unmapped keys are simply absent from the result.
	ConceptsForFeatureKeys(ctx context.Context, keys []string) (map[string]int64, error)

	// AllEdges streams every IS-A edge for building the hierarchy cache.
	AllEdges(ctx context.Context) ([]Edge, error)
}
