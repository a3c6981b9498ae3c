package terminology

// SNOMED CT component type identifiers relevant to the shipped subset.
const (
	// FSNTypeID is the description typeId for fully specified names.
	FSNTypeID int64 = 900000000000003001
	// IsATypeID is the relationship typeId for IS-A edges; the isa_edge
	// table is pre-filtered to these at build time.
	IsATypeID int64 = 116680003
)

// SupportedSchemaMajor is the ontology dataset schema major version this
// store understands. A dataset with a different major version flips the
// store into disabled mode instead of failing.
const SupportedSchemaMajor = 1

// DefaultAncestorDepth caps hierarchy walks when the caller does not
// supply a limit.
const DefaultAncestorDepth = 32

// Concept is a single ontology concept with its preferred display term.
type Concept struct {
	ID     int64  `json:"concept_id"`
	Term   string `json:"term"`
	Active bool   `json:"active"`
}

// Edge is one IS-A relationship: Child is-a Parent.
type Edge struct {
	Child  int64
	Parent int64
}

// FeatureMapping bridges an internal feature key to a concept.
type FeatureMapping struct {
	FeatureKey string `json:"feature_key"`
	ConceptID  int64  `json:"concept_id"`
	Active     bool   `json:"active"`
	Note       string `json:"note,omitempty"`
}
