package terminology

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Store is the read-only terminology surface the rest of the system talks
// to. It wraps a Repository, checks the dataset schema version once at
// construction, and lazily builds an immutable in-memory hierarchy cache
// on first hierarchy query. A Store whose dataset is missing or has an
// unsupported schema version is "disabled": every query returns empty
// results with a nil error, so callers degrade to underinformative output
// instead of failing.
type Store struct {
	repo     Repository
	logger   zerolog.Logger
	disabled bool

	cacheOnce sync.Once
	cacheErr  error
	parents   map[int64][]int64
}

// NewStore validates the dataset schema version and returns the store.
// A nil repository or a schema major version other than
// SupportedSchemaMajor yields a disabled store, never an error.
func NewStore(ctx context.Context, repo Repository, logger zerolog.Logger) *Store {
	s := &Store{repo: repo, logger: logger}
	if repo == nil {
		s.disabled = true
		logger.Warn().Msg("terminology store disabled: no dataset available")
		return s
	}

	version, err := repo.SchemaVersion(ctx)
	if err != nil {
		s.disabled = true
		logger.Warn().Err(err).Msg("terminology store disabled: schema version unreadable")
		return s
	}
	if major, ok := schemaMajor(version); !ok || major != SupportedSchemaMajor {
		s.disabled = true
		logger.Warn().
			Str("schema_version", version).
			Int("supported_major", SupportedSchemaMajor).
			Msg("terminology store disabled: unsupported dataset schema")
	}
	return s
}

// schemaMajor parses the major component of a "1" or "1.2" style version.
func schemaMajor(version string) (int, bool) {
	version = strings.TrimSpace(version)
	if version == "" {
		return 0, false
	}
	if idx := strings.IndexByte(version, '.'); idx >= 0 {
		version = version[:idx]
	}
	major, err := strconv.Atoi(version)
	if err != nil {
		return 0, false
	}
	return major, true
}

// Disabled reports whether the store is running without a usable dataset.
func (s *Store) Disabled() bool { return s.disabled }

// BestConceptMatch finds the best concept for a free-text fragment.
// Blank input and disabled stores return (nil, nil).
func (s *Store) BestConceptMatch(ctx context.Context, text string) (*Concept, error) {
	text = strings.TrimSpace(text)
	if s.disabled || text == "" {
		return nil, nil
	}
	concept, err := s.repo.BestConceptMatch(ctx, text)
	if err != nil {
		s.logger.Warn().Err(err).Str("text", text).Msg("concept match failed")
		return nil, nil
	}
	return concept, nil
}

// ConceptForFeatureKey resolves an internal feature key through the bridge
// table. Unmapped keys and disabled stores return (nil, nil).
func (s *Store) ConceptForFeatureKey(ctx context.Context, key string) (*Concept, error) {
	if s.disabled || key == "" {
		return nil, nil
	}
	concept, err := s.repo.ConceptForFeatureKey(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("feature_key", key).Msg("feature key lookup failed")
		return nil, nil
	}
	return concept, nil
}

// ConceptIDsForFeatureKeys resolves many feature keys at once. The result
// only contains keys that are mapped; it is never nil.
func (s *Store) ConceptIDsForFeatureKeys(ctx context.Context, keys []string) (map[string]int64, error) {
	if s.disabled || len(keys) == 0 {
		return map[string]int64{}, nil
	}
	mapped, err := s.repo.ConceptsForFeatureKeys(ctx, keys)
	if err != nil {
		s.logger.Warn().Err(err).Int("keys", len(keys)).Msg("batch feature key lookup failed")
		return map[string]int64{}, nil
	}
	if mapped == nil {
		mapped = map[string]int64{}
	}
	return mapped, nil
}

// Ancestors walks IS-A parents breadth-first from the given concept and
// returns every distinct ancestor within maxDepth levels. The concept
// itself is not included. maxDepth <= 0 uses DefaultAncestorDepth. Cyclic
// edges terminate via the visited set.
func (s *Store) Ancestors(ctx context.Context, conceptID int64, maxDepth int) ([]int64, error) {
	if s.disabled {
		return nil, nil
	}
	if maxDepth <= 0 {
		maxDepth = DefaultAncestorDepth
	}
	parents, err := s.hierarchy(ctx)
	if err != nil {
		return nil, nil
	}

	visited := map[int64]bool{conceptID: true}
	var ancestors []int64
	frontier := []int64{conceptID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []int64
		for _, id := range frontier {
			for _, parent := range parents[id] {
				if visited[parent] {
					continue
				}
				visited[parent] = true
				ancestors = append(ancestors, parent)
				next = append(next, parent)
			}
		}
		frontier = next
	}
	return ancestors, nil
}

// IsDescendant reports whether child is the ancestor concept itself or
// transitively below it in the IS-A hierarchy.
func (s *Store) IsDescendant(ctx context.Context, child, ancestor int64) (bool, error) {
	if s.disabled {
		return false, nil
	}
	if child == ancestor {
		return true, nil
	}
	parents, err := s.hierarchy(ctx)
	if err != nil {
		return false, nil
	}

	visited := map[int64]bool{child: true}
	stack := []int64{child}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, parent := range parents[id] {
			if parent == ancestor {
				return true, nil
			}
			if visited[parent] {
				continue
			}
			visited[parent] = true
			stack = append(stack, parent)
		}
	}
	return false, nil
}

// hierarchy builds the child -> parents adjacency map once. The map is
// never mutated after the sync.Once body returns.
func (s *Store) hierarchy(ctx context.Context) (map[int64][]int64, error) {
	s.cacheOnce.Do(func() {
		edges, err := s.repo.AllEdges(ctx)
		if err != nil {
			s.cacheErr = err
			s.logger.Warn().Err(err).Msg("hierarchy cache build failed")
			return
		}
		parents := make(map[int64][]int64, len(edges))
		for _, e := range edges {
			parents[e.Child] = append(parents[e.Child], e.Parent)
		}
		s.parents = parents
		s.logger.Debug().Int("edges", len(edges)).Msg("hierarchy cache built")
	})
	return s.parents, s.cacheErr
}
