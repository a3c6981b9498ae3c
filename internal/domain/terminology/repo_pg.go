package terminology

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedcds/pedcds/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) SchemaVersion(ctx context.Context) (string, error) {
	var version string
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// BestConceptMatch prefers the shortest active term containing the query
// text. Shorter terms are more specific matches for clinical shorthand
// ("fever" should win over "fever with chills").
func (r *repoPG) BestConceptMatch(ctx context.Context, text string) (*Concept, error) {
	pattern := "%" + text + "%"
	var c Concept
	var active int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT c.concept_id, d.term, c.active
		 FROM description d
		 JOIN concept c ON c.concept_id = d.concept_id
		 WHERE d.active = 1 AND c.active = 1 AND d.term ILIKE $1
		 ORDER BY length(d.term), d.term
		 LIMIT 1`, pattern).
		Scan(&c.ID, &c.Term, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("best concept match: %w", err)
	}
	c.Active = active == 1
	return &c, nil
}

func (r *repoPG) ConceptForFeatureKey(ctx context.Context, key string) (*Concept, error) {
	var c Concept
	var active int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT m.concept_id, COALESCE(d.term, ''), m.active
		 FROM feature_snomed_map m
		 LEFT JOIN description d
		   ON d.concept_id = m.concept_id AND d.active = 1 AND d.type_id = $2
		 WHERE m.feature_key = $1 AND m.active = 1
		 LIMIT 1`, key, FSNTypeID).
		Scan(&c.ID, &c.Term, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feature key lookup: %w", err)
	}
	c.Active = active == 1
	return &c, nil
}

func (r *repoPG) ConceptsForFeatureKeys(ctx context.Context, keys []string) (map[string]int64, error) {
	result := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT feature_key, concept_id
		 FROM feature_snomed_map
		 WHERE active = 1 AND feature_key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("batch feature key lookup: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var id int64
		if err := rows.Scan(&key, &id); err != nil {
			return nil, err
		}
		result[key] = id
	}
	return result, rows.Err()
}

func (r *repoPG) AllEdges(ctx context.Context) ([]Edge, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT child_concept_id, parent_concept_id FROM isa_edge`)
	if err != nil {
		return nil, fmt.Errorf("load isa edges: %w", err)
	}
	defer rows.Close()
	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Child, &e.Parent); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
