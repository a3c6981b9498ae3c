package guideline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
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

const ruleSetColumns = `id, name, version, document, active, created_at, updated_at`

func scanRuleSet(row pgx.Row) (*RuleSet, error) {
	var rs RuleSet
	err := row.Scan(&rs.ID, &rs.Name, &rs.Version, &rs.Document, &rs.Active, &rs.CreatedAt, &rs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

// Create assigns the next version for the name, deactivates prior
// versions, and inserts the new row, all in one transaction.
func (r *repoPG) Create(ctx context.Context, rs *RuleSet) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM guideline_ruleset WHERE name = $1`,
		rs.Name).Scan(&rs.Version); err != nil {
		return fmt.Errorf("next version: %w", err)
	}

	if rs.Active {
		if _, err := tx.Exec(ctx,
			`UPDATE guideline_ruleset SET active = FALSE, updated_at = NOW() WHERE name = $1 AND active`,
			rs.Name); err != nil {
			return fmt.Errorf("deactivate prior versions: %w", err)
		}
	}

	if err := tx.QueryRow(ctx,
		`INSERT INTO guideline_ruleset (id, name, version, document, active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		rs.ID, rs.Name, rs.Version, rs.Document, rs.Active).
		Scan(&rs.CreatedAt, &rs.UpdatedAt); err != nil {
		return fmt.Errorf("insert rule set: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*RuleSet, error) {
	rs, err := scanRuleSet(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ruleSetColumns+` FROM guideline_ruleset WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get rule set: %w", err)
	}
	return rs, nil
}

func (r *repoPG) List(ctx context.Context) ([]*RuleSet, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+ruleSetColumns+` FROM guideline_ruleset ORDER BY name, version DESC`)
	if err != nil {
		return nil, fmt.Errorf("list rule sets: %w", err)
	}
	defer rows.Close()

	var out []*RuleSet
	for rows.Next() {
		var rs RuleSet
		if err := rows.Scan(&rs.ID, &rs.Name, &rs.Version, &rs.Document, &rs.Active, &rs.CreatedAt, &rs.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rs)
	}
	return out, rows.Err()
}

func (r *repoPG) ActiveByName(ctx context.Context, name string) (*RuleSet, error) {
	rs, err := scanRuleSet(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ruleSetColumns+`
		 FROM guideline_ruleset
		 WHERE name = $1 AND active
		 ORDER BY version DESC LIMIT 1`, name))
	if err != nil {
		return nil, fmt.Errorf("active rule set: %w", err)
	}
	return rs, nil
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE guideline_ruleset
		 SET active = (id = $1), updated_at = NOW()
		 WHERE name = (SELECT name FROM guideline_ruleset WHERE id = $1)`, id)
	if err != nil {
		return fmt.Errorf("activate rule set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule set %s not found", id)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM guideline_ruleset WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule set %s not found", id)
	}
	return nil
}
