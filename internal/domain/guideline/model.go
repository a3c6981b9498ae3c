package guideline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Reader is the slice of a clinical profile the engine evaluates against:
// typed lookups by feature key, each reporting presence alongside the
// value. Any profile representation can implement it.
type Reader interface {
	Bool(key string) (bool, bool)
	Int(key string) (int64, bool)
	Float(key string) (float64, bool)
	String(key string) (string, bool)
	StringList(key string) ([]string, bool)
	Has(key string) bool
	Keys() []string
}

// RuleSetDoc is the wire form of a rule-set document (snake_case JSON).
type RuleSetDoc struct {
	SchemaVersion string    `json:"schema_version"`
	Rules         []RuleDef `json:"rules"`
}

// RuleDef is one declarative rule.
type RuleDef struct {
	ID       string `json:"id"`
	Flag     string `json:"flag"`
	Priority int    `json:"priority"`
	When     *Node  `json:"when"`
}

// Node is a predicate tree node. Exactly one of All/Any/Not or the
// condition fields (Key+Op) should be set; combinators take precedence
// over condition fields when a document sets both.
type Node struct {
	All []*Node `json:"all,omitempty"`
	Any []*Node `json:"any,omitempty"`
	Not *Node   `json:"not,omitempty"`

	Key    string        `json:"key,omitempty"`
	Op     string        `json:"op,omitempty"`
	Value  interface{}   `json:"value,omitempty"`
	Values []interface{} `json:"values,omitempty"`
	Min    *float64      `json:"min,omitempty"`
	Max    *float64      `json:"max,omitempty"`
}

// Match is one triggered rule, as shown to the clinician.
type Match struct {
	RuleID   string `json:"rule_id"`
	Flag     string `json:"flag"`
	Priority int    `json:"priority"`
}

// RuleSet is a stored, versioned rule-set document.
type RuleSet struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	Document  json.RawMessage `json:"document"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
