package guideline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func testEngine() *Engine {
	return NewEngine(zerolog.New(os.Stderr).Level(zerolog.Disabled))
}

func TestEvaluate_MalformedDocumentYieldsEmpty(t *testing.T) {
	e := testEngine()
	p := testProfile()

	for _, doc := range []string{
		`not json at all`,
		`{"rules": "should be an array"}`,
		``,
	} {
		matches := e.Evaluate(p, []byte(doc))
		if matches == nil {
			t.Errorf("doc %q: matches must be an empty slice, not nil", doc)
		}
		if len(matches) != 0 {
			t.Errorf("doc %q: expected no matches, got %v", doc, matches)
		}
	}
}

func TestEvaluate_BlankFlagDropped(t *testing.T) {
	doc := `{
		"schema_version": "1.0.0",
		"rules": [
			{"id": "r1", "flag": "", "when": {"key": "symptom.fever.present", "op": "eq", "value": true}},
			{"id": "r2", "flag": "   ", "when": {"key": "symptom.fever.present", "op": "eq", "value": true}},
			{"id": "r3", "flag": "Fever in infant", "when": {"key": "symptom.fever.present", "op": "eq", "value": true}}
		]
	}`
	matches := testEngine().Evaluate(testProfile(), []byte(doc))
	if len(matches) != 1 || matches[0].RuleID != "r3" {
		t.Fatalf("expected only flagged rule r3, got %v", matches)
	}
}

func TestEvaluate_PriorityStableDescending(t *testing.T) {
	doc := `{
		"schema_version": "1.0.0",
		"rules": [
			{"id": "a", "flag": "A", "priority": 5, "when": {"all": []}},
			{"id": "b", "flag": "B", "priority": 1, "when": {"all": []}},
			{"id": "c", "flag": "C", "priority": 5, "when": {"all": []}},
			{"id": "d", "flag": "D", "priority": 0, "when": {"all": []}}
		]
	}`
	matches := testEngine().Evaluate(testProfile(), []byte(doc))

	wantOrder := []string{"a", "c", "b", "d"}
	if len(matches) != len(wantOrder) {
		t.Fatalf("expected %d matches, got %d", len(wantOrder), len(matches))
	}
	for i, id := range wantOrder {
		if matches[i].RuleID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, matches[i].RuleID)
		}
	}
}

func TestEvaluate_MissingWhenDoesNotMatch(t *testing.T) {
	doc := `{"rules": [{"id": "r1", "flag": "F"}]}`
	matches := testEngine().Evaluate(testProfile(), []byte(doc))
	if len(matches) != 0 {
		t.Errorf("rule without predicate must not match, got %v", matches)
	}
}

// mockRuleSetRepo is an in-memory Repository for service tests.
type mockRuleSetRepo struct {
	sets map[uuid.UUID]*RuleSet
}

func newMockRepo() *mockRuleSetRepo {
	return &mockRuleSetRepo{sets: make(map[uuid.UUID]*RuleSet)}
}

func (m *mockRuleSetRepo) Create(ctx context.Context, rs *RuleSet) error {
	version := 0
	for _, existing := range m.sets {
		if existing.Name == rs.Name {
			if existing.Version > version {
				version = existing.Version
			}
			if rs.Active {
				existing.Active = false
			}
		}
	}
	rs.Version = version + 1
	m.sets[rs.ID] = rs
	return nil
}

func (m *mockRuleSetRepo) GetByID(ctx context.Context, id uuid.UUID) (*RuleSet, error) {
	return m.sets[id], nil
}

func (m *mockRuleSetRepo) List(ctx context.Context) ([]*RuleSet, error) {
	var out []*RuleSet
	for _, rs := range m.sets {
		out = append(out, rs)
	}
	return out, nil
}

func (m *mockRuleSetRepo) ActiveByName(ctx context.Context, name string) (*RuleSet, error) {
	var best *RuleSet
	for _, rs := range m.sets {
		if rs.Name == name && rs.Active {
			if best == nil || rs.Version > best.Version {
				best = rs
			}
		}
	}
	return best, nil
}

func (m *mockRuleSetRepo) SetActive(ctx context.Context, id uuid.UUID) error {
	target, ok := m.sets[id]
	if !ok {
		return fmt.Errorf("rule set %s not found", id)
	}
	for _, rs := range m.sets {
		if rs.Name == target.Name {
			rs.Active = rs.ID == id
		}
	}
	return nil
}

func (m *mockRuleSetRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.sets, id)
	return nil
}

const validDoc = `{
	"schema_version": "1.0.0",
	"rules": [
		{"id": "fever-infant", "flag": "Fever in young infant", "priority": 10,
		 "when": {"all": [
			{"key": "symptom.fever.present", "op": "eq", "value": true},
			{"key": "demographics.age_days", "op": "between_inclusive", "min": 0, "max": 60}
		 ]}}
	]
}`

func newTestService() *Service {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return NewService(newMockRepo(), NewEngine(logger), logger)
}

func TestService_CreateValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", json.RawMessage(validDoc)); err == nil {
		t.Error("expected error for blank name")
	}
	if _, err := svc.Create(ctx, "peds", json.RawMessage(`garbage`)); err == nil {
		t.Error("expected error for unparseable document")
	}
	if _, err := svc.Create(ctx, "peds", json.RawMessage(`{"rules": []}`)); err == nil {
		t.Error("expected error for empty rule list")
	}

	rs, err := svc.Create(ctx, "peds", json.RawMessage(validDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.Version != 1 || !rs.Active {
		t.Errorf("expected active version 1, got v%d active=%v", rs.Version, rs.Active)
	}
}

func TestService_CreateBumpsVersion(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, _ := svc.Create(ctx, "peds", json.RawMessage(validDoc))
	second, err := svc.Create(ctx, "peds", json.RawMessage(validDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Version != first.Version+1 {
		t.Errorf("expected version bump, got %d then %d", first.Version, second.Version)
	}

	active, _ := svc.repo.ActiveByName(ctx, "peds")
	if active == nil || active.ID != second.ID {
		t.Error("expected newest version to be the active one")
	}
}

func TestService_EvaluateStored(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.Create(ctx, "peds", json.RawMessage(validDoc))

	p := &fakeProfile{
		bools: map[string]bool{"symptom.fever.present": true},
		ints:  map[string]int64{"demographics.age_days": 45},
	}
	matches, err := svc.EvaluateStored(ctx, "peds", p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].RuleID != "fever-infant" {
		t.Fatalf("expected fever-infant match, got %v", matches)
	}

	if _, err := svc.EvaluateStored(ctx, "nonexistent", p); err == nil {
		t.Error("expected error for unknown rule set name")
	}
}

func TestService_EvaluateInline(t *testing.T) {
	svc := newTestService()
	p := &fakeProfile{
		bools: map[string]bool{"symptom.fever.present": true},
		ints:  map[string]int64{"demographics.age_days": 200},
	}
	matches := svc.EvaluateInline(p, json.RawMessage(validDoc))
	if len(matches) != 0 {
		t.Errorf("age 200 is outside the rule window, got %v", matches)
	}
}
