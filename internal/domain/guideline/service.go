package guideline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine evaluates rule-set documents against profiles. Evaluation is
// advisory: it never fails, it only under-reports.
type Engine struct {
	logger zerolog.Logger
}

func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Evaluate parses the document once and returns the triggered rules in
// descending priority order (stable; ties keep declaration order).
// Malformed documents yield an empty list, never an error. Rules without
// flag text are dropped: no flag means nothing actionable to show.
func (e *Engine) Evaluate(profile Reader, ruleSetJSON []byte) []Match {
	matches := []Match{}

	var doc RuleSetDoc
	if err := json.Unmarshal(ruleSetJSON, &doc); err != nil {
		e.logger.Warn().Err(err).Msg("rule set unparseable, returning no matches")
		return matches
	}

	for _, rule := range doc.Rules {
		if strings.TrimSpace(rule.Flag) == "" {
			continue
		}
		if !evalNode(rule.When, profile) {
			continue
		}
		matches = append(matches, Match{RuleID: rule.ID, Flag: rule.Flag, Priority: rule.Priority})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority > matches[j].Priority
	})
	return matches
}

// Service manages stored rule sets and runs evaluations against them.
type Service struct {
	repo   Repository
	engine *Engine
	logger zerolog.Logger
}

func NewService(repo Repository, engine *Engine, logger zerolog.Logger) *Service {
	return &Service{repo: repo, engine: engine, logger: logger}
}

// Create validates and stores a new version of a named rule set. The
// document must at least parse; storing garbage would make every later
// evaluation silently empty.
func (s *Service) Create(ctx context.Context, name string, document json.RawMessage) (*RuleSet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("rule set name is required")
	}
	var doc RuleSetDoc
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, fmt.Errorf("rule set document is not valid JSON: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rule set document has no rules")
	}

	rs := &RuleSet{
		ID:       uuid.New(),
		Name:     name,
		Document: document,
		Active:   true,
	}
	if err := s.repo.Create(ctx, rs); err != nil {
		return nil, fmt.Errorf("store rule set: %w", err)
	}
	s.logger.Info().Str("name", name).Int("version", rs.Version).Msg("rule set stored")
	return rs, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*RuleSet, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*RuleSet, error) {
	return s.repo.List(ctx)
}

func (s *Service) Activate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// EvaluateStored runs the active version of the named rule set against
// the profile.
func (s *Service) EvaluateStored(ctx context.Context, name string, profile Reader) ([]Match, error) {
	rs, err := s.repo.ActiveByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load rule set %q: %w", name, err)
	}
	if rs == nil {
		return nil, fmt.Errorf("no active rule set named %q", name)
	}
	return s.engine.Evaluate(profile, rs.Document), nil
}

// EvaluateInline runs an ad-hoc document against the profile.
func (s *Service) EvaluateInline(profile Reader, document json.RawMessage) []Match {
	return s.engine.Evaluate(profile, document)
}
