package profile

import "time"

// Source records which pipeline stage produced a feature.
type Source string

const (
	SourceDemographics   Source = "demographics"
	SourceVitals         Source = "vitals"
	SourcePerinatal      Source = "perinatal"
	SourceVaccination    Source = "vaccination"
	SourceProblemLine    Source = "problem-line"
	SourceDerived        Source = "derived"
	SourceOntologyMirror Source = "ontology-mirror"
)

// Feature is one normalized clinical finding keyed by a stable,
// locale-independent identifier.
type Feature struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
	// ConceptID links the feature to an ontology concept when resolvable.
	ConceptID *int64 `json:"concept_id,omitempty"`
	Note      string `json:"note,omitempty"`
	// ObjectivePositive marks findings that were actively observed, as
	// opposed to reassuring negatives or bookkeeping values.
	ObjectivePositive bool   `json:"objective_positive"`
	Abnormal          bool   `json:"abnormal"`
	Source            Source `json:"source"`
}

// Profile is the canonical clinical profile: an ordered, de-duplicated
// feature set plus identity context. Feature keys are unique; the first
// occurrence of a key wins.
type Profile struct {
	PatientID     string    `json:"patient_id"`
	Sex           string    `json:"sex,omitempty"`
	DateOfBirth   time.Time `json:"date_of_birth,omitempty"`
	EncounterDate time.Time `json:"encounter_date,omitempty"`
	AgeDays       int       `json:"age_days"`
	AgeMonths     int       `json:"age_months"`

	Features []Feature `json:"features"`
	// Notes collects extraction diagnostics (unmapped tokens, skipped
	// inputs). Informational only.
	Notes []string `json:"notes,omitempty"`

	index map[string]int
}

func NewProfile(patientID string) *Profile {
	return &Profile{
		PatientID: patientID,
		index:     make(map[string]int),
	}
}

// AddFeature appends the feature unless its key is already present.
// Returns true when the feature was added.
func (p *Profile) AddFeature(f Feature) bool {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if _, exists := p.index[f.Key]; exists {
		return false
	}
	p.index[f.Key] = len(p.Features)
	p.Features = append(p.Features, f)
	return true
}

func (p *Profile) feature(key string) (Feature, bool) {
	idx, ok := p.index[key]
	if !ok {
		return Feature{}, false
	}
	return p.Features[idx], true
}

// setConceptID attaches a concept to an existing feature.
func (p *Profile) setConceptID(key string, id int64) {
	if idx, ok := p.index[key]; ok {
		cid := id
		p.Features[idx].ConceptID = &cid
	}
}

func (p *Profile) addNote(note string) {
	p.Notes = append(p.Notes, note)
}

// ObjectivePositives returns the features actively observed on the patient.
func (p *Profile) ObjectivePositives() []Feature {
	var out []Feature
	for _, f := range p.Features {
		if f.ObjectivePositive {
			out = append(out, f)
		}
	}
	return out
}

// Abnormals returns the features flagged as out of range.
func (p *Profile) Abnormals() []Feature {
	var out []Feature
	for _, f := range p.Features {
		if f.Abnormal {
			out = append(out, f)
		}
	}
	return out
}

// Read capability accessors. These satisfy the rule engine's view of a
// profile: typed lookups that report presence alongside the value.

func (p *Profile) Bool(key string) (bool, bool) {
	f, ok := p.feature(key)
	if !ok {
		return false, false
	}
	return f.Value.Bool()
}

func (p *Profile) Int(key string) (int64, bool) {
	f, ok := p.feature(key)
	if !ok {
		return 0, false
	}
	return f.Value.Int()
}

func (p *Profile) Float(key string) (float64, bool) {
	f, ok := p.feature(key)
	if !ok {
		return 0, false
	}
	return f.Value.Float()
}

func (p *Profile) String(key string) (string, bool) {
	f, ok := p.feature(key)
	if !ok {
		return "", false
	}
	return f.Value.String()
}

func (p *Profile) StringList(key string) ([]string, bool) {
	f, ok := p.feature(key)
	if !ok {
		return nil, false
	}
	return f.Value.StringList()
}

func (p *Profile) Has(key string) bool {
	_, ok := p.index[key]
	return ok
}

// Keys returns feature keys in insertion order.
func (p *Profile) Keys() []string {
	keys := make([]string, 0, len(p.Features))
	for _, f := range p.Features {
		keys = append(keys, f.Key)
	}
	return keys
}
