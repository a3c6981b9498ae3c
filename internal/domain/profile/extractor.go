package profile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pedcds/pedcds/internal/domain/terminology"
)

// FeverThresholdC is the peak temperature at or above which fever is
// derived. Fixed, not configurable.
const FeverThresholdC = 38.0

// PretermGAWeeks is the gestational age below which a birth counts as
// preterm.
const PretermGAWeeks = 37

const defaultMaxAncestorFeatures = 256

// feverTerms are tried in order when mapping derived fever to a concept.
var feverTerms = []string{"fever", "pyrexia", "fiebre"}

// reassuringNegatives maps documented well-findings to the negative keys
// rule sets match on.
var reassuringNegatives = map[string]string{
	"sick.pe.general_appearance.well": "neg:pe.general_appearance.unwell",
	"sick.pe.lungs.clear":             "neg:pe.lungs.abnormal",
	"sick.pe.ent.tms_normal":          "neg:pe.ent.abnormal",
	"sick.pe.hydration.normal":        "neg:pe.hydration.dehydration",
	"sick.pe.neuro.alert":             "neg:pe.neuro.altered",
}

// ConceptResolver is the slice of the terminology store the extractor
// needs. A nil resolver skips every ontology stage.
type ConceptResolver interface {
	BestConceptMatch(ctx context.Context, text string) (*terminology.Concept, error)
	ConceptIDsForFeatureKeys(ctx context.Context, keys []string) (map[string]int64, error)
	Ancestors(ctx context.Context, conceptID int64, maxDepth int) ([]int64, error)
}

// Extractor normalizes heterogeneous observations into canonical profiles.
type Extractor struct {
	resolver ConceptResolver
	logger   zerolog.Logger
	defaults ExtractOptions
}

func NewExtractor(resolver ConceptResolver, logger zerolog.Logger, defaults ExtractOptions) *Extractor {
	return &Extractor{resolver: resolver, logger: logger, defaults: defaults}
}

// BuildProfile runs the full extraction pipeline. Missing inputs narrow
// the profile; only a missing patient id is an error.
func (e *Extractor) BuildProfile(ctx context.Context, in Input) (*Profile, error) {
	if strings.TrimSpace(in.Identity.PatientID) == "" {
		return nil, fmt.Errorf("patient id is required")
	}

	p := NewProfile(strings.TrimSpace(in.Identity.PatientID))
	p.Sex = normalizeSex(in.Identity.Sex)
	p.DateOfBirth = in.Identity.DateOfBirth
	p.EncounterDate = in.Encounter.Date

	e.addDemographics(p)
	e.addVitals(p, in.Vitals)
	e.deriveFever(ctx, p)
	e.addVaccination(p, in.Vaccination)
	e.addPerinatal(p, in.Perinatal)
	e.addProblemLines(ctx, p, in.ProblemLines)
	e.addReassuringNegatives(p)
	e.mirrorConcepts(p)
	e.expandAncestors(ctx, p, e.effectiveOptions(in.Options))

	return p, nil
}

func (e *Extractor) effectiveOptions(opts ExtractOptions) ExtractOptions {
	out := opts
	out.ExpandAncestors = opts.ExpandAncestors || e.defaults.ExpandAncestors
	if out.MaxAncestorFeatures <= 0 {
		out.MaxAncestorFeatures = e.defaults.MaxAncestorFeatures
	}
	if out.MaxAncestorFeatures <= 0 {
		out.MaxAncestorFeatures = defaultMaxAncestorFeatures
	}
	if out.AncestorMaxDepth <= 0 {
		out.AncestorMaxDepth = e.defaults.AncestorMaxDepth
	}
	return out
}

func normalizeSex(sex string) string {
	switch strings.ToLower(strings.TrimSpace(sex)) {
	case "m", "male":
		return "male"
	case "f", "female":
		return "female"
	case "":
		return ""
	default:
		return strings.ToLower(strings.TrimSpace(sex))
	}
}

func (e *Extractor) addDemographics(p *Profile) {
	if !p.DateOfBirth.IsZero() {
		ref := p.EncounterDate
		if ref.IsZero() {
			ref = time.Now().UTC()
		}
		p.AgeDays = ageInDays(p.DateOfBirth, ref)
		p.AgeMonths = ageInMonths(p.DateOfBirth, ref)

		p.AddFeature(Feature{Key: "demographics.age_days", Value: IntValue(int64(p.AgeDays)), Source: SourceDemographics})
		p.AddFeature(Feature{Key: "demographics.age_months", Value: IntValue(int64(p.AgeMonths)), Source: SourceDemographics})
		// Legacy alias kept so older rule sets keep matching.
		p.AddFeature(Feature{Key: "patient.age_days", Value: IntValue(int64(p.AgeDays)), Note: "legacy alias", Source: SourceDemographics})
	}
	if p.Sex != "" {
		p.AddFeature(Feature{Key: "demographics.sex", Value: StringValue(p.Sex), Source: SourceDemographics})
		p.AddFeature(Feature{Key: "patient.sex", Value: StringValue(p.Sex), Note: "legacy alias", Source: SourceDemographics})
	}
}

func ageInDays(dob, ref time.Time) int {
	days := int(ref.Sub(dob).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func ageInMonths(dob, ref time.Time) int {
	months := (ref.Year()-dob.Year())*12 + int(ref.Month()) - int(dob.Month())
	if ref.Day() < dob.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func (e *Extractor) addVitals(p *Profile, snaps []VitalsSnapshot) {
	if len(snaps) == 0 {
		return
	}

	// Peak temperature spans every snapshot; the abnormal flag is the OR
	// of the provided per-snapshot flags. Without any flag it stays unset;
	// fever abnormality is carried by the derived symptom.fever.present.
	var peak *float64
	var flagged bool
	for _, s := range snaps {
		if s.TempC != nil && (peak == nil || *s.TempC > *peak) {
			v := *s.TempC
			peak = &v
		}
		if s.TempAbnormal != nil {
			flagged = flagged || *s.TempAbnormal
		}
	}
	if peak != nil {
		p.AddFeature(Feature{Key: "vital.temp_c.max", Value: FloatValue(*peak), Abnormal: flagged, Source: SourceVitals})
	}

	// Every other vital comes from the snapshot nearest the encounter.
	s := snaps[nearestSnapshot(snaps, p.EncounterDate)]
	if s.HeartRate != nil {
		p.AddFeature(Feature{Key: "vital.hr", Value: IntValue(int64(*s.HeartRate)), Source: SourceVitals})
	}
	if s.RespRate != nil {
		p.AddFeature(Feature{Key: "vital.rr", Value: IntValue(int64(*s.RespRate)), Source: SourceVitals})
	}
	if s.SpO2 != nil {
		p.AddFeature(Feature{Key: "vital.spo2", Value: IntValue(int64(*s.SpO2)), Source: SourceVitals})
	}
	if s.SpO2Low != nil {
		p.AddFeature(Feature{Key: "vital.spo2.low", Value: BoolValue(*s.SpO2Low), Abnormal: *s.SpO2Low, Source: SourceVitals})
	}
	if s.BPSystolic != nil {
		p.AddFeature(Feature{Key: "vital.bp.systolic", Value: IntValue(int64(*s.BPSystolic)), Source: SourceVitals})
	}
	if s.BPDiastolic != nil {
		p.AddFeature(Feature{Key: "vital.bp.diastolic", Value: IntValue(int64(*s.BPDiastolic)), Source: SourceVitals})
	}
}

// nearestSnapshot picks the snapshot closest to the encounter date, ties
// going to the earlier index. Without an encounter date the latest
// snapshot by timestamp wins.
func nearestSnapshot(snaps []VitalsSnapshot, encounter time.Time) int {
	best := 0
	if encounter.IsZero() {
		for i, s := range snaps {
			if s.TakenAt.After(snaps[best].TakenAt) {
				best = i
			}
		}
		return best
	}
	bestDiff := absDuration(snaps[0].TakenAt.Sub(encounter))
	for i := 1; i < len(snaps); i++ {
		if d := absDuration(snaps[i].TakenAt.Sub(encounter)); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func (e *Extractor) deriveFever(ctx context.Context, p *Profile) {
	peak, ok := p.Float("vital.temp_c.max")
	if !ok {
		return
	}
	present := peak >= FeverThresholdC
	p.AddFeature(Feature{
		Key:               "symptom.fever.present",
		Value:             BoolValue(present),
		ObjectivePositive: present,
		Abnormal:          present,
		Source:            SourceDerived,
	})
	if !present {
		p.AddFeature(Feature{Key: "neg:vital.temp.fever", Value: BoolValue(true), Source: SourceDerived})
		return
	}
	if e.resolver == nil {
		return
	}
	for _, term := range feverTerms {
		concept, err := e.resolver.BestConceptMatch(ctx, term)
		if err != nil || concept == nil {
			continue
		}
		p.setConceptID("symptom.fever.present", concept.ID)
		return
	}
}

func (e *Extractor) addVaccination(p *Profile, v *Vaccination) {
	if v == nil {
		return
	}
	if status := strings.ToLower(strings.TrimSpace(v.Status)); status != "" {
		p.AddFeature(Feature{Key: "vaccination.status", Value: StringValue(status), Source: SourceVaccination})
	}
	if v.UpToDate != nil {
		p.AddFeature(Feature{Key: "vaccination.up_to_date", Value: BoolValue(*v.UpToDate), Source: SourceVaccination})
		if *v.UpToDate {
			p.AddFeature(Feature{Key: "neg:vaccination.overdue", Value: BoolValue(true), Source: SourceDerived})
		}
	}
}

func (e *Extractor) addPerinatal(p *Profile, peri *Perinatal) {
	if peri == nil {
		return
	}
	if peri.GAWeeks != nil {
		p.AddFeature(Feature{Key: "perinatal.ga_weeks", Value: IntValue(int64(*peri.GAWeeks)), Source: SourcePerinatal})
		preterm := *peri.GAWeeks < PretermGAWeeks
		p.AddFeature(Feature{
			Key:               "perinatal.preterm",
			Value:             BoolValue(preterm),
			ObjectivePositive: preterm,
			Abnormal:          preterm,
			Source:            SourceDerived,
		})
	}
	if peri.BirthWeightG != nil {
		p.AddFeature(Feature{Key: "perinatal.birth_weight_g", Value: IntValue(int64(*peri.BirthWeightG)), Source: SourcePerinatal})
	}
	if peri.NICUStay != nil {
		p.AddFeature(Feature{Key: "perinatal.nicu_stay", Value: BoolValue(*peri.NICUStay), Abnormal: *peri.NICUStay, Source: SourcePerinatal})
	}
}

func (e *Extractor) addProblemLines(ctx context.Context, p *Profile, lines []ProblemLine) {
	var pending []string

	for _, line := range lines {
		if len(line.Tokens) > 0 {
			for _, raw := range line.Tokens {
				token := strings.ToLower(strings.TrimSpace(raw))
				if token == "" {
					continue
				}
				if id, ok := parseConceptToken(token); ok {
					cid := id
					p.AddFeature(Feature{
						Key:               fmt.Sprintf("sct:%d", id),
						Value:             BoolValue(true),
						ConceptID:         &cid,
						ObjectivePositive: true,
						Source:            SourceProblemLine,
					})
					continue
				}
				if p.AddFeature(Feature{
					Key:               token,
					Value:             BoolValue(true),
					ObjectivePositive: true,
					Source:            SourceProblemLine,
				}) {
					pending = append(pending, token)
				}
			}
			continue
		}
		e.addFreeTextProblem(ctx, p, line.Text)
	}

	if len(pending) == 0 || e.resolver == nil {
		return
	}
	mapped, err := e.resolver.ConceptIDsForFeatureKeys(ctx, pending)
	if err != nil {
		e.logger.Warn().Err(err).Msg("bridge lookup failed")
		return
	}
	for _, token := range pending {
		id, ok := mapped[token]
		if !ok {
			p.addNote(fmt.Sprintf("no concept mapping for token %q", token))
			e.logger.Warn().Str("token", token).Msg("unmapped feature token")
			continue
		}
		p.setConceptID(token, id)
	}
}

// parseConceptToken recognizes bare concept ids ("386661006") and the
// explicit "sct:386661006" form.
func parseConceptToken(token string) (int64, bool) {
	token = strings.TrimPrefix(token, "sct:")
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (e *Extractor) addFreeTextProblem(ctx context.Context, p *Profile, text string) {
	for _, fragment := range splitProblemText(text) {
		if e.resolver == nil {
			p.addNote(fmt.Sprintf("no terminology available for problem text %q", fragment))
			continue
		}
		concept, err := e.resolver.BestConceptMatch(ctx, fragment)
		if err != nil || concept == nil {
			p.addNote(fmt.Sprintf("no concept match for problem text %q", fragment))
			continue
		}
		cid := concept.ID
		p.AddFeature(Feature{
			Key:               fmt.Sprintf("sct:%d", concept.ID),
			Value:             BoolValue(true),
			ConceptID:         &cid,
			Note:              fragment,
			ObjectivePositive: true,
			Source:            SourceProblemLine,
		})
	}
}

func splitProblemText(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == '+'
	})
	var fragments []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			fragments = append(fragments, f)
		}
	}
	return fragments
}

func (e *Extractor) addReassuringNegatives(p *Profile) {
	// Walk the profile, not the table, so negatives land in the same
	// order as the findings that produced them.
	n := len(p.Features)
	for i := 0; i < n; i++ {
		if negKey, ok := reassuringNegatives[p.Features[i].Key]; ok {
			p.AddFeature(Feature{Key: negKey, Value: BoolValue(true), Source: SourceDerived})
		}
	}
}

// mirrorConcepts adds an sct:<id> feature for every concept-linked
// feature, so rule sets can match on concepts regardless of which key
// carried them in.
func (e *Extractor) mirrorConcepts(p *Profile) {
	n := len(p.Features)
	for i := 0; i < n; i++ {
		f := p.Features[i]
		if f.ConceptID == nil {
			continue
		}
		key := fmt.Sprintf("sct:%d", *f.ConceptID)
		if p.Has(key) {
			continue
		}
		cid := *f.ConceptID
		p.AddFeature(Feature{
			Key:               key,
			Value:             BoolValue(true),
			ConceptID:         &cid,
			ObjectivePositive: f.ObjectivePositive,
			Abnormal:          f.Abnormal,
			Source:            SourceOntologyMirror,
		})
	}
}

func (e *Extractor) expandAncestors(ctx context.Context, p *Profile, opts ExtractOptions) {
	if !opts.ExpandAncestors || e.resolver == nil {
		return
	}

	var conceptIDs []int64
	seen := make(map[int64]bool)
	for _, f := range p.Features {
		if f.ConceptID != nil && !seen[*f.ConceptID] {
			seen[*f.ConceptID] = true
			conceptIDs = append(conceptIDs, *f.ConceptID)
		}
	}

	added := 0
	for _, id := range conceptIDs {
		ancestors, err := e.resolver.Ancestors(ctx, id, opts.AncestorMaxDepth)
		if err != nil {
			continue
		}
		for _, anc := range ancestors {
			if added >= opts.MaxAncestorFeatures {
				p.addNote("ancestor expansion truncated at cap")
				return
			}
			key := fmt.Sprintf("sct:%d", anc)
			if p.Has(key) {
				continue
			}
			aid := anc
			if p.AddFeature(Feature{
				Key:       key,
				Value:     BoolValue(true),
				ConceptID: &aid,
				Source:    SourceOntologyMirror,
			}) {
				added++
			}
		}
	}
}
