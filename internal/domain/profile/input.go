package profile

import "time"

// Identity is the minimal patient context required for every extraction.
type Identity struct {
	PatientID   string    `json:"patient_id"`
	Sex         string    `json:"sex,omitempty"`
	DateOfBirth time.Time `json:"date_of_birth,omitempty"`
}

// Encounter anchors age calculation and vitals selection in time.
type Encounter struct {
	Date time.Time `json:"date,omitempty"`
}

// VitalsSnapshot is one set of measurements taken at a point in time.
// Pointer fields distinguish "not measured" from a zero reading.
type VitalsSnapshot struct {
	TakenAt      time.Time `json:"taken_at,omitempty"`
	TempC        *float64  `json:"temp_c,omitempty"`
	TempAbnormal *bool     `json:"temp_abnormal,omitempty"`
	HeartRate    *int      `json:"heart_rate,omitempty"`
	RespRate     *int      `json:"resp_rate,omitempty"`
	SpO2         *int      `json:"spo2,omitempty"`
	SpO2Low      *bool     `json:"spo2_low,omitempty"`
	BPSystolic   *int      `json:"bp_systolic,omitempty"`
	BPDiastolic  *int      `json:"bp_diastolic,omitempty"`
}

// Vaccination is the reported immunization state.
type Vaccination struct {
	Status   string `json:"status,omitempty"`
	UpToDate *bool  `json:"up_to_date,omitempty"`
}

// Perinatal covers birth history relevant to pediatric assessment.
type Perinatal struct {
	GAWeeks      *int  `json:"ga_weeks,omitempty"`
	BirthWeightG *int  `json:"birth_weight_g,omitempty"`
	NICUStay     *bool `json:"nicu_stay,omitempty"`
}

// ProblemLine is one documented problem: either pre-tokenized findings
// (structured tokens or concept ids) or free text.
type ProblemLine struct {
	Text   string   `json:"text,omitempty"`
	Tokens []string `json:"tokens,omitempty"`
}

// ExtractOptions tunes optional extraction stages.
type ExtractOptions struct {
	// ExpandAncestors materializes ontology ancestors of every present
	// concept as additional features. Off by default.
	ExpandAncestors bool `json:"expand_ancestors,omitempty"`
	// MaxAncestorFeatures caps the total number of ancestor features
	// added per profile. Zero means the default cap.
	MaxAncestorFeatures int `json:"max_ancestor_features,omitempty"`
	// AncestorMaxDepth caps each hierarchy walk. Zero means the store
	// default.
	AncestorMaxDepth int `json:"ancestor_max_depth,omitempty"`
}

// Input is everything a single extraction consumes.
type Input struct {
	Identity     Identity         `json:"identity"`
	Encounter    Encounter        `json:"encounter,omitempty"`
	Vitals       []VitalsSnapshot `json:"vitals,omitempty"`
	Vaccination  *Vaccination     `json:"vaccination,omitempty"`
	Perinatal    *Perinatal       `json:"perinatal,omitempty"`
	ProblemLines []ProblemLine    `json:"problem_lines,omitempty"`
	Options      ExtractOptions   `json:"options,omitempty"`
}
