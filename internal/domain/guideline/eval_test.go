package guideline

import "testing"

// fakeProfile is a map-backed Reader for evaluator tests.
type fakeProfile struct {
	bools  map[string]bool
	ints   map[string]int64
	floats map[string]float64
	strs   map[string]string
	lists  map[string][]string
}

func (f *fakeProfile) Bool(key string) (bool, bool) {
	v, ok := f.bools[key]
	return v, ok
}
func (f *fakeProfile) Int(key string) (int64, bool) {
	v, ok := f.ints[key]
	return v, ok
}
func (f *fakeProfile) Float(key string) (float64, bool) {
	if v, ok := f.floats[key]; ok {
		return v, true
	}
	if v, ok := f.ints[key]; ok {
		return float64(v), true
	}
	return 0, false
}
func (f *fakeProfile) String(key string) (string, bool) {
	v, ok := f.strs[key]
	return v, ok
}
func (f *fakeProfile) StringList(key string) ([]string, bool) {
	v, ok := f.lists[key]
	return v, ok
}
func (f *fakeProfile) Has(key string) bool {
	if _, ok := f.bools[key]; ok {
		return true
	}
	if _, ok := f.ints[key]; ok {
		return true
	}
	if _, ok := f.floats[key]; ok {
		return true
	}
	if _, ok := f.strs[key]; ok {
		return true
	}
	_, ok := f.lists[key]
	return ok
}
func (f *fakeProfile) Keys() []string { return nil }

func testProfile() *fakeProfile {
	return &fakeProfile{
		bools:  map[string]bool{"symptom.fever.present": true, "perinatal.preterm": false},
		ints:   map[string]int64{"demographics.age_days": 45, "vital.spo2": 93},
		floats: map[string]float64{"vital.temp_c.max": 38.4},
		strs:   map[string]string{"demographics.sex": "Female ", "vaccination.status": "up to date", "empty": "  "},
		lists:  map[string][]string{"meds": {"Amoxicillin", "Paracetamol"}, "emptylist": {}},
	}
}

func cond(key, op string, value interface{}) *Node {
	return &Node{Key: key, Op: op, Value: value}
}

func floatP(v float64) *float64 { return &v }

func TestEval_Eq(t *testing.T) {
	p := testProfile()
	cases := []struct {
		node *Node
		want bool
	}{
		{cond("symptom.fever.present", "eq", true), true},
		{cond("symptom.fever.present", "eq", false), false},
		{cond("demographics.sex", "eq", "female"), true},   // normalized
		{cond("demographics.sex", "eq", " FEMALE  "), true}, // whitespace folded
		{cond("demographics.sex", "eq", "male"), false},
		{cond("demographics.age_days", "eq", float64(45)), true},
		{cond("demographics.age_days", "eq", float64(46)), false},
		{cond("vital.temp_c.max", "eq", 38.4), true},
		{cond("missing", "eq", true), false},
		{cond("symptom.fever.present", "eq", nil), false}, // no literal
	}
	for i, tc := range cases {
		if got := evalNode(tc.node, p); got != tc.want {
			t.Errorf("case %d (%s %v): got %v, want %v", i, tc.node.Key, tc.node.Value, got, tc.want)
		}
	}
}

func TestEval_Neq(t *testing.T) {
	p := testProfile()
	if !evalNode(cond("demographics.sex", "neq", "male"), p) {
		t.Error("neq should match differing value")
	}
	if evalNode(cond("demographics.sex", "neq", "female"), p) {
		t.Error("neq should not match equal value")
	}
	// Missing feature fails closed even for neq
	if evalNode(cond("missing", "neq", "anything"), p) {
		t.Error("neq on missing feature must be false")
	}
}

func TestEval_In(t *testing.T) {
	p := testProfile()
	if !evalNode(&Node{Key: "vaccination.status", Op: "in", Values: []interface{}{"unknown", "Up To Date"}}, p) {
		t.Error("in should match normalized set member")
	}
	if evalNode(&Node{Key: "vaccination.status", Op: "in", Values: []interface{}{"overdue"}}, p) {
		t.Error("in should not match absent member")
	}
	if !evalNode(&Node{Key: "meds", Op: "in", Values: []interface{}{"amoxicillin"}}, p) {
		t.Error("in should match string-list element")
	}
	if evalNode(&Node{Key: "vaccination.status", Op: "in", Values: nil}, p) {
		t.Error("in with empty set must be false")
	}
}

func TestEval_Contains(t *testing.T) {
	p := testProfile()
	if !evalNode(cond("vaccination.status", "contains", "DATE"), p) {
		t.Error("contains should be case-insensitive")
	}
	if !evalNode(cond("meds", "contains", "paraceta"), p) {
		t.Error("contains should scan string-list elements")
	}
	if evalNode(cond("vaccination.status", "contains", "xyz"), p) {
		t.Error("contains should miss")
	}
}

func TestEval_Ordering(t *testing.T) {
	p := testProfile()
	cases := []struct {
		op   string
		lit  float64
		want bool
	}{
		{"gte", 45, true},
		{"gte", 46, false},
		{"gt", 44, true},
		{"gt", 45, false},
		{"lte", 45, true},
		{"lte", 44, false},
		{"lt", 46, true},
		{"lt", 45, false},
	}
	for _, tc := range cases {
		if got := evalNode(cond("demographics.age_days", tc.op, tc.lit), p); got != tc.want {
			t.Errorf("%s %v: got %v, want %v", tc.op, tc.lit, got, tc.want)
		}
	}
	// float feature with ordering
	if !evalNode(cond("vital.temp_c.max", "gte", 38.0), p) {
		t.Error("gte should compare float feature")
	}
}

func TestEval_BetweenInclusive(t *testing.T) {
	cases := []struct {
		age  int64
		want bool
	}{
		{29, true},
		{60, true},
		{28, false},
		{61, false},
	}
	for _, tc := range cases {
		p := &fakeProfile{ints: map[string]int64{"demographics.age_days": tc.age}}
		node := &Node{Key: "demographics.age_days", Op: "between_inclusive", Min: floatP(29), Max: floatP(60)}
		if got := evalNode(node, p); got != tc.want {
			t.Errorf("age %d: got %v, want %v", tc.age, got, tc.want)
		}
	}

	// missing bounds fail closed
	p := testProfile()
	if evalNode(&Node{Key: "demographics.age_days", Op: "between_inclusive", Min: floatP(1)}, p) {
		t.Error("between_inclusive without max must be false")
	}
}

func TestEval_PresentAbsent(t *testing.T) {
	p := testProfile()
	if !evalNode(cond("vital.spo2", "present", nil), p) {
		t.Error("present should see int feature")
	}
	if !evalNode(cond("perinatal.preterm", "present", nil), p) {
		t.Error("present should see bool feature even when false")
	}
	if evalNode(cond("empty", "present", nil), p) {
		t.Error("blank string counts as absent")
	}
	if evalNode(cond("emptylist", "present", nil), p) {
		t.Error("empty list counts as absent")
	}
	if !evalNode(cond("emptylist", "absent", nil), p) {
		t.Error("absent should be true for empty list")
	}
	if !evalNode(cond("missing", "absent", nil), p) {
		t.Error("absent should be true for unknown key")
	}
}

func TestEval_OperatorTotality_AbsentKey(t *testing.T) {
	p := &fakeProfile{}
	ops := []string{"eq", "neq", "in", "contains", "gte", "gt", "lte", "lt", "between_inclusive", "present"}
	for _, op := range ops {
		node := &Node{Key: "missing", Op: op, Value: "x", Values: []interface{}{"x"}, Min: floatP(0), Max: floatP(1)}
		if evalNode(node, p) {
			t.Errorf("operator %s on absent key must be false", op)
		}
	}
	if !evalNode(cond("missing", "absent", nil), p) {
		t.Error("absent on absent key must be true")
	}
}

func TestEval_UnknownOperatorFailsClosed(t *testing.T) {
	p := testProfile()
	if evalNode(cond("symptom.fever.present", "matches_regex", ".*"), p) {
		t.Error("unknown operator must evaluate to false")
	}
}

func TestEval_Combinators(t *testing.T) {
	p := testProfile()

	fever := cond("symptom.fever.present", "eq", true)
	young := cond("demographics.age_days", "lt", float64(60))
	male := cond("demographics.sex", "eq", "male")

	if !evalNode(&Node{All: []*Node{fever, young}}, p) {
		t.Error("all of two true conditions should be true")
	}
	if evalNode(&Node{All: []*Node{fever, male}}, p) {
		t.Error("all with one false condition should be false")
	}
	if !evalNode(&Node{All: []*Node{}}, p) {
		t.Error("empty all is vacuously true")
	}
	if !evalNode(&Node{Any: []*Node{male, fever}}, p) {
		t.Error("any with one true condition should be true")
	}
	if evalNode(&Node{Any: []*Node{}}, p) {
		t.Error("empty any is false")
	}
	if evalNode(&Node{Not: fever}, p) {
		t.Error("not of true should be false")
	}
	if !evalNode(&Node{Not: &Node{Not: fever}}, p) {
		t.Error("double negation should restore the value")
	}
}

func TestEval_NestedTree(t *testing.T) {
	p := testProfile()
	// fever AND (young infant OR low spo2)
	node := &Node{All: []*Node{
		cond("symptom.fever.present", "eq", true),
		{Any: []*Node{
			cond("demographics.age_days", "lte", float64(28)),
			cond("vital.spo2", "lt", float64(94)),
		}},
	}}
	if !evalNode(node, p) {
		t.Error("expected nested tree to match via spo2 branch")
	}
}
