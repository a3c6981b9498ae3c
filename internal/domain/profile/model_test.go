package profile

import (
	"testing"
	"time"
)

func TestAddFeature_FirstOccurrenceWins(t *testing.T) {
	p := NewProfile("p1")

	if !p.AddFeature(Feature{Key: "vital.hr", Value: IntValue(120)}) {
		t.Fatal("expected first add to succeed")
	}
	if p.AddFeature(Feature{Key: "vital.hr", Value: IntValue(90)}) {
		t.Fatal("expected duplicate key to be rejected")
	}

	v, ok := p.Int("vital.hr")
	if !ok || v != 120 {
		t.Errorf("expected first value 120 to survive, got %d (ok=%v)", v, ok)
	}
	if len(p.Features) != 1 {
		t.Errorf("expected 1 feature, got %d", len(p.Features))
	}
}

func TestProfile_TypedAccessors(t *testing.T) {
	p := NewProfile("p1")
	p.AddFeature(Feature{Key: "b", Value: BoolValue(true)})
	p.AddFeature(Feature{Key: "i", Value: IntValue(42)})
	p.AddFeature(Feature{Key: "f", Value: FloatValue(38.4)})
	p.AddFeature(Feature{Key: "s", Value: StringValue("male")})
	p.AddFeature(Feature{Key: "l", Value: StringListValue([]string{"a", "b"})})
	p.AddFeature(Feature{Key: "d", Value: DateValue(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))})

	if v, ok := p.Bool("b"); !ok || !v {
		t.Error("bool accessor failed")
	}
	if v, ok := p.Int("i"); !ok || v != 42 {
		t.Error("int accessor failed")
	}
	if v, ok := p.Float("f"); !ok || v != 38.4 {
		t.Error("float accessor failed")
	}
	// ints widen to float for numeric comparison
	if v, ok := p.Float("i"); !ok || v != 42.0 {
		t.Error("expected int to widen to float")
	}
	if v, ok := p.String("s"); !ok || v != "male" {
		t.Error("string accessor failed")
	}
	if v, ok := p.String("d"); !ok || v != "2024-03-01" {
		t.Errorf("expected date as YYYY-MM-DD, got %q", v)
	}
	if v, ok := p.StringList("l"); !ok || len(v) != 2 {
		t.Error("string list accessor failed")
	}

	// kind mismatches report absence
	if _, ok := p.Bool("i"); ok {
		t.Error("expected bool lookup on int to miss")
	}
	if _, ok := p.Int("f"); ok {
		t.Error("expected int lookup on float to miss")
	}

	// unknown keys
	if p.Has("missing") {
		t.Error("Has should be false for unknown key")
	}
	if _, ok := p.Bool("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestProfile_Keys_InsertionOrder(t *testing.T) {
	p := NewProfile("p1")
	p.AddFeature(Feature{Key: "c", Value: BoolValue(true)})
	p.AddFeature(Feature{Key: "a", Value: BoolValue(true)})
	p.AddFeature(Feature{Key: "b", Value: BoolValue(true)})

	keys := p.Keys()
	want := []string{"c", "a", "b"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected keys %v, got %v", want, keys)
		}
	}
}

func TestProfile_Partitions(t *testing.T) {
	p := NewProfile("p1")
	p.AddFeature(Feature{Key: "finding", Value: BoolValue(true), ObjectivePositive: true, Abnormal: true})
	p.AddFeature(Feature{Key: "neg:finding", Value: BoolValue(true)})
	p.AddFeature(Feature{Key: "vital.hr", Value: IntValue(120)})

	if got := p.ObjectivePositives(); len(got) != 1 || got[0].Key != "finding" {
		t.Errorf("unexpected objective positives: %v", got)
	}
	if got := p.Abnormals(); len(got) != 1 || got[0].Key != "finding" {
		t.Errorf("unexpected abnormals: %v", got)
	}
}
