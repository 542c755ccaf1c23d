package experiment

import (
	"fmt"
	"testing"
)

func TestAssignDeterministic(t *testing.T) {
	variants := ControlTreatment
	first := Assign("merchant-42", "retry-backoff", "salt-1", variants)
	for i := 0; i < 100; i++ {
		if got := Assign("merchant-42", "retry-backoff", "salt-1", variants); got != first {
			t.Fatalf("assignment changed on call %d: %s -> %s", i, first, got)
		}
	}
}

func TestAssignEmptySubjectIsControl(t *testing.T) {
	if got := Assign("", "retry-backoff", "salt-1", ControlTreatment); got != DefaultVariant {
		t.Errorf("empty subject = %s, want %s", got, DefaultVariant)
	}
}

func TestAssignNoExperimentIsControl(t *testing.T) {
	if got := Assign("merchant-42", "", "salt-1", ControlTreatment); got != DefaultVariant {
		t.Errorf("no experiment = %s, want %s", got, DefaultVariant)
	}
}

func TestAssignSaltChangesBuckets(t *testing.T) {
	// With enough subjects, two salts must not produce identical assignments.
	same := 0
	const n = 1000
	for i := 0; i < n; i++ {
		subject := fmt.Sprintf("merchant-%d", i)
		a := Assign(subject, "exp", "salt-a", ControlTreatment)
		b := Assign(subject, "exp", "salt-b", ControlTreatment)
		if a == b {
			same++
		}
	}
	if same == n {
		t.Error("all assignments identical across different salts")
	}
}

func TestAssignDistribution(t *testing.T) {
	counts := map[string]int{}
	const n = 10000
	for i := 0; i < n; i++ {
		v := Assign(fmt.Sprintf("subject-%d", i), "exp", "salt", ControlTreatment)
		counts[v]++
	}
	// 50/50 split, generous tolerance.
	for _, name := range []string{"control", "treatment"} {
		share := float64(counts[name]) / n
		if share < 0.45 || share > 0.55 {
			t.Errorf("variant %s share = %.3f, want ~0.50", name, share)
		}
	}
}

func TestBucketRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		b := Bucket(fmt.Sprintf("subject-%d", i), "exp", "salt")
		if b < 0 || b > 99 {
			t.Fatalf("bucket %d out of range", b)
		}
	}
	if b := Bucket("", "exp", "salt"); b != -1 {
		t.Errorf("empty subject bucket = %d, want -1", b)
	}
}

func TestValidateVariants(t *testing.T) {
	tests := []struct {
		name     string
		variants []Variant
		wantErr  bool
	}{
		{"control/treatment", ControlTreatment, false},
		{"three way", []Variant{{"a", 20}, {"b", 30}, {"c", 50}}, false},
		{"under 100", []Variant{{"a", 40}, {"b", 40}}, true},
		{"over 100", []Variant{{"a", 60}, {"b", 60}}, true},
		{"duplicate name", []Variant{{"a", 50}, {"a", 50}}, true},
		{"empty name", []Variant{{"", 100}}, true},
		{"none configured", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVariants(tt.variants)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVariants = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
