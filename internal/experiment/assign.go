// Package experiment provides deterministic subject bucketing for A/B
// comparison of policy variants. It uses consistent hashing to assign a
// subject to a bucket (0-99) from the subject key, experiment name, and a
// secret salt. This ensures:
//   - Same subject always gets the same variant for an experiment (no
//     re-randomization across repeated decisions)
//   - Even distribution across buckets (xxHash)
//   - Assignment is a pure function: no I/O on the decision hot path
package experiment

import (
	"errors"

	"github.com/cespare/xxhash/v2"
)

// DefaultVariant is returned when no experiment applies or the subject has no
// bucketing key.
const DefaultVariant = "control"

// ErrInvalidWeights is returned when variant weights do not sum to 100.
var ErrInvalidWeights = errors.New("variant weights must sum to 100")

// Variant is one arm of an experiment.
type Variant struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"` // percentage weight (0-100)
}

// ControlTreatment is the standard 50/50 split used when an experiment is
// named on a request without an explicit variant configuration.
var ControlTreatment = []Variant{
	{Name: "control", Weight: 50},
	{Name: "treatment", Weight: 50},
}

// Bucket returns a deterministic bucket (0-99) for the given subject and
// experiment. The same subject + experiment + salt always returns the same
// bucket. Returns -1 when the subject key is empty (no bucketing context).
func Bucket(subjectKey, experiment, salt string) int {
	if subjectKey == "" {
		return -1
	}
	key := subjectKey + ":" + experiment + ":" + salt
	return int(xxhash.Sum64String(key) % 100)
}

// ValidateVariants checks that weights sum to exactly 100 and names are
// non-empty and unique. An empty slice is valid (no experiment configured).
func ValidateVariants(variants []Variant) error {
	if len(variants) == 0 {
		return nil
	}
	total := 0
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if v.Name == "" {
			return errors.New("variant name cannot be empty")
		}
		if seen[v.Name] {
			return errors.New("duplicate variant name: " + v.Name)
		}
		seen[v.Name] = true
		if v.Weight < 0 || v.Weight > 100 {
			return errors.New("variant weight must be between 0 and 100")
		}
		total += v.Weight
	}
	if total != 100 {
		return ErrInvalidWeights
	}
	return nil
}

// Assign maps a subject to a variant by walking cumulative weight ranges over
// the subject's bucket.
//
// Example: variants = [control:50, treatment:50]
//   - bucket 0-49  → control
//   - bucket 50-99 → treatment
//
// Returns DefaultVariant when no experiment is named, the subject key is
// empty, or the variant configuration is invalid.
func Assign(subjectKey, experiment, salt string, variants []Variant) string {
	if experiment == "" || len(variants) == 0 {
		return DefaultVariant
	}
	if err := ValidateVariants(variants); err != nil {
		return DefaultVariant
	}
	bucket := Bucket(subjectKey, experiment, salt)
	if bucket < 0 {
		return DefaultVariant
	}
	cumulative := 0
	for _, v := range variants {
		cumulative += v.Weight
		if bucket < cumulative {
			return v.Name
		}
	}
	return variants[len(variants)-1].Name
}
