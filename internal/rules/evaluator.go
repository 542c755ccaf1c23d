package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/decision"
)

// ErrInvalidExpression is returned when an expression is not valid JSON Logic.
var ErrInvalidExpression = errors.New("invalid expression: not valid JSON Logic")

// ErrEmptyExpression is returned when an expression is empty or whitespace.
var ErrEmptyExpression = errors.New("invalid expression: empty or whitespace")

// EvaluationError means the evaluator itself failed on a loaded rule. Rules
// encode required business policy, so this is fatal for the request rather
// than something to skip past.
type EvaluationError struct {
	RuleID string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rule %s: evaluation failed: %v", e.RuleID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Document is the flat view of a decision context plus enrichment results
// that rule conditions are written against.
type Document map[string]any

// Match is a rule whose condition held for the document.
type Match struct {
	Rule Rule
}

// Evaluate applies every active rule of the given kind to the document and
// returns the matches in priority order (lowest Priority value first, rule id
// as a deterministic tie-break). For the same document and the same rule set
// the result is always identical: no randomness, no clock access.
func Evaluate(doc Document, ruleSet []Rule, kind decision.Kind) ([]Match, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &EvaluationError{Err: err}
	}

	var matches []Match
	for _, r := range ruleSet {
		if !r.Active || r.Kind != kind {
			continue
		}
		ok, err := apply(r.Condition, data)
		if err != nil {
			return nil, &EvaluationError{RuleID: r.ID, Err: err}
		}
		if ok {
			matches = append(matches, Match{Rule: r})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Rule.Priority != matches[j].Rule.Priority {
			return matches[i].Rule.Priority < matches[j].Rule.Priority
		}
		return matches[i].Rule.ID < matches[j].Rule.ID
	})
	return matches, nil
}

// apply evaluates one JSON Logic condition against the serialized document.
// An empty condition matches unconditionally (a rule that always applies at
// its priority, e.g. a kill switch).
func apply(condition string, data []byte) (bool, error) {
	if strings.TrimSpace(condition) == "" {
		return true, nil
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(condition), bytes.NewReader(data), &out); err != nil {
		return false, err
	}

	var result any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		return false, err
	}
	return isTruthy(result), nil
}

// ValidateExpression checks that an expression is valid JSON Logic. An empty
// expression is allowed (always-match rule).
func ValidateExpression(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}

	var rule any
	if err := json.Unmarshal([]byte(expression), &rule); err != nil {
		return ErrInvalidExpression
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(expression), strings.NewReader("{}"), &out); err != nil {
		return ErrInvalidExpression
	}
	return nil
}

// isTruthy follows JSON Logic truthiness: non-zero numbers, non-empty
// strings, non-empty arrays/objects, and true.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
