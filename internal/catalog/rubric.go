package catalog

import (
	"strings"
	"unicode/utf8"
)

// Rubric decides whether a final coding submission counts as correct.
// Implementations must be deterministic.
type Rubric interface {
	Grade(solution string) bool
}

// RubricFunc adapts a plain function to Rubric.
type RubricFunc func(solution string) bool

func (f RubricFunc) Grade(solution string) bool {
	return f(solution)
}

// PatternRubric is the substring/length heuristic used by the default catalog.
//
// A solution passes when every AllOf substring is present, no NoneOf substring
// is present, and either an AnyOf substring is present or the solution is at
// least MinLength runes long. An unset AnyOf or MinLength drops out of that
// last alternative; with both unset it always holds.
type PatternRubric struct {
	AllOf     []string `yaml:"all_of"`
	NoneOf    []string `yaml:"none_of"`
	AnyOf     []string `yaml:"any_of"`
	MinLength int      `yaml:"min_length"`
}

func (r PatternRubric) Grade(solution string) bool {
	for _, s := range r.AllOf {
		if !strings.Contains(solution, s) {
			return false
		}
	}
	for _, s := range r.NoneOf {
		if strings.Contains(solution, s) {
			return false
		}
	}
	if len(r.AnyOf) == 0 && r.MinLength <= 0 {
		return true
	}
	for _, s := range r.AnyOf {
		if strings.Contains(solution, s) {
			return true
		}
	}
	return r.MinLength > 0 && utf8.RuneCountInString(solution) >= r.MinLength
}
