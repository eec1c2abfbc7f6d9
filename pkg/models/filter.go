package models

import "strings"

// FilterSource identifies which stage of the expansion chain produced a filter.
type FilterSource string

const (
	FilterSourceRule     FilterSource = "rule"
	FilterSourceCache    FilterSource = "cache"
	FilterSourceModel    FilterSource = "model"
	FilterSourceFallback FilterSource = "fallback"
)

// StructuredFilter is the resolved include/exclude/boost representation of a
// user query. BoostTerms are ordered: the first term carries the highest
// ranking weight.
type StructuredFilter struct {
	MustInclude []string     `json:"must_include"`
	MustExclude []string     `json:"must_exclude"`
	Related     []string     `json:"related"`
	BoostTerms  []string     `json:"boost_terms"`
	Confidence  float64      `json:"confidence"`
	Source      FilterSource `json:"source"`
}

// IsUsable reports whether the filter confidence clears the threshold for
// serving results without consulting a later expansion stage.
func (f *StructuredFilter) IsUsable(threshold float64) bool {
	return f != nil && f.Confidence >= threshold
}

// NormalizeQuery lowercases and collapses whitespace so cache keys and
// dictionary lookups are stable across input variants.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
