// Package report aggregates per-case results into a run report.
package report

import (
	"sort"

	"offlinejudge/internal/judge/model"
)

// Builder collects results for a run of a fixed number of cases. Results may
// be added in any order; Build orders them by case ID.
type Builder struct {
	total   int
	results []model.ExecutionResult
}

// NewBuilder returns a Builder for total cases.
func NewBuilder(total int) *Builder {
	return &Builder{total: total, results: make([]model.ExecutionResult, 0, total)}
}

// Add records one result.
func (b *Builder) Add(r model.ExecutionResult) {
	b.results = append(b.results, r)
}

// Len returns the number of recorded results.
func (b *Builder) Len() int {
	return len(b.results)
}

// Build returns the report. total_count is the number of cases in the suite,
// so a partially filled builder never reports all_passed.
func (b *Builder) Build() *model.Report {
	return Build(b.total, b.results)
}

// Build aggregates results into a Report.
func Build(total int, results []model.ExecutionResult) *model.Report {
	ordered := make([]model.ExecutionResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	passed := 0
	for _, r := range ordered {
		if r.Passed {
			passed++
		}
	}
	if total < len(ordered) {
		total = len(ordered)
	}
	return &model.Report{
		AllPassed:   passed == total,
		PassedCount: passed,
		TotalCount:  total,
		Results:     ordered,
	}
}
