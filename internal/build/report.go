package build

import (
	"time"

	"git.home.luguber.info/inful/docfold/internal/fold"
	"git.home.luguber.info/inful/docfold/internal/markdown"
	"git.home.luguber.info/inful/docfold/internal/metrics"
)

// Result is the outcome of compiling one source.
type Result struct {
	Path     string
	Slug     string
	Status   metrics.ResultLabel
	Err      error
	Warnings []markdown.Warning
	Stats    fold.Stats
	Duration time.Duration
}

// Report summarizes a build.
type Report struct {
	BuildID  string
	Results  []Result
	Duration time.Duration
	Outcome  metrics.BuildOutcomeLabel
	// Removed lists slugs deleted because their source disappeared.
	Removed []string
	// Collected counts objects removed by garbage collection.
	Collected int
}

// Count returns how many results have status.
func (r *Report) Count(status metrics.ResultLabel) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Failures returns the failed results.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == metrics.ResultFailed {
			out = append(out, res)
		}
	}
	return out
}

func (r *Report) finish(canceled bool) {
	failed := r.Count(metrics.ResultFailed)
	switch {
	case canceled:
		r.Outcome = metrics.BuildOutcomeCanceled
	case failed == 0:
		r.Outcome = metrics.BuildOutcomeSuccess
	case failed == len(r.Results):
		r.Outcome = metrics.BuildOutcomeFailed
	default:
		r.Outcome = metrics.BuildOutcomePartial
	}
}
