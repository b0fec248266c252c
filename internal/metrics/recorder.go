package metrics

import "time"

// ResultLabel enumerates per-document compile outcomes.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFailed  ResultLabel = "failed"
	// ResultSkipped documents were unchanged since the stored fingerprint.
	ResultSkipped ResultLabel = "skipped"
)

// BuildOutcomeLabel enumerates whole-build outcomes.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess  BuildOutcomeLabel = "success"
	BuildOutcomePartial  BuildOutcomeLabel = "partial"
	BuildOutcomeFailed   BuildOutcomeLabel = "failed"
	BuildOutcomeCanceled BuildOutcomeLabel = "canceled"
)

// NodeCounts summarizes one compiled document.
type NodeCounts struct {
	Folded  int
	Partial int
	// Keep counts keep nodes by kind.
	Keep map[string]int
}

// Recorder defines observability hooks for compilation. Implementations may
// forward to Prometheus; NoopRecorder is the default.
type Recorder interface {
	ObserveDocumentDuration(d time.Duration)
	IncDocumentResult(result ResultLabel)
	AddNodes(c NodeCounts)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	SetWorkers(n int)
	IncRetry(operation string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveDocumentDuration(time.Duration)    {}
func (NoopRecorder) IncDocumentResult(ResultLabel)            {}
func (NoopRecorder) AddNodes(NodeCounts)                      {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)       {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)        {}
func (NoopRecorder) SetWorkers(int)                           {}
func (NoopRecorder) IncRetry(string)                          {}
