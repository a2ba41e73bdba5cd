package merge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
)

// Outcome is the final result of evaluating a pull request.
type Outcome int

const (
	// OutcomeSkipped means a gate did not pass and the pull request was
	// not merged.
	OutcomeSkipped Outcome = iota
	OutcomeMerged
	// OutcomeFailed means an operation failed while evaluating or merging
	// the pull request.
	OutcomeFailed
)

var outcomeStrings = [...]string{
	OutcomeSkipped: "skipped",
	OutcomeMerged:  "merged",
	OutcomeFailed:  "failed",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeStrings) {
		return fmt.Sprintf("unsupported outcome: %d", o)
	}

	return outcomeStrings[o]
}

// Gate is a step of the merge pipeline.
type Gate int

const (
	GateNone Gate = iota
	GatePullRequest
	GateAuthor
	GateOpen
	GateHeadCommit
	GateChecks
	GateMergeable
	GateCommitAuthors
	GateMerge
)

var gateStrings = [...]string{
	GateNone:          "none",
	GatePullRequest:   "pull_request",
	GateAuthor:        "author",
	GateOpen:          "open",
	GateHeadCommit:    "head_commit",
	GateChecks:        "checks",
	GateMergeable:     "mergeable",
	GateCommitAuthors: "commit_authors",
	GateMerge:         "merge",
}

func (g Gate) String() string {
	if g < 0 || int(g) >= len(gateStrings) {
		return fmt.Sprintf("unsupported gate: %d", g)
	}

	return gateStrings[g]
}

// Result is the result of evaluating a single pull request.
type Result struct {
	PullRequest PullRequestRef
	Outcome     Outcome
	// Gate is the gate that stopped the evaluation. It is GateNone when
	// the pull request was merged.
	Gate   Gate
	Reason string
	// SafetyFallback is true when the pull request was skipped because
	// the data retrieved from GitHub was incomplete or inconsistent.
	SafetyFallback bool
	// HeadSHA is the head commit of the pull request that was evaluated.
	HeadSHA string
	Title   string
	URL     string
	DryRun  bool
	Err     error
}

func (r *Result) LogFields() []zap.Field {
	result := append(
		r.PullRequest.LogFields(),
		zap.Stringer("merge_outcome", r.Outcome),
	)

	if r.Gate != GateNone {
		result = append(result, logFieldGate(r.Gate))
	}

	if r.Reason != "" {
		result = append(result, logFieldReason(r.Reason))
	}

	if r.HeadSHA != "" && r.HeadSHA != r.PullRequest.ExpectedHeadSHA {
		result = append(result, zap.String("github.head_commit", r.HeadSHA))
	}

	return result
}

// BatchReport summarizes the evaluation of multiple pull requests.
type BatchReport struct {
	Results []*Result
	Merged  uint
	Skipped uint
	Failed  uint
}

// Add adds result to the report.
func (r *BatchReport) Add(result *Result) {
	r.Results = append(r.Results, result)

	switch result.Outcome {
	case OutcomeMerged:
		r.Merged++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}

func (r *BatchReport) LogFields() []zap.Field {
	return []zap.Field{
		zap.Int("pull_requests.evaluated", len(r.Results)),
		zap.Uint("pull_requests.merged", r.Merged),
		zap.Uint("pull_requests.skipped", r.Skipped),
		zap.Uint("pull_requests.failed", r.Failed),
		logfields.Event("pull_requests_evaluated"),
	}
}
