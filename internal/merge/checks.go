package merge

import (
	"context"
	"fmt"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/githubclt"
	"github.com/simplesurance/depmerger/internal/logfields"
)

const (
	checkRunStatusCompleted   = "completed"
	checkRunConclusionSuccess = "success"
	checkRunConclusionSkipped = "skipped"
)

// Verdict is the aggregated result of all checks of a commit.
type Verdict int

const (
	// VerdictNotReady means that checks are missing, still running or
	// their result can not be trusted.
	VerdictNotReady Verdict = iota
	VerdictFailed
	VerdictPassed
)

var verdictStrings = [...]string{
	VerdictNotReady: "not-ready",
	VerdictFailed:   "failed",
	VerdictPassed:   "passed",
}

func (v Verdict) String() string {
	if v < 0 || int(v) >= len(verdictStrings) {
		return fmt.Sprintf("unsupported verdict: %d", v)
	}

	return verdictStrings[v]
}

// CheckRunState is the state of a single check run.
type CheckRunState struct {
	Name       string
	Status     string
	Conclusion string
}

// CheckVerdict is the result of aggregating the checks of a commit.
type CheckVerdict struct {
	Verdict Verdict
	// Total is the number of check runs GitHub reported for the commit.
	Total int
	Runs  []CheckRunState
	// Reason describes why the verdict is not VerdictPassed.
	Reason string
	// Incomplete is true when GitHub returned fewer check runs than
	// it reported to exist.
	Incomplete bool
}

func (v *CheckVerdict) LogFields() []zap.Field {
	return []zap.Field{
		zap.Stringer("check_verdict", v.Verdict),
		zap.Int("check_runs_total", v.Total),
		zap.Int("check_runs_received", len(v.Runs)),
	}
}

// EvaluateCheckRuns reduces check runs to a single verdict.
//
// The verdict is VerdictPassed when at least 1 run concluded successful and
// all other runs concluded successful or were skipped.
// It is VerdictFailed if a completed run has any other conclusion.
// In all other cases, including when no runs exist, fewer runs than
// reported were received or all runs were skipped, it is VerdictNotReady.
func EvaluateCheckRuns(runs *githubclt.CheckRuns) *CheckVerdict {
	result := CheckVerdict{
		Verdict: VerdictNotReady,
		Total:   runs.TotalCount,
		Runs:    toCheckRunStates(runs.CheckRuns),
	}

	if len(result.Runs) == 0 {
		result.Reason = "no check runs exist"
		return &result
	}

	if len(result.Runs) < result.Total {
		result.Incomplete = true
		result.Reason = fmt.Sprintf(
			"received fewer check runs than exist (%d < %d)",
			len(result.Runs), result.Total,
		)
		return &result
	}

	var successful int
	var pending *CheckRunState

	for i, run := range result.Runs {
		if run.Status != checkRunStatusCompleted {
			if pending == nil {
				pending = &result.Runs[i]
			}
			continue
		}

		switch run.Conclusion {
		case checkRunConclusionSuccess:
			successful++

		case checkRunConclusionSkipped:

		default:
			result.Verdict = VerdictFailed
			result.Reason = fmt.Sprintf("check run %q concluded %s", run.Name, run.Conclusion)
			return &result
		}
	}

	if pending != nil {
		result.Reason = fmt.Sprintf("check run %q is %s", pending.Name, pending.Status)
		return &result
	}

	if successful == 0 {
		result.Reason = "all check runs were skipped"
		return &result
	}

	result.Verdict = VerdictPassed
	return &result
}

func toCheckRunStates(runs []*github.CheckRun) []CheckRunState {
	result := make([]CheckRunState, 0, len(runs))

	for _, run := range runs {
		result = append(result, CheckRunState{
			Name:       run.GetName(),
			Status:     run.GetStatus(),
			Conclusion: run.GetConclusion(),
		})
	}

	return result
}

// EvaluateCommitStatus combines a check run verdict with the combined
// commit status of the same commit.
// The verdict can only be downgraded, a failed or pending commit status
// turns a passed verdict into a failed or not-ready one.
// A commit without statuses does not change the verdict.
func EvaluateCommitStatus(verdict *CheckVerdict, status *githubclt.CommitStatus) *CheckVerdict {
	if verdict.Verdict != VerdictPassed || status == nil {
		return verdict
	}

	result := *verdict

	switch status.Status {
	case githubclt.CIStatusFailure:
		result.Verdict = VerdictFailed
		result.Reason = fmt.Sprintf("commit status %q failed", firstContextWithStatus(status, githubclt.CIStatusFailure))

	case githubclt.CIStatusPending:
		result.Verdict = VerdictNotReady
		result.Reason = fmt.Sprintf("commit status %q is pending", firstContextWithStatus(status, githubclt.CIStatusPending))
	}

	return &result
}

func firstContextWithStatus(status *githubclt.CommitStatus, ciStatus githubclt.CIStatus) string {
	for _, c := range status.Contexts {
		if c.Status == ciStatus {
			return c.Context
		}
	}

	return ""
}

// StatusAggregator retrieves the check runs and commit statuses of a commit
// and reduces them to a CheckVerdict.
type StatusAggregator struct {
	logger *zap.Logger
}

func NewStatusAggregator() *StatusAggregator {
	return &StatusAggregator{
		logger: zap.L().Named(loggerName).Named("status_aggregator"),
	}
}

// Aggregate returns the verdict for the checks of ref.
// Errors returned by clt are wrapped and returned, nothing is retried.
func (a *StatusAggregator) Aggregate(ctx context.Context, clt GithubClient, owner, repo, ref string) (*CheckVerdict, error) {
	runs, err := clt.ListCheckRuns(ctx, owner, repo, ref)
	if err != nil {
		return nil, fmt.Errorf("listing check runs failed: %w", err)
	}

	verdict := EvaluateCheckRuns(runs)

	logger := a.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Commit(ref),
	)

	if logger.Core().Enabled(zap.DebugLevel) {
		for _, run := range verdict.Runs {
			logger.Debug(
				"check run state",
				zap.String("check_run", run.Name),
				zap.String("check_run_status", run.Status),
				zap.String("check_run_conclusion", run.Conclusion),
			)
		}
	}

	if verdict.Verdict != VerdictPassed {
		return verdict, nil
	}

	status, err := clt.CommitStatus(ctx, owner, repo, ref)
	if err != nil {
		return nil, fmt.Errorf("retrieving commit status failed: %w", err)
	}

	return EvaluateCommitStatus(verdict, status), nil
}
