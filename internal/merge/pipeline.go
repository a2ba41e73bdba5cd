package merge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
)

const loggerName = "merge"

const (
	// DefAuthor is the login of the dependabot GitHub App.
	DefAuthor      = "dependabot[bot]"
	DefMergeMethod = "squash"

	DefMergeablePollInterval = 10 * time.Second
	DefMergeableMaxRetries   = 4
)

// MergeHook is called after a pull request was merged.
type MergeHook func(context.Context, *Result)

// Pipeline evaluates pull requests and merges them when they are ready.
type Pipeline struct {
	logger *zap.Logger

	author      string
	mergeMethod string
	dryRun      bool
	mergeHooks  []MergeHook

	clock        clock.Clock
	pollInterval time.Duration
	pollRetries  uint

	aggregator *StatusAggregator
	resolver   *MergeabilityResolver
}

type Option func(*Pipeline)

// WithAuthor sets the login that a pull request and all of its commits must
// be authored by. The default is DefAuthor.
func WithAuthor(login string) Option {
	return func(p *Pipeline) {
		p.author = login
	}
}

// WithMergeMethod sets the method that is used to merge pull requests
// ("merge", "squash" or "rebase"). The default is DefMergeMethod.
func WithMergeMethod(method string) Option {
	return func(p *Pipeline) {
		p.mergeMethod = method
	}
}

// WithMergeabilityPolling configures how often and in which interval a pull
// request is fetched when its mergeable state is unknown.
func WithMergeabilityPolling(interval time.Duration, maxRetries uint) Option {
	return func(p *Pipeline) {
		p.pollInterval = interval
		p.pollRetries = maxRetries
	}
}

func WithClock(clk clock.Clock) Option {
	return func(p *Pipeline) {
		p.clock = clk
	}
}

// WithDryRun simulates merging pull requests.
func WithDryRun() Option {
	return func(p *Pipeline) {
		p.dryRun = true
	}
}

// WithMergeHook registers a function that is called after a pull request
// was merged.
func WithMergeHook(fn MergeHook) Option {
	return func(p *Pipeline) {
		p.mergeHooks = append(p.mergeHooks, fn)
	}
}

func NewPipeline(opts ...Option) *Pipeline {
	p := Pipeline{
		logger:       zap.L().Named(loggerName),
		author:       DefAuthor,
		mergeMethod:  DefMergeMethod,
		clock:        clock.New(),
		pollInterval: DefMergeablePollInterval,
		pollRetries:  DefMergeableMaxRetries,
		aggregator:   NewStatusAggregator(),
	}

	for _, opt := range opts {
		opt(&p)
	}

	p.resolver = NewMergeabilityResolver(p.clock, p.pollInterval, p.pollRetries)

	return &p
}

// Author returns the login pull requests must be authored by.
func (p *Pipeline) Author() string {
	return p.author
}

// EvaluateAll evaluates the pull requests sequentially.
func (p *Pipeline) EvaluateAll(ctx context.Context, clt GithubClient, refs []*PullRequestRef) *BatchReport {
	var report BatchReport

	for _, ref := range refs {
		report.Add(p.Evaluate(ctx, clt, ref))
	}

	return &report
}

// Evaluate runs the pull request through all gates and merges it if all of
// them pass.
// Errors are not returned, they are logged and recorded in the Result.
func (p *Pipeline) Evaluate(ctx context.Context, clt GithubClient, ref *PullRequestRef) *Result {
	startTime := time.Now()

	if p.dryRun {
		clt = NewDryGithubClient(clt, p.logger)
	}

	result := p.evaluate(ctx, clt, ref)
	result.DryRun = p.dryRun

	metrics.EvaluationInc(result)
	metrics.EvaluationDurationObserve(time.Since(startTime))

	if result.Outcome == OutcomeMerged {
		for _, hook := range p.mergeHooks {
			hook(ctx, result)
		}
	}

	return result
}

func (p *Pipeline) evaluate(ctx context.Context, clt GithubClient, ref *PullRequestRef) *Result {
	logger := p.logger.With(ref.LogFields()...)
	result := Result{PullRequest: *ref}

	logger.Debug("evaluating pull request", logfields.Event("pull_request_evaluation_started"))

	pr, err := clt.GetPullRequest(ctx, ref.Owner, ref.Repository, ref.Number)
	if err != nil {
		return p.failed(logger, &result, GatePullRequest, fmt.Errorf("fetching pull request failed: %w", err))
	}

	result.HeadSHA = pr.GetHead().GetSHA()
	result.Title = pr.GetTitle()
	result.URL = pr.GetHTMLURL()

	if login := pr.GetUser().GetLogin(); !authoredBy(p.author, login) {
		return p.skipped(logger, &result, GateAuthor, fmt.Sprintf("pull request was opened by %q", login), false)
	}

	if reason, isOpen := isOpen(pr); !isOpen {
		return p.skipped(logger, &result, GateOpen, reason, false)
	}

	if ref.ExpectedHeadSHA != "" && result.HeadSHA != ref.ExpectedHeadSHA {
		return p.skipped(
			logger, &result, GateHeadCommit,
			fmt.Sprintf("head commit of pull request is %s", result.HeadSHA),
			false,
		)
	}

	if result.HeadSHA == "" {
		return p.skipped(logger, &result, GateHeadCommit, "head commit of pull request is unknown", true)
	}

	verdict, err := p.aggregator.Aggregate(ctx, clt, ref.Owner, ref.Repository, result.HeadSHA)
	if err != nil {
		return p.failed(logger, &result, GateChecks, err)
	}

	if verdict.Verdict != VerdictPassed {
		return p.skipped(
			logger.With(verdict.LogFields()...),
			&result, GateChecks,
			verdict.Reason,
			verdict.Incomplete,
		)
	}

	mergeable, pr, err := p.resolver.Resolve(ctx, clt, ref, pr)
	if err != nil {
		return p.failed(logger, &result, GateMergeable, err)
	}

	if !mergeable {
		mergeability := MergeabilityOf(pr)
		return p.skipped(
			logger, &result, GateMergeable,
			fmt.Sprintf("mergeable state is %s", mergeability),
			mergeability == MergeabilityUnknown,
		)
	}

	if headSHA := pr.GetHead().GetSHA(); headSHA != result.HeadSHA {
		return p.skipped(
			logger, &result, GateHeadCommit,
			fmt.Sprintf("head commit of pull request changed to %s", headSHA),
			false,
		)
	}

	commits, err := clt.ListCommits(ctx, ref.Owner, ref.Repository, ref.Number)
	if err != nil {
		return p.failed(logger, &result, GateCommitAuthors, fmt.Errorf("listing commits failed: %w", err))
	}

	authorship := ValidateAuthorship(p.author, pr, commits)
	if !authorship.Valid {
		return p.skipped(logger, &result, GateCommitAuthors, authorship.Reason, len(commits) == 0)
	}

	err = clt.MergePullRequest(ctx, ref.Owner, ref.Repository, ref.Number, result.HeadSHA, p.mergeMethod)
	if err != nil {
		return p.failed(logger, &result, GateMerge, fmt.Errorf("merging pull request failed: %w", err))
	}

	result.Outcome = OutcomeMerged
	logger.Info(
		"pull request merged",
		logEventMerged,
		logfields.Commit(result.HeadSHA),
		zap.String("merge_method", p.mergeMethod),
		zap.Bool("dry_run", p.dryRun),
	)

	return &result
}

func isOpen(pr *github.PullRequest) (string, bool) {
	if pr.GetMerged() {
		return "pull request is already merged", false
	}

	if state := pr.GetState(); state != "open" {
		return fmt.Sprintf("pull request is %s", state), false
	}

	return "", true
}

func (p *Pipeline) skipped(logger *zap.Logger, result *Result, gate Gate, reason string, safetyFallback bool) *Result {
	result.Outcome = OutcomeSkipped
	result.Gate = gate
	result.Reason = reason
	result.SafetyFallback = safetyFallback

	if safetyFallback {
		logger.Warn(
			"pull request is not merged, retrieved data is incomplete",
			logEventSafetyFallback,
			logFieldGate(gate),
			logFieldReason(reason),
		)

		return result
	}

	logger.Info(
		"pull request is not merged, merge condition not met",
		logEventGateFailed,
		logFieldGate(gate),
		logFieldReason(reason),
	)

	return result
}

func (p *Pipeline) failed(logger *zap.Logger, result *Result, gate Gate, err error) *Result {
	result.Outcome = OutcomeFailed
	result.Gate = gate
	result.Reason = err.Error()
	result.Err = err

	if errors.Is(err, context.Canceled) {
		logger.Info(
			"evaluating pull request was cancelled",
			logEventEvaluationFailed,
			logFieldGate(gate),
			zap.Error(err),
		)

		return result
	}

	logger.Error(
		"evaluating pull request failed",
		logEventEvaluationFailed,
		logFieldGate(gate),
		zap.Error(err),
	)

	return result
}
