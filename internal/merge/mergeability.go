package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff"
	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"
)

// Mergeability is the mergeable state of a pull request.
// GitHub computes it asynchronously, directly after a change of the pull
// request or its base branch it is often not known yet.
type Mergeability int

const (
	MergeabilityUnknown Mergeability = iota
	Mergeable
	NotMergeable
)

var mergeabilityStrings = [...]string{
	MergeabilityUnknown: "unknown",
	Mergeable:           "mergeable",
	NotMergeable:        "not-mergeable",
}

func (m Mergeability) String() string {
	if m < 0 || int(m) >= len(mergeabilityStrings) {
		return fmt.Sprintf("unsupported mergeability: %d", m)
	}

	return mergeabilityStrings[m]
}

// MergeabilityOf returns the mergeable state of pr.
func MergeabilityOf(pr *github.PullRequest) Mergeability {
	if pr == nil || pr.Mergeable == nil {
		return MergeabilityUnknown
	}

	if *pr.Mergeable {
		return Mergeable
	}

	return NotMergeable
}

// MergeabilityResolver resolves an unknown mergeable state of a pull
// request by fetching the pull request repeatedly.
type MergeabilityResolver struct {
	logger     *zap.Logger
	clock      clock.Clock
	interval   time.Duration
	maxRetries uint64
}

// NewMergeabilityResolver returns a resolver that waits interval between
// fetches and fetches the pull request at most maxRetries times.
// If maxRetries is 0 the pull request is not fetched again.
func NewMergeabilityResolver(clk clock.Clock, interval time.Duration, maxRetries uint) *MergeabilityResolver {
	return &MergeabilityResolver{
		logger:     zap.L().Named(loggerName).Named("mergeability_resolver"),
		clock:      clk,
		interval:   interval,
		maxRetries: uint64(maxRetries),
	}
}

// Resolve returns if pr is mergeable.
// If the mergeable state of pr is unknown, the pull request is fetched
// again after the configured interval until the state is known or the
// maximum number of retries is reached. A state that is still unknown then
// is treated as not mergeable.
// The last fetched version of the pull request is returned.
// If the context is cancelled while waiting, the context error is returned.
func (r *MergeabilityResolver) Resolve(ctx context.Context, clt GithubClient, ref *PullRequestRef, pr *github.PullRequest) (bool, *github.PullRequest, error) {
	var bo backoff.BackOff = &backoff.StopBackOff{}
	// backoff.WithMaxRetries does not limit the number of retries when
	// max is 0
	if r.maxRetries > 0 {
		bo = backoff.WithMaxRetries(backoff.NewConstantBackOff(r.interval), r.maxRetries)
	}
	reads := 1

	for {
		switch MergeabilityOf(pr) {
		case Mergeable:
			return true, pr, nil
		case NotMergeable:
			return false, pr, nil
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			r.logger.Warn(
				"mergeable state of pull request is still unknown, giving up",
				append(
					ref.LogFields(),
					logEventSafetyFallback,
					zap.Int("pull_request_reads", reads),
				)...,
			)

			return false, pr, nil
		}

		r.logger.Debug(
			"mergeable state of pull request is unknown, retrying",
			append(
				ref.LogFields(),
				zap.Duration("retry_in", wait),
				zap.Int("pull_request_reads", reads),
			)...,
		)

		select {
		case <-ctx.Done():
			return false, pr, ctx.Err()
		case <-r.clock.After(wait):
		}

		var err error
		pr, err = clt.GetPullRequest(ctx, ref.Owner, ref.Repository, ref.Number)
		if err != nil {
			return false, nil, fmt.Errorf("fetching pull request failed: %w", err)
		}

		reads++
	}
}
