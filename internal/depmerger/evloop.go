// Package depmerger processes GitHub webhook events and runs
// reconciliation sweeps.
// Pull requests referenced by events are evaluated by the merge pipeline.
package depmerger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/comment"
	"github.com/simplesurance/depmerger/internal/logfields"
	"github.com/simplesurance/depmerger/internal/merge"
	"github.com/simplesurance/depmerger/internal/provider/github"
	"github.com/simplesurance/depmerger/internal/reconcile"
)

const DefEventChannelBufferSize = 512

const loggerName = "event-loop"

const (
	checkSuiteActionCompleted = "completed"
	pullRequestActionOpened   = "opened"
)

// GithubClient is the GitHub API client of an installation.
type GithubClient interface {
	merge.GithubClient
	comment.GithubClient
}

// Installations returns API clients for GitHub App installations.
type Installations interface {
	InstallationClient(ctx context.Context, installationID int64) (GithubClient, error)
}

// InstallationClientFunc is an adapter to use a function as Installations.
type InstallationClientFunc func(ctx context.Context, installationID int64) (GithubClient, error)

func (f InstallationClientFunc) InstallationClient(ctx context.Context, installationID int64) (GithubClient, error) {
	return f(ctx, installationID)
}

// Sweeper runs reconciliation sweeps.
// It is implemented by reconcile.Reconciler.
type Sweeper interface {
	Sweep(ctx context.Context) (*reconcile.SweepReport, error)
}

// Retryer runs a function repeatedly while it fails with a retryable error.
type Retryer interface {
	Run(context.Context, func(context.Context) error, []zap.Field) error
	Stop()
}

// EvLoop receives events and evaluates the pull requests they refer to.
// Events are processed asynchronously in go-routines.
type EvLoop struct {
	ch     chan *github.Event
	logger *zap.Logger

	installations Installations
	evaluator     reconcile.Evaluator
	retryer       Retryer

	filter    *Filter
	commenter *comment.Commenter

	sweeper           Sweeper
	reconcileInterval time.Duration
	clock             clock.Clock

	ctx       context.Context
	cancelCtx context.CancelFunc

	wg            sync.WaitGroup
	actionDeferFn func()
}

type Option func(*EvLoop)

// WithActionRoutineDeferFunc sets a function to be run when a go-routine
// that processes an event or runs a sweep returns.
// It can be used to set a panic handler.
func WithActionRoutineDeferFunc(fn func()) Option {
	return func(e *EvLoop) {
		e.actionDeferFn = fn
	}
}

// WithFilter sets a filter, events that do not match it are ignored.
func WithFilter(f *Filter) Option {
	return func(e *EvLoop) {
		e.filter = f
	}
}

// WithCommenter enables commenting on opened pull requests.
func WithCommenter(c *comment.Commenter) Option {
	return func(e *EvLoop) {
		e.commenter = c
	}
}

// WithReconciliation enables reconciliation sweeps.
// A sweep is run when the event loop is started. If interval is >0,
// sweeps are additionally run periodically.
func WithReconciliation(sweeper Sweeper, interval time.Duration) Option {
	return func(e *EvLoop) {
		e.sweeper = sweeper
		e.reconcileInterval = interval
	}
}

func WithClock(clk clock.Clock) Option {
	return func(e *EvLoop) {
		e.clock = clk
	}
}

func NewEventLoop(
	installations Installations,
	evaluator reconcile.Evaluator,
	retryer Retryer,
	opts ...Option,
) *EvLoop {
	ctx, cancelFn := context.WithCancel(context.Background())

	evl := EvLoop{
		ch:            make(chan *github.Event, DefEventChannelBufferSize),
		logger:        zap.L().Named(loggerName),
		installations: installations,
		evaluator:     evaluator,
		retryer:       retryer,
		clock:         clock.New(),
		ctx:           ctx,
		cancelCtx:     cancelFn,
	}

	for _, opt := range opts {
		opt(&evl)
	}

	return &evl
}

// C returns the event channel.
// Events sent to this channel will be processed.
// The channel is closed when Stop() is called.
func (e *EvLoop) C() chan<- *github.Event {
	return e.ch
}

// Start processes events until the event channel is closed.
// If reconciliation is enabled, the first sweep is scheduled before.
func (e *EvLoop) Start() {
	e.logger.Info("ready to process events", logfields.Event("eventloop_started"))

	if e.sweeper != nil {
		e.Reconcile()

		if e.reconcileInterval > 0 {
			e.startPeriodicReconciliation()
		}
	}

	for providerEv := range e.ch {
		ev := fromProviderEvent(providerEv)
		logger := e.logger.With(ev.LogFields...)

		logger.Debug("event received", logfields.Event("event_received"))

		if e.filter != nil {
			match, err := e.filter.Match(e.ctx, ev)
			if err != nil {
				logger.Error(
					"matching event filter failed, event is ignored",
					logfields.Event("event_filter_failed"),
					zap.Error(err),
				)
				continue
			}

			if match != Match {
				logger.Debug(
					"event does not match filter, event is ignored",
					logfields.Event("event_filter_mismatch"),
					zap.Stringer("match_result", match),
				)
				continue
			}
		}

		e.scheduleEvent(ev)
	}

	e.logger.Info(
		"event loop terminated, event channel was closed",
		logfields.Event("eventloop_terminated"),
	)
}

func (e *EvLoop) scheduleEvent(ev *Event) {
	e.goRoutine(func() {
		switch ev.Type {
		case github.EventTypeCheckSuite:
			e.processCheckSuiteEvent(e.ctx, ev)
		case github.EventTypePullRequest:
			e.processPullRequestEvent(e.ctx, ev)
		default:
			e.logger.Debug(
				"ignoring event of unsupported type",
				append(ev.LogFields, logfields.Event("event_ignored"))...,
			)
		}
	})
}

func (e *EvLoop) goRoutine(fn func()) {
	e.wg.Add(1)

	go func() {
		if e.actionDeferFn != nil {
			defer e.actionDeferFn()
		}

		defer e.wg.Done()

		fn()
	}()
}

func (e *EvLoop) installationClient(ctx context.Context, ev *Event) (GithubClient, error) {
	var clt GithubClient

	err := e.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		clt, err = e.installations.InstallationClient(ctx, ev.InstallationID)
		return err
	}, append(ev.LogFields, logfields.Event("github_installation_authentication")))
	if err != nil {
		return nil, err
	}

	return clt, nil
}

// processCheckSuiteEvent evaluates the pull requests of a completed check
// suite sequentially. The evaluations require the pull requests to still
// have the head commit of the check suite.
func (e *EvLoop) processCheckSuiteEvent(ctx context.Context, ev *Event) {
	logger := e.logger.With(ev.LogFields...)

	if ev.Action != checkSuiteActionCompleted {
		logger.Debug("ignoring check suite event", logfields.Event("event_ignored"))
		return
	}

	if len(ev.PullRequests) == 0 {
		logger.Debug(
			"ignoring check suite event, it does not reference pull requests",
			logfields.Event("event_ignored"),
		)
		return
	}

	clt, err := e.installationClient(ctx, ev)
	if err != nil {
		logger.Error(
			"authenticating as installation failed, event is not processed",
			logfields.Event("event_processing_failed"),
			zap.Error(err),
		)
		return
	}

	for _, prNumber := range ev.PullRequests {
		if ctx.Err() != nil {
			return
		}

		e.evaluator.Evaluate(ctx, clt, &merge.PullRequestRef{
			Owner:           ev.RepositoryOwner,
			Repository:      ev.Repository,
			Number:          prNumber,
			ExpectedHeadSHA: ev.HeadSHA,
		})
	}
}

func (e *EvLoop) processPullRequestEvent(ctx context.Context, ev *Event) {
	logger := e.logger.With(ev.LogFields...)

	if e.commenter == nil || ev.Action != pullRequestActionOpened || len(ev.PullRequests) == 0 {
		logger.Debug("ignoring pull request event", logfields.Event("event_ignored"))
		return
	}

	clt, err := e.installationClient(ctx, ev)
	if err != nil {
		logger.Error(
			"authenticating as installation failed, event is not processed",
			logfields.Event("event_processing_failed"),
			zap.Error(err),
		)
		return
	}

	err = e.retryer.Run(ctx, func(ctx context.Context) error {
		return e.commenter.Run(ctx, clt, ev.RepositoryOwner, ev.Repository, ev.PullRequests[0], ev.PullRequestAuthor)
	}, append(ev.LogFields, logfields.Event("github_comment_pull_request")))
	if err != nil {
		logger.Error(
			"commenting on pull request failed",
			logfields.Event("pull_request_comment_failed"),
			zap.Error(err),
		)
	}
}

// Reconcile runs a reconciliation sweep asynchronously.
// If a sweep is already running, no additional sweep is run.
func (e *EvLoop) Reconcile() {
	if e.sweeper == nil {
		return
	}

	e.goRoutine(func() {
		_, err := e.sweeper.Sweep(e.ctx)
		if err == nil {
			return
		}

		if errors.Is(err, reconcile.ErrSweepRunning) {
			e.logger.Info(
				"skipping reconciliation sweep, previous one is still running",
				logfields.Event("reconciliation_sweep_skipped"),
			)
			return
		}

		if errors.Is(err, context.Canceled) {
			e.logger.Debug(
				"reconciliation sweep was cancelled",
				logfields.Event("reconciliation_sweep_cancelled"),
			)
			return
		}

		e.logger.Error(
			"reconciliation sweep failed",
			logfields.Event("reconciliation_sweep_failed"),
			zap.Error(err),
		)
	})
}

func (e *EvLoop) startPeriodicReconciliation() {
	e.goRoutine(func() {
		ticker := e.clock.Ticker(e.reconcileInterval)
		defer ticker.Stop()

		e.logger.Info(
			"periodic reconciliation enabled",
			logfields.Event("reconciliation_scheduled"),
			zap.Duration("reconcile_interval", e.reconcileInterval),
		)

		for {
			select {
			case <-ticker.C:
				e.Reconcile()
			case <-e.ctx.Done():
				return
			}
		}
	})
}

// Stop stops the event loop and waits until all scheduled go-routines
// terminated.
// Running evaluations are cancelled.
// The event channel (Evloop.C()) will be closed.
func (e *EvLoop) Stop() {
	e.logger.Debug("event loop terminating", logfields.Event("eventloop_terminating"))
	close(e.ch)

	e.cancelCtx()
	e.retryer.Stop()

	e.logger.Debug(
		"waiting for scheduled go-routines to terminate",
		logfields.Event("eventloop_terminating"),
	)
	e.wg.Wait()

	e.logger.Info("event loop terminated", logfields.Event("eventloop_terminated"))
}
