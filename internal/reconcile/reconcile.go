// Package reconcile evaluates all open pull requests of all repositories
// the GitHub App is installed in.
//
// Webhook events can be missed, e.g. while depmerger is not running. A
// reconciliation sweep ensures that pull requests that became ready during
// that time are merged eventually.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
	"github.com/simplesurance/depmerger/internal/merge"
)

const loggerName = "reconciler"

// ErrSweepRunning is returned by Sweep when another sweep is in progress.
var ErrSweepRunning = errors.New("reconciliation sweep is already running")

// Evaluator evaluates and merges a single pull request.
// It is implemented by merge.Pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, clt merge.GithubClient, ref *merge.PullRequestRef) *merge.Result
}

// Retryer is an interface used for running GitHub API calls repeatedly if
// they fail with a temporary error.
type Retryer interface {
	Run(context.Context, func(context.Context) error, []zap.Field) error
}

// RepositoryScope is a repository together with the client of the
// installation it belongs to.
type RepositoryScope struct {
	Installation *github.Installation
	Client       InstallationClient
	Owner        string
	Repository   string
}

func (s *RepositoryScope) LogFields() []zap.Field {
	return append(
		installationLogFields(s.Installation),
		logfields.RepositoryOwner(s.Owner),
		logfields.Repository(s.Repository),
	)
}

// Reconciler runs reconciliation sweeps.
type Reconciler struct {
	logger        *zap.Logger
	installations Installations
	evaluator     Evaluator
	retryer       Retryer

	sweepLock sync.Mutex
	running   atomic.Bool

	lastReportLock sync.Mutex
	lastReport     *SweepReport
}

func NewReconciler(installations Installations, evaluator Evaluator, retryer Retryer) *Reconciler {
	return &Reconciler{
		logger:        zap.L().Named(loggerName),
		installations: installations,
		evaluator:     evaluator,
		retryer:       retryer,
	}
}

// Sweep evaluates all open pull requests of all repositories of all
// installations, sequentially.
//
// If the installations can not be listed, an error is returned.
// Failures for single installations or repositories are recorded in the
// returned report, the sweep continues with the next one.
// If a sweep is already running, ErrSweepRunning is returned.
func (r *Reconciler) Sweep(ctx context.Context) (*SweepReport, error) {
	if !r.sweepLock.TryLock() {
		return nil, ErrSweepRunning
	}
	defer r.sweepLock.Unlock()

	r.running.Store(true)
	defer r.running.Store(false)

	report := SweepReport{StartTime: time.Now()}

	r.logger.Info("reconciliation sweep started", logfields.Event("reconciliation_sweep_started"))

	installations, err := r.listInstallations(ctx)
	if err != nil {
		metrics.SweepFailedInc()

		r.logger.Error(
			"reconciliation sweep failed, listing installations failed",
			logfields.Event("reconciliation_sweep_failed"),
			zap.Error(err),
		)

		return nil, fmt.Errorf("listing installations failed: %w", err)
	}

	for scope, err := range r.RepositoryScopes(ctx, installations) {
		instReport := report.installation(scope.Installation)

		if err != nil {
			instReport.Err = err
			continue
		}

		instReport.Repositories = append(instReport.Repositories, r.EvaluateRepository(ctx, scope))
	}

	report.EndTime = time.Now()

	metrics.SweepInc(&report)

	r.lastReportLock.Lock()
	r.lastReport = &report
	r.lastReportLock.Unlock()

	r.logger.Info(
		"reconciliation sweep finished",
		append(
			report.LogFields(),
			logfields.Event("reconciliation_sweep_finished"),
		)...,
	)

	return &report, nil
}

// LastReport returns the report of the last finished sweep, nil if no sweep
// finished yet.
func (r *Reconciler) LastReport() *SweepReport {
	r.lastReportLock.Lock()
	defer r.lastReportLock.Unlock()

	return r.lastReport
}

// Running returns true while a sweep is in progress.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

func (r *Reconciler) listInstallations(ctx context.Context) ([]*github.Installation, error) {
	var result []*github.Installation

	err := r.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = r.installations.ListInstallations(ctx)
		return err
	}, []zap.Field{logfields.Event("github_list_installations")})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// RepositoryScopes returns a sequence of the repositories of the
// installations.
// When the client for an installation can not be created or its
// repositories can not be listed, a RepositoryScope with only the
// Installation field set is yielded together with the error. The sequence
// then continues with the next installation.
// Archived repositories are omitted.
func (r *Reconciler) RepositoryScopes(ctx context.Context, installations []*github.Installation) iter.Seq2[*RepositoryScope, error] {
	return func(yield func(*RepositoryScope, error) bool) {
		for _, inst := range installations {
			if ctx.Err() != nil {
				return
			}

			logger := r.logger.With(installationLogFields(inst)...)

			clt, repos, err := r.installationRepositories(ctx, inst)
			if err != nil {
				logger.Error(
					"skipping installation, retrieving repositories failed",
					logfields.Event("reconciliation_installation_failed"),
					zap.Error(err),
				)

				if !yield(&RepositoryScope{Installation: inst}, err) {
					return
				}

				continue
			}

			logger.Debug(
				"retrieved repositories of installation",
				logfields.Event("reconciliation_installation_repositories_retrieved"),
				zap.Int("repositories", len(repos)),
			)

			for _, repo := range repos {
				if repo.GetArchived() {
					logger.Debug(
						"skipping archived repository",
						logfields.RepositoryOwner(repo.GetOwner().GetLogin()),
						logfields.Repository(repo.GetName()),
					)
					continue
				}

				scope := RepositoryScope{
					Installation: inst,
					Client:       clt,
					Owner:        repo.GetOwner().GetLogin(),
					Repository:   repo.GetName(),
				}

				if !yield(&scope, nil) {
					return
				}
			}
		}
	}
}

func (r *Reconciler) installationRepositories(ctx context.Context, inst *github.Installation) (InstallationClient, []*github.Repository, error) {
	logF := installationLogFields(inst)

	var clt InstallationClient
	err := r.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		clt, err = r.installations.InstallationClient(ctx, inst.GetID())
		return err
	}, append(logF, logfields.Event("github_installation_authentication")))
	if err != nil {
		return nil, nil, fmt.Errorf("authenticating as installation failed: %w", err)
	}

	var repos []*github.Repository
	err = r.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		repos, err = clt.ListRepositories(ctx)
		return err
	}, append(logF, logfields.Event("github_list_repositories")))
	if err != nil {
		return nil, nil, fmt.Errorf("listing repositories failed: %w", err)
	}

	return clt, repos, nil
}

// EvaluateRepository evaluates all open pull requests of the repository,
// oldest first.
// If the pull requests can not be listed, the error is recorded in the
// returned report. Pull requests that were retrieved before are evaluated.
func (r *Reconciler) EvaluateRepository(ctx context.Context, scope *RepositoryScope) *RepositoryReport {
	report := RepositoryReport{
		Owner:      scope.Owner,
		Repository: scope.Repository,
	}

	logger := r.logger.With(scope.LogFields()...)

	it := scope.Client.ListPullRequests(ctx, scope.Owner, scope.Repository, "open", "created", "asc")
	for {
		if err := ctx.Err(); err != nil {
			report.Err = err
			break
		}

		var pr *github.PullRequest

		err := r.retryer.Run(ctx, func(context.Context) error {
			var err error
			pr, err = it.Next()
			return err
		}, append(scope.LogFields(), logfields.Event("github_list_pull_requests")))
		if err != nil {
			report.Err = fmt.Errorf("listing pull requests failed: %w", err)

			logger.Error(
				"listing pull requests failed",
				logfields.Event("reconciliation_repository_failed"),
				zap.Error(err),
			)

			break
		}

		if pr == nil { // iteration finished, no more results
			break
		}

		report.PullRequests.Add(r.evaluator.Evaluate(ctx, scope.Client, &merge.PullRequestRef{
			Owner:      scope.Owner,
			Repository: scope.Repository,
			Number:     pr.GetNumber(),
		}))
	}

	logger.Debug(
		"evaluated pull requests of repository",
		append(
			report.PullRequests.LogFields(),
			logfields.Event("reconciliation_repository_evaluated"),
		)...,
	)

	return &report
}
