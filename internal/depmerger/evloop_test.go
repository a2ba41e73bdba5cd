package depmerger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/mock/gomock"
	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/depmerger/internal/comment"
	commentmocks "github.com/simplesurance/depmerger/internal/comment/mocks"
	"github.com/simplesurance/depmerger/internal/githubclt"
	"github.com/simplesurance/depmerger/internal/merge"
	mergemocks "github.com/simplesurance/depmerger/internal/merge/mocks"
	"github.com/simplesurance/depmerger/internal/reconcile"
	"github.com/simplesurance/depmerger/internal/reconcile/mocks"
	"github.com/simplesurance/depmerger/internal/retry"
)

const (
	condCheckInterval = 20 * time.Millisecond
	condWaitTimeout   = 5 * time.Second
)

type mockGithubClient struct {
	pulls    *mergemocks.MockGithubClient
	comments *commentmocks.MockGithubClient
}

func newMockGithubClient(mockctrl *gomock.Controller) *mockGithubClient {
	return &mockGithubClient{
		pulls:    mergemocks.NewMockGithubClient(mockctrl),
		comments: commentmocks.NewMockGithubClient(mockctrl),
	}
}

func (c *mockGithubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	return c.pulls.GetPullRequest(ctx, owner, repo, number)
}

func (c *mockGithubClient) ListCheckRuns(ctx context.Context, owner, repo, ref string) (*githubclt.CheckRuns, error) {
	return c.pulls.ListCheckRuns(ctx, owner, repo, ref)
}

func (c *mockGithubClient) CommitStatus(ctx context.Context, owner, repo, sha string) (*githubclt.CommitStatus, error) {
	return c.pulls.CommitStatus(ctx, owner, repo, sha)
}

func (c *mockGithubClient) ListCommits(ctx context.Context, owner, repo string, number int) ([]*github.RepositoryCommit, error) {
	return c.pulls.ListCommits(ctx, owner, repo, number)
}

func (c *mockGithubClient) MergePullRequest(ctx context.Context, owner, repo string, number int, headSHA, method string) error {
	return c.pulls.MergePullRequest(ctx, owner, repo, number, headSHA, method)
}

func (c *mockGithubClient) ListIssueComments(ctx context.Context, owner, repo string, issueOrPRNr int) ([]*github.IssueComment, error) {
	return c.comments.ListIssueComments(ctx, owner, repo, issueOrPRNr)
}

func (c *mockGithubClient) CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, body string) error {
	return c.comments.CreateIssueComment(ctx, owner, repo, issueOrPRNr, body)
}

func staticInstallations(clt GithubClient, requestedIDs chan<- int64) InstallationClientFunc {
	return func(_ context.Context, id int64) (GithubClient, error) {
		if requestedIDs != nil {
			requestedIDs <- id
		}
		return clt, nil
	}
}

type sweeperFunc func(context.Context) (*reconcile.SweepReport, error)

func (f sweeperFunc) Sweep(ctx context.Context) (*reconcile.SweepReport, error) {
	return f(ctx)
}

func startEvLoop(t *testing.T, evl *EvLoop) {
	t.Helper()

	done := make(chan struct{})

	go func() {
		evl.Start()
		close(done)
	}()

	t.Cleanup(func() {
		evl.Stop()
		<-done
	})
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(condWaitTimeout):
		t.Fatal("timed out waiting for value")
	}

	var zero T
	return zero
}

func TestCheckSuiteEventEvaluatesPullRequests(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	mockctrl := gomock.NewController(t)
	evaluator := mocks.NewMockEvaluator(mockctrl)
	clt := newMockGithubClient(mockctrl)

	evaluated := make(chan *merge.PullRequestRef, 2)
	evaluator.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ merge.GithubClient, ref *merge.PullRequestRef) *merge.Result {
			evaluated <- ref
			return &merge.Result{PullRequest: *ref, Outcome: merge.OutcomeMerged}
		}).
		Times(2)

	requestedIDs := make(chan int64, 1)
	evl := NewEventLoop(staticInstallations(clt, requestedIDs), evaluator, retry.NewRetryer())
	startEvLoop(t, evl)

	evl.C() <- newCheckSuiteEvent("completed", 1, 3)

	assert.Equal(t, installationID, receive(t, requestedIDs))

	ref := receive(t, evaluated)
	assert.Equal(t, merge.PullRequestRef{
		Owner: repoOwner, Repository: repo, Number: 1, ExpectedHeadSHA: headSHA,
	}, *ref)

	ref = receive(t, evaluated)
	assert.Equal(t, merge.PullRequestRef{
		Owner: repoOwner, Repository: repo, Number: 3, ExpectedHeadSHA: headSHA,
	}, *ref)
}

func TestIgnoredCheckSuiteEvents(t *testing.T) {
	testcases := []struct {
		name string
		ev   func() *Event
	}{
		{
			name: "requested",
			ev:   func() *Event { return fromProviderEvent(newCheckSuiteEvent("requested", 1)) },
		},
		{
			name: "noPullRequests",
			ev:   func() *Event { return fromProviderEvent(newCheckSuiteEvent("completed")) },
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

			mockctrl := gomock.NewController(t)
			evaluator := mocks.NewMockEvaluator(mockctrl)
			evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			retryer := retry.NewRetryer()
			t.Cleanup(retryer.Stop)

			evl := NewEventLoop(staticInstallations(newMockGithubClient(mockctrl), nil), evaluator, retryer)
			evl.processCheckSuiteEvent(context.Background(), tc.ev())
		})
	}
}

func TestFilterMismatchingEventsAreIgnored(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	mockctrl := gomock.NewController(t)
	evaluator := mocks.NewMockEvaluator(mockctrl)
	clt := newMockGithubClient(mockctrl)

	evaluated := make(chan *merge.PullRequestRef, 1)
	evaluator.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ merge.GithubClient, ref *merge.PullRequestRef) *merge.Result {
			evaluated <- ref
			return &merge.Result{PullRequest: *ref}
		}).
		Times(1)

	filter, err := NewFilter(`.check_suite.conclusion == "success"`)
	require.NoError(t, err)

	evl := NewEventLoop(staticInstallations(clt, nil), evaluator, retry.NewRetryer(), WithFilter(filter))
	startEvLoop(t, evl)

	mismatching := newCheckSuiteEvent("completed", 1)
	mismatching.JSON = []byte(`{"check_suite": {"conclusion": "failure"}}`)
	evl.C() <- mismatching

	evl.C() <- newCheckSuiteEvent("completed", 2)

	ref := receive(t, evaluated)
	assert.Equal(t, 2, ref.Number)
}

func TestPullRequestOpenedEventCreatesComment(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	mockctrl := gomock.NewController(t)
	evaluator := mocks.NewMockEvaluator(mockctrl)
	evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	clt := newMockGithubClient(mockctrl)

	commented := make(chan int, 1)
	clt.comments.EXPECT().
		ListIssueComments(gomock.Any(), repoOwner, repo, 5).
		Return([]*github.IssueComment{}, nil)
	clt.comments.EXPECT().
		CreateIssueComment(gomock.Any(), repoOwner, repo, 5, comment.DefComment).
		DoAndReturn(func(_ context.Context, _, _ string, number int, _ string) error {
			commented <- number
			return nil
		})

	evl := NewEventLoop(
		staticInstallations(clt, nil),
		evaluator,
		retry.NewRetryer(),
		WithCommenter(comment.NewCommenter()),
	)
	startEvLoop(t, evl)

	evl.C() <- newPullRequestEvent("opened", 5, merge.DefAuthor)

	assert.Equal(t, 5, receive(t, commented))
}

func TestPullRequestEventIgnoredWithoutCommenter(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	mockctrl := gomock.NewController(t)
	evaluator := mocks.NewMockEvaluator(mockctrl)
	evaluator.EXPECT().Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	retryer := retry.NewRetryer()
	t.Cleanup(retryer.Stop)

	installations := InstallationClientFunc(func(context.Context, int64) (GithubClient, error) {
		t.Error("installation client was requested")
		return nil, nil
	})

	evl := NewEventLoop(installations, evaluator, retryer)
	evl.processPullRequestEvent(context.Background(), fromProviderEvent(newPullRequestEvent("opened", 5, merge.DefAuthor)))
}

func TestReconciliationSweeps(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	const interval = time.Hour

	mockctrl := gomock.NewController(t)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	var sweepCnt atomic.Int32
	sweeps := make(chan struct{}, 1)
	sweeper := sweeperFunc(func(context.Context) (*reconcile.SweepReport, error) {
		sweepCnt.Add(1)
		select {
		case sweeps <- struct{}{}:
		default:
		}
		return &reconcile.SweepReport{}, nil
	})

	clk := clock.NewMock()

	evl := NewEventLoop(
		staticInstallations(newMockGithubClient(mockctrl), nil),
		evaluator,
		retry.NewRetryer(),
		WithReconciliation(sweeper, interval),
		WithClock(clk),
	)
	startEvLoop(t, evl)

	receive(t, sweeps)
	require.Equal(t, int32(1), sweepCnt.Load(), "startup sweep did not run")

	require.Eventually(
		t,
		func() bool {
			select {
			case <-sweeps:
				return true
			default:
				clk.Add(interval)
				return false
			}
		},
		condWaitTimeout,
		condCheckInterval,
	)

	assert.GreaterOrEqual(t, sweepCnt.Load(), int32(2))
}

func TestStopCancelsRunningSweep(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	mockctrl := gomock.NewController(t)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	started := make(chan struct{}, 1)
	sweepErr := make(chan error, 1)
	sweeper := sweeperFunc(func(ctx context.Context) (*reconcile.SweepReport, error) {
		started <- struct{}{}
		<-ctx.Done()
		sweepErr <- ctx.Err()
		return nil, ctx.Err()
	})

	evl := NewEventLoop(
		staticInstallations(newMockGithubClient(mockctrl), nil),
		evaluator,
		retry.NewRetryer(),
		WithReconciliation(sweeper, 0),
	)

	done := make(chan struct{})
	go func() {
		evl.Start()
		close(done)
	}()

	receive(t, started)

	evl.Stop()
	<-done

	assert.ErrorIs(t, receive(t, sweepErr), context.Canceled)
}

func TestReconcileWithoutSweeperIsNoop(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	mockctrl := gomock.NewController(t)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	retryer := retry.NewRetryer()
	t.Cleanup(retryer.Stop)

	evl := NewEventLoop(staticInstallations(newMockGithubClient(mockctrl), nil), evaluator, retryer)
	evl.Reconcile()
	evl.wg.Wait()
}
