package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/depmerger/internal/githubclt"
	"github.com/simplesurance/depmerger/internal/merge"
	"github.com/simplesurance/depmerger/internal/reconcile"
	"github.com/simplesurance/depmerger/internal/reconcile/mocks"
	"github.com/simplesurance/depmerger/internal/retry"
)

const repoOwner = "testman"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type prIter struct {
	prs []*github.PullRequest
	err error
}

func (it *prIter) Next() (*github.PullRequest, error) {
	if len(it.prs) > 0 {
		pr := it.prs[0]
		it.prs = it.prs[1:]
		return pr, nil
	}

	if it.err != nil {
		return nil, it.err
	}

	return nil, nil
}

func newPRIter(numbers ...int) *prIter {
	var it prIter

	for _, nr := range numbers {
		it.prs = append(it.prs, &github.PullRequest{Number: github.Int(nr)})
	}

	return &it
}

func newInstallation(id int64) *github.Installation {
	return &github.Installation{
		ID:      github.Int64(id),
		Account: &github.User{Login: github.String(repoOwner)},
	}
}

func newRepository(name string) *github.Repository {
	return &github.Repository{
		Name:  github.String(name),
		Owner: &github.User{Login: github.String(repoOwner)},
	}
}

func newRetryer(t *testing.T) *retry.Retryer {
	r := retry.NewRetryer(retry.WithTimeout(5 * time.Second))
	t.Cleanup(r.Stop)

	return r
}

func mockListPullRequests(clt *mocks.MockInstallationClient, repo string, it githubclt.PRIterator) *gomock.Call {
	return clt.EXPECT().
		ListPullRequests(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq("open"), gomock.Eq("created"), gomock.Eq("asc")).
		Return(it)
}

func mockEvaluate(evaluator *mocks.MockEvaluator, repo string, number int, outcome merge.Outcome) *gomock.Call {
	return evaluator.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Eq(&merge.PullRequestRef{
			Owner:      repoOwner,
			Repository: repo,
			Number:     number,
		})).
		Return(&merge.Result{
			PullRequest: merge.PullRequestRef{Owner: repoOwner, Repository: repo, Number: number},
			Outcome:     outcome,
		})
}

func TestSweepEvaluatesAllOpenPullRequests(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	installations := mocks.NewMockInstallations(mockctrl)
	clt1 := mocks.NewMockInstallationClient(mockctrl)
	clt2 := mocks.NewMockInstallationClient(mockctrl)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	installations.EXPECT().ListInstallations(gomock.Any()).
		Return([]*github.Installation{newInstallation(1), newInstallation(2)}, nil)
	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(1))).Return(clt1, nil)
	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(2))).Return(clt2, nil)

	clt1.EXPECT().ListRepositories(gomock.Any()).
		Return([]*github.Repository{newRepository("a"), newRepository("b")}, nil)
	clt2.EXPECT().ListRepositories(gomock.Any()).
		Return([]*github.Repository{newRepository("c")}, nil)

	mockListPullRequests(clt1, "a", newPRIter(1, 2))
	mockListPullRequests(clt1, "b", newPRIter())
	mockListPullRequests(clt2, "c", newPRIter(3))

	gomock.InOrder(
		mockEvaluate(evaluator, "a", 1, merge.OutcomeMerged),
		mockEvaluate(evaluator, "a", 2, merge.OutcomeSkipped),
		mockEvaluate(evaluator, "c", 3, merge.OutcomeFailed),
	)

	r := reconcile.NewReconciler(installations, evaluator, newRetryer(t))

	report, err := r.Sweep(context.Background())
	require.NoError(t, err)

	counts := report.Counts()
	assert.Equal(t, uint(2), counts.Installations)
	assert.Equal(t, uint(3), counts.Repositories)
	assert.Equal(t, uint(3), counts.PullRequests)
	assert.Equal(t, uint(1), counts.Merged)
	assert.Equal(t, uint(1), counts.Skipped)
	assert.Equal(t, uint(1), counts.Failed)
	assert.Zero(t, counts.FailedInstallations)
	assert.Zero(t, counts.FailedRepositories)
}

func TestSweepContinuesWhenListingPullRequestsOfRepositoryFails(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	installations := mocks.NewMockInstallations(mockctrl)
	clt := mocks.NewMockInstallationClient(mockctrl)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	listErr := errors.New("listing failed")

	installations.EXPECT().ListInstallations(gomock.Any()).
		Return([]*github.Installation{newInstallation(1)}, nil)
	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(1))).Return(clt, nil)

	clt.EXPECT().ListRepositories(gomock.Any()).
		Return([]*github.Repository{newRepository("a"), newRepository("b"), newRepository("c")}, nil)

	mockListPullRequests(clt, "a", newPRIter(1))
	mockListPullRequests(clt, "b", &prIter{err: listErr})
	mockListPullRequests(clt, "c", newPRIter(3))

	gomock.InOrder(
		mockEvaluate(evaluator, "a", 1, merge.OutcomeMerged),
		mockEvaluate(evaluator, "c", 3, merge.OutcomeMerged),
	)

	r := reconcile.NewReconciler(installations, evaluator, newRetryer(t))

	report, err := r.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Installations, 1)
	repos := report.Installations[0].Repositories
	require.Len(t, repos, 3)

	assert.NoError(t, repos[0].Err)
	assert.ErrorIs(t, repos[1].Err, listErr)
	assert.NoError(t, repos[2].Err)

	counts := report.Counts()
	assert.Equal(t, uint(2), counts.Merged)
	assert.Equal(t, uint(1), counts.FailedRepositories)
}

func TestSweepEvaluatesPullRequestsListedBeforeFailure(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	installations := mocks.NewMockInstallations(mockctrl)
	clt := mocks.NewMockInstallationClient(mockctrl)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	listErr := errors.New("listing failed")

	installations.EXPECT().ListInstallations(gomock.Any()).
		Return([]*github.Installation{newInstallation(1)}, nil)
	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(1))).Return(clt, nil)
	clt.EXPECT().ListRepositories(gomock.Any()).
		Return([]*github.Repository{newRepository("a")}, nil)

	it := newPRIter(1)
	it.err = listErr
	mockListPullRequests(clt, "a", it)
	mockEvaluate(evaluator, "a", 1, merge.OutcomeSkipped)

	r := reconcile.NewReconciler(installations, evaluator, newRetryer(t))

	report, err := r.Sweep(context.Background())
	require.NoError(t, err)

	repos := report.Installations[0].Repositories
	require.Len(t, repos, 1)
	assert.ErrorIs(t, repos[0].Err, listErr)
	assert.Len(t, repos[0].PullRequests.Results, 1)
}

func TestSweepFailsWhenListingInstallationsFails(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	installations := mocks.NewMockInstallations(mockctrl)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	listErr := errors.New("bad credentials")

	installations.EXPECT().ListInstallations(gomock.Any()).Return(nil, listErr)

	r := reconcile.NewReconciler(installations, evaluator, newRetryer(t))

	report, err := r.Sweep(context.Background())
	assert.ErrorIs(t, err, listErr)
	assert.Nil(t, report)
}

func TestSweepSkipsInstallationWhenAuthenticationFails(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	installations := mocks.NewMockInstallations(mockctrl)
	clt := mocks.NewMockInstallationClient(mockctrl)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	authErr := errors.New("installation suspended")

	installations.EXPECT().ListInstallations(gomock.Any()).
		Return([]*github.Installation{newInstallation(1), newInstallation(2)}, nil)
	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(1))).Return(nil, authErr)
	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(2))).Return(clt, nil)

	clt.EXPECT().ListRepositories(gomock.Any()).
		Return([]*github.Repository{newRepository("a")}, nil)
	mockListPullRequests(clt, "a", newPRIter(1))
	mockEvaluate(evaluator, "a", 1, merge.OutcomeMerged)

	r := reconcile.NewReconciler(installations, evaluator, newRetryer(t))

	report, err := r.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Installations, 2)
	assert.ErrorIs(t, report.Installations[0].Err, authErr)
	assert.Empty(t, report.Installations[0].Repositories)
	assert.NoError(t, report.Installations[1].Err)
	assert.Len(t, report.Installations[1].Repositories, 1)

	counts := report.Counts()
	assert.Equal(t, uint(1), counts.FailedInstallations)
	assert.Equal(t, uint(1), counts.Merged)
}

func TestSweepSkipsInstallationWhenListingRepositoriesFails(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	installations := mocks.NewMockInstallations(mockctrl)
	clt1 := mocks.NewMockInstallationClient(mockctrl)
	clt2 := mocks.NewMockInstallationClient(mockctrl)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	listErr := errors.New("forbidden")

	installations.EXPECT().ListInstallations(gomock.Any()).
		Return([]*github.Installation{newInstallation(1), newInstallation(2)}, nil)
	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(1))).Return(clt1, nil)
	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(2))).Return(clt2, nil)

	clt1.EXPECT().ListRepositories(gomock.Any()).Return(nil, listErr)
	clt2.EXPECT().ListRepositories(gomock.Any()).
		Return([]*github.Repository{newRepository("b")}, nil)
	mockListPullRequests(clt2, "b", newPRIter(5))
	mockEvaluate(evaluator, "b", 5, merge.OutcomeSkipped)

	r := reconcile.NewReconciler(installations, evaluator, newRetryer(t))

	report, err := r.Sweep(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Installations, 2)
	assert.ErrorIs(t, report.Installations[0].Err, listErr)
	assert.Equal(t, uint(1), report.Counts().Skipped)
}

func TestSweepSkipsArchivedRepositories(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	installations := mocks.NewMockInstallations(mockctrl)
	clt := mocks.NewMockInstallationClient(mockctrl)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	archived := newRepository("archived")
	archived.Archived = github.Bool(true)

	installations.EXPECT().ListInstallations(gomock.Any()).
		Return([]*github.Installation{newInstallation(1)}, nil)
	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(1))).Return(clt, nil)
	clt.EXPECT().ListRepositories(gomock.Any()).
		Return([]*github.Repository{archived, newRepository("a")}, nil)
	mockListPullRequests(clt, "a", newPRIter())

	r := reconcile.NewReconciler(installations, evaluator, newRetryer(t))

	report, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(1), report.Counts().Repositories)
}

func TestRepositoryScopesStopsWhenConsumerStops(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	installations := mocks.NewMockInstallations(mockctrl)
	clt := mocks.NewMockInstallationClient(mockctrl)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(1))).Return(clt, nil)
	clt.EXPECT().ListRepositories(gomock.Any()).
		Return([]*github.Repository{newRepository("a"), newRepository("b")}, nil)

	r := reconcile.NewReconciler(installations, evaluator, newRetryer(t))

	var scopes []*reconcile.RepositoryScope
	for scope, err := range r.RepositoryScopes(
		context.Background(),
		[]*github.Installation{newInstallation(1), newInstallation(2)},
	) {
		require.NoError(t, err)
		scopes = append(scopes, scope)
		break
	}

	require.Len(t, scopes, 1)
	assert.Equal(t, "a", scopes[0].Repository)
	assert.Equal(t, repoOwner, scopes[0].Owner)
	assert.Same(t, clt, scopes[0].Client)
}

func TestSweepsDoNotOverlap(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	installations := mocks.NewMockInstallations(mockctrl)
	clt := mocks.NewMockInstallationClient(mockctrl)
	evaluator := mocks.NewMockEvaluator(mockctrl)

	installations.EXPECT().ListInstallations(gomock.Any()).
		Return([]*github.Installation{newInstallation(1)}, nil)
	installations.EXPECT().InstallationClient(gomock.Any(), gomock.Eq(int64(1))).Return(clt, nil)
	clt.EXPECT().ListRepositories(gomock.Any()).
		Return([]*github.Repository{newRepository("a")}, nil)
	mockListPullRequests(clt, "a", newPRIter(1))

	evaluating := make(chan struct{})
	unblock := make(chan struct{})

	mockEvaluate(evaluator, "a", 1, merge.OutcomeSkipped).
		Do(func(context.Context, merge.GithubClient, *merge.PullRequestRef) {
			close(evaluating)
			<-unblock
		})

	r := reconcile.NewReconciler(installations, evaluator, newRetryer(t))

	done := make(chan error, 1)
	go func() {
		_, err := r.Sweep(context.Background())
		done <- err
	}()

	<-evaluating

	_, err := r.Sweep(context.Background())
	assert.ErrorIs(t, err, reconcile.ErrSweepRunning)

	close(unblock)
	assert.NoError(t, <-done)
}

func TestGithubInstallationsWithStaticInstallations(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	installations := reconcile.NewGithubInstallations(
		githubclt.NewStaticInstallations(githubclt.New("")),
	)

	insts, err := installations.ListInstallations(context.Background())
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.Equal(t, githubclt.StaticInstallationID, insts[0].GetID())

	clt, err := installations.InstallationClient(context.Background(), insts[0].GetID())
	require.NoError(t, err)
	assert.NotNil(t, clt)
}
