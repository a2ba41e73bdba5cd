package merge

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/depmerger/internal/githubclt"
)

const (
	repo      = "repo"
	repoOwner = "testman"
	prNumber  = 42
	headSHA   = "8ad9dec4298f6b8f020997373cf4fe22005f2c06"
)

const condCheckInterval = 20 * time.Millisecond
const condWaitTimeout = 5 * time.Second

func newRef() *PullRequestRef {
	return &PullRequestRef{
		Owner:           repoOwner,
		Repository:      repo,
		Number:          prNumber,
		ExpectedHeadSHA: headSHA,
	}
}

func newPR(author string, mergeable *bool) *github.PullRequest {
	return &github.PullRequest{
		Number:    github.Int(prNumber),
		State:     github.String("open"),
		Title:     github.String("Bump golang.org/x/net from 0.9.0 to 0.17.0"),
		HTMLURL:   github.String("https://github.com/testman/repo/pull/42"),
		User:      &github.User{Login: github.String(author)},
		Head:      &github.PullRequestBranch{SHA: github.String(headSHA)},
		Mergeable: mergeable,
	}
}

func newMergedPR() *github.PullRequest {
	pr := newPR(DefAuthor, github.Bool(false))
	pr.State = github.String("closed")
	pr.Merged = github.Bool(true)

	return pr
}

func newCheckRun(name, status, conclusion string) *github.CheckRun {
	run := github.CheckRun{
		Name:   github.String(name),
		Status: github.String(status),
	}

	if conclusion != "" {
		run.Conclusion = github.String(conclusion)
	}

	return &run
}

func checkRuns(runs ...*github.CheckRun) *githubclt.CheckRuns {
	return &githubclt.CheckRuns{
		TotalCount: len(runs),
		CheckRuns:  runs,
	}
}

func successfulCheckRuns() *githubclt.CheckRuns {
	return checkRuns(newCheckRun("test", "completed", "success"))
}

func commitsBy(logins ...string) []*github.RepositoryCommit {
	result := make([]*github.RepositoryCommit, 0, len(logins))

	for i, login := range logins {
		result = append(result, &github.RepositoryCommit{
			SHA:    github.String(string(rune('a'+i)) + "00000"),
			Author: &github.User{Login: github.String(login)},
		})
	}

	return result
}

// advanceClockUntil advances clk by interval until a value is received from
// ch and returns it.
func advanceClockUntil[T any](t *testing.T, clk *clock.Mock, interval time.Duration, ch <-chan T) T {
	t.Helper()

	var result T

	require.Eventually(
		t,
		func() bool {
			select {
			case result = <-ch:
				return true
			default:
				clk.Add(interval)
				return false
			}
		},
		condWaitTimeout,
		condCheckInterval,
	)

	return result
}
