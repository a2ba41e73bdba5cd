package merge

import (
	"context"

	"github.com/google/go-github/v59/github"

	"github.com/simplesurance/depmerger/internal/githubclt"
)

//go:generate mockgen -destination=mocks/githubclient.go -package=mocks . GithubClient

// GithubClient is the subset of githubclt.Client methods that are used to
// evaluate and merge pull requests.
type GithubClient interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	ListCheckRuns(ctx context.Context, owner, repo, ref string) (*githubclt.CheckRuns, error)
	CommitStatus(ctx context.Context, owner, repo, sha string) (*githubclt.CommitStatus, error)
	ListCommits(ctx context.Context, owner, repo string, number int) ([]*github.RepositoryCommit, error)
	MergePullRequest(ctx context.Context, owner, repo string, number int, headSHA, method string) error
}
