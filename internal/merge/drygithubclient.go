package merge

import (
	"context"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/githubclt"
	"github.com/simplesurance/depmerger/internal/logfields"
)

// DryGithubClient is a github-client that does not do any changes on github.
// Merging is simulated and always succeeds.
// All other operations are forwarded to a wrapped GithubClient.
type DryGithubClient struct {
	clt    GithubClient
	logger *zap.Logger
}

func NewDryGithubClient(clt GithubClient, logger *zap.Logger) *DryGithubClient {
	return &DryGithubClient{
		clt:    clt,
		logger: logger.Named("dry_github_client"),
	}
}

func (c *DryGithubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	return c.clt.GetPullRequest(ctx, owner, repo, number)
}

func (c *DryGithubClient) ListCheckRuns(ctx context.Context, owner, repo, ref string) (*githubclt.CheckRuns, error) {
	return c.clt.ListCheckRuns(ctx, owner, repo, ref)
}

func (c *DryGithubClient) CommitStatus(ctx context.Context, owner, repo, sha string) (*githubclt.CommitStatus, error) {
	return c.clt.CommitStatus(ctx, owner, repo, sha)
}

func (c *DryGithubClient) ListCommits(ctx context.Context, owner, repo string, number int) ([]*github.RepositoryCommit, error) {
	return c.clt.ListCommits(ctx, owner, repo, number)
}

func (c *DryGithubClient) MergePullRequest(_ context.Context, owner, repo string, number int, headSHA, method string) error {
	c.logger.Info(
		"simulated merging of pull request, pull request was not merged on github",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		logfields.Commit(headSHA),
		zap.String("merge_method", method),
	)

	return nil
}
