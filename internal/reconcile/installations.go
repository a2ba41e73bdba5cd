package reconcile

import (
	"context"

	"github.com/google/go-github/v59/github"

	"github.com/simplesurance/depmerger/internal/githubclt"
	"github.com/simplesurance/depmerger/internal/merge"
)

//go:generate mockgen -destination=mocks/reconcile.go -package=mocks . Installations,InstallationClient,Evaluator

// InstallationClient is a GitHub API client that is authenticated as a
// GitHub App installation.
type InstallationClient interface {
	merge.GithubClient
	ListRepositories(ctx context.Context) ([]*github.Repository, error)
	ListPullRequests(ctx context.Context, owner, repo, state, sort, sortDirection string) githubclt.PRIterator
}

// Installations provides access to the installations of the GitHub App.
type Installations interface {
	ListInstallations(ctx context.Context) ([]*github.Installation, error)
	InstallationClient(ctx context.Context, installationID int64) (InstallationClient, error)
}

// InstallationSource is implemented by githubclt.AppsClient and
// githubclt.StaticInstallations.
type InstallationSource interface {
	ListInstallations(ctx context.Context) ([]*github.Installation, error)
	InstallationClient(ctx context.Context, installationID int64) (*githubclt.Client, error)
}

// GithubInstallations provides Installations from an InstallationSource.
type GithubInstallations struct {
	src InstallationSource
}

func NewGithubInstallations(src InstallationSource) *GithubInstallations {
	return &GithubInstallations{src: src}
}

func (g *GithubInstallations) ListInstallations(ctx context.Context) ([]*github.Installation, error) {
	return g.src.ListInstallations(ctx)
}

func (g *GithubInstallations) InstallationClient(ctx context.Context, installationID int64) (InstallationClient, error) {
	clt, err := g.src.InstallationClient(ctx, installationID)
	if err != nil {
		return nil, err
	}

	return clt, nil
}
