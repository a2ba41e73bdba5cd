package githubclt

import (
	"context"

	"github.com/google/go-github/v59/github"
)

// StaticInstallationID is the ID of the pseudo installation returned by
// StaticInstallations.
const StaticInstallationID int64 = 0

// StaticInstallations provides the same interface as AppsClient for a
// client that authenticates with an API token instead of as a GitHub App.
// It has a single pseudo installation, all installation IDs resolve to the
// same client.
type StaticInstallations struct {
	clt *Client
}

func NewStaticInstallations(clt *Client) *StaticInstallations {
	return &StaticInstallations{clt: clt}
}

func (s *StaticInstallations) ListInstallations(context.Context) ([]*github.Installation, error) {
	return []*github.Installation{
		{
			ID: github.Int64(StaticInstallationID),
			Account: &github.User{
				Login: github.String("api-token"),
			},
		},
	}, nil
}

func (s *StaticInstallations) InstallationClient(context.Context, int64) (*Client, error) {
	return s.clt, nil
}
