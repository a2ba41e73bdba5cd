package githubclt

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
)

// AppsClient authenticates as a GitHub App.
// It lists the installations of the app and creates clients that
// authenticate as one of the installations.
type AppsClient struct {
	appsTransport *ghinstallation.AppsTransport
	restClt       *github.Client
	logger        *zap.Logger

	lock          sync.Mutex
	installations map[int64]*ghinstallation.Transport
}

// NewAppsClient returns a client that authenticates as the GitHub App with
// the given ID. privateKeyPEM is the PEM encoded private key of the app.
func NewAppsClient(appID int64, privateKeyPEM []byte) (*AppsClient, error) {
	atr, err := ghinstallation.NewAppsTransport(http.DefaultTransport, appID, privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("creating github app transport failed: %w", err)
	}

	return &AppsClient{
		appsTransport: atr,
		restClt: github.NewClient(&http.Client{
			Transport: atr,
			Timeout:   DefaultHTTPClientTimeout,
		}),
		logger:        zap.L().Named(loggerName).Named("apps"),
		installations: map[int64]*ghinstallation.Transport{},
	}, nil
}

// ListInstallations returns all installations of the GitHub App.
func (a *AppsClient) ListInstallations(ctx context.Context) ([]*github.Installation, error) {
	var result []*github.Installation

	opts := github.ListOptions{Page: 1, PerPage: perPage}
	for {
		installations, resp, err := a.restClt.Apps.ListInstallations(ctx, &opts)
		if err != nil {
			return nil, wrapRetryableErrors(a.logger, err)
		}

		result = append(result, installations...)

		if resp.NextPage == 0 || len(installations) == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// InstallationClient returns a client that authenticates as the
// installation with the given ID.
// An installation access token is requested before the client is
// returned, an error is returned if it can not be retrieved.
// Tokens are cached and renewed when they expire.
func (a *AppsClient) InstallationClient(ctx context.Context, installationID int64) (*Client, error) {
	tr := a.installationTransport(installationID)

	if _, err := tr.Token(ctx); err != nil {
		return nil, fmt.Errorf("retrieving access token for installation %d failed: %w", installationID, err)
	}

	a.logger.Debug(
		"created installation client",
		logfields.Event("github_installation_client_created"),
		logfields.Installation(installationID),
	)

	return newClient(&http.Client{
		Transport: tr,
		Timeout:   DefaultHTTPClientTimeout,
	}), nil
}

func (a *AppsClient) installationTransport(installationID int64) *ghinstallation.Transport {
	a.lock.Lock()
	defer a.lock.Unlock()

	tr, exists := a.installations[installationID]
	if !exists {
		tr = ghinstallation.NewFromAppsTransport(a.appsTransport, installationID)
		a.installations[installationID] = tr
	}

	return tr
}
