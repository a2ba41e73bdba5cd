// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/depmerger/internal/dmerr"
	"github.com/simplesurance/depmerger/internal/logfields"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

const perPage = 100

// ErrMergeRejected is returned when GitHub refused to merge a pull
// request, e.g. because it is not mergeable or the head commit changed.
var ErrMergeRejected = errors.New("merge rejected")

// Option configures a Client.
type Option func(*Client)

// WithRepositories sets a fixed list of repositories that is returned by
// ListRepositories instead of querying the repositories of the
// authenticated GitHub App installation.
func WithRepositories(repos ...*github.Repository) Option {
	return func(c *Client) {
		c.repositories = repos
	}
}

// New returns a new github api client that authenticates with an OAuth or
// personal access token.
// If oauthAPItoken is empty, requests are sent unauthenticated.
func New(oauthAPItoken string, opts ...Option) *Client {
	return newClient(newHTTPClient(oauthAPItoken), opts...)
}

func newClient(httpClient *http.Client, opts ...Option) *Client {
	clt := Client{
		restClt:    github.NewClient(httpClient),
		graphQLClt: githubv4.NewClient(httpClient),
		logger:     zap.L().Named(loggerName),
	}

	for _, o := range opts {
		o(&clt)
	}

	return &clt
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is an github API client.
// All methods return a dmerr.RetryableError when an operation can be retried.
// This can be e.g. the case when the API ratelimit is exceeded.
type Client struct {
	restClt    *github.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger

	repositories []*github.Repository
}

// GetPullRequest returns the current state of a pull request.
func (clt *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := clt.restClt.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	return pr, nil
}

// CheckRuns contains the check runs reported for a commit.
type CheckRuns struct {
	// TotalCount is the number of check runs GitHub reported to exist
	// for the commit.
	TotalCount int
	// CheckRuns are the check runs that were retrieved. If GitHub
	// returned inconsistent pages, len(CheckRuns) can differ from
	// TotalCount.
	CheckRuns []*github.CheckRun
}

// ListCheckRuns returns all check runs of a commit reference.
// All result pages are retrieved. TotalCount is the total count GitHub
// reported in the response for the first page.
func (clt *Client) ListCheckRuns(ctx context.Context, owner, repo, ref string) (*CheckRuns, error) {
	var result CheckRuns

	opts := github.ListCheckRunsOptions{
		ListOptions: github.ListOptions{
			Page:    1,
			PerPage: perPage,
		},
	}

	for {
		runs, resp, err := clt.restClt.Checks.ListCheckRunsForRef(ctx, owner, repo, ref, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		if opts.Page == 1 {
			result.TotalCount = runs.GetTotal()
		}

		result.CheckRuns = append(result.CheckRuns, runs.CheckRuns...)

		if resp.NextPage == 0 || len(runs.CheckRuns) == 0 {
			return &result, nil
		}

		opts.Page = resp.NextPage
	}
}

// ListCommits returns all commits of a pull request.
func (clt *Client) ListCommits(ctx context.Context, owner, repo string, number int) ([]*github.RepositoryCommit, error) {
	var result []*github.RepositoryCommit

	opts := github.ListOptions{Page: 1, PerPage: perPage}

	for {
		commits, resp, err := clt.restClt.PullRequests.ListCommits(ctx, owner, repo, number, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		result = append(result, commits...)

		if resp.NextPage == 0 || len(commits) == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// MergePullRequest merges a pull request with the given merge method
// ("merge", "squash" or "rebase").
// If headSHA is not empty, GitHub only merges the pull request if its head
// commit matches headSHA.
// If GitHub refuses the merge, an error wrapping ErrMergeRejected is
// returned.
func (clt *Client) MergePullRequest(ctx context.Context, owner, repo string, number int, headSHA, method string) error {
	res, _, err := clt.restClt.PullRequests.Merge(ctx, owner, repo, number, "", &github.PullRequestOptions{
		SHA:         headSHA,
		MergeMethod: method,
	})
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil {
			switch respErr.Response.StatusCode {
			case http.StatusMethodNotAllowed, http.StatusConflict, http.StatusUnprocessableEntity:
				return fmt.Errorf("%w: %s", ErrMergeRejected, respErr.Message)
			}
		}

		return clt.wrapRetryableErrors(err)
	}

	if !res.GetMerged() {
		return fmt.Errorf("%w: %s", ErrMergeRejected, res.GetMessage())
	}

	clt.logger.Debug(
		"pull request merged",
		logfields.Event("github_pull_request_merged"),
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		logfields.Commit(res.GetSHA()),
	)

	return nil
}

// ListIssueComments returns all comments of an issue or pull request.
func (clt *Client) ListIssueComments(ctx context.Context, owner, repo string, issueOrPRNr int) ([]*github.IssueComment, error) {
	var result []*github.IssueComment

	opts := github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{Page: 1, PerPage: perPage},
	}

	for {
		comments, resp, err := clt.restClt.Issues.ListComments(ctx, owner, repo, issueOrPRNr, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		result = append(result, comments...)

		if resp.NextPage == 0 || len(comments) == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// CreateIssueComment creates a comment in a issue or pull request
func (clt *Client) CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error {
	_, _, err := clt.restClt.Issues.CreateComment(ctx, owner, repo, issueOrPRNr, &github.IssueComment{Body: &comment})
	return clt.wrapRetryableErrors(err)
}

// ListRepositories returns the repositories the client has access to.
// When the client was created with WithRepositories, the configured list is
// returned. Otherwise the repositories accessible to the GitHub App
// installation the client authenticates as are queried.
func (clt *Client) ListRepositories(ctx context.Context) ([]*github.Repository, error) {
	if clt.repositories != nil {
		result := make([]*github.Repository, len(clt.repositories))
		copy(result, clt.repositories)
		return result, nil
	}

	var result []*github.Repository

	opts := github.ListOptions{Page: 1, PerPage: perPage}
	for {
		repos, resp, err := clt.restClt.Apps.ListRepos(ctx, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		result = append(result, repos.Repositories...)

		if resp.NextPage == 0 || len(repos.Repositories) == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

type PRIterator interface {
	Next() (*github.PullRequest, error)
}

type PRIter struct {
	clt *Client

	ctx   context.Context
	owner string
	repo  string

	filterState   string
	sort          string
	sortDirection string

	unseen []*github.PullRequest

	nextPage int
	finished bool
}

// Next returns the next pullRequest.
// When the last result was returned a nil PullRequest is returned.
func (it *PRIter) Next() (*github.PullRequest, error) {
	if len(it.unseen) > 0 {
		result := it.unseen[0]
		it.unseen = it.unseen[1:]

		return result, nil
	}

	if it.finished {
		return nil, nil
	}

	prs, resp, err := it.clt.restClt.PullRequests.List(it.ctx, it.owner, it.repo, &github.PullRequestListOptions{
		State:     it.filterState,
		Sort:      it.sort,
		Direction: it.sortDirection,
		ListOptions: github.ListOptions{
			Page:    it.nextPage,
			PerPage: perPage,
		},
	})
	if err != nil {
		return nil, it.clt.wrapRetryableErrors(err)
	}

	if resp.NextPage == 0 || len(prs) == 0 {
		it.finished = true
	} else {
		it.nextPage = resp.NextPage
	}

	it.unseen = prs

	return it.Next()
}

// ListPullRequests returns an iterator for receiving all pull requests.
// The parameters state, sort, sortDirection expect the same values then their pendants in the struct github.PullRequestListOptions.
func (clt *Client) ListPullRequests(ctx context.Context, owner, repo, state, sort, sortDirection string) PRIterator { // interface is returned to make the method mockable
	return &PRIter{
		clt:           clt,
		ctx:           ctx,
		owner:         owner,
		repo:          repo,
		filterState:   state,
		sort:          sort,
		sortDirection: sortDirection,
		nextPage:      1,
	}
}

func (clt *Client) wrapRetryableErrors(err error) error {
	return wrapRetryableErrors(clt.logger, err)
}

func wrapRetryableErrors(logger *zap.Logger, err error) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", rateLimitErr.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", rateLimitErr.Rate.Reset.Time),
		)

		return dmerr.NewRetryableError(err, rateLimitErr.Rate.Reset.Time)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		logger.Info(
			"secondary rate limit exceeded",
			logfields.Event("github_api_secondary_rate_limit_exceeded"),
			zap.Duration("github_api_retry_after", abuseErr.GetRetryAfter()),
		)

		if abuseErr.RetryAfter == nil {
			return dmerr.NewRetryableAnytimeError(err)
		}

		return dmerr.NewRetryableError(err, time.Now().Add(abuseErr.GetRetryAfter()))
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		if respErr.Response.StatusCode >= 500 && respErr.Response.StatusCode < 600 {
			return dmerr.NewRetryableAnytimeError(err)
		}
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return dmerr.NewRetryableAnytimeError(err)
	}

	return err
}
