// Package comment posts the comment that instructs dependabot to merge a
// pull request on its own.
package comment

import (
	"context"
	"fmt"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
	"github.com/simplesurance/depmerger/internal/merge"
)

const loggerName = "commenter"

// DefComment is the comment that is posted to pull requests.
const DefComment = "@dependabot squash and merge"

//go:generate mockgen -destination=mocks/githubclient.go -package=mocks . GithubClient

// GithubClient is the subset of githubclt.Client methods that are used to
// comment on pull requests.
type GithubClient interface {
	ListIssueComments(ctx context.Context, owner, repo string, issueOrPRNr int) ([]*github.IssueComment, error)
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
}

// Commenter posts a comment to pull requests opened by a configured author.
type Commenter struct {
	logger *zap.Logger
	author string
	body   string
	dryRun bool
}

type Option func(*Commenter)

// WithAuthor sets the login of the pull request author that is commented
// on. The default is merge.DefAuthor.
func WithAuthor(login string) Option {
	return func(c *Commenter) {
		c.author = login
	}
}

// WithComment sets the body of the comment. The default is DefComment.
func WithComment(body string) Option {
	return func(c *Commenter) {
		c.body = body
	}
}

// WithDryRun logs comments instead of posting them.
func WithDryRun() Option {
	return func(c *Commenter) {
		c.dryRun = true
	}
}

func NewCommenter(opts ...Option) *Commenter {
	c := Commenter{
		logger: zap.L().Named(loggerName),
		author: merge.DefAuthor,
		body:   DefComment,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return &c
}

// Run posts the comment to the pull request, if prAuthor is the configured
// author and the pull request has no comment with the same body yet.
// Errors returned by clt are wrapped and returned.
func (c *Commenter) Run(ctx context.Context, clt GithubClient, owner, repo string, number int, prAuthor string) error {
	logger := c.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(number),
		logfields.Author(prAuthor),
	)

	if prAuthor != c.author {
		logger.Debug(
			"pull request was not opened by the configured author, not commenting",
			logfields.Event("pull_request_comment_skipped"),
		)
		return nil
	}

	comments, err := clt.ListIssueComments(ctx, owner, repo, number)
	if err != nil {
		return fmt.Errorf("listing comments failed: %w", err)
	}

	for _, comment := range comments {
		if comment.GetBody() == c.body {
			logger.Debug(
				"pull request already has the comment",
				logfields.Event("pull_request_comment_exists"),
				zap.Int64("github.comment_id", comment.GetID()),
			)
			return nil
		}
	}

	if c.dryRun {
		logger.Info(
			"simulated commenting on pull request, comment was not created on github",
			logfields.Event("pull_request_commented"),
			zap.String("comment", c.body),
		)
		return nil
	}

	if err := clt.CreateIssueComment(ctx, owner, repo, number, c.body); err != nil {
		return fmt.Errorf("creating comment failed: %w", err)
	}

	logger.Info(
		"commented on pull request",
		logfields.Event("pull_request_commented"),
		zap.String("comment", c.body),
	)

	return nil
}
