package merge

import (
	"fmt"

	"github.com/google/go-github/v59/github"
)

// Authorship is the result of ValidateAuthorship.
type Authorship struct {
	Valid bool
	// Login is the login of the offending author. It is empty if Valid
	// is true.
	Login string
	// Commit is the offending commit. It is empty if Valid is true or
	// the pull request author is offending.
	Commit string
	Reason string
}

// ValidateAuthorship checks that the pull request and all of its commits
// were authored by identity.
// A pull request without commits is invalid.
func ValidateAuthorship(identity string, pr *github.PullRequest, commits []*github.RepositoryCommit) *Authorship {
	if login := pr.GetUser().GetLogin(); !authoredBy(identity, login) {
		return &Authorship{
			Login:  login,
			Reason: fmt.Sprintf("pull request was opened by %q", login),
		}
	}

	if len(commits) == 0 {
		return &Authorship{Reason: "pull request has no commits"}
	}

	for _, c := range commits {
		// GetAuthor() returns the GitHub user that authored the commit,
		// it is nil when the git author can not be associated with one.
		if login := c.GetAuthor().GetLogin(); !authoredBy(identity, login) {
			return &Authorship{
				Login:  login,
				Commit: c.GetSHA(),
				Reason: fmt.Sprintf("commit %s was authored by %q", c.GetSHA(), login),
			}
		}
	}

	return &Authorship{Valid: true}
}

func authoredBy(identity, login string) bool {
	return login != "" && login == identity
}
