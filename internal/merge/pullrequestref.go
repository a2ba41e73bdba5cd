package merge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
)

// PullRequestRef identifies a pull request that is evaluated.
type PullRequestRef struct {
	Owner      string
	Repository string
	Number     int
	// ExpectedHeadSHA is the commit the evaluation was triggered for.
	// When it is set, the pull request is only merged if its head commit
	// equals it.
	// It is empty when the pull request is evaluated independent of a
	// specific commit.
	ExpectedHeadSHA string
}

func (r *PullRequestRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repository, r.Number)
}

func (r *PullRequestRef) LogFields() []zap.Field {
	result := []zap.Field{
		logfields.RepositoryOwner(r.Owner),
		logfields.Repository(r.Repository),
		logfields.PullRequest(r.Number),
	}

	if r.ExpectedHeadSHA != "" {
		result = append(result, logfields.Commit(r.ExpectedHeadSHA))
	}

	return result
}
