package githubclt

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
)

// CIStatus abstracts the multiple result values of GitHub commit statuses
// into a single value.
type CIStatus string

const (
	// CIStatusNone is the status of a commit that has no commit statuses.
	CIStatusNone    CIStatus = ""
	CIStatusSuccess CIStatus = "SUCCESS"
	CIStatusPending CIStatus = "PENDING"
	CIStatusFailure CIStatus = "FAILURE"
)

// StatusContext is a single commit status.
type StatusContext struct {
	Context string
	Status  CIStatus
}

// CommitStatus is the combined commit status of a commit.
// It only covers statuses created via the commit status API, check runs
// are not part of it.
type CommitStatus struct {
	Commit   string
	Status   CIStatus
	Contexts []*StatusContext
}

// CommitStatus returns the [combined status] of a commit.
//
// The returned [CommitStatus.Status] is [CIStatusNone] if no statuses exist
// for the commit.
// It is [CIStatusFailure] if one or more statuses are failed,
// [CIStatusPending] if one or more are pending and none failed, otherwise
// [CIStatusSuccess].
//
// [combined status]: https://docs.github.com/en/graphql/reference/objects#status
func (clt *Client) CommitStatus(ctx context.Context, owner, repo, sha string) (*CommitStatus, error) {
	queryResult, err := clt.commitStatus(ctx, owner, repo, sha)
	if err != nil {
		return nil, clt.wrapGraphQLRetryableErrors(err)
	}

	contexts, err := toStatusContexts(queryResult.Status.Contexts)
	if err != nil {
		return nil, err
	}

	return &CommitStatus{
		Commit:   queryResult.Oid,
		Status:   overallCIStatus(contexts),
		Contexts: contexts,
	}, nil
}

func overallCIStatus(contexts []*StatusContext) CIStatus {
	if len(contexts) == 0 {
		return CIStatusNone
	}

	result := CIStatusSuccess
	for _, c := range contexts {
		switch c.Status {
		case CIStatusFailure:
			return CIStatusFailure
		case CIStatusPending:
			result = CIStatusPending
		}
	}

	return result
}

func toStatusContexts(queryContexts []queryStatusContext) ([]*StatusContext, error) {
	result := make([]*StatusContext, 0, len(queryContexts))

	for _, qc := range queryContexts {
		status, err := contextStatusStateToCIStatus(qc.State)
		if err != nil {
			return nil, fmt.Errorf("converting %q status context to CIstatus failed: %w",
				qc.Context, err)
		}

		result = append(result, &StatusContext{
			Context: qc.Context,
			Status:  status,
		})
	}

	return result, nil
}

type queryStatusContext struct {
	State   githubv4.StatusState
	Context string
}

type queryCommit struct {
	Oid    string
	Status struct {
		State    githubv4.StatusState
		Contexts []queryStatusContext
	}
}

func (clt *Client) commitStatus(ctx context.Context, owner, repo, sha string) (*queryCommit, error) {
	var q struct {
		Repository struct {
			Object struct {
				Commit queryCommit `graphql:"... on Commit"`
			} `graphql:"object(oid: $oid)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
		"oid":   githubv4.GitObjectID(sha),
	}

	if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
		return nil, err
	}

	if q.Repository.Object.Commit.Oid == "" {
		return nil, fmt.Errorf("commit %s not found", sha)
	}

	return &q.Repository.Object.Commit, nil
}

func contextStatusStateToCIStatus(state githubv4.StatusState) (CIStatus, error) {
	switch state {
	case githubv4.StatusStateError,
		githubv4.StatusStateFailure:
		return CIStatusFailure, nil

	case githubv4.StatusStateExpected,
		githubv4.StatusStatePending:
		return CIStatusPending, nil

	case githubv4.StatusStateSuccess:
		return CIStatusSuccess, nil

	default:
		return "", fmt.Errorf("unsupported status state value: %q", state)
	}
}
