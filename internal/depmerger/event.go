package depmerger

import (
	"fmt"
	"slices"

	go_github "github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
	"github.com/simplesurance/depmerger/internal/provider/github"
)

// Event is a webhook event that is processed by the event-loop.
type Event struct {
	JSON []byte

	DeliveryID string
	Type       string
	Action     string

	// InstallationID is 0 if the event does not contain installation
	// information.
	InstallationID  int64
	RepositoryOwner string
	Repository      string
	// HeadSHA is the head commit of a check suite or pull request.
	HeadSHA string
	// PullRequests contains the numbers of the pull requests the event
	// refers to.
	PullRequests      []int
	PullRequestAuthor string

	LogFields []zap.Field
}

func (e *Event) String() string {
	return fmt.Sprintf("github/%s.%s (deliveryID: %s)", e.Type, e.Action, e.DeliveryID)
}

func fromProviderEvent(event *github.Event) *Event {
	result := extractEventInfo(event.Event)
	result.JSON = event.JSON
	result.DeliveryID = event.DeliveryID
	result.Type = event.Type
	result.LogFields = eventLogFields(event, result)

	return result
}

func extractEventInfo(ghEvent any) *Event {
	var result Event

	switch ev := ghEvent.(type) {
	case *go_github.CheckSuiteEvent:
		result.Action = ev.GetAction()
		result.InstallationID = ev.GetInstallation().GetID()
		result.RepositoryOwner = ev.GetRepo().GetOwner().GetLogin()
		result.Repository = ev.GetRepo().GetName()
		result.HeadSHA = ev.GetCheckSuite().GetHeadSHA()

		for _, pr := range ev.GetCheckSuite().PullRequests {
			result.PullRequests = append(result.PullRequests, pr.GetNumber())
		}

	case *go_github.PullRequestEvent:
		result.Action = ev.GetAction()
		result.InstallationID = ev.GetInstallation().GetID()
		result.RepositoryOwner = ev.GetRepo().GetOwner().GetLogin()
		result.Repository = ev.GetRepo().GetName()

		if pr := ev.GetPullRequest(); pr != nil {
			result.PullRequests = []int{pr.GetNumber()}
			result.HeadSHA = pr.GetHead().GetSHA()
			result.PullRequestAuthor = pr.GetUser().GetLogin()
		}
	}

	return &result
}

func eventLogFields(providerEvent *github.Event, ev *Event) []zap.Field {
	result := slices.Clone(providerEvent.LogFields)

	if ev.Action != "" {
		result = append(result, zap.String("github.webhook_action", ev.Action))
	}

	if ev.InstallationID != 0 {
		result = append(result, logfields.Installation(ev.InstallationID))
	}

	if ev.Repository != "" {
		result = append(result, logfields.Repository(ev.Repository))
	}

	if ev.RepositoryOwner != "" {
		result = append(result, logfields.RepositoryOwner(ev.RepositoryOwner))
	}

	if ev.HeadSHA != "" {
		result = append(result, logfields.Commit(ev.HeadSHA))
	}

	if len(ev.PullRequests) != 0 {
		result = append(result, zap.Ints("github.pull_requests", ev.PullRequests))
	}

	if ev.PullRequestAuthor != "" {
		result = append(result, logfields.Author(ev.PullRequestAuthor))
	}

	return result
}
