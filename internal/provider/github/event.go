package github

import "go.uber.org/zap"

// Event is a webhook event that passed signature validation and is of a
// type depmerger processes (check_suite or pull_request).
// It is forwarded to the event loop, which extracts the pull requests,
// installation and head commit from Event.
type Event struct {
	// DeliveryID is the value of the X-GitHub-Delivery header.
	DeliveryID string
	// Type is the value of the X-GitHub-Event header.
	Type string
	// JSON is the raw payload, it is matched against the event_filter jq
	// expression.
	JSON []byte
	// Event is the payload parsed by github.ParseWebHook, a
	// *github.CheckSuiteEvent or *github.PullRequestEvent.
	Event     any
	LogFields []zap.Field
}
