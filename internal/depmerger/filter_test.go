package depmerger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkSuiteJSON = `{
  "action": "completed",
  "check_suite": {"head_sha": "8ad9dec4298f6b8f020997373cf4fe22005f2c06", "conclusion": "success"},
  "repository": {"name": "repo", "owner": {"login": "testman"}}
}`

func TestFilterMatch(t *testing.T) {
	testcases := []struct {
		query    string
		expected MatchResult
	}{
		{query: `.repository.owner.login == "testman"`, expected: Match},
		{query: `.repository.owner.login == "octocat"`, expected: FilterMismatch},
		{query: `.check_suite.conclusion == "success" and .action == "completed"`, expected: Match},
		{query: `true`, expected: Match},
	}

	for _, tc := range testcases {
		t.Run(tc.query, func(t *testing.T) {
			f, err := NewFilter(tc.query)
			require.NoError(t, err)

			res, err := f.Match(context.Background(), &Event{JSON: []byte(checkSuiteJSON)})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res, "got %s", res)
		})
	}
}

func TestFilterInvalidQuery(t *testing.T) {
	_, err := NewFilter(`.repository.owner.login ==`)
	assert.Error(t, err)
}

func TestFilterNonBoolResult(t *testing.T) {
	f, err := NewFilter(`.repository.name`)
	require.NoError(t, err)

	res, err := f.Match(context.Background(), &Event{JSON: []byte(checkSuiteJSON)})
	assert.Error(t, err)
	assert.Equal(t, MatchResultUndefined, res)
}

func TestFilterMultipleResults(t *testing.T) {
	f, err := NewFilter(`true, false`)
	require.NoError(t, err)

	res, err := f.Match(context.Background(), &Event{JSON: []byte(checkSuiteJSON)})
	assert.Error(t, err)
	assert.Equal(t, MatchResultUndefined, res)
}

func TestFilterEmptyEvent(t *testing.T) {
	f, err := NewFilter(`true`)
	require.NoError(t, err)

	res, err := f.Match(context.Background(), &Event{})
	assert.Error(t, err)
	assert.Equal(t, MatchResultUndefined, res)
}

func TestMatchResultString(t *testing.T) {
	assert.Equal(t, "filter matches", Match.String())
	assert.Equal(t, "unsupported MatchResult value: 200", MatchResult(200).String())
}
