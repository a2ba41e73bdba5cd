package github

const checkSuiteCompletedEventPayload = `{
  "action": "completed",
  "check_suite": {
    "id": 118578147,
    "head_branch": "dependabot/go_modules/golang.org/x/net-0.17.0",
    "head_sha": "8ad9dec4298f6b8f020997373cf4fe22005f2c06",
    "status": "completed",
    "conclusion": "success",
    "pull_requests": [
      {
        "number": 2,
        "head": {
          "ref": "dependabot/go_modules/golang.org/x/net-0.17.0",
          "sha": "8ad9dec4298f6b8f020997373cf4fe22005f2c06"
        },
        "base": {
          "ref": "main",
          "sha": "f95f852bd8fca8fcc58a9a2d6c842781e32a215e"
        }
      }
    ]
  },
  "repository": {
    "id": 186853002,
    "name": "Hello-World",
    "full_name": "Codertocat/Hello-World",
    "owner": {
      "login": "Codertocat",
      "id": 21031067,
      "type": "User"
    },
    "private": false
  },
  "sender": {
    "login": "Codertocat",
    "id": 21031067,
    "type": "User"
  },
  "installation": {
    "id": 2311213
  }
}`

const pullRequestOpenedEventPayload = `{
  "action": "opened",
  "number": 2,
  "pull_request": {
    "number": 2,
    "state": "open",
    "title": "Bump golang.org/x/net from 0.9.0 to 0.17.0",
    "user": {
      "login": "dependabot[bot]",
      "id": 49699333,
      "type": "Bot"
    },
    "head": {
      "ref": "dependabot/go_modules/golang.org/x/net-0.17.0",
      "sha": "8ad9dec4298f6b8f020997373cf4fe22005f2c06"
    },
    "base": {
      "ref": "main",
      "sha": "f95f852bd8fca8fcc58a9a2d6c842781e32a215e"
    }
  },
  "repository": {
    "id": 186853002,
    "name": "Hello-World",
    "full_name": "Codertocat/Hello-World",
    "owner": {
      "login": "Codertocat",
      "id": 21031067,
      "type": "User"
    }
  },
  "sender": {
    "login": "dependabot[bot]",
    "id": 49699333,
    "type": "Bot"
  },
  "installation": {
    "id": 2311213
  }
}`

const pushEventPayload = `{
  "ref": "refs/heads/main",
  "before": "6113728f27ae82c7b1a177c8d03f9e96e0adf246",
  "after": "0000000000000000000000000000000000000000",
  "repository": {
    "id": 186853002,
    "name": "Hello-World",
    "owner": {
      "login": "Codertocat"
    }
  }
}`
