package githubclt

import "github.com/cli/go-gh/v2/pkg/auth"

// DefaultHost is the hostname of the public GitHub instance.
const DefaultHost = "github.com"

// TokenFromGHCLI returns the API token that the GitHub CLI (gh) is
// configured to use for host, it is either read from the GH_TOKEN and
// GITHUB_TOKEN environment variables or the gh configuration.
// source describes where the token was found.
// If no token is found, token is empty.
func TokenFromGHCLI(host string) (token, source string) {
	return auth.TokenForHost(host)
}
