// Package cfg loads the depmerger configuration file.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/depmerger/internal/merge"
	"github.com/simplesurance/depmerger/internal/notify"
)

const (
	DefHTTPGithubWebhookEndpoint = "/listener/github"
	DefMetricsEndpoint           = "/metrics"
	DefStatusEndpoint            = "/status"
	DefLogFormat                 = "logfmt"
	DefLogTimeKey                = "time_iso8601"
	DefLogLevel                  = "info"
)

type Config struct {
	HTTPListenAddr            string             `toml:"http_server_listen_addr"`
	HTTPSListenAddr           string             `toml:"https_server_listen_addr"`
	HTTPSCertFile             string             `toml:"https_ssl_cert_file"`
	HTTPSKeyFile              string             `toml:"https_ssl_key_file"`
	HTTPGithubWebhookEndpoint string             `toml:"github_webhook_endpoint"`
	GithubWebHookSecret       string             `toml:"github_webhook_secret"`
	GithubAPIToken            string             `toml:"github_api_token"`
	GithubAppID               int64              `toml:"github_app_id"`
	GithubAppPrivateKeyFile   string             `toml:"github_app_private_key_file"`
	MetricsEndpoint           string             `toml:"metrics_endpoint"`
	StatusEndpoint            string             `toml:"status_endpoint"`
	LogFormat                 string             `toml:"log_format"`
	LogTimeKey                string             `toml:"log_time_key"`
	LogLevel                  string             `toml:"log_level"`
	DryRun                    bool               `toml:"dry_run"`
	EventFilter               string             `toml:"event_filter"`
	Merger                    Merger             `toml:"merger"`
	Commenter                 Commenter          `toml:"commenter"`
	Repositories              []GithubRepository `toml:"repository"`
	Notifications             []*Notification    `toml:"notify"`
}

type GithubRepository struct {
	Owner          string `toml:"owner"`
	RepositoryName string `toml:"repository"`
}

// Merger configures how pull requests are evaluated and merged.
type Merger struct {
	Author                 string        `toml:"author"`
	MergeMethod            string        `toml:"merge_method"`
	MergeableRetryInterval time.Duration `toml:"mergeable_retry_interval" default:"10s"`
	// MergeableMaxRetries is the number of times a pull request is fetched
	// again while its mergeable state is unknown. 0 disables refetching.
	MergeableMaxRetries int64 `toml:"mergeable_max_retries" default:"4"`
	// ReconcileInterval is the interval of periodic reconciliation sweeps,
	// 0 disables them.
	ReconcileInterval time.Duration `toml:"reconcile_interval"`
	RetryTimeout      time.Duration `toml:"retry_timeout" default:"2h"`
}

// Commenter configures commenting on pull requests opened by the
// dependency update bot.
type Commenter struct {
	Enabled bool   `toml:"enabled"`
	Comment string `toml:"comment"`
}

// Notification is a HTTP request that is sent after a pull request was
// merged.
type Notification struct {
	URL      string            `toml:"url"`
	Method   string            `toml:"method"`
	User     string            `toml:"user"`
	Password string            `toml:"password"`
	Headers  map[string]string `toml:"headers"`
	Data     string            `toml:"data"`
}

// Parse reads the configuration and applies default values.
func Parse(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.setDefaults()

	return &result, nil
}

// Load parses the configuration and validates it.
func Load(reader io.Reader) (*Config, error) {
	result, err := Parse(reader)
	if err != nil {
		return nil, err
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Config) setDefaults() {
	if c.HTTPGithubWebhookEndpoint == "" {
		c.HTTPGithubWebhookEndpoint = DefHTTPGithubWebhookEndpoint
	}

	if c.MetricsEndpoint == "" {
		c.MetricsEndpoint = DefMetricsEndpoint
	}

	if c.StatusEndpoint == "" {
		c.StatusEndpoint = DefStatusEndpoint
	}

	if c.LogFormat == "" {
		c.LogFormat = DefLogFormat
	}

	if c.LogTimeKey == "" {
		c.LogTimeKey = DefLogTimeKey
	}

	if c.LogLevel == "" {
		c.LogLevel = DefLogLevel
	}

	if c.Merger.Author == "" {
		c.Merger.Author = merge.DefAuthor
	}

	if c.Merger.MergeMethod == "" {
		c.Merger.MergeMethod = merge.DefMergeMethod
	}
}

// Validate returns an error if the configuration is incomplete or contains
// invalid values.
// The http server settings are validated by ValidateListeners.
func (c *Config) Validate() error {
	if err := c.validateGithubAuth(); err != nil {
		return err
	}

	switch c.LogFormat {
	case "logfmt", "console", "json":
	default:
		return fmt.Errorf("log_format: unsupported value: %q", c.LogFormat)
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	if err := c.Merger.validate(); err != nil {
		return fmt.Errorf("merger: %w", err)
	}

	for i, n := range c.Notifications {
		if err := n.NotifyConfig().Validate(); err != nil {
			return fmt.Errorf("notify %d: %w", i, err)
		}
	}

	return nil
}

// ValidateListeners returns an error if no http server is configured or the
// https server settings are incomplete.
func (c *Config) ValidateListeners() error {
	if c.HTTPListenAddr == "" && c.HTTPSListenAddr == "" {
		return errors.New("https_server_listen_addr or http_server_listen_addr must be defined, both are unset")
	}

	if c.HTTPSListenAddr != "" && (c.HTTPSCertFile == "" || c.HTTPSKeyFile == "") {
		return errors.New("https_ssl_cert_file and https_ssl_key_file must be set when https_server_listen_addr is defined")
	}

	return nil
}

func (c *Config) validateGithubAuth() error {
	if c.GithubAppID != 0 || c.GithubAppPrivateKeyFile != "" {
		if c.GithubAppID == 0 || c.GithubAppPrivateKeyFile == "" {
			return errors.New("github_app_id and github_app_private_key_file must both be set")
		}

		if c.GithubAPIToken != "" {
			return errors.New("github_api_token and github_app_id are mutually exclusive")
		}

		if len(c.Repositories) != 0 {
			return errors.New("repository sections are only supported in combination with github_api_token, a github app processes the repositories it is installed in")
		}

		return nil
	}

	if c.GithubAPIToken == "" {
		return errors.New("either github_app_id and github_app_private_key_file or github_api_token must be set")
	}

	for i, repo := range c.Repositories {
		if repo.Owner == "" || repo.RepositoryName == "" {
			return fmt.Errorf("repository %d: owner and repository must be set", i)
		}
	}

	return nil
}

// IsGithubApp returns true if depmerger authenticates as GitHub App.
func (c *Config) IsGithubApp() bool {
	return c.GithubAppID != 0
}

func (m *Merger) validate() error {
	switch m.MergeMethod {
	case "merge", "squash", "rebase":
	default:
		return fmt.Errorf("merge_method: unsupported value: %q", m.MergeMethod)
	}

	if m.MergeableMaxRetries < 0 {
		return errors.New("mergeable_max_retries: must not be negative")
	}

	if m.MergeableRetryInterval < 0 {
		return errors.New("mergeable_retry_interval: must not be negative")
	}

	if m.ReconcileInterval < 0 {
		return errors.New("reconcile_interval: must not be negative")
	}

	if m.RetryTimeout <= 0 {
		return errors.New("retry_timeout: must be positive")
	}

	return nil
}

// NotifyConfig converts n to a notify.Config.
func (n *Notification) NotifyConfig() *notify.Config {
	return &notify.Config{
		URL:      n.URL,
		Method:   n.Method,
		User:     n.User,
		Password: n.Password,
		Headers:  n.Headers,
		Data:     n.Data,
	}
}
