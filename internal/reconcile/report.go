package reconcile

import (
	"time"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
	"github.com/simplesurance/depmerger/internal/merge"
)

// RepositoryReport is the result of evaluating the open pull requests of a
// repository.
type RepositoryReport struct {
	Owner      string
	Repository string
	// Err is set when the pull requests of the repository could not be
	// listed completely.
	Err          error
	PullRequests merge.BatchReport
}

// InstallationReport contains the results for the repositories of an
// installation.
type InstallationReport struct {
	Installation *github.Installation
	// Err is set when the installation was skipped.
	Err          error
	Repositories []*RepositoryReport
}

// SweepReport is the result of a reconciliation sweep.
type SweepReport struct {
	StartTime     time.Time
	EndTime       time.Time
	Installations []*InstallationReport
}

func (s *SweepReport) installation(inst *github.Installation) *InstallationReport {
	if l := len(s.Installations); l > 0 && s.Installations[l-1].Installation.GetID() == inst.GetID() {
		return s.Installations[l-1]
	}

	r := InstallationReport{Installation: inst}
	s.Installations = append(s.Installations, &r)

	return &r
}

// Counts returns aggregated counters of the report.
func (s *SweepReport) Counts() *SweepCounts {
	var result SweepCounts

	result.Installations = uint(len(s.Installations))

	for _, inst := range s.Installations {
		if inst.Err != nil {
			result.FailedInstallations++
		}

		for _, repo := range inst.Repositories {
			result.Repositories++

			if repo.Err != nil {
				result.FailedRepositories++
			}

			result.PullRequests += uint(len(repo.PullRequests.Results))
			result.Merged += repo.PullRequests.Merged
			result.Skipped += repo.PullRequests.Skipped
			result.Failed += repo.PullRequests.Failed
		}
	}

	return &result
}

type SweepCounts struct {
	Installations       uint
	FailedInstallations uint
	Repositories        uint
	FailedRepositories  uint
	PullRequests        uint
	Merged              uint
	Skipped             uint
	Failed              uint
}

func (s *SweepReport) LogFields() []zap.Field {
	c := s.Counts()

	return []zap.Field{
		zap.Duration("sweep_duration", s.EndTime.Sub(s.StartTime)),
		zap.Uint("sweep.installations", c.Installations),
		zap.Uint("sweep.installations_failed", c.FailedInstallations),
		zap.Uint("sweep.repositories", c.Repositories),
		zap.Uint("sweep.repositories_failed", c.FailedRepositories),
		zap.Uint("sweep.pull_requests", c.PullRequests),
		zap.Uint("sweep.merged", c.Merged),
		zap.Uint("sweep.skipped", c.Skipped),
		zap.Uint("sweep.failed", c.Failed),
	}
}

func installationLogFields(inst *github.Installation) []zap.Field {
	return []zap.Field{
		logfields.Installation(inst.GetID()),
		zap.String("github.account", inst.GetAccount().GetLogin()),
	}
}
