package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/simplesurance/depmerger/internal/logfields"
	"github.com/simplesurance/depmerger/internal/merge"
)

const loggerName = "notifier"

// Retryer is an interface used for running requests repeatedly if they fail
// with a temporary error.
type Retryer interface {
	Run(context.Context, func(context.Context) error, []zap.Field) error
}

// Notifier sends the configured HTTP requests for merged pull requests.
// Requests are sent asynchronously in go-routines.
type Notifier struct {
	logger  *zap.Logger
	configs []*Config
	retryer Retryer

	wg sync.WaitGroup
}

func NewNotifier(configs []*Config, retryer Retryer) *Notifier {
	return &Notifier{
		logger:  zap.L().Named(loggerName),
		configs: configs,
		retryer: retryer,
	}
}

// Hook sends the notifications for result. It can be registered with
// merge.WithMergeHook.
// Notifications for dry-run merges are not sent.
func (n *Notifier) Hook(ctx context.Context, result *merge.Result) {
	logger := n.logger.With(result.LogFields()...)

	if result.DryRun {
		logger.Debug(
			"not sending notifications for simulated merge",
			logfields.Event("notification_skipped"),
		)
		return
	}

	for _, cfg := range n.configs {
		runner, err := cfg.Render(result)
		if err != nil {
			logger.Error(
				"templating notification failed",
				logfields.Event("notification_templating_failed"),
				zap.Stringer("notification", cfg),
				zap.Error(err),
			)
			continue
		}

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()

			logF := append(result.LogFields(), runner.LogFields()...)

			err := n.retryer.Run(ctx, runner.Run, logF)
			if err != nil {
				n.logger.Warn(
					"sending notification failed",
					append(logF, logfields.Event("notification_failed"), zap.Error(err))...,
				)
				return
			}

			n.logger.Info(
				"notification sent",
				append(logF, logfields.Event("notification_sent"))...,
			)
		}()
	}
}

// Wait blocks until all notifications were sent or failed.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
