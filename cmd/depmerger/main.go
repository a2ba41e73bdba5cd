package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	go_github "github.com/google/go-github/v59/github"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/depmerger/internal/cfg"
	"github.com/simplesurance/depmerger/internal/comment"
	"github.com/simplesurance/depmerger/internal/depmerger"
	"github.com/simplesurance/depmerger/internal/githubclt"
	"github.com/simplesurance/depmerger/internal/logfields"
	"github.com/simplesurance/depmerger/internal/merge"
	"github.com/simplesurance/depmerger/internal/notify"
	"github.com/simplesurance/depmerger/internal/provider/github"
	"github.com/simplesurance/depmerger/internal/reconcile"
	"github.com/simplesurance/depmerger/internal/retry"
)

const appName = "depmerger"

var logger = zap.NewNop()

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func startHTTPSServer(listenAddr string, certFile, keyFile string, mux *http.ServeMux) {
	httpsServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: time.Minute,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating https server",
			logfields.Event("https_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpsServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down https server failed",
				logfields.Event("https_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"https server started",
			logfields.Event("https_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpsServer.ListenAndServeTLS(certFile, keyFile)
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("https server terminated", logfields.Event("https_server_terminated"))
			return
		}

		logger.Fatal(
			"https server terminated unexpectedly",
			logfields.Event("https_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: time.Minute,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose    bool
	ConfigFile string
	DryRun     bool
}

var args arguments

const defConfigFile = "/etc/depmerger/config.toml"

func registerFlags(flags *pflag.FlagSet) {
	flags.BoolVarP(&args.Verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVarP(&args.ConfigFile, "cfg-file", "c", defConfigFile, "path to the depmerger configuration file")
	flags.BoolVar(&args.DryRun, "dry-run", false, "evaluate pull requests but do not merge or comment")
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Merge dependency update pull requests when their checks passed",
		Long: "depmerger receives GitHub webhook events and merges pull requests\n" +
			"that were opened by the dependency update bot when all their checks\n" +
			"passed and they are mergeable.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	registerFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Process webhook events and run reconciliation sweeps (default)",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "reconcile",
			Short: "Run a single reconciliation sweep over all open pull requests and exit",
			Long: "Run a single reconciliation sweep over all open pull requests and exit.\n" +
				"When the configuration file contains no GitHub credentials, the token\n" +
				"of the GitHub CLI (gh) is used.",
			Args: cobra.NoArgs,
			RunE: runReconcile,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version and exit",
			Args:  cobra.NoArgs,
			Run: func(*cobra.Command, []string) {
				fmt.Printf("%s %s\n", appName, Version)
			},
		},
	)

	return rootCmd
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(args.ConfigFile)
	exitOnErr("could not open configuration files", err)
	defer file.Close()

	config, err := cfg.Parse(file)
	if err != nil {
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", args.ConfigFile), err)
	}

	if args.DryRun {
		config.DryRun = true
	}

	return config
}

func mustValidateCfg(config *cfg.Config) {
	err := config.Validate()
	exitOnErr(fmt.Sprintf("invalid configuration file: %s", args.ConfigFile), err)
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func logConfig(config *cfg.Config) {
	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("https_server_listen_addr", config.HTTPSListenAddr),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.Int64("github_app_id", config.GithubAppID),
		zap.String("metrics_endpoint", config.MetricsEndpoint),
		zap.String("status_endpoint", config.StatusEndpoint),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.Bool("dry_run", config.DryRun),
		zap.String("event_filter", config.EventFilter),
		zap.String("merger.author", config.Merger.Author),
		zap.String("merger.merge_method", config.Merger.MergeMethod),
		zap.Duration("merger.mergeable_retry_interval", config.Merger.MergeableRetryInterval),
		zap.Int64("merger.mergeable_max_retries", config.Merger.MergeableMaxRetries),
		zap.Duration("merger.reconcile_interval", config.Merger.ReconcileInterval),
		zap.Duration("merger.retry_timeout", config.Merger.RetryTimeout),
		zap.Bool("commenter.enabled", config.Commenter.Enabled),
		zap.Int("repositories", len(config.Repositories)),
		zap.Int("notifications", len(config.Notifications)),
	)
}

func mustInitInstallationSource(config *cfg.Config) reconcile.InstallationSource {
	if config.IsGithubApp() {
		pem, err := os.ReadFile(config.GithubAppPrivateKeyFile)
		if err != nil {
			logger.Fatal(
				"reading github app private key file failed",
				zap.String("github_app_private_key_file", config.GithubAppPrivateKeyFile),
				zap.Error(err),
			)
		}

		appsClt, err := githubclt.NewAppsClient(config.GithubAppID, pem)
		if err != nil {
			logger.Fatal("creating github app client failed", zap.Error(err))
		}

		return appsClt
	}

	repos := make([]*go_github.Repository, 0, len(config.Repositories))
	for _, r := range config.Repositories {
		repos = append(repos, &go_github.Repository{
			Name:  go_github.String(r.RepositoryName),
			Owner: &go_github.User{Login: go_github.String(r.Owner)},
		})
	}

	return githubclt.NewStaticInstallations(
		githubclt.New(config.GithubAPIToken, githubclt.WithRepositories(repos...)),
	)
}

func newRetryer(config *cfg.Config) *retry.Retryer {
	return retry.NewRetryer(retry.WithTimeout(config.Merger.RetryTimeout))
}

func newPipeline(config *cfg.Config, notifier *notify.Notifier) *merge.Pipeline {
	opts := []merge.Option{
		merge.WithAuthor(config.Merger.Author),
		merge.WithMergeMethod(config.Merger.MergeMethod),
		merge.WithMergeabilityPolling(
			config.Merger.MergeableRetryInterval,
			uint(config.Merger.MergeableMaxRetries),
		),
	}

	if config.DryRun {
		opts = append(opts, merge.WithDryRun())
	}

	if notifier != nil {
		opts = append(opts, merge.WithMergeHook(notifier.Hook))
	}

	return merge.NewPipeline(opts...)
}

func newNotifier(config *cfg.Config, retryer notify.Retryer) *notify.Notifier {
	if len(config.Notifications) == 0 {
		return nil
	}

	configs := make([]*notify.Config, 0, len(config.Notifications))
	for _, n := range config.Notifications {
		notifyCfg := n.NotifyConfig()
		exitOnErr("invalid notify configuration", notifyCfg.Validate())

		configs = append(configs, notifyCfg)
	}

	logger.Info(
		"merge notifications configured",
		logfields.Event("notifications_configured"),
		zap.String("notifications", notify.Configs(configs).String()),
	)

	return notify.NewNotifier(configs, retryer)
}

func installationClients(src reconcile.InstallationSource) depmerger.InstallationClientFunc {
	return func(ctx context.Context, installationID int64) (depmerger.GithubClient, error) {
		clt, err := src.InstallationClient(ctx, installationID)
		if err != nil {
			return nil, err
		}

		return clt, nil
	}
}

func runServe(*cobra.Command, []string) error {
	config := mustParseCfg()
	mustValidateCfg(config)
	exitOnErr("invalid configuration", config.ValidateListeners())

	mustInitLogger(config)
	logConfig(config)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	installationSrc := mustInitInstallationSource(config)

	retryer := newRetryer(config)
	notifier := newNotifier(config, retryer)
	pipeline := newPipeline(config, notifier)
	reconciler := reconcile.NewReconciler(
		reconcile.NewGithubInstallations(installationSrc),
		pipeline,
		retryer,
	)

	evLoopOpts := []depmerger.Option{
		depmerger.WithActionRoutineDeferFunc(panicHandler),
		depmerger.WithReconciliation(reconciler, config.Merger.ReconcileInterval),
	}

	if config.EventFilter != "" {
		filter, err := depmerger.NewFilter(config.EventFilter)
		exitOnErr("parsing event_filter failed", err)
		evLoopOpts = append(evLoopOpts, depmerger.WithFilter(filter))
	}

	if config.Commenter.Enabled {
		commenterOpts := []comment.Option{comment.WithAuthor(pipeline.Author())}
		if config.Commenter.Comment != "" {
			commenterOpts = append(commenterOpts, comment.WithComment(config.Commenter.Comment))
		}

		if config.DryRun {
			commenterOpts = append(commenterOpts, comment.WithDryRun())
		}

		evLoopOpts = append(evLoopOpts, depmerger.WithCommenter(comment.NewCommenter(commenterOpts...)))
	}

	evLoop := depmerger.NewEventLoop(
		installationClients(installationSrc),
		pipeline,
		retryer,
		evLoopOpts...,
	)

	gh := github.New(
		evLoop.C(),
		github.WithPayloadSecret(config.GithubWebHookSecret),
	)

	mux := http.NewServeMux()

	mux.HandleFunc(config.HTTPGithubWebhookEndpoint, gh.HTTPHandler)
	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	reconcile.NewHTTPService(reconciler).RegisterHandlers(mux, config.StatusEndpoint)
	logger.Info(
		"registered reconciliation status http endpoint",
		logfields.Event("status_http_handler_registered"),
		zap.String("endpoint", config.StatusEndpoint),
	)

	mux.Handle(config.MetricsEndpoint, promhttp.Handler())
	logger.Info(
		"registered prometheus metrics http endpoint",
		logfields.Event("metrics_http_handler_registered"),
		zap.String("endpoint", config.MetricsEndpoint),
	)

	goodbye.Register(func(context.Context, os.Signal) {
		logger.Debug(
			"stopping event loop",
			logfields.Event("event_loop_stopping"),
		)

		evLoop.Stop()

		if notifier != nil {
			notifier.Wait()
		}
	})

	if config.HTTPListenAddr != "" {
		startHTTPServer(config.HTTPListenAddr, mux)
	}

	if config.HTTPSListenAddr != "" {
		startHTTPSServer(
			config.HTTPSListenAddr,
			config.HTTPSCertFile,
			config.HTTPSKeyFile,
			mux,
		)
	}

	go func() {
		defer panicHandler()
		evLoop.Start()
	}()

	select {}
}

func runReconcile(*cobra.Command, []string) error {
	config := mustParseCfg()

	if config.GithubAPIToken == "" && !config.IsGithubApp() {
		token, source := githubclt.TokenFromGHCLI(githubclt.DefaultHost)
		if token == "" {
			exitOnErr("no github credentials", errors.New("the configuration file contains no credentials and no gh cli token was found"))
		}

		fmt.Fprintf(os.Stderr, "using github token from %s\n", source)
		config.GithubAPIToken = token
	}

	mustValidateCfg(config)
	mustInitLogger(config)
	logConfig(config)

	ctx, cancelFn := context.WithCancel(context.Background())
	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
		cancelFn()
	})

	retryer := newRetryer(config)
	notifier := newNotifier(config, retryer)
	pipeline := newPipeline(config, notifier)
	reconciler := reconcile.NewReconciler(
		reconcile.NewGithubInstallations(mustInitInstallationSource(config)),
		pipeline,
		retryer,
	)

	report, err := reconciler.Sweep(ctx)
	if err != nil {
		return err
	}

	if notifier != nil {
		notifier.Wait()
	}

	counts := report.Counts()
	fmt.Printf(
		"installations: %d (failed: %d), repositories: %d (failed: %d), pull requests: %d, merged: %d, skipped: %d, failed: %d\n",
		counts.Installations, counts.FailedInstallations,
		counts.Repositories, counts.FailedRepositories,
		counts.PullRequests, counts.Merged, counts.Skipped, counts.Failed,
	)

	cancelFn()

	return nil
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		return
	}

	goodbye.Exit(context.Background(), 0)
}
