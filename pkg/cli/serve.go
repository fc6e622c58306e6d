package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/frontd/internal/demo"
	"github.com/getmockd/frontd/pkg/cli/internal/parse"
	"github.com/getmockd/frontd/pkg/config"
	"github.com/getmockd/frontd/pkg/engine"
	"github.com/getmockd/frontd/pkg/logging"
	"github.com/getmockd/frontd/pkg/metrics"
	"github.com/getmockd/frontd/pkg/transport"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 30 * time.Second

// serveFlags holds all parsed command-line flags for the serve command.
type serveFlags struct {
	configFile string

	// Engine flags
	port         string
	documentRoot string
	keepAlive    bool
	upgradePath  string
	pollInterval time.Duration
	origins      string
	options      []string

	// Session flags
	gcDivisor     int
	sessionMaxAge time.Duration

	// Logging flags
	logLevel  string
	logFormat string
	logFile   string

	// Metrics flags
	metrics        bool
	metricsPath    string
	metricsRuntime bool

	statsInterval time.Duration
	noDemo        bool
}

func newServeCmd() (*cobra.Command, *serveFlags) {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the front end in the foreground",
		Long: `Start the network engine and dispatch core and serve until interrupted.

Unless --no-demo is given, the built-in controllers are registered:
  GET /hello     JSON greeting with a per-session visit counter
  GET /chat      chat page; chat traffic runs over the upgrade path
  GET /status    server statistics
  GET /healthz   liveness
  GET /metrics   Prometheus metrics (with --metrics)`,
		Example: `  # Start with defaults (port 8080, document root ./www)
  frontd serve

  # Start from a config file, overriding the port
  frontd serve --config frontd.yaml --port 9000

  # Pass raw engine options and expose metrics
  frontd serve -o enable_h2c=yes -o max_connections=512 --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildServeConfig(cmd, f)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, f)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configFile, "config", "c", "", "Path to a YAML or JSON configuration file (or set "+config.EnvConfig+")")

	fs.StringVarP(&f.port, "port", "p", config.DefaultListeningPort, "Listening port or host:port")
	fs.StringVar(&f.documentRoot, "document-root", config.DefaultDocumentRoot, "Directory served for unclaimed requests")
	fs.BoolVar(&f.keepAlive, "keep-alive", true, "Enable HTTP keep-alive")
	fs.StringVar(&f.upgradePath, "upgrade-path", config.DefaultUpgradePath, "Path reserved for WebSocket upgrades")
	fs.DurationVar(&f.pollInterval, "poll-interval", config.DefaultPollInterval, "Upper bound of one poll loop iteration")
	fs.StringVar(&f.origins, "websocket-origins", "", "Comma-separated origin patterns allowed to open WebSockets")
	fs.StringArrayVarP(&f.options, "option", "o", nil, "Raw engine option key=value, repeatable")

	fs.IntVar(&f.gcDivisor, "gc-divisor", config.DefaultGCDivisor, "Requests between session garbage collection sweeps")
	fs.DurationVar(&f.sessionMaxAge, "session-max-age", config.DefaultSessionMaxAge, "Idle time after which a session is evicted")

	fs.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	fs.StringVar(&f.logFile, "log-file", "", "Also append JSON logs to this file")

	fs.BoolVar(&f.metrics, "metrics", false, "Expose Prometheus metrics")
	fs.StringVar(&f.metricsPath, "metrics-path", config.DefaultMetricsPath, "Path of the metrics endpoint")
	fs.BoolVar(&f.metricsRuntime, "metrics-runtime", false, "Include Go runtime and process metrics")

	fs.DurationVar(&f.statsInterval, "stats-interval", 0, "Log server statistics at this interval (0 = never)")
	fs.BoolVar(&f.noDemo, "no-demo", false, "Do not register the built-in controllers")

	return cmd, f
}

func init() {
	cmd, _ := newServeCmd()
	rootCmd.AddCommand(cmd)
}

// buildServeConfig layers flags over environment over file over defaults.
// Only flags set explicitly override the lower layers.
func buildServeConfig(cmd *cobra.Command, f *serveFlags) (*config.Config, error) {
	path := f.configFile
	if path == "" {
		path = config.ConfigPathFromEnv()
	}

	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if _, err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("port") {
		cfg.ListeningPort = f.port
	}
	if changed("document-root") {
		cfg.DocumentRoot = f.documentRoot
	}
	if changed("keep-alive") {
		cfg.EnableKeepAlive = f.keepAlive
	}
	if changed("upgrade-path") {
		cfg.UpgradePath = f.upgradePath
	}
	if changed("poll-interval") {
		cfg.PollInterval = config.Duration(f.pollInterval)
	}
	if changed("gc-divisor") {
		cfg.Session.GCDivisor = f.gcDivisor
	}
	if changed("session-max-age") {
		cfg.Session.MaxAge = config.Duration(f.sessionMaxAge)
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if changed("log-file") {
		cfg.Log.File = f.logFile
	}
	if changed("metrics") {
		cfg.Metrics.Enabled = f.metrics
	}
	if changed("metrics-path") {
		cfg.Metrics.Path = f.metricsPath
	}
	if changed("metrics-runtime") {
		cfg.Metrics.Runtime = f.metricsRuntime
	}
	if origins := parse.SplitTrim(f.origins, ","); len(origins) > 0 {
		cfg.SetOption(transport.OptionWebSocketOrigins, strings.Join(origins, ","))
	}
	for _, opt := range f.options {
		key, value, ok := parse.KeyValue(opt, '=')
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOption, opt)
		}
		cfg.SetOption(strings.TrimSpace(key), value)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServe starts the server and blocks until ctx is cancelled or the
// process is interrupted.
func runServe(ctx context.Context, cfg *config.Config, f *serveFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, closer, err := logging.Open(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: os.Stderr,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	opts := []engine.Option{engine.WithLogger(logging.Component(log, "engine"))}
	if cfg.Metrics.Enabled {
		var mopts []metrics.Option
		if cfg.Metrics.Runtime {
			mopts = append(mopts, metrics.WithRuntimeMetrics())
		}
		opts = append(opts, engine.WithMetrics(metrics.New(mopts...)))
	}

	srv := engine.New(cfg, opts...)
	if !f.noDemo {
		demo.Register(srv, cfg)
	}
	if err := srv.Start(); err != nil {
		return err
	}
	log.Info("frontd listening",
		"addr", srv.Addr(),
		"documentRoot", cfg.DocumentRoot,
		"controllers", len(srv.Controllers()),
		"metrics", cfg.Metrics.Enabled,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	if f.statsInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(f.statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					srv.LogStats()
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	srv.LogStats()
	return nil
}
