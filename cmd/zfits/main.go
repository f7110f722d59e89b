package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/zfits/internal/pipeline"
	"github.com/ajitpratap0/zfits/pkg/config"
	"github.com/ajitpratap0/zfits/pkg/container/zfile"
	"github.com/ajitpratap0/zfits/pkg/logger"
	"github.com/ajitpratap0/zfits/pkg/observability"
)

var version = "0.1.0"

// app is the state shared by all subcommands once flags are parsed.
type app struct {
	configFile string
	logLevel   string
	table      string
	timeout    time.Duration

	cfg      *config.Config
	log      *zap.Logger
	driver   *zfile.Driver
	pipeline *pipeline.Pipeline
	shutdown []func(context.Context) error
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "zfits",
		Short: "zfits - read, merge and write protobuf event tables",
		Long: `zfits reads camera event tables stored as protobuf rows in zfits containers.
It lists tables, dumps them as JSON lines or Avro, merges tables of several
containers by event number and copies containers.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	root.PersistentFlags().StringVarP(&a.table, "table", "t", "", "Table to read; overrides reader.table")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Minute, "Operation timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "zfits v%s\n", version)
				fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
		a.tablesCommand(),
		a.dumpCommand(),
		a.mergeCommand(),
		a.copyCommand(),
		a.eventsCommand(),
		a.configCommand(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.table != "" {
		cfg.Reader.Table = a.table
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	a.log = logger.With(zap.String("component", "zfits-cli"))

	comp, err := cfg.Writer.CompressionConfig()
	if err != nil {
		return err
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	a.driver = zfile.NewDriver(comp, a.log)
	a.pipeline = pipeline.New(a.driver, nil, opts, a.log)

	obs := cfg.Observability
	if obs.EnableTracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceName = obs.ServiceName
		tc.ServiceVersion = version
		tc.SamplingRate = obs.TracingSampleRate
		tc.Output = os.Stderr
		shutdown, err := observability.InitTracing(tc)
		if err != nil {
			return err
		}
		a.shutdown = append(a.shutdown, shutdown)
	}
	if obs.EnableMetrics {
		srv, err := observability.StartMetricsServer(obs.MetricsAddr, a.log)
		if err != nil {
			return err
		}
		a.shutdown = append(a.shutdown, srv.Shutdown)
	}
	return nil
}

func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var first error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.shutdown = nil
	_ = logger.Sync()
	return first
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

// output opens path for writing, or returns the command's stdout for "" and "-".
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}
