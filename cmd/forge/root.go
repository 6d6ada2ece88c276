package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conventionforge/forge/pkg/logging"
	"github.com/conventionforge/forge/pkg/telemetry"
)

// runtimeState holds the self-instrumentation providers and logger built by
// root's PersistentPreRunE, threaded to subcommands via globalOptions rather
// than package-level globals so tests could construct a rootCmd in
// isolation if they needed to.
type runtimeState struct {
	telemetry *telemetry.Providers
	logger    *logging.Logger
	stopProfiling func()
}

// globalOptions carries the persistent flags every subcommand reads,
// mirroring cmd/motel/main.go's runOptions struct pattern of one flat
// options struct threaded from flag binding through to execution.
type globalOptions struct {
	maxDepth            int
	includeUnreferenced bool
	lineage             bool
	cacheDir            string
	noCache             bool

	telemetryEnabled  bool
	telemetryEndpoint string
	telemetryProtocol string
	telemetryStdout   bool

	logLevel string
	logJSON  bool

	profileAddr string

	runtime *runtimeState
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "forge",
		Short:        "Semantic convention registry compiler",
		SilenceUsage: true,
	}

	root.PersistentFlags().IntVar(&opts.maxDepth, "max-depth", 0, "maximum registry dependency chain length (0 = default)")
	root.PersistentFlags().BoolVar(&opts.includeUnreferenced, "include-unreferenced", false, "keep groups/attributes unreachable from any import (skip Pass 5 GC)")
	root.PersistentFlags().BoolVar(&opts.lineage, "lineage", false, "keep the ref lineage recorded on resolved attributes (groups carry no lineage)")
	root.PersistentFlags().StringVar(&opts.cacheDir, "cache-dir", "", "fetch cache root directory (default: OS user cache dir)")
	root.PersistentFlags().BoolVar(&opts.noCache, "no-cache", false, "disable the on-disk fetch cache")

	root.PersistentFlags().BoolVar(&opts.telemetryEnabled, "telemetry", false, "emit self-instrumentation traces/metrics/logs for this run")
	root.PersistentFlags().StringVar(&opts.telemetryEndpoint, "telemetry-endpoint", "", "OTLP endpoint for self-instrumentation (e.g. localhost:4318)")
	root.PersistentFlags().StringVar(&opts.telemetryProtocol, "telemetry-protocol", "http/protobuf", "OTLP protocol for self-instrumentation (http/protobuf or grpc)")
	root.PersistentFlags().BoolVar(&opts.telemetryStdout, "telemetry-stdout", false, "emit self-instrumentation as JSON to stderr instead of OTLP")

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "emit logs as JSON instead of console format")

	root.PersistentFlags().StringVar(&opts.profileAddr, "profile-server", "", "pyroscope server address; enables continuous profiling when set")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := validateProtocolFlag(opts.telemetryProtocol); err != nil {
			return err
		}

		logger, shutdownLogger, err := logging.Setup(logging.Options{Level: opts.logLevel, JSON: opts.logJSON})
		if err != nil {
			return err
		}

		providers, err := telemetry.Setup(cmd.Context(), opts.telemetryOptions())
		if err != nil {
			shutdownLogger()
			return err
		}

		stopProfiling, err := startProfiling(opts.profileAddr)
		if err != nil {
			providers.Shutdown()
			shutdownLogger()
			return err
		}

		opts.runtime = &runtimeState{
			telemetry:     providers,
			logger:        logger,
			stopProfiling: stopProfiling,
		}
		cmd.SetContext(withRuntime(cmd.Context(), opts.runtime))
		return nil
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if opts.runtime == nil {
			return nil
		}
		opts.runtime.stopProfiling()
		opts.runtime.telemetry.Shutdown()
		_ = opts.runtime.logger.Sync()
		return nil
	}

	root.AddCommand(resolveCmd(opts))
	root.AddCommand(checkCmd(opts))
	root.AddCommand(generateCmd(opts))
	root.AddCommand(cacheCmd(opts))
	root.AddCommand(versionCmd())

	return root
}

func (o *globalOptions) telemetryOptions() telemetry.Options {
	return telemetry.Options{
		Enabled:  o.telemetryEnabled,
		Endpoint: o.telemetryEndpoint,
		Protocol: o.telemetryProtocol,
		Stdout:   o.telemetryStdout,
		Version:  version,
	}
}

func validateProtocolFlag(p string) error {
	switch p {
	case "http/protobuf", "grpc", "":
		return nil
	default:
		return fmt.Errorf("unsupported telemetry protocol %q, supported: http/protobuf, grpc", p)
	}
}
