// Package cmd implements the CLI commands for the rds-snapshot-copy tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cesarempathy/rds-snapshot-copy/internal/config"
	"github.com/cesarempathy/rds-snapshot-copy/internal/copier"
	"github.com/cesarempathy/rds-snapshot-copy/internal/report"
)

var version = "dev"

var (
	// Global config file path
	configFile string
	verbose    bool

	// Loaded configuration
	cfg *config.Config

	logger = zap.NewNop()

	// CLI flag values (can override config file)
	region           string
	sourceRegion     string
	sourceSnapshotID string
	targetSnapshotID string
	profile          string
	endpointURL      string
	accessKey        string
	secretKey        string
	securityToken    string
	copyTags         bool
	tagArgs          []string
	output           string
	planOnly         bool
	waitForSnapshot  bool
	waitTimeout      time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "rds-snapshot-copy",
	Short: "Copy Amazon RDS DB snapshots within or across regions",
	Long: `Copy an available Amazon RDS DB snapshot to a new identifier,
in the same region or from another region.

The source snapshot is looked up first and must be in the "available"
state. The copy is then requested in the destination region.

Example:
  rds-snapshot-copy copy -r us-west-2 -s my-local-snapshot -t my-new-snapshot-id

  # Cross-region (the source is given as an ARN):
  rds-snapshot-copy copy -r us-west-2 --source-region us-east-1 \
    -s arn:aws:rds:us-east-1:000000000000:snapshot:my-local-snapshot \
    -t my-new-snapshot-id

  # Using a config file:
  rds-snapshot-copy copy -c config.yaml`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [filename]",
	Short: "Generate an example configuration file",
	Long:  `Generate an example YAML configuration file with default values.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := "rds-snapshot-copy.yaml"
		if len(args) > 0 {
			filename = args[0]
		}
		if err := config.WriteExampleConfig(filename); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Example configuration written to: %s\n", filename)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger(debug bool) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zcfg.DisableStacktrace = true
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// loadConfig loads configuration from file and merges with CLI flags.
// Its errors are reported by the copy command in the requested output format.
func loadConfig(cmd *cobra.Command) error {
	cfg = config.DefaultConfig()

	if configFile != "" {
		fileCfg, err := config.LoadFromFile(configFile)
		if err != nil {
			return &copier.ConfigurationError{Err: err}
		}
		cfg = fileCfg
		logger.Debug("config loaded", zap.String("path", configFile))
	}

	// Only override if the flag was explicitly set
	flags := cmd.Flags()
	if flags.Changed("region") {
		cfg.Region = region
	}
	if flags.Changed("source-region") {
		cfg.SourceRegion = sourceRegion
	}
	if flags.Changed("source-db-snapshot-identifier") {
		cfg.SourceDBSnapshotIdentifier = sourceSnapshotID
	}
	if flags.Changed("target-db-snapshot-identifier") {
		cfg.TargetDBSnapshotIdentifier = targetSnapshotID
	}
	if flags.Changed("profile") {
		cfg.Profile = profile
	}
	if flags.Changed("endpoint-url") {
		cfg.EndpointURL = endpointURL
	}
	if flags.Changed("aws-access-key") {
		cfg.AccessKey = accessKey
	}
	if flags.Changed("aws-secret-key") {
		cfg.SecretKey = secretKey
	}
	if flags.Changed("security-token") {
		cfg.SecurityToken = securityToken
	}
	if flags.Changed("copy-tags") {
		cfg.CopyTags = copyTags
	}
	if flags.Changed("tag") {
		tags, err := parseTags(tagArgs)
		if err != nil {
			return err
		}
		cfg.Tags = tags
	}
	if flags.Changed("output") {
		cfg.Output = output
	}
	if flags.Changed("wait") {
		cfg.Wait = waitForSnapshot
	}
	if flags.Changed("wait-timeout") {
		cfg.WaitTimeout = waitTimeout
	}

	return nil
}

// reportedError marks an error whose failure result was already written.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()

	if err == nil {
		return
	}

	var reported *reportedError
	if !errors.As(err, &reported) {
		_ = report.New(os.Stdout, report.FormatText).Failure(err)
	}
	os.Exit(1)
}
