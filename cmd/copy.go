package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cesarempathy/rds-snapshot-copy/internal/aws"
	"github.com/cesarempathy/rds-snapshot-copy/internal/config"
	"github.com/cesarempathy/rds-snapshot-copy/internal/copier"
	"github.com/cesarempathy/rds-snapshot-copy/internal/report"
	"github.com/cesarempathy/rds-snapshot-copy/internal/ui"
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy a DB snapshot",
	Long: `Copy an available RDS DB snapshot to a new identifier.

If the source snapshot is in the same region as the destination, use its
identifier. If it is in another region, set --source-region and pass the
snapshot ARN.`,
	Args: cobra.NoArgs,
	RunE: runCopy,
}

func init() {
	flags := copyCmd.Flags()
	flags.StringVarP(&region, "region", "r", "", "Destination region (defaults to AWS_REGION, shared config or EC2_REGION)")
	flags.StringVar(&sourceRegion, "source-region", "", "Region of the source snapshot (defaults to --region)")
	flags.StringVarP(&sourceSnapshotID, "source-db-snapshot-identifier", "s", "", "Identifier or ARN of the snapshot to copy")
	flags.StringVarP(&targetSnapshotID, "target-db-snapshot-identifier", "t", "", "Identifier of the new snapshot")
	flags.StringVar(&profile, "profile", "", "Shared AWS config profile")
	flags.StringVar(&endpointURL, "endpoint-url", "", "Custom RDS endpoint URL for the destination region")
	flags.StringVar(&accessKey, "aws-access-key", "", "AWS access key ID")
	flags.StringVar(&secretKey, "aws-secret-key", "", "AWS secret access key")
	flags.StringVar(&securityToken, "security-token", "", "AWS session token")
	flags.BoolVar(&copyTags, "copy-tags", false, "Copy all tags from the source snapshot")
	flags.StringSliceVar(&tagArgs, "tag", nil, "Tag to add to the new snapshot as key=value (repeatable)")
	flags.StringVarP(&output, "output", "o", config.OutputText, "Output format: text, json or yaml")
	flags.BoolVar(&planOnly, "plan", false, "Check the source snapshot and show the copy plan without copying")
	flags.BoolVar(&waitForSnapshot, "wait", false, "Wait for the new snapshot to become available")
	flags.DurationVar(&waitTimeout, "wait-timeout", 60*time.Minute, "Maximum time to wait with --wait")
}

// newConnector builds the AWS connection factory from the merged config
func newConnector(c *config.Config) copier.Connector {
	return aws.NewConnector(
		aws.WithLogger(logger),
		aws.WithProfile(c.Profile),
		aws.WithEndpointURL(c.EndpointURL),
		aws.WithStaticCredentials(c.AccessKey, c.SecretKey, c.SecurityToken),
	)
}

// copyRun holds what one invocation of the copy command writes to and connects with
type copyRun struct {
	out          io.Writer
	tui          io.Writer
	plan         bool
	newConnector func(*config.Config) copier.Connector
}

func runCopy(cmd *cobra.Command, _ []string) error {
	run := &copyRun{
		out:          cmd.OutOrStdout(),
		tui:          cmd.ErrOrStderr(),
		plan:         planOnly,
		newConnector: newConnector,
	}

	if err := loadConfig(cmd); err != nil {
		return fail(report.New(run.out, flagFormat()), err)
	}
	return run.execute(cmd.Context(), cfg)
}

// flagFormat is the --output value, used when the config itself could not be loaded
func flagFormat() report.Format {
	format, err := report.ParseFormat(output)
	if err != nil {
		return report.FormatText
	}
	return format
}

func (r *copyRun) execute(ctx context.Context, c *config.Config) error {
	format, err := report.ParseFormat(c.Output)
	if err != nil {
		return fail(report.New(r.out, report.FormatText), err)
	}
	reporter := report.New(r.out, format)

	if err := c.Validate(); err != nil {
		return fail(reporter, &copier.ValidationError{Msg: err.Error()})
	}

	connector := r.newConnector(c)
	cp := copier.New(connector, copier.WithLogger(logger))
	req := requestFromConfig(c)

	logger.Debug("copy requested",
		zap.String("source", req.SourceSnapshotID),
		zap.String("target", req.TargetSnapshotID),
		zap.Bool("cross_region", c.CrossRegion()),
		zap.Bool("plan", r.plan))

	if r.plan {
		return handlePlanMode(ctx, cp, req, reporter)
	}

	res, err := cp.Copy(ctx, req)
	if err != nil {
		return fail(reporter, err)
	}

	if c.Wait {
		if err := r.waitForAvailable(ctx, connector, res, format, c.WaitTimeout); err != nil {
			werr := &copier.WaitError{SnapshotID: res.SnapshotID, Err: err}
			logger.Warn("wait failed", zap.String("snapshot", res.SnapshotID), zap.Error(err))
			if rerr := reporter.WaitFailure(res, werr); rerr != nil {
				return rerr
			}
			return &reportedError{err: werr}
		}
		res.Status = aws.SnapshotStatusAvailable
	}

	return reporter.Success(res)
}

// handlePlanMode reports the copy plan. A blocked plan exits non-zero.
func handlePlanMode(ctx context.Context, cp *copier.Copier, req copier.Request, reporter *report.Reporter) error {
	plan, err := cp.Plan(ctx, req)
	if err != nil {
		return fail(reporter, err)
	}
	if err := reporter.Plan(plan); err != nil {
		return err
	}
	if plan.Action == copier.PlanActionBlocked {
		return &reportedError{err: errors.New(plan.Reason)}
	}
	return nil
}

// waitForAvailable blocks until the copied snapshot is available. Text output
// shows progress, other formats use the SDK waiter so stdout stays parseable.
func (r *copyRun) waitForAvailable(ctx context.Context, connector copier.Connector, res *copier.Result, format report.Format, timeout time.Duration) error {
	api, err := connector.Connect(ctx, res.Region)
	if err != nil {
		return err
	}

	logger.Debug("waiting for snapshot",
		zap.String("snapshot", res.SnapshotID),
		zap.String("region", res.Region),
		zap.Duration("timeout", timeout))

	if format != report.FormatText {
		return api.WaitForSnapshot(ctx, res.SnapshotID, timeout)
	}

	model := ui.NewModel(ctx, api, res.SnapshotID, res.Region, timeout)
	p := tea.NewProgram(model, tea.WithOutput(r.tui))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("UI error: %w", err)
	}
	fm, ok := finalModel.(ui.Model)
	if !ok {
		return nil
	}
	logger.Debug("wait finished",
		zap.Bool("available", fm.Done()),
		zap.String("status", fm.Status()))
	return fm.Err()
}

func requestFromConfig(c *config.Config) copier.Request {
	return copier.Request{
		SourceSnapshotID: c.SourceDBSnapshotIdentifier,
		TargetSnapshotID: c.TargetDBSnapshotIdentifier,
		Region:           c.Region,
		SourceRegion:     c.SourceRegion,
		CopyTags:         c.CopyTags,
		Tags:             c.Tags,
	}
}

// parseTags turns key=value arguments into a tag map
func parseTags(args []string) (map[string]string, error) {
	tags := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, &copier.ValidationError{Msg: fmt.Sprintf("invalid tag %q: expected key=value", arg)}
		}
		tags[k] = v
	}
	return tags, nil
}

// fail writes the failure result and marks err as reported
func fail(reporter *report.Reporter, err error) error {
	logger.Debug("copy failed", zap.String("kind", string(copier.KindOf(err))), zap.Error(err))
	if werr := reporter.Failure(err); werr != nil {
		return werr
	}
	return &reportedError{err: err}
}
