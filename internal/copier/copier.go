// Package copier implements the RDS snapshot copy operation.
// It validates inputs, looks up the source snapshot and issues the copy request.
package copier

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cesarempathy/rds-snapshot-copy/internal/aws"
)

// Connector builds RDS clients. aws.Connector is the production implementation.
type Connector interface {
	ResolveRegion(ctx context.Context, explicit string) (string, error)
	// Connect builds the destination client.
	Connect(ctx context.Context, region string) (aws.SnapshotAPI, error)
	// ConnectSource builds the client for a source region other than the destination.
	ConnectSource(ctx context.Context, region string) (aws.SnapshotAPI, error)
}

// Request describes a snapshot copy
type Request struct {
	SourceSnapshotID string
	TargetSnapshotID string
	// Region is the destination region. Resolved from the environment when empty.
	Region string
	// SourceRegion defaults to the destination region when empty.
	SourceRegion string
	CopyTags     bool
	Tags         map[string]string
}

// Validate checks that both identifiers are present
func (r Request) Validate() error {
	if strings.TrimSpace(r.SourceSnapshotID) == "" || strings.TrimSpace(r.TargetSnapshotID) == "" {
		return &ValidationError{Msg: "missing required identifier: source and target DB snapshot identifiers must be provided"}
	}
	return nil
}

// Result is the outcome of a successful copy request
type Result struct {
	Changed          bool   `json:"changed" yaml:"changed"`
	SnapshotID       string `json:"snapshot_id" yaml:"snapshot_id"`
	SnapshotARN      string `json:"snapshot_arn,omitempty" yaml:"snapshot_arn,omitempty"`
	Status           string `json:"status,omitempty" yaml:"status,omitempty"`
	SourceSnapshotID string `json:"source_db_snapshot_identifier" yaml:"source_db_snapshot_identifier"`
	Region           string `json:"region" yaml:"region"`
	SourceRegion     string `json:"source_region" yaml:"source_region"`
}

// Copier runs snapshot copies
type Copier struct {
	connector Connector
	logger    *zap.Logger
}

// Option configures a Copier
type Option func(*Copier)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Copier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a new Copier
func New(connector Connector, opts ...Option) *Copier {
	c := &Copier{
		connector: connector,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// clients holds the destination client and the client used for the lookup,
// which is the same instance unless the source region differs.
type clients struct {
	dest         aws.SnapshotAPI
	source       aws.SnapshotAPI
	region       string
	sourceRegion string
}

func (c clients) crossRegion() bool {
	return c.region != c.sourceRegion
}

func (c *Copier) connect(ctx context.Context, req Request) (*clients, error) {
	region, err := c.connector.ResolveRegion(ctx, req.Region)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	dest, err := c.connector.Connect(ctx, region)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	cl := &clients{dest: dest, source: dest, region: region, sourceRegion: region}
	if req.SourceRegion != "" && req.SourceRegion != region {
		source, err := c.connector.ConnectSource(ctx, req.SourceRegion)
		if err != nil {
			return nil, &ConfigurationError{Err: err}
		}
		cl.source = source
		cl.sourceRegion = req.SourceRegion
	}
	return cl, nil
}

func (c *Copier) lookup(ctx context.Context, api aws.SnapshotAPI, id string) (*aws.SnapshotInfo, error) {
	c.logger.Debug("describing source snapshot",
		zap.String("snapshot", id),
		zap.String("region", api.Region()))

	snapshots, err := api.DescribeSnapshots(ctx, id)
	if err != nil {
		if aws.IsSnapshotNotFound(err) {
			return nil, &NotFoundError{SnapshotID: id, Err: err}
		}
		return nil, newProviderError("DescribeDBSnapshots", err)
	}
	if len(snapshots) == 0 {
		return nil, &NotFoundError{SnapshotID: id}
	}

	return &snapshots[0], nil
}

// Copy validates the request, checks the source snapshot is available and
// issues a single CopyDBSnapshot request against the destination region.
func (c *Copier) Copy(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cl, err := c.connect(ctx, req)
	if err != nil {
		return nil, err
	}

	source, err := c.lookup(ctx, cl.source, req.SourceSnapshotID)
	if err != nil {
		return nil, err
	}
	if !source.Available() {
		return nil, &PreconditionError{SnapshotID: req.SourceSnapshotID, Status: source.Status}
	}

	input := aws.CopyInput{
		SourceSnapshotID: req.SourceSnapshotID,
		TargetSnapshotID: req.TargetSnapshotID,
		CopyTags:         req.CopyTags,
		Tags:             req.Tags,
	}
	if cl.crossRegion() {
		input.SourceRegion = cl.sourceRegion
	}

	c.logger.Info("copying snapshot",
		zap.String("source", req.SourceSnapshotID),
		zap.String("target", req.TargetSnapshotID),
		zap.String("source_region", cl.sourceRegion),
		zap.String("region", cl.region))

	snapshot, err := cl.dest.CopySnapshot(ctx, input)
	if err != nil {
		return nil, newProviderError("CopyDBSnapshot", err)
	}

	c.logger.Info("copy requested",
		zap.String("snapshot", snapshot.Identifier),
		zap.String("status", snapshot.Status))

	return &Result{
		Changed:          true,
		SnapshotID:       snapshot.Identifier,
		SnapshotARN:      snapshot.ARN,
		Status:           snapshot.Status,
		SourceSnapshotID: req.SourceSnapshotID,
		Region:           cl.region,
		SourceRegion:     cl.sourceRegion,
	}, nil
}

// Plan runs every check Copy runs but does not issue the copy request.
// A source that exists but is not available yields a blocked plan, not an error.
func (c *Copier) Plan(ctx context.Context, req Request) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cl, err := c.connect(ctx, req)
	if err != nil {
		return nil, err
	}

	source, err := c.lookup(ctx, cl.source, req.SourceSnapshotID)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Source:           *source,
		SourceSnapshotID: req.SourceSnapshotID,
		TargetSnapshotID: req.TargetSnapshotID,
		Region:           cl.region,
		SourceRegion:     cl.sourceRegion,
		CrossRegion:      cl.crossRegion(),
		CopyTags:         req.CopyTags,
		Tags:             req.Tags,
		Action:           PlanActionCopy,
	}
	if !source.Available() {
		plan.Action = PlanActionBlocked
		plan.Reason = (&PreconditionError{SnapshotID: req.SourceSnapshotID, Status: source.Status}).Error()
	}

	return plan, nil
}
