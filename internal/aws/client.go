package aws

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/smithy-go"
)

// SnapshotStatusAvailable is the only status from which a snapshot can be copied.
const SnapshotStatusAvailable = "available"

// Client wraps the AWS RDS client
type Client struct {
	rds    rdsClientAPI
	region string
}

// NewRDSClient creates a new AWS RDS client from a loaded AWS config
func NewRDSClient(cfg aws.Config, optFns ...func(*rds.Options)) *Client {
	return &Client{
		rds:    rds.NewFromConfig(cfg, optFns...),
		region: cfg.Region,
	}
}

// NewRDSClientWithInterface creates a Client around an existing SDK implementation
func NewRDSClientWithInterface(api rdsClientAPI, region string) *Client {
	return &Client{rds: api, region: region}
}

// SnapshotInfo contains information about an RDS DB snapshot
type SnapshotInfo struct {
	Identifier       string    `json:"identifier" yaml:"identifier"`
	ARN              string    `json:"arn,omitempty" yaml:"arn,omitempty"`
	Status           string    `json:"status" yaml:"status"`
	Region           string    `json:"region,omitempty" yaml:"region,omitempty"`
	InstanceID       string    `json:"db_instance_identifier,omitempty" yaml:"db_instance_identifier,omitempty"`
	Engine           string    `json:"engine,omitempty" yaml:"engine,omitempty"`
	SnapshotType     string    `json:"snapshot_type,omitempty" yaml:"snapshot_type,omitempty"`
	AllocatedStorage int32     `json:"allocated_storage,omitempty" yaml:"allocated_storage,omitempty"`
	PercentProgress  int32     `json:"percent_progress" yaml:"percent_progress"`
	Encrypted        bool      `json:"encrypted" yaml:"encrypted"`
	CreateTime       time.Time `json:"create_time,omitempty" yaml:"create_time,omitempty"`
}

// Available reports whether the snapshot can be used as a copy source
func (s SnapshotInfo) Available() bool {
	return s.Status == SnapshotStatusAvailable
}

// CopyInput describes a CopyDBSnapshot request
type CopyInput struct {
	// SourceSnapshotID is sent as given. Cross-region sources must be ARNs.
	SourceSnapshotID string
	TargetSnapshotID string
	// SourceRegion is set when the source lives in another region so the SDK
	// can presign the request.
	SourceRegion string
	CopyTags     bool
	Tags         map[string]string
}

func snapshotFromSDK(s rdstypes.DBSnapshot, region string) SnapshotInfo {
	return SnapshotInfo{
		Identifier:       aws.ToString(s.DBSnapshotIdentifier),
		ARN:              aws.ToString(s.DBSnapshotArn),
		Status:           aws.ToString(s.Status),
		Region:           region,
		InstanceID:       aws.ToString(s.DBInstanceIdentifier),
		Engine:           aws.ToString(s.Engine),
		SnapshotType:     aws.ToString(s.SnapshotType),
		AllocatedStorage: aws.ToInt32(s.AllocatedStorage),
		PercentProgress:  aws.ToInt32(s.PercentProgress),
		Encrypted:        aws.ToBool(s.Encrypted),
		CreateTime:       aws.ToTime(s.SnapshotCreateTime),
	}
}

// Region returns the region this client is bound to
func (c *Client) Region() string {
	return c.region
}

// DescribeSnapshots returns all DB snapshots matching the identifier
func (c *Client) DescribeSnapshots(ctx context.Context, identifier string) ([]SnapshotInfo, error) {
	result, err := c.rds.DescribeDBSnapshots(ctx, &rds.DescribeDBSnapshotsInput{
		DBSnapshotIdentifier: aws.String(identifier),
	})
	if err != nil {
		return nil, err
	}

	snapshots := make([]SnapshotInfo, 0, len(result.DBSnapshots))
	for _, s := range result.DBSnapshots {
		snapshots = append(snapshots, snapshotFromSDK(s, c.region))
	}
	return snapshots, nil
}

// CopySnapshot issues a CopyDBSnapshot request
func (c *Client) CopySnapshot(ctx context.Context, input CopyInput) (*SnapshotInfo, error) {
	params := &rds.CopyDBSnapshotInput{
		SourceDBSnapshotIdentifier: aws.String(input.SourceSnapshotID),
		TargetDBSnapshotIdentifier: aws.String(input.TargetSnapshotID),
		Tags:                       sdkTags(input.Tags),
	}
	if input.CopyTags {
		params.CopyTags = aws.Bool(true)
	}
	if input.SourceRegion != "" && input.SourceRegion != c.region {
		params.SourceRegion = aws.String(input.SourceRegion)
	}

	result, err := c.rds.CopyDBSnapshot(ctx, params)
	if err != nil {
		return nil, err
	}
	if result.DBSnapshot == nil {
		return nil, fmt.Errorf("copy of %s returned no snapshot", input.SourceSnapshotID)
	}

	info := snapshotFromSDK(*result.DBSnapshot, c.region)
	return &info, nil
}

// WaitForSnapshot waits for a snapshot to become available
func (c *Client) WaitForSnapshot(ctx context.Context, identifier string, timeout time.Duration) error {
	waiter := rds.NewDBSnapshotAvailableWaiter(c.rds)
	return waiter.Wait(ctx, &rds.DescribeDBSnapshotsInput{
		DBSnapshotIdentifier: aws.String(identifier),
	}, timeout)
}

// GetSnapshotProgress returns the progress of a snapshot (0-100) and its status
func (c *Client) GetSnapshotProgress(ctx context.Context, identifier string) (int, string, error) {
	snapshots, err := c.DescribeSnapshots(ctx, identifier)
	if err != nil {
		return 0, "", err
	}

	if len(snapshots) == 0 {
		return 0, "", fmt.Errorf("snapshot not found: %s", identifier)
	}

	s := snapshots[0]
	return int(s.PercentProgress), s.Status, nil
}

// IsSnapshotNotFound reports whether err is the RDS DBSnapshotNotFound fault
func IsSnapshotNotFound(err error) bool {
	var notFound *rdstypes.DBSnapshotNotFoundFault
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "DBSnapshotNotFound"
}

func sdkTags(tags map[string]string) []rdstypes.Tag {
	if len(tags) == 0 {
		return nil
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]rdstypes.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, rdstypes.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}
