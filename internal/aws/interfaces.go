// Package aws provides AWS RDS client functionality for DB snapshot copies.
package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/rds"
)

// rdsClientAPI is the subset of the RDS SDK client used by Client.
// It also satisfies rds.DescribeDBSnapshotsAPIClient so waiters can use it.
type rdsClientAPI interface {
	DescribeDBSnapshots(ctx context.Context, params *rds.DescribeDBSnapshotsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBSnapshotsOutput, error)
	CopyDBSnapshot(ctx context.Context, params *rds.CopyDBSnapshotInput, optFns ...func(*rds.Options)) (*rds.CopyDBSnapshotOutput, error)
}

// SnapshotAPI defines the RDS snapshot operations used by the copier.
// This interface enables mocking for unit tests.
type SnapshotAPI interface {
	// Region returns the region the client issues requests against.
	Region() string

	// DescribeSnapshots returns the snapshots matching the identifier (id or ARN).
	DescribeSnapshots(ctx context.Context, identifier string) ([]SnapshotInfo, error)

	// CopySnapshot requests a copy of a snapshot and returns the new snapshot.
	CopySnapshot(ctx context.Context, input CopyInput) (*SnapshotInfo, error)

	// WaitForSnapshot waits for a snapshot to become available.
	WaitForSnapshot(ctx context.Context, identifier string, timeout time.Duration) error

	// GetSnapshotProgress returns the progress (0-100) and status of a snapshot.
	GetSnapshotProgress(ctx context.Context, identifier string) (int, string, error)
}

// Ensure Client implements SnapshotAPI
var _ SnapshotAPI = (*Client)(nil)
