package copier

import (
	"context"
	"errors"
	"testing"
	"time"

	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesarempathy/rds-snapshot-copy/internal/aws"
)

// mockSnapshotAPI implements aws.SnapshotAPI and counts calls
type mockSnapshotAPI struct {
	region           string
	describeFunc     func(ctx context.Context, identifier string) ([]aws.SnapshotInfo, error)
	copyFunc         func(ctx context.Context, input aws.CopyInput) (*aws.SnapshotInfo, error)
	describeCalls    []string
	copyCalls        []aws.CopyInput
	waitForSnapshots int
}

func (m *mockSnapshotAPI) Region() string { return m.region }

func (m *mockSnapshotAPI) DescribeSnapshots(ctx context.Context, identifier string) ([]aws.SnapshotInfo, error) {
	m.describeCalls = append(m.describeCalls, identifier)
	if m.describeFunc != nil {
		return m.describeFunc(ctx, identifier)
	}
	return nil, errors.New("DescribeSnapshots not implemented")
}

func (m *mockSnapshotAPI) CopySnapshot(ctx context.Context, input aws.CopyInput) (*aws.SnapshotInfo, error) {
	m.copyCalls = append(m.copyCalls, input)
	if m.copyFunc != nil {
		return m.copyFunc(ctx, input)
	}
	return nil, errors.New("CopySnapshot not implemented")
}

func (m *mockSnapshotAPI) WaitForSnapshot(_ context.Context, _ string, _ time.Duration) error {
	m.waitForSnapshots++
	return nil
}

func (m *mockSnapshotAPI) GetSnapshotProgress(_ context.Context, _ string) (int, string, error) {
	return 0, "", errors.New("GetSnapshotProgress not implemented")
}

// fakeConnector hands out one mockSnapshotAPI per region and records every
// Connect call so tests can assert how many clients were constructed.
type fakeConnector struct {
	defaultRegion  string
	resolveErr     error
	connectErr     map[string]error
	apis           map[string]*mockSnapshotAPI
	connects       []string
	sourceConnects []string
}

func (f *fakeConnector) ResolveRegion(_ context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	if f.defaultRegion == "" {
		return "", aws.ErrNoRegion
	}
	return f.defaultRegion, nil
}

func (f *fakeConnector) Connect(_ context.Context, region string) (aws.SnapshotAPI, error) {
	f.connects = append(f.connects, region)
	if err := f.connectErr[region]; err != nil {
		return nil, err
	}
	api, ok := f.apis[region]
	if !ok {
		api = &mockSnapshotAPI{region: region}
		if f.apis == nil {
			f.apis = make(map[string]*mockSnapshotAPI)
		}
		f.apis[region] = api
	}
	return api, nil
}

func (f *fakeConnector) ConnectSource(ctx context.Context, region string) (aws.SnapshotAPI, error) {
	f.sourceConnects = append(f.sourceConnects, region)
	return f.Connect(ctx, region)
}

func availableSnapshot(id string) func(context.Context, string) ([]aws.SnapshotInfo, error) {
	return func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
		return []aws.SnapshotInfo{{Identifier: id, Status: "available"}}, nil
	}
}

func copiedAs(id string) func(context.Context, aws.CopyInput) (*aws.SnapshotInfo, error) {
	return func(_ context.Context, _ aws.CopyInput) (*aws.SnapshotInfo, error) {
		return &aws.SnapshotInfo{Identifier: id, ARN: "arn:aws:rds:us-west-2:000000000000:snapshot:" + id, Status: "creating"}, nil
	}
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{name: "both_present", req: Request{SourceSnapshotID: "a", TargetSnapshotID: "b"}},
		{name: "missing_source", req: Request{TargetSnapshotID: "b"}, wantErr: true},
		{name: "missing_target", req: Request{SourceSnapshotID: "a"}, wantErr: true},
		{name: "both_missing", req: Request{}, wantErr: true},
		{name: "whitespace_source", req: Request{SourceSnapshotID: "  ", TargetSnapshotID: "b"}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.req.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Error(), "missing required identifier")
		})
	}
}

func TestCopier_Copy_MissingIdentifierMakesNoCalls(t *testing.T) {
	t.Parallel()

	cases := []Request{
		{SourceSnapshotID: "", TargetSnapshotID: "target"},
		{SourceSnapshotID: "source", TargetSnapshotID: ""},
		{SourceSnapshotID: "", TargetSnapshotID: "", Region: "us-west-2", SourceRegion: "us-east-1"},
	}

	for _, req := range cases {
		conn := &fakeConnector{defaultRegion: "us-west-2"}
		c := New(conn)

		res, err := c.Copy(context.Background(), req)

		assert.Nil(t, res)
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Empty(t, conn.connects, "no client may be constructed before validation passes")
	}
}

func TestCopier_Copy_NoRegion(t *testing.T) {
	t.Parallel()

	conn := &fakeConnector{}
	c := New(conn)

	_, err := c.Copy(context.Background(), Request{SourceSnapshotID: "a", TargetSnapshotID: "b"})

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, aws.ErrNoRegion)
	assert.Empty(t, conn.connects)
}

func TestCopier_Copy_ConnectFailure(t *testing.T) {
	t.Parallel()

	conn := &fakeConnector{
		defaultRegion: "us-west-2",
		connectErr:    map[string]error{"us-east-1": errors.New("failed to load AWS config: profile not found")},
	}
	c := New(conn)

	_, err := c.Copy(context.Background(), Request{SourceSnapshotID: "a", TargetSnapshotID: "b", SourceRegion: "us-east-1"})

	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Contains(t, err.Error(), "profile not found")
}

func TestCopier_Copy_SourceLookup(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		describe func(context.Context, string) ([]aws.SnapshotInfo, error)
		wantKind Kind
		wantCode string
		wantMsg  string
	}{
		{
			name: "zero_matches",
			describe: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
				return []aws.SnapshotInfo{}, nil
			},
			wantKind: KindNotFound,
			wantMsg:  "could not find snapshot with identifier db-snap-1",
		},
		{
			name: "not_found_fault",
			describe: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
				return nil, &rdstypes.DBSnapshotNotFoundFault{}
			},
			wantKind: KindNotFound,
			wantMsg:  "could not find snapshot with identifier db-snap-1",
		},
		{
			name: "throttled",
			describe: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
				return nil, &smithy.GenericAPIError{Code: "Throttling", Message: "Rate exceeded"}
			},
			wantKind: KindProvider,
			wantCode: "Throttling",
			wantMsg:  "Throttling: Rate exceeded",
		},
		{
			name: "malformed_identifier",
			describe: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
				return nil, &smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "Invalid snapshot identifier:  db--snap"}
			},
			wantKind: KindProvider,
			wantCode: "InvalidParameterValue",
			wantMsg:  "InvalidParameterValue: Invalid snapshot identifier:  db--snap",
		},
		{
			name: "transport_error",
			describe: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
				return nil, errors.New("dial tcp: i/o timeout")
			},
			wantKind: KindProvider,
			wantMsg:  "dial tcp: i/o timeout",
		},
		{
			name: "creating",
			describe: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
				return []aws.SnapshotInfo{{Identifier: "db-snap-1", Status: "creating"}}, nil
			},
			wantKind: KindPrecondition,
			wantMsg:  "snapshot not available with identifier db-snap-1",
		},
		{
			name: "failed",
			describe: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
				return []aws.SnapshotInfo{{Identifier: "db-snap-1", Status: "failed"}}, nil
			},
			wantKind: KindPrecondition,
			wantMsg:  "status: failed",
		},
		{
			name: "status_case_sensitive",
			describe: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
				return []aws.SnapshotInfo{{Identifier: "db-snap-1", Status: "Available"}}, nil
			},
			wantKind: KindPrecondition,
		},
		{
			name: "only_first_match_inspected",
			describe: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
				return []aws.SnapshotInfo{
					{Identifier: "db-snap-1", Status: "copying"},
					{Identifier: "db-snap-1", Status: "available"},
				}, nil
			},
			wantKind: KindPrecondition,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			api := &mockSnapshotAPI{region: "us-west-2", describeFunc: tc.describe, copyFunc: copiedAs("never")}
			conn := &fakeConnector{defaultRegion: "us-west-2", apis: map[string]*mockSnapshotAPI{"us-west-2": api}}
			c := New(conn)

			res, err := c.Copy(context.Background(), Request{SourceSnapshotID: "db-snap-1", TargetSnapshotID: "db-snap-1-copy"})

			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tc.wantKind, KindOf(err))
			assert.Equal(t, tc.wantCode, ProviderCode(err))
			if tc.wantMsg != "" {
				assert.Contains(t, err.Error(), tc.wantMsg)
			}
			assert.Empty(t, api.copyCalls, "no copy may be issued when the source check fails")
		})
	}
}

func TestCopier_Copy_SameRegion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		region       string
		sourceRegion string
	}{
		{name: "source_region_omitted", region: "us-west-2"},
		{name: "source_region_equal", region: "us-west-2", sourceRegion: "us-west-2"},
		{name: "region_from_environment", sourceRegion: "us-west-2"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			api := &mockSnapshotAPI{
				region:       "us-west-2",
				describeFunc: availableSnapshot("db-snap-1"),
				copyFunc:     copiedAs("db-snap-1-copy"),
			}
			conn := &fakeConnector{defaultRegion: "us-west-2", apis: map[string]*mockSnapshotAPI{"us-west-2": api}}
			c := New(conn)

			res, err := c.Copy(context.Background(), Request{
				SourceSnapshotID: "db-snap-1",
				TargetSnapshotID: "db-snap-1-copy",
				Region:           tc.region,
				SourceRegion:     tc.sourceRegion,
			})

			require.NoError(t, err)
			assert.Equal(t, []string{"us-west-2"}, conn.connects, "exactly one client must be constructed")
			assert.Empty(t, conn.sourceConnects)
			assert.Equal(t, []string{"db-snap-1"}, api.describeCalls)
			require.Len(t, api.copyCalls, 1)
			assert.Empty(t, api.copyCalls[0].SourceRegion)

			assert.True(t, res.Changed)
			assert.Equal(t, "db-snap-1-copy", res.SnapshotID)
			assert.Equal(t, "us-west-2", res.Region)
			assert.Equal(t, "us-west-2", res.SourceRegion)
		})
	}
}

func TestCopier_Copy_CrossRegion(t *testing.T) {
	t.Parallel()

	const sourceARN = "arn:aws:rds:us-east-1:000000000000:snapshot:my-local-snapshot"

	source := &mockSnapshotAPI{
		region: "us-east-1",
		describeFunc: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
			// The provider normalises to the bare id; the copy must still use the ARN.
			return []aws.SnapshotInfo{{Identifier: "my-local-snapshot", ARN: sourceARN, Status: "available"}}, nil
		},
	}
	dest := &mockSnapshotAPI{
		region:   "us-west-2",
		copyFunc: copiedAs("my-new-snapshot-id"),
	}
	conn := &fakeConnector{apis: map[string]*mockSnapshotAPI{"us-east-1": source, "us-west-2": dest}}
	c := New(conn)

	res, err := c.Copy(context.Background(), Request{
		SourceSnapshotID: sourceARN,
		TargetSnapshotID: "my-new-snapshot-id",
		Region:           "us-west-2",
		SourceRegion:     "us-east-1",
		CopyTags:         true,
		Tags:             map[string]string{"purpose": "dr"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"us-west-2", "us-east-1"}, conn.connects)
	assert.Equal(t, []string{"us-east-1"}, conn.sourceConnects, "source client is built without the destination endpoint")

	assert.Equal(t, []string{sourceARN}, source.describeCalls, "lookup runs against the source region")
	assert.Empty(t, source.copyCalls)
	assert.Empty(t, dest.describeCalls)
	require.Len(t, dest.copyCalls, 1, "copy is issued against the destination region")

	in := dest.copyCalls[0]
	assert.Equal(t, sourceARN, in.SourceSnapshotID)
	assert.Equal(t, "my-new-snapshot-id", in.TargetSnapshotID)
	assert.Equal(t, "us-east-1", in.SourceRegion)
	assert.True(t, in.CopyTags)
	assert.Equal(t, map[string]string{"purpose": "dr"}, in.Tags)

	assert.True(t, res.Changed)
	assert.Equal(t, "my-new-snapshot-id", res.SnapshotID)
	assert.Equal(t, "us-west-2", res.Region)
	assert.Equal(t, "us-east-1", res.SourceRegion)
	assert.Equal(t, sourceARN, res.SourceSnapshotID)
}

func TestCopier_Copy_ReturnsProviderIdentifierUnchanged(t *testing.T) {
	t.Parallel()

	api := &mockSnapshotAPI{
		region:       "us-west-2",
		describeFunc: availableSnapshot("db-snap-1"),
		copyFunc:     copiedAs("Provider-Assigned-ID"),
	}
	conn := &fakeConnector{defaultRegion: "us-west-2", apis: map[string]*mockSnapshotAPI{"us-west-2": api}}

	res, err := New(conn).Copy(context.Background(), Request{SourceSnapshotID: "db-snap-1", TargetSnapshotID: "provider-assigned-id"})

	require.NoError(t, err)
	assert.Equal(t, "Provider-Assigned-ID", res.SnapshotID)
	assert.Equal(t, "creating", res.Status)
	assert.Equal(t, "arn:aws:rds:us-west-2:000000000000:snapshot:Provider-Assigned-ID", res.SnapshotARN)
}

func TestCopier_Copy_CopyFailure(t *testing.T) {
	t.Parallel()

	const msg = "Cannot create the snapshot because a snapshot with the identifier db-snap-1-copy already exists."

	api := &mockSnapshotAPI{
		region:       "us-west-2",
		describeFunc: availableSnapshot("db-snap-1"),
		copyFunc: func(_ context.Context, _ aws.CopyInput) (*aws.SnapshotInfo, error) {
			return nil, &smithy.GenericAPIError{Code: "DBSnapshotAlreadyExists", Message: msg}
		},
	}
	conn := &fakeConnector{defaultRegion: "us-west-2", apis: map[string]*mockSnapshotAPI{"us-west-2": api}}

	res, err := New(conn).Copy(context.Background(), Request{SourceSnapshotID: "db-snap-1", TargetSnapshotID: "db-snap-1-copy"})

	assert.Nil(t, res)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "CopyDBSnapshot", pe.Op)
	assert.Equal(t, "DBSnapshotAlreadyExists", pe.Code)
	assert.Equal(t, msg, pe.Message)
	assert.Len(t, api.copyCalls, 1)
}

func TestCopier_Plan(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		status     string
		wantAction PlanAction
		wantReason string
	}{
		{name: "available", status: "available", wantAction: PlanActionCopy},
		{name: "not_available", status: "creating", wantAction: PlanActionBlocked, wantReason: "status: creating"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			source := &mockSnapshotAPI{
				region: "us-east-1",
				describeFunc: func(_ context.Context, id string) ([]aws.SnapshotInfo, error) {
					return []aws.SnapshotInfo{{Identifier: id, Status: tc.status, Engine: "mysql"}}, nil
				},
			}
			dest := &mockSnapshotAPI{region: "us-west-2"}
			conn := &fakeConnector{apis: map[string]*mockSnapshotAPI{"us-east-1": source, "us-west-2": dest}}

			plan, err := New(conn).Plan(context.Background(), Request{
				SourceSnapshotID: "db-snap-1",
				TargetSnapshotID: "db-snap-2",
				Region:           "us-west-2",
				SourceRegion:     "us-east-1",
			})

			require.NoError(t, err)
			assert.Equal(t, tc.wantAction, plan.Action)
			if tc.wantReason != "" {
				assert.Contains(t, plan.Reason, tc.wantReason)
			}
			assert.True(t, plan.CrossRegion)
			assert.Equal(t, "mysql", plan.Source.Engine)
			assert.Empty(t, source.copyCalls)
			assert.Empty(t, dest.copyCalls)
		})
	}
}

func TestCopier_Plan_Errors(t *testing.T) {
	t.Parallel()

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		_, err := New(&fakeConnector{defaultRegion: "us-west-2"}).Plan(context.Background(), Request{})
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		api := &mockSnapshotAPI{
			region: "us-west-2",
			describeFunc: func(_ context.Context, _ string) ([]aws.SnapshotInfo, error) {
				return nil, nil
			},
		}
		conn := &fakeConnector{defaultRegion: "us-west-2", apis: map[string]*mockSnapshotAPI{"us-west-2": api}}

		_, err := New(conn).Plan(context.Background(), Request{SourceSnapshotID: "a", TargetSnapshotID: "b"})
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}
