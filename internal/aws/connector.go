package aws

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"go.uber.org/zap"
)

// ErrNoRegion is returned when no region can be resolved from flags,
// environment or shared AWS configuration.
var ErrNoRegion = errors.New("no region configured: set --region, AWS_REGION, AWS_DEFAULT_REGION, EC2_REGION or a region in the shared AWS config")

// legacyRegionEnv is honoured after the SDK's own AWS_REGION/AWS_DEFAULT_REGION lookup.
const legacyRegionEnv = "EC2_REGION"

type loadConfigFunc func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error)

// Connector builds RDS clients for a region. It resolves credentials from
// static keys when given, otherwise from the default provider chain.
type Connector struct {
	logger          *zap.Logger
	profile         string
	endpointURL     string
	accessKeyID     string
	secretAccessKey string
	sessionToken    string

	loadConfig loadConfigFunc
	getenv     func(string) string
	newClient  func(cfg aws.Config, optFns ...func(*rds.Options)) *Client
}

// ConnectorOption configures a Connector
type ConnectorOption func(*Connector)

// WithLogger sets the logger used to report credential and endpoint choices.
func WithLogger(logger *zap.Logger) ConnectorOption {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProfile selects a shared config profile.
func WithProfile(profile string) ConnectorOption {
	return func(c *Connector) {
		c.profile = profile
	}
}

// WithEndpointURL overrides the RDS endpoint.
func WithEndpointURL(url string) ConnectorOption {
	return func(c *Connector) {
		c.endpointURL = url
	}
}

// WithStaticCredentials uses the given keys instead of the default provider chain.
// Both accessKeyID and secretAccessKey must be set for them to take effect.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) ConnectorOption {
	return func(c *Connector) {
		c.accessKeyID = accessKeyID
		c.secretAccessKey = secretAccessKey
		c.sessionToken = sessionToken
	}
}

// NewConnector creates a Connector
func NewConnector(opts ...ConnectorOption) *Connector {
	c := &Connector{
		logger:     zap.NewNop(),
		loadConfig: config.LoadDefaultConfig,
		getenv:     os.Getenv,
		newClient:  NewRDSClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) hasStaticCredentials() bool {
	return c.accessKeyID != "" && c.secretAccessKey != ""
}

func (c *Connector) loadOptions(region string) []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error
	if c.profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(c.profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if c.hasStaticCredentials() {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.accessKeyID, c.secretAccessKey, c.sessionToken),
		))
	}
	return opts
}

// ResolveRegion returns explicit when set, otherwise the region from the
// environment or shared config, falling back to EC2_REGION.
func (c *Connector) ResolveRegion(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	cfg, err := c.loadConfig(ctx, c.loadOptions("")...)
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region != "" {
		c.logger.Debug("region resolved from AWS config", zap.String("region", cfg.Region))
		return cfg.Region, nil
	}

	if region := c.getenv(legacyRegionEnv); region != "" {
		c.logger.Debug("region resolved from environment", zap.String("env", legacyRegionEnv), zap.String("region", region))
		return region, nil
	}

	return "", ErrNoRegion
}

// Connect creates the destination RDS client bound to region. The endpoint
// override, when set, applies to this client.
func (c *Connector) Connect(ctx context.Context, region string) (SnapshotAPI, error) {
	return c.connect(ctx, region, true)
}

// ConnectSource creates an RDS client for the region holding the source
// snapshot. It always uses the regional endpoint.
func (c *Connector) ConnectSource(ctx context.Context, region string) (SnapshotAPI, error) {
	return c.connect(ctx, region, false)
}

func (c *Connector) connect(ctx context.Context, region string, destination bool) (SnapshotAPI, error) {
	if region == "" {
		return nil, ErrNoRegion
	}

	cfg, err := c.loadConfig(ctx, c.loadOptions(region)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	provider := "default chain"
	if c.hasStaticCredentials() {
		provider = "static keys"
	}
	c.logger.Info("aws.credentials",
		zap.String("provider", provider),
		zap.String("profile", c.profile),
		zap.String("region", region))

	var optFns []func(*rds.Options)
	if destination && c.endpointURL != "" {
		endpoint := c.endpointURL
		c.logger.Info("aws.endpoint", zap.String("url", endpoint))
		optFns = append(optFns, func(o *rds.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	return c.newClient(cfg, optFns...), nil
}
