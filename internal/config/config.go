// Package config handles YAML configuration loading and validation
// for the rds-snapshot-copy tool.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Config represents the YAML configuration file structure
type Config struct {
	Region                     string            `yaml:"region,omitempty"`
	SourceRegion               string            `yaml:"sourceRegion,omitempty"`
	SourceDBSnapshotIdentifier string            `yaml:"sourceDBSnapshotIdentifier,omitempty"`
	TargetDBSnapshotIdentifier string            `yaml:"targetDBSnapshotIdentifier,omitempty"`
	Profile                    string            `yaml:"profile,omitempty"`
	EndpointURL                string            `yaml:"endpointURL,omitempty"`
	AccessKey                  string            `yaml:"awsAccessKey,omitempty"`
	SecretKey                  string            `yaml:"awsSecretKey,omitempty"`
	SecurityToken              string            `yaml:"securityToken,omitempty"`
	CopyTags                   bool              `yaml:"copyTags"`
	Tags                       map[string]string `yaml:"tags,omitempty"`
	Output                     string            `yaml:"output"`
	Wait                       bool              `yaml:"wait"`
	WaitTimeout                time.Duration     `yaml:"waitTimeout"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Region:       "", // Resolved from AWS_REGION / shared config if empty
		SourceRegion: "", // Same as region if empty
		CopyTags:     false,
		Output:       OutputText,
		Wait:         false,
		WaitTimeout:  60 * time.Minute,
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from CLI flag, user-controlled input is expected
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// NormalizeOutput lowercases and trims an output format. Empty means text.
func NormalizeOutput(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return OutputText
	}
	return s
}

// Validate validates the configuration. Snapshot identifiers are checked by
// the copy operation itself.
func (c *Config) Validate() error {
	c.Output = NormalizeOutput(c.Output)
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("output must be one of %s, %s, %s (got %q)", OutputText, OutputJSON, OutputYAML, c.Output)
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("awsAccessKey and awsSecretKey must be set together")
	}
	if c.SecurityToken != "" && c.AccessKey == "" {
		return fmt.Errorf("securityToken requires awsAccessKey and awsSecretKey")
	}
	if c.Wait && c.WaitTimeout <= 0 {
		return fmt.Errorf("waitTimeout must be positive when wait is enabled")
	}
	for k := range c.Tags {
		if k == "" {
			return fmt.Errorf("tag keys cannot be empty")
		}
	}
	return nil
}

// CrossRegion reports whether the source region differs from the destination
func (c *Config) CrossRegion() bool {
	return c.SourceRegion != "" && c.SourceRegion != c.Region
}

// WriteExampleConfig writes an example configuration file
func WriteExampleConfig(path string) error {
	example := &Config{
		Region:                     "us-west-2",
		SourceRegion:               "us-east-1",
		SourceDBSnapshotIdentifier: "arn:aws:rds:us-east-1:000000000000:snapshot:my-local-snapshot",
		TargetDBSnapshotIdentifier: "my-new-snapshot-id",
		CopyTags:                   true,
		Tags:                       map[string]string{"copied-by": "rds-snapshot-copy"},
		Output:                     OutputText,
		Wait:                       false,
		WaitTimeout:                60 * time.Minute,
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	header := `# RDS Snapshot Copy Configuration
#
# Copies an available RDS DB snapshot, optionally across regions.
#
# If the source is in the same region, use the snapshot identifier.
# If the source is in a different region, use the snapshot ARN.
#
# CLI flags override values from this file (--region, --source-region, etc.)

# profile: my-profile              # Optional: shared AWS config profile
# endpointURL: http://localhost:4566 # Optional: custom RDS endpoint

`
	if err := os.WriteFile(path, []byte(header+string(data)), 0600); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}

	return nil
}
