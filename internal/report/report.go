// Package report writes copy results and failures as text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/cesarempathy/rds-snapshot-copy/internal/config"
	"github.com/cesarempathy/rds-snapshot-copy/internal/copier"
)

// Format is an output format
type Format string

// Supported formats
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat returns the Format for s, normalised the same way config.Validate does
func ParseFormat(s string) (Format, error) {
	switch f := Format(config.NormalizeOutput(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", &copier.ValidationError{Msg: fmt.Sprintf("unknown output format %q: must be text, json or yaml", s)}
	}
}

// Failure is the structured form of a failed run
type Failure struct {
	Changed    bool   `json:"changed" yaml:"changed"`
	Failed     bool   `json:"failed" yaml:"failed"`
	Msg        string `json:"msg" yaml:"msg"`
	Error      string `json:"error" yaml:"error"`
	Code       string `json:"code,omitempty" yaml:"code,omitempty"`
	SnapshotID string `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
}

// NewFailure builds the failure result for err
func NewFailure(err error) Failure {
	return Failure{
		Changed: false,
		Failed:  true,
		Msg:     err.Error(),
		Error:   string(copier.KindOf(err)),
		Code:    copier.ProviderCode(err),
	}
}

// Console output styles
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Width(16)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1).
			MarginTop(1)
)

// Reporter writes results in one format
type Reporter struct {
	w      io.Writer
	format Format
}

// New creates a Reporter
func New(w io.Writer, format Format) *Reporter {
	return &Reporter{w: w, format: format}
}

// Success writes a successful copy result
func (r *Reporter) Success(res *copier.Result) error {
	if r.format == FormatText {
		_, err := fmt.Fprintln(r.w, renderSuccess(res))
		return err
	}
	return r.encode(res)
}

// Failure writes a failure result for err
func (r *Reporter) Failure(err error) error {
	f := NewFailure(err)
	if r.format == FormatText {
		_, werr := fmt.Fprintln(r.w, renderFailure(f))
		return werr
	}
	return r.encode(f)
}

// WaitFailure writes a failure for a copy that was requested but did not
// become available. The result still reports the change.
func (r *Reporter) WaitFailure(res *copier.Result, err error) error {
	f := NewFailure(err)
	f.Changed = res.Changed
	f.SnapshotID = res.SnapshotID
	if r.format == FormatText {
		_, werr := fmt.Fprintln(r.w, renderFailure(f))
		return werr
	}
	return r.encode(f)
}

// Plan writes a copy plan
func (r *Reporter) Plan(plan *copier.Plan) error {
	if r.format == FormatText {
		_, err := fmt.Fprint(r.w, copier.FormatPlan(plan))
		return err
	}
	return r.encode(plan)
}

func (r *Reporter) encode(v any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", r.format)
	}
}

func renderSuccess(res *copier.Result) string {
	var b strings.Builder

	b.WriteString(successStyle.Render("✓ Snapshot copy requested"))
	b.WriteString("\n\n")
	writeRow(&b, "Changed:", fmt.Sprintf("%t", res.Changed))
	writeRow(&b, "Snapshot ID:", headerStyle.Render(res.SnapshotID))
	if res.SnapshotARN != "" {
		writeRow(&b, "Snapshot ARN:", res.SnapshotARN)
	}
	if res.Status != "" {
		writeRow(&b, "Status:", res.Status)
	}
	writeRow(&b, "Source:", res.SourceSnapshotID)
	if res.SourceRegion != res.Region {
		writeRow(&b, "Regions:", fmt.Sprintf("%s → %s", res.SourceRegion, res.Region))
	} else {
		writeRow(&b, "Region:", res.Region)
	}

	return boxStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}

func renderFailure(f Failure) string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("✗ Snapshot copy failed"))
	b.WriteString("\n\n")
	writeRow(&b, "Changed:", fmt.Sprintf("%t", f.Changed))
	if f.SnapshotID != "" {
		writeRow(&b, "Snapshot ID:", headerStyle.Render(f.SnapshotID))
	}
	writeRow(&b, "Error:", f.Error)
	if f.Code != "" {
		writeRow(&b, "Code:", f.Code)
	}
	writeRow(&b, "Message:", dimStyle.Render(f.Msg))

	return boxStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}
