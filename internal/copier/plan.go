package copier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cesarempathy/rds-snapshot-copy/internal/aws"
)

// PlanAction represents what a copy would do
type PlanAction int

// Plan action constants.
const (
	PlanActionCopy PlanAction = iota
	PlanActionBlocked
)

func (a PlanAction) String() string {
	switch a {
	case PlanActionCopy:
		return "Copy"
	case PlanActionBlocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

// MarshalText renders the action by name in JSON and YAML output.
func (a PlanAction) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(a.String())), nil
}

// Plan describes the copy that would be issued
type Plan struct {
	Source           aws.SnapshotInfo  `json:"source" yaml:"source"`
	SourceSnapshotID string            `json:"source_db_snapshot_identifier" yaml:"source_db_snapshot_identifier"`
	TargetSnapshotID string            `json:"target_db_snapshot_identifier" yaml:"target_db_snapshot_identifier"`
	Region           string            `json:"region" yaml:"region"`
	SourceRegion     string            `json:"source_region" yaml:"source_region"`
	CrossRegion      bool              `json:"cross_region" yaml:"cross_region"`
	CopyTags         bool              `json:"copy_tags" yaml:"copy_tags"`
	Tags             map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Action           PlanAction        `json:"action" yaml:"action"`
	Reason           string            `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Plan formatting styles
var (
	planTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1)

	planHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75"))

	planBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1)

	planCopyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	planBlockedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	planDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	planLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Width(18)
)

// FormatPlan renders the copy plan as a colored string
func FormatPlan(plan *Plan) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(planTitleStyle.Render("═══════════════════════════════════════════════════════════"))
	b.WriteString("\n")
	b.WriteString(planTitleStyle.Render("                    SNAPSHOT COPY PLAN"))
	b.WriteString("\n")
	b.WriteString(planTitleStyle.Render("═══════════════════════════════════════════════════════════"))
	b.WriteString("\n\n")

	b.WriteString(planHeaderStyle.Render("Source snapshot:"))
	b.WriteString("\n")
	b.WriteString(planBoxStyle.Render(renderSource(plan)))
	b.WriteString("\n\n")

	b.WriteString(planHeaderStyle.Render("Copy:"))
	b.WriteString("\n")
	b.WriteString(planBoxStyle.Render(renderTarget(plan)))
	b.WriteString("\n\n")

	switch plan.Action {
	case PlanActionCopy:
		b.WriteString(planCopyStyle.Render(fmt.Sprintf("✓ Will copy %s → %s in %s", plan.SourceSnapshotID, plan.TargetSnapshotID, plan.Region)))
	case PlanActionBlocked:
		b.WriteString(planBlockedStyle.Render(fmt.Sprintf("✗ Blocked: %s", plan.Reason)))
	}
	b.WriteString("\n\n")

	return b.String()
}

func renderSource(plan *Plan) string {
	var b strings.Builder
	s := plan.Source

	writeRow(&b, "Identifier:", plan.SourceSnapshotID)
	if s.ARN != "" && s.ARN != plan.SourceSnapshotID {
		writeRow(&b, "ARN:", s.ARN)
	}
	writeRow(&b, "Region:", plan.SourceRegion)
	writeRow(&b, "Status:", s.Status)
	if s.InstanceID != "" {
		writeRow(&b, "DB instance:", s.InstanceID)
	}
	if s.Engine != "" {
		writeRow(&b, "Engine:", s.Engine)
	}
	if s.AllocatedStorage > 0 {
		writeRow(&b, "Storage:", fmt.Sprintf("%d GiB", s.AllocatedStorage))
	}
	if s.SnapshotType != "" {
		writeRow(&b, "Type:", s.SnapshotType)
	}
	if !s.CreateTime.IsZero() {
		writeRow(&b, "Created:", s.CreateTime.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	writeRow(&b, "Encrypted:", fmt.Sprintf("%t", s.Encrypted))

	return strings.TrimSuffix(b.String(), "\n")
}

func renderTarget(plan *Plan) string {
	var b strings.Builder

	writeRow(&b, "Target:", plan.TargetSnapshotID)
	writeRow(&b, "Region:", plan.Region)
	if plan.CrossRegion {
		writeRow(&b, "Cross-region:", fmt.Sprintf("%s → %s", plan.SourceRegion, plan.Region))
	}
	writeRow(&b, "Copy tags:", fmt.Sprintf("%t", plan.CopyTags))
	if len(plan.Tags) > 0 {
		writeRow(&b, "Tags:", formatTags(plan.Tags))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(planLabelStyle.Render(label))
	b.WriteString(value)
	b.WriteString("\n")
}

func formatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+tags[k])
	}
	return planDimStyle.Render(strings.Join(pairs, ", "))
}
