package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"backup-rotator/internal/rotation"
)

// OutputFormat selects how reports are printed
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// ValidOutputFormats lists the accepted --output values
var ValidOutputFormats = []OutputFormat{FormatText, FormatJSON, FormatYAML}

// ParseOutputFormat parses an --output value; empty means text
func ParseOutputFormat(s string) (OutputFormat, error) {
	if s == "" {
		return FormatText, nil
	}
	for _, f := range ValidOutputFormats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}

	names := make([]string, len(ValidOutputFormats))
	for i, f := range ValidOutputFormats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("invalid output format '%s', must be one of: %s", s, strings.Join(names, ", "))
}

// Renderer prints run and status reports
type Renderer struct {
	format OutputFormat
	writer io.Writer
	colors *ColorSystem
	width  int
}

// NewRenderer creates a renderer writing to w. colors may be nil for plain
// output.
func NewRenderer(format OutputFormat, w io.Writer, colors *ColorSystem) *Renderer {
	if colors == nil {
		colors = NewColorSystem(DarkColorTheme(), false)
	}
	return &Renderer{
		format: format,
		writer: w,
		colors: colors,
		width:  TerminalWidth(w),
	}
}

// RenderRun prints the outcome of a rotation run
func (r *Renderer) RenderRun(report *rotation.RunReport) error {
	switch r.format {
	case FormatJSON:
		return r.writeJSON(report)
	case FormatYAML:
		return r.writeYAML(report)
	}

	title := fmt.Sprintf("Rotation %s on branch %s", report.RunID, report.Branch)
	if report.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(r.writer, r.colors.Colorize(title, ColorPrimary))

	items := 0
	for _, tr := range report.Types {
		fmt.Fprintln(r.writer)
		fmt.Fprintln(r.writer, r.typeHeading(tr.Name, tr.Uploads)+"  "+r.colors.Colorize(stageSummary(tr), ColorMuted))
		if tr.Error != "" {
			fmt.Fprintln(r.writer, r.colors.Sprintf(ColorError, "  error: %s", tr.Error))
		}
		if len(tr.Items) == 0 {
			fmt.Fprintln(r.writer, r.colors.Colorize("  no items", ColorMuted))
			continue
		}

		table := r.newTable("ITEM", "STATE", "ACTIONS", "DETAIL")
		for _, ir := range tr.Items {
			detail := strings.Join(ir.Warnings, "; ")
			detailColor := ColorWarning
			if ir.Failed() {
				detail = fmt.Sprintf("%s failed: %s", ir.FailedStage, ir.Error)
				detailColor = ColorError
			}
			table.AddRow(
				Cell{Text: ir.ID},
				Cell{Text: string(ir.State), Color: stateColor(ir.State)},
				Cell{Text: joinStages(ir.Actions), Color: ColorMuted},
				Cell{Text: detail, Color: detailColor},
			)
			items++
		}
		if err := table.RenderTo(r.writer); err != nil {
			return err
		}
	}

	fmt.Fprintln(r.writer)
	summary := fmt.Sprintf("%d item(s), %d failure(s), took %s", items, report.Failures(), report.Duration.Round(time.Millisecond))
	if report.HasFailures() {
		fmt.Fprintln(r.writer, r.colors.Colorize(summary, ColorWarning))
	} else {
		fmt.Fprintln(r.writer, r.colors.Colorize(summary, ColorSuccess))
	}
	return nil
}

// RenderStatus prints the derived state of every item
func (r *Renderer) RenderStatus(report *rotation.StatusReport) error {
	switch r.format {
	case FormatJSON:
		return r.writeJSON(report)
	case FormatYAML:
		return r.writeYAML(report)
	}

	fmt.Fprintln(r.writer, r.colors.Colorize("Backup status for branch "+report.Branch, ColorPrimary))
	for _, ts := range report.Types {
		fmt.Fprintln(r.writer)
		heading := r.typeHeading(ts.Name, ts.Uploads)
		if !ts.Uploads {
			heading += r.colors.Sprintf(ColorMuted, "  keep %d", ts.RetentionCount)
		}
		fmt.Fprintln(r.writer, heading)
		if ts.Error != "" {
			fmt.Fprintln(r.writer, r.colors.Sprintf(ColorError, "  error: %s", ts.Error))
			continue
		}
		if len(ts.Items) == 0 {
			fmt.Fprintln(r.writer, r.colors.Colorize("  no items", ColorMuted))
			continue
		}

		table := r.newTable("ITEM", "STATE", "SOURCE", "LOCAL", "ARCHIVE", "REMOTE")
		for _, it := range ts.Items {
			table.AddRow(
				Cell{Text: it.ID},
				Cell{Text: string(it.State), Color: stateColor(it.State)},
				Cell{Text: yesNo(it.AtSource)},
				Cell{Text: yesNo(it.Local)},
				Cell{Text: yesNo(it.Archive)},
				Cell{Text: yesNo(it.Remote)},
			)
		}
		if err := table.RenderTo(r.writer); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) newTable(headers ...string) *Table {
	t := NewTable(r.colors, headers...)
	t.MaxWidth = r.width
	return t
}

func (r *Renderer) typeHeading(name string, uploads bool) string {
	kind := "retained"
	if uploads {
		kind = "upload"
	}
	return r.colors.Colorize(name, ColorPrimary) + " (" + kind + ")"
}

func (r *Renderer) writeJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	_, err = fmt.Fprintln(r.writer, string(data))
	return err
}

func (r *Renderer) writeYAML(v interface{}) error {
	enc := yaml.NewEncoder(r.writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal report to YAML: %w", err)
	}
	return enc.Close()
}

func stageSummary(tr *rotation.TypeReport) string {
	var parts []string
	for _, stage := range []rotation.Stage{rotation.StageCollect, rotation.StageArchive, rotation.StageUpload, rotation.StageRetain} {
		c, ok := tr.Stages[stage]
		if !ok {
			continue
		}
		part := fmt.Sprintf("%s %d", stage, c.Processed)
		if c.Failed > 0 {
			part += fmt.Sprintf(" (%d failed)", c.Failed)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func stateColor(state rotation.ItemState) Color {
	switch state {
	case rotation.StateUploaded, rotation.StateRemoved:
		return ColorSuccess
	case rotation.StateArchived, rotation.StatePendingSource:
		return ColorWarning
	case rotation.StateExpired:
		return ColorMuted
	default:
		return ColorNone
	}
}

func joinStages(stages []rotation.Stage) string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
