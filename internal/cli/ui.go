package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/errors"
)

// stdout is where command output goes. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - accepted
	colorYellow = lipgloss.Color("220") // Amber - pending
	colorRed    = lipgloss.Color("167") // Soft red - rejected, errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleLink    = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
	StyleDim     = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleHeader = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleKey    = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

var statusStyles = map[catalog.Status]lipgloss.Style{
	catalog.StatusPending:  lipgloss.NewStyle().Foreground(colorYellow),
	catalog.StatusAccepted: lipgloss.NewStyle().Foreground(colorGreen).Bold(true),
	catalog.StatusRejected: lipgloss.NewStyle().Foreground(colorRed),
}

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// =============================================================================
// Import Notices
// =============================================================================

// importNotice phrases an import failure for the user. It reports false
// for errors that are not manifest problems.
func importNotice(err error) (string, bool) {
	switch errors.GetCode(err) {
	case errors.ErrCodeNoDependencies:
		return "No dependencies found in this manifest", true
	case errors.ErrCodeMalformedManifest:
		return "This file is not a valid package.json", true
	case errors.ErrCodeUnsupportedType:
		return "Only JSON manifests can be imported", true
	}
	return "", false
}

// =============================================================================
// Tables
// =============================================================================

// recordTable renders records as a bordered table, optionally with a
// status column colored by status. The row at index selected is
// highlighted; pass -1 for none.
func recordTable(records []catalog.Record, withStatus bool, selected int) string {
	headers := []string{"Name", "Version", "Licence", "Author", "Description"}
	if withStatus {
		headers = append(headers, "Status")
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		row := []string{r.Name, r.Version, r.Licence, r.Author, truncate(r.Description, 48)}
		if withStatus {
			row = append(row, r.Status.String())
		}
		rows[i] = row
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == -1 {
				return styleHeader.Padding(0, 1)
			}
			if row < 0 || row >= len(records) {
				return base
			}
			if withStatus && col == len(headers)-1 {
				return statusStyles[records[row].Status].Padding(0, 1)
			}
			if row == selected {
				return base.Foreground(colorCyan).Bold(true)
			}
			if col == 0 {
				return base.Foreground(colorWhite).Bold(true)
			}
			return base.Foreground(colorGray)
		})
	return t.Render()
}

func printRecords(records []catalog.Record, withStatus bool) {
	if len(records) == 0 {
		printInfo("No packages")
		return
	}
	fmt.Fprintln(stdout, recordTable(records, withStatus, -1))
}

// statusSummary formats per-status counts, e.g. "2 pending · 1 accepted".
func statusSummary(counts map[catalog.Status]int) string {
	var parts []string
	for _, s := range []catalog.Status{catalog.StatusPending, catalog.StatusAccepted, catalog.StatusRejected} {
		if n := counts[s]; n > 0 {
			parts = append(parts, statusStyles[s].Render(fmt.Sprintf("%d %s", n, s)))
		}
	}
	if len(parts) == 0 {
		return StyleDim.Render("empty")
	}
	return strings.Join(parts, StyleDim.Render(" · "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
