// Package render prints device results as terminal tables or JSON.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"fwlog/pkg/models"
)

// Messages shown instead of a table.
const (
	NoData       = "no data"
	NoCandidates = "no candidate devices"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a94a6"))
)

// Rows projects records onto their shape's field order, skipping records
// with every field empty.
func Rows(records []models.CanonicalRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		if r.Empty() {
			continue
		}
		rows = append(rows, r.Values())
	}
	return rows
}

// Table renders records of one kind. An empty set renders NoData.
func Table(kind models.QueryKind, records []models.CanonicalRecord) string {
	rows := Rows(records)
	if len(rows) == 0 {
		return mutedStyle.Render(NoData)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(models.ShapeFor(kind).Fields()...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

// Result renders one device slot: a title, then the table or the failure.
func Result(res models.DeviceResult) string {
	var sb strings.Builder
	title := res.Device
	if res.Vendor != "" {
		title += " (" + string(res.Vendor) + ")"
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n")

	if res.Err != nil || res.Status == models.StatusFailed || res.Status == models.StatusUnsupported {
		sb.WriteString(errorStyle.Render(FailureMessage(res)))
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString(Table(res.Kind, res.Records))
	sb.WriteString("\n")
	for _, rt := range res.Tags {
		sb.WriteString(fmt.Sprintf("  ! record %d: %s", rt.Record+1, describeTag(rt.Tag)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FailureMessage describes why a device produced no records.
func FailureMessage(res models.DeviceResult) string {
	switch {
	case res.Status == models.StatusUnsupported:
		return fmt.Sprintf("unsupported vendor %q", res.Vendor)
	case res.Err == nil:
		return "failed"
	}
	msg := "failed: " + res.Err.Error()
	var typed *models.Error
	if errors.As(res.Err, &typed) && typed.Body != "" {
		body := strings.TrimSpace(typed.Body)
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		msg += "\n  last response: " + body
	}
	return msg
}

// Results renders every slot in order.
func Results(w io.Writer, results []models.DeviceResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render(NoData))
		return err
	}
	for i, res := range results {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, Result(res)); err != nil {
			return err
		}
	}
	return nil
}

// NoCandidateMessage is printed when no device covers a flow.
func NoCandidateMessage(src, dst string) string {
	return fmt.Sprintf("%s for %s -> %s", NoCandidates, src, dst)
}

// JSON writes results as an indented JSON array.
func JSON(w io.Writer, results []models.DeviceResult) error {
	if results == nil {
		results = []models.DeviceResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// Devices renders the directory listing.
func Devices(endpoints []models.FirewallEndpoint) string {
	if len(endpoints) == 0 {
		return mutedStyle.Render(NoData)
	}
	rows := make([][]string, 0, len(endpoints))
	for _, ep := range endpoints {
		rows = append(rows, []string{ep.Name, string(ep.Vendor), ep.ManagementAddress})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("name", "vendor", "management").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func describeTag(t models.Tag) string {
	parts := []string{t.ID}
	if t.Name != "" && t.Name != t.ID {
		parts = append(parts, t.Name)
	}
	if t.Severity != "" {
		parts = append(parts, "("+t.Severity+")")
	}
	if t.Technique != "" {
		parts = append(parts, t.Technique)
	}
	return strings.Join(parts, " ")
}
