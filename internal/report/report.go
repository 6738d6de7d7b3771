// Package report renders command results as tables, plain text or JSON.
//
// Tables are drawn with tablewriter in the borderless layout used for
// inspection tools; labels are colored with gookit/color when the Printer is
// created with color enabled. JSON output is stable and carries full texts,
// while tables and plain text truncate long comments.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/chriscorrea/civil/internal/model"
)

// Format selects how results are written.
type Format int

const (
	// aligned table output (default)
	Table Format = iota
	// one tab-separated line per result
	Text
	// indented JSON
	JSON
)

// String returns the flag name of the format.
func (f Format) String() string {
	switch f {
	case Table:
		return "table"
	case Text:
		return "text"
	case JSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat resolves a format name; the empty name selects Table.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "table":
		return Table, nil
	case "text", "txt":
		return Text, nil
	case "json":
		return JSON, nil
	default:
		return 0, fmt.Errorf("unknown output format %q (want table, text or json)", name)
	}
}

// previewRunes bounds comment texts in tables and plain text.
const previewRunes = 72

var (
	toxicStyle    = color.New(color.FgRed, color.OpBold)
	nonToxicStyle = color.New(color.FgGreen)
	headingStyle  = color.New(color.FgCyan, color.OpBold)
)

// Printer writes results to an output stream.
type Printer struct {
	w      io.Writer
	format Format
	color  bool
}

// New returns a Printer writing format to w. Color only applies to Table and
// Text output.
func New(w io.Writer, format Format, colored bool) *Printer {
	return &Printer{w: w, format: format, color: colored && format != JSON}
}

// Format returns the printer's output format.
func (p *Printer) Format() Format {
	return p.format
}

func (p *Printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// table returns a borderless, left-aligned table
func (p *Printer) table(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(p.w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func (p *Printer) heading(title string) {
	if p.color {
		title = headingStyle.Render(title)
	}
	fmt.Fprintln(p.w, title)
}

// label renders a prediction label, colored when enabled
func (p *Printer) label(l model.Label) string {
	if !p.color {
		return l.String()
	}
	if l == model.Toxic {
		return toxicStyle.Render(l.String())
	}
	return nonToxicStyle.Render(l.String())
}

// preview flattens whitespace and truncates text to previewRunes
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes-1]) + "…"
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
