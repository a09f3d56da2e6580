// Package output renders CLI results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// Format is an output format accepted by --output.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a --output value. An empty value means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string { return string(f) }

// ColorSupported reports whether f is a terminal and NO_COLOR is unset.
func ColorSupported(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes results and status lines in one format.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{out: out, format: format, color: color}
}

func (p *Printer) Format() Format { return p.format }

// Print renders data. In table format data must implement TableRenderer,
// otherwise it is printed as JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	case FormatTable:
		if r, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, r)
		}
		return PrintJSON(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// PrintOrEmpty prints emptyMsg instead of an empty table. Structured
// formats always get the data, so scripts see [] rather than prose.
func (p *Printer) PrintOrEmpty(data any, empty bool, emptyMsg string) error {
	if empty && p.format == FormatTable {
		_, _ = fmt.Fprintln(p.out, emptyMsg)
		return nil
	}
	return p.Print(data)
}

// Success, Warning and Info only print in table format.
func (p *Printer) Success(msg string) { p.status("\033[32m", msg) }
func (p *Printer) Warning(msg string) { p.status("\033[33m", msg) }
func (p *Printer) Info(msg string)    { p.status("", msg) }

func (p *Printer) status(color, msg string) {
	if p.format != FormatTable {
		return
	}
	if p.color && color != "" {
		_, _ = fmt.Fprintf(p.out, "%s%s\033[0m\n", color, msg)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}

// PrintJSON writes indented JSON.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintYAML writes data as YAML. Values are round-tripped through JSON first
// so YAML keys and string-encoded ids match the API representation.
func PrintYAML(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(generic)
}
