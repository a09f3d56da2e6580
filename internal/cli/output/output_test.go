package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type mappingRow struct {
	ID    string   `json:"id"`
	Roles []uint64 `json:"roles"`
}

func TestPrinterPrint(t *testing.T) {
	data := mappingRow{ID: "m1", Roles: []uint64{1, 2}}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatJSON, false).Print(data))
	assert.JSONEq(t, `{"id":"m1","roles":[1,2]}`, buf.String())

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatYAML, false).Print(data))
	assert.Contains(t, buf.String(), "id: m1")
	assert.Contains(t, buf.String(), "roles:")

	// Table format falls back to JSON for non-renderers.
	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(data))
	assert.Contains(t, buf.String(), `"id": "m1"`)
}

func TestPrinterPrintOrEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	require.NoError(t, p.PrintOrEmpty(NewTableData("ID"), true, "No mappings."))
	assert.Equal(t, "No mappings.\n", buf.String())

	buf.Reset()
	p = NewPrinter(&buf, FormatJSON, false)
	require.NoError(t, p.PrintOrEmpty([]mappingRow{}, true, "No mappings."))
	assert.Equal(t, "[]\n", buf.String())
}

func TestPrinterStatusOnlyInTable(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, FormatTable, false).Success("done")
	assert.Equal(t, "done\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatTable, true).Warning("careful")
	assert.Equal(t, "\033[33mcareful\033[0m\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatJSON, false).Success("done")
	assert.Empty(t, buf.String())
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Subject", "Added")
	table.AddRow("42", "1,2")
	table.AddRow("43", "-")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "SUBJECT")
	assert.Contains(t, out, "ADDED")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "1,2")
}

func TestPrintKeyValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintKeyValues(&buf, [][2]string{{"Target", "9000"}, {"Auto sync", "yes"}}))
	assert.Contains(t, buf.String(), "Target")
	assert.Contains(t, buf.String(), "9000")
	assert.Contains(t, buf.String(), "Auto sync")
}

func TestValues(t *testing.T) {
	assert.Equal(t, "-", Snowflakes(nil))
	assert.Equal(t, "1,20,300", Snowflakes([]uint64{1, 20, 300}))
	assert.Equal(t, "yes", YesNo(true))
	assert.Equal(t, "no", YesNo(false))
	assert.Equal(t, "-", EmptyOr("", "-"))
	assert.Equal(t, "x", EmptyOr("x", "-"))
	assert.Equal(t, "-", Time(time.Time{}))
	assert.Equal(t, "-", Percent(1, 0))
	assert.Equal(t, "50.0%", Percent(1, 2))
}

func TestUptime(t *testing.T) {
	assert.Equal(t, "3d 0h 30m 15s", Uptime("72h30m15s"))
	assert.Equal(t, "2h 0m 5s", Uptime("2h5s"))
	assert.Equal(t, "1m 1s", Uptime("61s"))
	assert.Equal(t, "9s", Uptime("9.4s"))
	assert.Equal(t, "bogus", Uptime("bogus"))
}
