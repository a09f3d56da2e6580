package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LocalTimeFormat is used for timestamps in tables.
const LocalTimeFormat = "2006-01-02 15:04:05"

// Snowflakes joins ids with commas, or returns "-" when there are none.
func Snowflakes(ids []uint64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ",")
}

func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// EmptyOr returns fallback for an empty value.
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Time formats t in local time, or "-" for the zero time.
func Time(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(LocalTimeFormat)
}

// Uptime renders a Go duration string such as "72h30m15s" as "3d 0h 30m 15s".
// Unparseable input is returned unchanged.
func Uptime(s string) string {
	d, err := time.ParseDuration(s)
	if err != nil {
		return s
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Percent renders part/total, or "-" when total is zero.
func Percent(part, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}
