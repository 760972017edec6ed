// Package preview renders a bounded tabular preview of raw station records.
package preview

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/geowatch/chartreader/internal/domain"
)

// RowCap is the maximum number of data rows shown before truncation.
const RowCap = 10

// priorityColumns orders the well-known fields ahead of everything else.
// Remaining keys sort alphabetically, since JSON decoding does not preserve
// the upstream field order.
var priorityColumns = []string{
	"timestamp", "date",
	"de", "dn", "dh",
	"sde", "sdn", "sdh",
	"pdop", "no_satellite",
	"lat", "lng",
}

// Build renders records in fetch order as a text table: headers from the
// first record's key set, at most RowCap rows, and a count-remaining
// indicator row when truncated. An empty record list yields a single
// "no data" placeholder row.
func Build(records []domain.RawRecord) (string, error) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)

	if len(records) == 0 {
		if err := table.Append([]string{"no data"}); err != nil {
			return "", err
		}
		if err := table.Render(); err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	columns := Columns(records[0])
	table.Header(columns)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	shown := min(len(records), RowCap)
	data := make([][]string, 0, shown+1)
	for _, rec := range records[:shown] {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = formatCell(rec[col])
		}
		data = append(data, row)
	}

	if remaining := len(records) - shown; remaining > 0 {
		indicator := make([]string, len(columns))
		indicator[0] = fmt.Sprintf("+%d more", remaining)
		data = append(data, indicator)
	}

	if err := table.Bulk(data); err != nil {
		return "", err
	}
	if err := table.Render(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Columns derives the column set from a single record: priority fields in
// their fixed order first, then any remaining keys alphabetically. All later
// records render against this set; their extra keys are ignored and missing
// keys become empty cells.
func Columns(first domain.RawRecord) []string {
	seen := make(map[string]bool, len(first))
	var columns []string
	for _, col := range priorityColumns {
		if _, ok := first[col]; ok {
			columns = append(columns, col)
			seen[col] = true
		}
	}

	var rest []string
	for key := range first {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

// formatCell renders one decoded JSON value for display. Absent keys arrive
// as nil and render empty.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
