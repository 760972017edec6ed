package domain

import (
	"fmt"
	"strings"
)

// SummarizeStationData converts raw station records into a compact text
// summary suitable for a language-model prompt: point count, time range,
// location, per-field statistics, and a few sample rows. Statistics skip
// missing or non-numeric values rather than treating them as zero.
func SummarizeStationData(records []RawRecord, statCode string) string {
	if len(records) == 0 {
		return fmt.Sprintf("Station: %s\nNo data records found.", statCode)
	}

	total := len(records)
	lines := []string{
		fmt.Sprintf("Station: %s", statCode),
		fmt.Sprintf("Total data points: %d", total),
	}

	first := extractTimestampOrPlaceholder(records[0])
	last := extractTimestampOrPlaceholder(records[total-1])
	lines = append(lines, fmt.Sprintf("Time range: %s to %s", first, last))

	if lat, lng := parseSample(records[0]["lat"]), parseSample(records[0]["lng"]); lat != nil && lng != nil {
		lines = append(lines, fmt.Sprintf("Location: lat=%v, lng=%v", *lat, *lng))
	}

	lines = append(lines, "", "--- Displacement Statistics ---")
	lines = append(lines, fieldStats(records, DisplacementKeys)...)

	lines = append(lines, "", "--- Data Quality ---")
	lines = append(lines, fieldStats(records, QualityKeys)...)

	sampleKeys := append([]string{"timestamp"}, DisplacementKeys...)
	lines = append(lines, "", "First 3 records (timestamp, de, dn, dh):")
	for _, rec := range records[:min(3, total)] {
		lines = append(lines, "  "+sampleRow(rec, sampleKeys))
	}
	if total > 6 {
		lines = append(lines, "Last 3 records:")
		for _, rec := range records[total-3:] {
			lines = append(lines, "  "+sampleRow(rec, sampleKeys))
		}
	}

	return strings.Join(lines, "\n")
}

// fieldStats computes min/max/mean/total-change lines for each key that has
// at least one numeric value across the records.
func fieldStats(records []RawRecord, keys []string) []string {
	var out []string
	for _, key := range keys {
		var vals []float64
		for _, rec := range records {
			if v := parseSample(rec[key]); v != nil {
				vals = append(vals, *v)
			}
		}
		if len(vals) == 0 {
			continue
		}

		mn, mx, sum := vals[0], vals[0], 0.0
		for _, v := range vals {
			if v < mn {
				mn = v
			}
			if v > mx {
				mx = v
			}
			sum += v
		}
		trend := vals[len(vals)-1] - vals[0]

		label := key
		if l, ok := FieldLabels[key]; ok {
			label = l
		}
		out = append(out, fmt.Sprintf("%s: min=%.4f, max=%.4f, mean=%.4f, total_change=%+.4f",
			label, mn, mx, sum/float64(len(vals)), trend))
	}
	return out
}

func sampleRow(rec RawRecord, keys []string) string {
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if v, ok := rec[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", key, v))
		}
	}
	return strings.Join(parts, ", ")
}

func extractTimestampOrPlaceholder(rec RawRecord) string {
	if ts := extractTimestamp(rec); ts != "" {
		return ts
	}
	return "?"
}
