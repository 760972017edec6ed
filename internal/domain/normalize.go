package domain

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

var (
	// wrapperKeys are the accepted record-bearing keys for object-shaped
	// payloads, in precedence order. First present key wins.
	wrapperKeys = []string{"records", "data"}

	// timestampKeys are the accepted timestamp field aliases, in precedence
	// order. First present key wins.
	timestampKeys = []string{"timestamp", "date"}
)

// DecodeRecords extracts the candidate record list from a raw payload.
// The payload may be a bare JSON array or an object wrapping one under an
// accepted key. Anything else, including invalid JSON, yields an empty list.
func DecodeRecords(payload []byte) []RawRecord {
	var bare []RawRecord
	if err := json.Unmarshal(payload, &bare); err == nil {
		return bare
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return nil
	}
	for _, key := range wrapperKeys {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		var records []RawRecord
		if err := json.Unmarshal(raw, &records); err == nil {
			return records
		}
		// First present key wins even when its value is not a sequence.
		return nil
	}
	return nil
}

// Normalize converts candidate records into the canonical ordered sequence.
// It is total: malformed records degrade to missing samples, and the result
// may be empty, but normalization itself never fails.
//
// Ordering is a stable lexicographic sort on the raw timestamp string, which
// matches chronological order for zero-padded ISO-8601 timestamps only. See
// the package documentation for why mixed formats are not coerced.
func Normalize(records []RawRecord) Series {
	series := make(Series, len(records))
	for i, rec := range records {
		series[i] = DisplacementRecord{
			Timestamp: extractTimestamp(rec),
			De:        parseSample(rec["de"]),
			Dn:        parseSample(rec["dn"]),
			Dh:        parseSample(rec["dh"]),
			Fields:    rec,
		}
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp < series[j].Timestamp
	})
	return series
}

// NormalizePayload runs shape detection and normalization in one step,
// returning both the canonical sequence and the raw records in fetch order
// for the preview table.
func NormalizePayload(payload []byte) (Series, []RawRecord) {
	records := DecodeRecords(payload)
	return Normalize(records), records
}

// extractTimestamp returns the first present timestamp alias as a string.
// Absent or non-string values become "", which sorts first.
func extractTimestamp(rec RawRecord) string {
	for _, key := range timestampKeys {
		if v, ok := rec[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			return ""
		}
	}
	return ""
}

// parseSample coerces a decoded JSON value into a displacement sample.
// Numbers pass through; numeric strings are parsed; everything else —
// absent, empty, non-numeric — is a missing sample, never zero.
func parseSample(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
