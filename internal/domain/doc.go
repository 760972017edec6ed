// Package domain models GNSS station displacement time-series data.
//
// # Data Source
//
// Displacement records originate from a GNSS monitoring network API. Each
// record describes one observation epoch for a fixed monitoring station:
// positional offsets versus the station's reference epoch, in meters, along
// the east, north, and vertical axes. The upstream endpoint is queried by
// station code with optional ISO-8601 date bounds and returns JSON in one of
// two shapes:
//
//	[ {record}, {record}, ... ]
//	{ "records": [ {record}, ... ] }   (or "data" instead of "records")
//
// Both shapes normalize to the same canonical sequence. The first present
// wrapper key wins; a payload that is neither a bare array nor carries a
// known wrapper key yields an empty sequence, never an error.
//
// # Field Conventions
//
// Timestamp:
//
//	Taken from the first present of "timestamp" or "date". A missing
//	timestamp is treated as the empty string, which sorts first. Records are
//	stable-sorted lexicographically on the raw timestamp string. This is
//	correct for zero-padded ISO-8601 values and only for such values; mixed
//	or non-padded formats are an accepted upstream limitation and are
//	deliberately not coerced.
//
// Displacement (de, dn, dh):
//
//	East, north, and vertical offset in meters. A value that is absent,
//	empty, or non-numeric becomes a missing sample (nil), never zero —
//	missing samples render as visible gaps in the chart rather than being
//	interpolated or dropped.
//
// Quality fields (sde, sdn, sdh, pdop, no_satellite):
//
//	Per-component standard deviations, position dilution of precision, and
//	satellite count. Not interpreted by normalization, but summarized
//	statistically for model prompts and preserved for the tabular preview.
//
// Any additional fields are carried through untouched in
// [DisplacementRecord.Fields] so the preview table can show them; they are
// never interpreted numerically.
//
// # Totality
//
// Normalization never fails. Malformed payloads degrade to an empty sequence
// and malformed values degrade to missing samples. The only errors this
// package defines are the boundary errors [ValidationError], [FetchError],
// and [AnalysisUnavailableError] raised by the network-facing stages.
package domain
