package domain

// RawRecord is one record exactly as decoded from the upstream JSON payload,
// with every field preserved. The preview table renders raw records in fetch
// order; normalization derives the canonical sequence from them.
type RawRecord map[string]any

// DisplacementRecord is one observation epoch in the canonical sequence.
// Nil displacement pointers mark missing samples, never zero.
type DisplacementRecord struct {
	Timestamp string   `json:"timestamp"`
	De        *float64 `json:"de"`
	Dn        *float64 `json:"dn"`
	Dh        *float64 `json:"dh"`

	// Fields holds the complete original key/value set of the record,
	// including the keys parsed above. Preview-only; never interpreted.
	Fields RawRecord `json:"-"`
}

// Series is a canonical sequence: displacement records ordered non-decreasing
// by timestamp string. Produced by [Normalize], consumed by the chart and
// preview components. Never mutated after normalization.
type Series []DisplacementRecord

// Timestamps returns the ordered timestamp strings of the series.
func (s Series) Timestamps() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = r.Timestamp
	}
	return out
}

// Component identifies one of the three displacement axes.
type Component string

const (
	ComponentEast   Component = "East"
	ComponentNorth  Component = "North"
	ComponentHeight Component = "Height"
)

// Components lists the plotted axes in display order.
var Components = []Component{ComponentEast, ComponentNorth, ComponentHeight}

// Values returns the sample column for one component, index-aligned with the
// series. Missing samples stay nil so gaps survive into the chart.
func (s Series) Values(c Component) []*float64 {
	out := make([]*float64, len(s))
	for i, r := range s {
		switch c {
		case ComponentEast:
			out[i] = r.De
		case ComponentNorth:
			out[i] = r.Dn
		case ComponentHeight:
			out[i] = r.Dh
		}
	}
	return out
}

// FieldLabels maps upstream field names to human-readable labels used in
// model prompts and summaries.
var FieldLabels = map[string]string{
	"de":           "East displacement (m)",
	"dn":           "North displacement (m)",
	"dh":           "Height displacement (m)",
	"sde":          "East displacement S.D. (m)",
	"sdn":          "North displacement S.D. (m)",
	"sdh":          "Height displacement S.D. (m)",
	"pdop":         "PDOP",
	"no_satellite": "Satellite count",
	"lat":          "Latitude",
	"lng":          "Longitude",
}

// DisplacementKeys are the primary displacement fields, in axis order.
var DisplacementKeys = []string{"de", "dn", "dh"}

// QualityKeys are the measurement-quality fields summarized for model prompts.
var QualityKeys = []string{"sde", "sdn", "sdh", "pdop", "no_satellite"}
