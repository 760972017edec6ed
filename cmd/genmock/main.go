// Command genmock generates synthetic GNSS displacement fixtures for local
// development and test suites. Output is deterministic for a given seed, and
// the fixtures exercise every payload shape the normalizer accepts: bare
// arrays, wrapped arrays, missing samples, and string-encoded numbers.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/bkk1_30d.json -stat-code BKK1 -points 30
//	go run ./cmd/genmock -out data/mock/bkk1_wrapped.json -wrap records
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/geowatch/chartreader/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the JSON fixture")
	statCode := flag.String("stat-code", "BKK1", "station code embedded in each record")
	points := flag.Int("points", 30, "number of daily records to generate")
	start := flag.String("start", "2024-01-01", "first record date, YYYY-MM-DD")
	wrap := flag.String("wrap", "bare", "payload shape: bare, records, or data")
	seed := flag.Int64("seed", 42, "rng seed for reproducible noise")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		return fmt.Errorf("parsing -start: %w", err)
	}

	records := generate(*statCode, startDate, *points, rand.New(rand.NewSource(*seed)))

	var payload any
	switch *wrap {
	case "bare":
		payload = records
	case "records", "data":
		payload = map[string]any{*wrap: records}
	default:
		return fmt.Errorf("unknown -wrap value %q: want bare, records, or data", *wrap)
	}

	if err := writeJSON(*out, payload); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d records to %s (%s)", len(records), *out, *wrap)

	// Run the fixture through the real normalizer so a broken generator
	// fails here instead of in a test suite.
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	series, _ := domain.NormalizePayload(data)
	if len(series) != len(records) {
		return fmt.Errorf("fixture normalizes to %d records, generated %d", len(series), len(records))
	}
	log.Printf("normalization check passed: %d canonical records", len(series))
	return nil
}

// generate produces daily records with a slow linear drift, periodic and
// random noise, and the irregularities real payloads show.
func generate(statCode string, start time.Time, points int, rng *rand.Rand) []domain.RawRecord {
	records := make([]domain.RawRecord, 0, points)
	for i := 0; i < points; i++ {
		day := float64(i)
		de := 0.0008*day + 0.002*math.Sin(day/14) + rng.NormFloat64()*0.001
		dn := 0.0005*day + rng.NormFloat64()*0.001
		dh := -0.0020*day + 0.003*math.Sin(day/7) + rng.NormFloat64()*0.002

		rec := domain.RawRecord{
			"stat_code":    statCode,
			"timestamp":    start.AddDate(0, 0, i).Format("2006-01-02T15:04:05"),
			"de":           round6(de),
			"dn":           round6(dn),
			"dh":           round6(dh),
			"sde":          round6(0.001 + rng.Float64()*0.002),
			"sdn":          round6(0.001 + rng.Float64()*0.002),
			"sdh":          round6(0.003 + rng.Float64()*0.004),
			"pdop":         round6(1.2 + rng.Float64()*1.5),
			"no_satellite": 8 + rng.Intn(8),
			"lat":          18.7883,
			"lng":          98.9853,
		}

		// Every 7th record drops its height sample; every 11th encodes east
		// as a string. The normalizer must handle both.
		if i > 0 && i%7 == 0 {
			delete(rec, "dh")
		}
		if i > 0 && i%11 == 0 {
			rec["de"] = strconv.FormatFloat(round6(de), 'f', -1, 64)
		}

		records = append(records, rec)
	}
	return records
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
