// Command validate runs a station data payload through the real
// normalization pipeline offline and checks the canonical-sequence
// invariants: ordering, index alignment, and missing-sample handling. It
// prints the preview table and the model-facing data summary so fixture
// changes can be eyeballed without starting the server.
//
// Usage:
//
//	go run ./cmd/validate -payload data/mock/bkk1_30d.json -stat-code BKK1
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/geowatch/chartreader/internal/domain"
	"github.com/geowatch/chartreader/internal/preview"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	payloadPath := flag.String("payload", "", "path to a station data JSON payload")
	statCode := flag.String("stat-code", "UNKNOWN", "station code for the summary output")
	flag.Parse()

	if *payloadPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*payloadPath, *statCode); code != 0 {
		os.Exit(code)
	}
}

func run(payloadPath, statCode string) int {
	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read payload: %v\n", err)
		return 1
	}

	series, raw := domain.NormalizePayload(payload)

	fmt.Println("=== Station Data Normalization Check ===")
	fmt.Printf("Payload: %s (%d bytes)\n", payloadPath, len(payload))
	fmt.Printf("Decoded: %d raw records, %d canonical records\n\n", len(raw), len(series))

	phases := []*phase{
		validateOrdering(series),
		validateAlignment(series),
		validateSamples(series, raw),
	}

	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintfFunc()

	allPassed := true
	for _, p := range phases {
		status := pass("PASS")
		if !p.passed() {
			status = fail("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-38s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	fmt.Println("\n--- Preview table ---")
	table, err := preview.Build(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: preview build: %v\n", err)
		return 1
	}
	fmt.Print(table)

	fmt.Println("\n--- Model-facing summary ---")
	fmt.Println(domain.SummarizeStationData(raw, statCode))

	if allPassed {
		fmt.Println("\n" + pass("All validations passed."))
		return 0
	}
	fmt.Println("\n" + fail("Validation FAILED."))
	return 1
}

// validateOrdering checks the non-decreasing timestamp invariant.
func validateOrdering(series domain.Series) *phase {
	p := &phase{name: "Phase 1: Canonical ordering"}
	for i := 1; i < len(series); i++ {
		if series[i-1].Timestamp > series[i].Timestamp {
			p.errorf("index %d: %q sorts after %q", i, series[i-1].Timestamp, series[i].Timestamp)
		}
	}
	return p
}

// validateAlignment checks that component columns stay index-aligned with
// the series.
func validateAlignment(series domain.Series) *phase {
	p := &phase{name: "Phase 2: Component alignment"}
	for _, c := range domain.Components {
		values := series.Values(c)
		if len(values) != len(series) {
			p.errorf("%s: %d values for %d records", c, len(values), len(series))
		}
	}
	if ts := series.Timestamps(); len(ts) != len(series) {
		p.errorf("timestamps: %d for %d records", len(ts), len(series))
	}
	return p
}

// validateSamples cross-checks parsed samples against the raw records:
// every numeric or numeric-string field must survive, everything else must
// be nil rather than zero.
func validateSamples(series domain.Series, raw []domain.RawRecord) *phase {
	p := &phase{name: "Phase 3: Sample fidelity"}
	if len(series) != len(raw) {
		p.errorf("record count: %d canonical vs %d raw", len(series), len(raw))
		return p
	}

	byTimestamp := make(map[string]int, len(series))
	missing := 0
	for i := range series {
		byTimestamp[series[i].Timestamp]++
		for _, c := range domain.Components {
			if series.Values(c)[i] == nil {
				missing++
			}
		}
	}
	for _, rec := range raw {
		ts, _ := rec["timestamp"].(string)
		if ts == "" {
			ts, _ = rec["date"].(string)
		}
		if byTimestamp[ts] == 0 {
			p.errorf("raw record with timestamp %q missing from canonical sequence", ts)
			continue
		}
		byTimestamp[ts]--
	}

	fmt.Printf("  (%d missing samples preserved as gaps)\n", missing)
	return p
}
