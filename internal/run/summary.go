package run

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/san-kum/nboxsim/internal/metrics"
	"github.com/san-kum/nboxsim/internal/output"
)

// Summary is the merged result of one run.
type Summary struct {
	RunID     string                    `json:"run_id"`
	RunNumber int                       `json:"run_number"`
	Workers   int                       `json:"workers"`
	Format    output.Format             `json:"format"`
	Source    string                    `json:"source"`
	Counters  Counters                  `json:"counters"`
	PerWorker []Counters                `json:"per_worker"`
	Detectors []metrics.DetectorSummary `json:"detectors"`
	Files     []string                  `json:"files"`
	Metrics   map[string]float64        `json:"metrics"`
	// EdepSpectrum holds hit counts in 10 keV bins from 0 to 800 keV.
	EdepSpectrum []float64     `json:"edep_spectrum"`
	Elapsed      time.Duration `json:"elapsed"`
}

func (s *Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "--------------------End of Global Run-----------------------")
	fmt.Fprintf(w, " The run consists of %d events\n", s.Counters.Events)
	fmt.Fprintf(w, " Events with hits: %d\n", s.Counters.EventsWithHits)
	fmt.Fprintf(w, " Hit rows: %d\n", s.Counters.HitRows)
	if s.Counters.FluxRows > 0 {
		fmt.Fprintf(w, " Flux rows: %d\n", s.Counters.FluxRows)
	}
	if s.Counters.Missing > 0 {
		fmt.Fprintf(w, " Missing collections: %d\n", s.Counters.Missing)
	}
	fmt.Fprintln(w, "------------------------------------------------------------")

	fmt.Fprintf(w, "run: %d (%s)\n", s.RunNumber, s.RunID)
	fmt.Fprintf(w, "workers: %d, format: %s, source: %s\n", s.Workers, s.Format, s.Source)
	fmt.Fprintf(w, "completed in %v\n", s.Elapsed.Round(time.Millisecond))

	if len(s.Detectors) > 0 {
		fmt.Fprintln(w, "\ndetectors:")
		for _, d := range s.Detectors {
			fmt.Fprintf(w, "  %-12s hits=%-8d mean=%.1f keV  rate=%.4f\n", d.Name, d.Hits, d.MeanEdepKeV, d.Rate)
		}
	}
	if len(s.Metrics) > 0 {
		names := make([]string, 0, len(s.Metrics))
		for name := range s.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "\nmetrics:")
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %.6f\n", name, s.Metrics[name])
		}
	}
	if len(s.Files) > 0 {
		fmt.Fprintln(w, "\nfiles:")
		for _, f := range s.Files {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}
