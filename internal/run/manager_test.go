package run_test

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nboxsim/internal/detector"
	"github.com/san-kum/nboxsim/internal/geometry"
	"github.com/san-kum/nboxsim/internal/output"
	"github.com/san-kum/nboxsim/internal/run"
	"github.com/san-kum/nboxsim/internal/spectrum"
	"github.com/san-kum/nboxsim/internal/transport"
)

const types = `{
  "detectors": [
    {"name": "He3_1inch", "Diameter": 25.4, "Length": 1000, "WallT": 0.8, "Pressure": 405.3}
  ]
}`

const placements = `{
  "Box": {"x": 500, "y": 500, "z": 1000},
  "Placements": [
    {"name": "Det0", "type": "He3_1inch", "R": 0, "Phi": 0},
    {"name": "Det1", "type": "He3_1inch", "R": 100, "Phi": 0},
    {"name": "Det2", "type": "He3_1inch", "R": 100, "Phi": 90}
  ]
}`

// captureEngine deposits the full reaction energy in a random detector for
// about 60% of events and leaves one thermal step in the moderator for all.
type captureEngine struct {
	detectors int
}

func (e captureEngine) Transport(eventID int, p spectrum.Primary, rng *rand.Rand, h transport.StepHandler) error {
	h.OnStep(transport.Step{
		EventID:       eventID,
		Particle:      transport.Neutron,
		Volume:        geometry.ModeratorVolume,
		DetectorID:    -1,
		Pre:           p.Position,
		KineticEnergy: transport.ThermalEnergy,
		Length:        rng.Float64() * 10,
	})
	if rng.Float64() >= 0.6 {
		return nil
	}
	det := rng.Intn(e.detectors)
	at := r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
	h.OnStep(transport.Step{EventID: eventID, Particle: transport.Proton, DetectorID: det, Pre: at, Edep: transport.ProtonEnergy, Time: 10})
	h.OnStep(transport.Step{EventID: eventID, Particle: transport.Triton, DetectorID: det, Pre: at, Edep: transport.TritonEnergy, Time: 12})
	return nil
}

type failingEngine struct{}

var errEngine = errors.New("engine failed")

func (failingEngine) Transport(int, spectrum.Primary, *rand.Rand, transport.StepHandler) error {
	return errEngine
}

func writeFixture(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	return path
}

func readRows(files []string) []string {
	var rows []string
	for _, f := range files {
		if !strings.HasSuffix(f, "_NBox.csv") {
			continue
		}
		fh, err := os.Open(f)
		Expect(err).NotTo(HaveOccurred())
		recs, err := csv.NewReader(fh).ReadAll()
		fh.Close()
		Expect(err).NotTo(HaveOccurred())
		for _, r := range recs[1:] {
			rows = append(rows, strings.Join(r, ","))
		}
	}
	sort.Strings(rows)
	return rows
}

var _ = Describe("Counters", func() {
	It("sums per-worker tallies", func() {
		a := run.Counters{Events: 50, EventsWithHits: 40, HitRows: 44}
		b := run.Counters{Events: 50, EventsWithHits: 35, HitRows: 36, Missing: 1}

		total := run.MergeAll(a, b)
		Expect(total.EventsWithHits).To(Equal(int64(75)))
		Expect(total.Events).To(Equal(int64(100)))
		Expect(total.HitRows).To(Equal(int64(80)))
		Expect(total.Missing).To(Equal(int64(1)))
	})

	It("counts one event per call", func() {
		var c run.Counters
		c.CountEvent()
		c.CountEvent()
		Expect(c.EventsWithHits).To(Equal(int64(2)))
		c.Reset()
		Expect(c).To(Equal(run.Counters{}))
	})
})

var _ = Describe("Manager", func() {
	var (
		store *detector.Store
		dir   string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		store = detector.New()
		Expect(store.LoadTypes(writeFixture(dir, "det.json", types))).To(Succeed())
		Expect(store.LoadGeometry(writeFixture(dir, "geo.json", placements))).To(Succeed())
		Expect(store.Validate()).To(Succeed())
	})

	newManager := func(opts run.Options) *run.Manager {
		m, err := run.NewManager(store, opts, run.WithEngine(func(g *geometry.Geometry) transport.Engine {
			return captureEngine{detectors: g.NumDetectors()}
		}))
		Expect(err).NotTo(HaveOccurred())
		return m
	}

	Context("option checks", func() {
		It("rejects an unvalidated store", func() {
			_, err := run.NewManager(detector.New(), run.Options{Events: 1, Dir: dir})
			Expect(err).To(MatchError(detector.ErrNotValidated))
		})

		It("rejects an unknown format", func() {
			_, err := run.NewManager(store, run.Options{Events: 1, Dir: dir, Format: "hdf5"})
			Expect(errors.Is(err, output.ErrUnknownFormat)).To(BeTrue())
		})

		It("rejects negative event counts", func() {
			_, err := run.NewManager(store, run.Options{Events: -1, Dir: dir})
			Expect(err).To(MatchError(run.ErrInvalidOptions))
		})

		It("clamps workers to the event count", func() {
			m := newManager(run.Options{Events: 2, Workers: 8, Dir: dir, Format: output.FormatCSV})
			Expect(m.Options().Workers).To(Equal(2))
			m = newManager(run.Options{Events: 0, Workers: 8, Dir: dir, Format: output.FormatCSV})
			Expect(m.Options().Workers).To(Equal(1))
		})
	})

	It("writes one file per worker and merges counters", func() {
		m := newManager(run.Options{Events: 200, Workers: 4, Seed: 7, Format: output.FormatCSV, Flux: true, Dir: dir})

		s, err := m.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Workers).To(Equal(4))
		Expect(s.PerWorker).To(HaveLen(4))
		Expect(s.Counters.Events).To(Equal(int64(200)))
		Expect(s.Counters.FluxRows).To(Equal(int64(200)))
		Expect(s.Counters.EventsWithHits).To(BeNumerically(">", 0))
		Expect(s.Counters.HitRows).To(Equal(s.Counters.EventsWithHits))
		Expect(run.MergeAll(s.PerWorker...)).To(Equal(s.Counters))

		for i := 0; i < 4; i++ {
			Expect(filepath.Join(dir, fmt.Sprintf("output_run0_t%d_NBox.csv", i))).To(BeAnExistingFile())
		}
		Expect(readRows(s.Files)).To(HaveLen(int(s.Counters.HitRows)))

		var hits int64
		for _, d := range s.Detectors {
			Expect(d.MeanEdepKeV).To(BeNumerically("~", 764, 1e-6))
			hits += d.Hits
		}
		Expect(hits).To(Equal(s.Counters.HitRows))
		Expect(s.Metrics).To(HaveKeyWithValue("full_energy_fraction", BeNumerically("~", 1, 1e-9)))
		Expect(s.Metrics).To(HaveKeyWithValue("mean_edep_kev", BeNumerically("~", 764, 1e-6)))
	})

	It("produces the same rows for any worker count", func() {
		one := newManager(run.Options{Events: 150, Workers: 1, Seed: 42, Format: output.FormatCSV, Dir: filepath.Join(dir, "one")})
		three := newManager(run.Options{Events: 150, Workers: 3, Seed: 42, Format: output.FormatCSV, Dir: filepath.Join(dir, "three")})

		a, err := one.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		b, err := three.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Counters.EventsWithHits).To(Equal(a.Counters.EventsWithHits))
		Expect(readRows(b.Files)).To(Equal(readRows(a.Files)))
	})

	It("reports progress for every event", func() {
		var calls int64
		m, err := run.NewManager(store, run.Options{Events: 25, Workers: 2, Format: output.FormatCSV, Dir: dir},
			run.WithEngine(func(g *geometry.Geometry) transport.Engine { return captureEngine{detectors: g.NumDetectors()} }),
			run.WithProgress(func(done, total int64) {
				atomic.AddInt64(&calls, 1)
				Expect(total).To(Equal(int64(25)))
			}))
		Expect(err).NotTo(HaveOccurred())
		_, err = m.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(atomic.LoadInt64(&calls)).To(Equal(int64(25)))
	})

	It("stops on an engine error", func() {
		m, err := run.NewManager(store, run.Options{Events: 10, Workers: 2, Format: output.FormatCSV, Dir: dir},
			run.WithEngine(func(*geometry.Geometry) transport.Engine { return failingEngine{} }))
		Expect(err).NotTo(HaveOccurred())
		_, err = m.Run(context.Background())
		Expect(err).To(MatchError(errEngine))
	})

	It("does not start when the context is cancelled", func() {
		m := newManager(run.Options{Events: 10, Workers: 2, Format: output.FormatCSV, Dir: dir})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Run(ctx)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("runs the ray-cast engine by default", func() {
		m, err := run.NewManager(store, run.Options{Events: 20, Workers: 2, Seed: 1, Format: output.FormatCSV, Dir: dir, GunEnergy: 1e-6})
		Expect(err).NotTo(HaveOccurred())
		s, err := m.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Counters.Events).To(Equal(int64(20)))
	})
})
