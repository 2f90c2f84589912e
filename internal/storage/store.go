package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/nboxsim/internal/metrics"
	"github.com/san-kum/nboxsim/internal/run"
)

var ErrRunNotFound = errors.New("storage: run not found")

// Store keeps one directory per run under baseDir, holding the workers'
// output files next to metadata.json and detectors.csv.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) BaseDir() string { return s.baseDir }

type RunMetadata struct {
	ID        string             `json:"id"`
	Number    int                `json:"number"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Events    int                `json:"events"`
	Workers   int                `json:"workers"`
	Format    string             `json:"format"`
	Flux      bool               `json:"flux"`
	Source    string             `json:"source"`
	Detectors string             `json:"detectors_file,omitempty"`
	Geometry  string             `json:"geometry_file,omitempty"`
	Spectrum  string             `json:"source_file,omitempty"`
	Counters  run.Counters       `json:"counters"`
	Files     []string           `json:"files"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	ElapsedMS int64              `json:"elapsed_ms"`
}

// NewRun allocates a run ID and creates its directory.
func (s *Store) NewRun(number int) (*RunMetadata, string, error) {
	meta := &RunMetadata{
		ID:        uuid.NewString(),
		Number:    number,
		Timestamp: time.Now(),
	}
	dir := s.RunDir(meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", err
	}
	return meta, dir, nil
}

func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// NextNumber is one past the highest run number on disk.
func (s *Store) NextNumber() (int, error) {
	runs, err := s.List()
	if err != nil {
		return 0, err
	}
	next := 0
	for _, r := range runs {
		if r.Number >= next {
			next = r.Number + 1
		}
	}
	return next, nil
}

// Save completes meta from the run summary and writes metadata.json and
// detectors.csv into the run directory.
func (s *Store) Save(meta *RunMetadata, summary *run.Summary) error {
	runDir := s.RunDir(meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}

	meta.Workers = summary.Workers
	meta.Format = string(summary.Format)
	meta.Source = summary.Source
	meta.Counters = summary.Counters
	meta.ElapsedMS = summary.Elapsed.Milliseconds()
	meta.Metrics = summary.Metrics
	meta.Files = meta.Files[:0]
	for _, f := range summary.Files {
		if rel, err := filepath.Rel(runDir, f); err == nil {
			f = rel
		}
		meta.Files = append(meta.Files, f)
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "detectors.csv"))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"id", "name", "hits", "mean_edep_kev", "rate"}); err != nil {
		return err
	}
	for _, d := range summary.Detectors {
		row := []string{
			strconv.Itoa(d.ID),
			d.Name,
			strconv.FormatInt(d.Hits, 10),
			strconv.FormatFloat(d.MeanEdepKeV, 'f', 6, 64),
			strconv.FormatFloat(d.Rate, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Number < runs[j].Number })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadDetectors(runID string) ([]metrics.DetectorSummary, error) {
	file, err := os.Open(filepath.Join(s.RunDir(runID), "detectors.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []metrics.DetectorSummary{}, nil
	}

	out := make([]metrics.DetectorSummary, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != 5 {
			continue
		}
		id, err := strconv.Atoi(rec[0])
		if err != nil {
			continue
		}
		hits, _ := strconv.ParseInt(rec[2], 10, 64)
		mean, _ := strconv.ParseFloat(rec[3], 64)
		rate, _ := strconv.ParseFloat(rec[4], 64)
		out = append(out, metrics.DetectorSummary{ID: id, Name: rec[1], Hits: hits, MeanEdepKeV: mean, Rate: rate})
	}
	return out, nil
}
