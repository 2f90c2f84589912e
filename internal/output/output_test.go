package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"
)

type hitRow struct {
	EventID    int32
	DetectorID int32
	Name       string
	Edep       float64
	Time       float64
}

var sampleRows = []hitRow{
	{0, 0, "Det0", 764, 12.5},
	{0, 1, "Det1", 573, 0},
	{7, 1, "Det1", 191, 3.25},
}

func writeHits(t *testing.T, w Writer, rows []hitRow) {
	t.Helper()
	for _, r := range rows {
		w.SetInt(ColEventID, r.EventID)
		w.SetInt(ColDetectorID, r.DetectorID)
		w.SetString(ColDetectorName, r.Name)
		w.SetFloat(ColEdep, r.Edep)
		w.SetFloat(ColTime, r.Time)
		require.NoError(t, w.Commit())
	}
}

func readROOTHits(t *testing.T, path string) []hitRow {
	t.Helper()
	f, err := groot.Open(path)
	require.NoError(t, err)
	defer f.Close()

	obj, err := f.Get(HitSchema.Name)
	require.NoError(t, err)
	tree, ok := obj.(rtree.Tree)
	require.True(t, ok, "expected a tree, got %T", obj)
	assert.Equal(t, HitSchema.Title, tree.Title())

	var cur hitRow
	r, err := rtree.NewReader(tree, []rtree.ReadVar{
		{Name: "EventID", Value: &cur.EventID},
		{Name: "DetectorID", Value: &cur.DetectorID},
		{Name: "DetectorName", Value: &cur.Name},
		{Name: "Edep_keV", Value: &cur.Edep},
		{Name: "Time_ns", Value: &cur.Time},
	})
	require.NoError(t, err)
	defer r.Close()

	var out []hitRow
	err = r.Read(func(rtree.RCtx) error {
		out = append(out, cur)
		return nil
	})
	require.NoError(t, err)
	return out
}

func readArrowHits(t *testing.T, path string) []hitRow {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer r.Close()

	var out []hitRow
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		require.NoError(t, err)
		ev := rec.Column(ColEventID).(*array.Int32)
		det := rec.Column(ColDetectorID).(*array.Int32)
		name := rec.Column(ColDetectorName).(*array.String)
		edep := rec.Column(ColEdep).(*array.Float64)
		tm := rec.Column(ColTime).(*array.Float64)
		for j := 0; j < int(rec.NumRows()); j++ {
			out = append(out, hitRow{ev.Value(j), det.Value(j), name.Value(j), edep.Value(j), tm.Value(j)})
		}
	}
	return out
}

func readCSVHits(t *testing.T, path string) []hitRow {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, []string{"EventID", "DetectorID", "DetectorName", "Edep_keV", "Time_ns"}, records[0])

	var out []hitRow
	for _, rec := range records[1:] {
		ev, _ := strconv.Atoi(rec[0])
		det, _ := strconv.Atoi(rec[1])
		edep, _ := strconv.ParseFloat(rec[3], 64)
		tm, _ := strconv.ParseFloat(rec[4], 64)
		out = append(out, hitRow{int32(ev), int32(det), rec[2], edep, tm})
	}
	return out
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"root", FormatROOT, false},
		{"ARROW", FormatArrow, false},
		{" csv ", FormatCSV, false},
		{"hdf5", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_UnknownFormat(t *testing.T) {
	_, err := Open(Format("parquet"), filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestBackends_HitTable(t *testing.T) {
	tests := []struct {
		format Format
		path   string
		read   func(*testing.T, string) []hitRow
	}{
		{FormatROOT, "output_run0_t0.root", readROOTHits},
		{FormatArrow, "output_run0_t0_NBox.arrow", readArrowHits},
		{FormatCSV, "output_run0_t0_NBox.csv", readCSVHits},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			dir := t.TempDir()
			f, err := Open(tt.format, filepath.Join(dir, "output_run0_t0"))
			require.NoError(t, err)

			w, err := f.Table(HitSchema)
			require.NoError(t, err)
			writeHits(t, w, sampleRows)
			assert.EqualValues(t, len(sampleRows), w.Rows())
			require.NoError(t, f.Close())

			want := filepath.Join(dir, tt.path)
			assert.Equal(t, []string{want}, f.Paths())
			assert.Equal(t, sampleRows, tt.read(t, want))
		})
	}
}

func TestBackends_EmptyTable(t *testing.T) {
	for _, format := range Formats() {
		t.Run(string(format), func(t *testing.T) {
			f, err := Open(format, filepath.Join(t.TempDir(), "empty"))
			require.NoError(t, err)
			w, err := f.Table(HitSchema)
			require.NoError(t, err)
			assert.Zero(t, w.Rows())
			require.NoError(t, f.Close())
		})
	}
}

func TestWriter_KindMismatch(t *testing.T) {
	f, err := Open(FormatCSV, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()
	w, err := f.Table(HitSchema)
	require.NoError(t, err)

	w.SetFloat(ColEventID, 1.5)
	assert.Error(t, w.Commit())

	w.SetInt(99, 1)
	assert.Error(t, w.Commit())

	writeHits(t, w, sampleRows[:1])
	assert.EqualValues(t, 1, w.Rows())
}

func TestWriter_CommitAfterClose(t *testing.T) {
	f, err := Open(FormatCSV, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	w, err := f.Table(HitSchema)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Error(t, w.Commit())
	require.NoError(t, f.Close())
}

func TestROOT_TwoTrees(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(FormatROOT, filepath.Join(dir, "out"))
	require.NoError(t, err)

	hw, err := f.Table(HitSchema)
	require.NoError(t, err)
	fw, err := f.Table(FluxSchema)
	require.NoError(t, err)

	writeHits(t, hw, sampleRows)
	for i := 0; i < 5; i++ {
		fw.SetInt(ColFluxEventID, int32(i))
		fw.SetFloat(ColFluxX, float64(i))
		fw.SetFloat(ColFluxY, 0)
		fw.SetFloat(ColFluxZ, 0)
		fw.SetFloat(ColFluxEnergy, 0.025)
		fw.SetFloat(ColFluxStepLength, 1)
		require.NoError(t, fw.Commit())
	}
	require.NoError(t, f.Close())

	rf, err := groot.Open(filepath.Join(dir, "out.root"))
	require.NoError(t, err)
	defer rf.Close()
	obj, err := rf.Get(FluxSchema.Name)
	require.NoError(t, err)
	assert.EqualValues(t, 5, obj.(rtree.Tree).Entries())
	assert.Len(t, readROOTHits(t, filepath.Join(dir, "out.root")), len(sampleRows))
}
