package output

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// arrowBatch is the number of rows per record batch.
const arrowBatch = 4096

type arrowTable struct {
	row
	f       *os.File
	builder *array.RecordBuilder
	w       *ipc.FileWriter
	pending int
}

func arrowSchema(s Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(s.Columns))
	for i, c := range s.Columns {
		var dt arrow.DataType
		switch c.Kind {
		case Int32:
			dt = arrow.PrimitiveTypes.Int32
		case Float64:
			dt = arrow.PrimitiveTypes.Float64
		default:
			dt = arrow.BinaryTypes.String
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt}
	}
	md := arrow.NewMetadata([]string{"name", "title"}, []string{s.Name, s.Title})
	return arrow.NewSchema(fields, &md)
}

func openArrowTable(path string, s Schema) (Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: create %s: %w", path, err)
	}
	mem := memory.NewGoAllocator()
	schema := arrowSchema(s)
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("output: arrow writer %s: %w", path, err)
	}
	return &arrowTable{
		row:     newRow(s),
		f:       f,
		builder: array.NewRecordBuilder(mem, schema),
		w:       w,
	}, nil
}

func (t *arrowTable) Commit() error {
	if err := t.ready(); err != nil {
		return err
	}
	for i, c := range t.schema.Columns {
		switch c.Kind {
		case Int32:
			t.builder.Field(i).(*array.Int32Builder).Append(t.ints[i])
		case Float64:
			t.builder.Field(i).(*array.Float64Builder).Append(t.floats[i])
		case String:
			t.builder.Field(i).(*array.StringBuilder).Append(t.strs[i])
		}
	}
	t.rows++
	t.pending++
	if t.pending >= arrowBatch {
		return t.flush()
	}
	return nil
}

func (t *arrowTable) flush() error {
	if t.pending == 0 {
		return nil
	}
	rec := t.builder.NewRecord()
	defer rec.Release()
	t.pending = 0
	if err := t.w.Write(rec); err != nil {
		return fmt.Errorf("output: %s: write batch: %w", t.schema.Name, err)
	}
	return nil
}

func (t *arrowTable) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	defer t.builder.Release()

	err := t.flush()
	if cerr := t.w.Close(); err == nil {
		err = cerr
	}
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	return err
}
