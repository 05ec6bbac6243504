package csv

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/pkg/errors"

	"csvingest/internal/schema"
)

// Transpose turns a columnar batch into row-major records keyed by the
// SchemaMap's names. Columns are matched by position. Values are copied out of
// the batch, so the records outlive its release.
func Transpose(batch arrow.Record, sm *schema.SchemaMap) ([]schema.Record, error) {
	if int(batch.NumCols()) != sm.Len() {
		return nil, errors.Errorf("csv: batch has %d columns, schema has %d", batch.NumCols(), sm.Len())
	}
	n := int(batch.NumRows())
	out := make([]schema.Record, n)
	for i := range out {
		out[i] = make(schema.Record, sm.Len())
	}

	for c := 0; c < sm.Len(); c++ {
		name := sm.Field(c).Name
		col := batch.Column(c)
		value, err := valueAt(col)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", name)
		}
		for i := 0; i < n; i++ {
			if col.IsNull(i) {
				out[i][name] = nil
				continue
			}
			out[i][name] = value(i)
		}
	}
	return out, nil
}

func valueAt(col arrow.Array) (func(int) any, error) {
	switch a := col.(type) {
	case *array.Int64:
		return func(i int) any { return a.Value(i) }, nil
	case *array.Float64:
		return func(i int) any { return a.Value(i) }, nil
	case *array.Boolean:
		return func(i int) any { return a.Value(i) }, nil
	case *array.String:
		// Value aliases the batch buffer.
		return func(i int) any { return strings.Clone(a.Value(i)) }, nil
	case *array.Date32:
		return func(i int) any { return a.Value(i).ToTime() }, nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return func(i int) any { return a.Value(i).ToTime(unit) }, nil
	case *array.Null:
		return func(int) any { return nil }, nil
	}
	return nil, errors.Errorf("unsupported engine type %s", col.DataType())
}
