package csv

import (
	"bytes"
	stdcsv "encoding/csv"
	"io"
	"slices"

	"github.com/pkg/errors"

	"csvingest/internal/config"
)

// ParseHeader splits one raw header line (as read from the source, without
// its terminator) into column names using f's encoding and quoting rules. A
// UTF-8 BOM on the first name is dropped. Names are returned untrimmed.
func ParseHeader(line []byte, f config.FormatConfig) ([]string, error) {
	raw := make([]byte, 0, len(line)+1)
	raw = append(append(raw, line...), '\n')

	r, err := Prepare(bytes.NewReader(raw), f)
	if err != nil {
		return nil, err
	}
	cr := stdcsv.NewReader(r)
	cr.Comma = f.Comma()
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	rec, err := cr.Read()
	if err == io.EOF {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "csv: parse header")
	}
	return StripHeaderBOM(slices.Clone(rec)), nil
}
