package csv

import (
	"io"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"csvingest/internal/config"
)

// DecodeReader converts r from f.Encoding to UTF-8. When f.CheckUTF8 is set
// the decoded stream fails with an error on the first invalid sequence.
func DecodeReader(r io.Reader, f config.FormatConfig) (io.Reader, error) {
	if !f.IsUTF8() {
		enc, err := htmlindex.Get(f.Encoding)
		if err != nil {
			return nil, errors.Wrapf(err, "csv: encoding %q", f.Encoding)
		}
		r = transform.NewReader(r, enc.NewDecoder())
	}
	if f.CheckUTF8() {
		r = transform.NewReader(r, encoding.UTF8Validator)
	}
	return r, nil
}

// Prepare decodes r and normalizes its dialect. The result is what the
// splitter and ReadRecords expect.
func Prepare(r io.Reader, f config.FormatConfig) (io.Reader, error) {
	dr, err := DecodeReader(r, f)
	if err != nil {
		return nil, err
	}
	return NormalizeDialect(dr, f), nil
}
