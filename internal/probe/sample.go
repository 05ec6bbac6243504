package probe

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"csvingest/internal/config"
	pcsv "csvingest/internal/parser/csv"
)

// Sample is the raw head of a stream handed to inference.
type Sample struct {
	Bytes []byte `json:"bytes"`
	// Truncated is set when the stream continues past Bytes.
	Truncated bool `json:"truncated"`
}

// ReadSample takes the inference sample from the head of r and returns it
// together with a reader that replays the whole stream from offset 0.
//
// With inference enabled the sample is f.SampleSize() bytes. With inference
// disabled only the header line is read.
func ReadSample(r io.Reader, f config.FormatConfig) (Sample, io.Reader, error) {
	if !f.InferDatatypes {
		var seen bytes.Buffer
		head, _, err := pcsv.FindLineEnd(io.TeeReader(r, &seen))
		if err != nil {
			return Sample{}, nil, err
		}
		replay := io.MultiReader(bytes.NewReader(seen.Bytes()), r)
		if head == nil {
			// No terminator: the consumed bytes are the whole stream.
			return Sample{Bytes: seen.Bytes()}, replay, nil
		}
		return Sample{Bytes: head, Truncated: true}, replay, nil
	}

	buf := make([]byte, f.SampleSize())
	n, err := io.ReadFull(r, buf)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		buf = buf[:n]
		return Sample{Bytes: buf}, bytes.NewReader(buf), nil
	case err != nil:
		return Sample{}, nil, errors.Wrap(err, "probe: read sample")
	}
	return Sample{Bytes: buf, Truncated: true}, io.MultiReader(bytes.NewReader(buf), r), nil
}
