package csv

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSizeLimitExceeded is matched by *SizeLimitError.
	ErrSizeLimitExceeded = errors.New("csv: record exceeds maximum buffering size")

	// ErrStreamingFailure is matched by *StreamingError.
	ErrStreamingFailure = errors.New("csv: engine rejected input")
)

// SizeLimitError reports a run of bytes without a record terminator that grew
// past the scanner limit. It is fatal for the file and never retried.
type SizeLimitError struct {
	Limit    int
	Buffered int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("csv: incorrect CSV input, a single line is larger than %d bytes (buffered %d bytes without a line terminator)", e.Limit, e.Buffered)
}

// Is makes errors.Is(err, ErrSizeLimitExceeded) hold.
func (e *SizeLimitError) Is(target error) bool { return target == ErrSizeLimitExceeded }

// StreamingError wraps an engine failure with enough context to locate it:
// the file, the chunk (0 when the stream was not split) and the number of rows
// already emitted from that chunk.
type StreamingError struct {
	File  string
	Chunk int
	Row   int64
	Err   error
}

func (e *StreamingError) Error() string {
	if e.Chunk > 0 {
		return fmt.Sprintf("csv: stream %q chunk %d after %d rows: %v", e.File, e.Chunk, e.Row, e.Err)
	}
	return fmt.Sprintf("csv: stream %q after %d rows: %v", e.File, e.Row, e.Err)
}

func (e *StreamingError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStreamingFailure) hold.
func (e *StreamingError) Is(target error) bool { return target == ErrStreamingFailure }
