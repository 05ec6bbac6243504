package csv

import (
	"context"
	stdcsv "encoding/csv"
	"io"
	"iter"

	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"csvingest/internal/config"
	"csvingest/internal/schema"
)

// logEveryN is the heartbeat interval in emitted rows.
const logEveryN = 50_000

// StreamOptions carry the context ReadRecords reports errors and logs with.
type StreamOptions struct {
	FileID string
	// Chunk is the 1-based chunk index, 0 for an unsplit stream.
	Chunk     int
	Logger    logrus.FieldLogger
	Allocator memory.Allocator
}

// ReadRecords runs the CSV engine over r, coercing every column with sm, and
// yields one record per data row in input order. r must start with the header
// line and be prepared (see Prepare). Rows with fewer fields than sm are
// padded, so their missing trailing values are nil. Engine failures end the
// sequence with a *StreamingError; records already yielded stand.
//
// When the engine rejects a row structurally (field count, quoting) or the
// source fails, the rows of the same batch before it are still yielded. A
// value that does not convert to its column type fails the whole batch that
// holds it, since the engine does not report which row carried the value.
func ReadRecords(ctx context.Context, r io.Reader, f config.FormatConfig, sm *schema.SchemaMap, opt StreamOptions) iter.Seq2[schema.Record, error] {
	return func(yield func(schema.Record, error) bool) {
		lg := opt.Logger
		if lg == nil {
			lg = logrus.StandardLogger()
		}
		lg = lg.WithFields(logrus.Fields{"file": opt.FileID, "chunk": opt.Chunk, "step": "stream"})
		if sm.Len() == 0 {
			return
		}
		alloc := opt.Allocator
		if alloc == nil {
			alloc = memory.DefaultAllocator
		}

		src := &sourceReader{r: PadRecords(r, PadOptions{
			Fields:     sm.Len(),
			Comma:      f.Comma(),
			Comment:    f.ReaderOptions.Rune(config.OptComment, 0),
			LazyQuotes: lazyQuotes(f),
		})}
		rdr := arrowcsv.NewReader(src, sm.ArrowSchema(), engineOptions(f, alloc)...)
		defer rdr.Release()

		var rows int64
		fail := func(err error) {
			lg.WithError(err).WithField("row", rows).Error("csv engine rejected input")
			yield(nil, &StreamingError{File: opt.FileID, Chunk: opt.Chunk, Row: rows, Err: err})
		}
		emit := func(batch []schema.Record) bool {
			for _, rec := range batch {
				if !yield(rec, nil) {
					return false
				}
				rows++
				if rows%logEveryN == 0 {
					lg.WithField("rows", rows).Debug("streaming")
				}
			}
			return true
		}

		for rdr.Next() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			batch, terr := Transpose(rdr.Record(), sm)
			if err := rdr.Err(); err != nil {
				if terr == nil && src.rowsIntact(err) && !emit(batch) {
					return
				}
				fail(err)
				return
			}
			if terr != nil {
				fail(terr)
				return
			}
			if !emit(batch) {
				return
			}
		}
		if err := rdr.Err(); err != nil && !errors.Is(err, io.EOF) {
			fail(err)
			return
		}
		lg.WithField("rows", rows).Debug("stream finished")
	}
}

// sourceReader remembers the error its reader returned, so a failed batch can
// be told apart from a conversion failure.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// rowsIntact reports whether the engine stopped before adding the failing row
// to its batch: a tokenizer error or a source read error.
func (s *sourceReader) rowsIntact(err error) bool {
	var pe *stdcsv.ParseError
	if errors.As(err, &pe) {
		return true
	}
	return s.err != nil && errors.Is(err, s.err)
}

func lazyQuotes(f config.FormatConfig) bool {
	return f.ReaderOptions.Bool(config.OptLazyQuotes, false) || !f.StandardDialect()
}

// engineOptions maps a FormatConfig onto the engine's reader options. Quoting
// is lazy whenever the dialect was rewritten, since a rewritten stream may
// carry bare '"' in unquoted fields.
func engineOptions(f config.FormatConfig, alloc memory.Allocator) []arrowcsv.Option {
	opts := []arrowcsv.Option{
		arrowcsv.WithHeader(true),
		arrowcsv.WithComma(f.Comma()),
		arrowcsv.WithChunk(f.BatchRows()),
		arrowcsv.WithNullReader(f.StringsCanBeNull(), f.NullValues()...),
		arrowcsv.WithLazyQuotes(lazyQuotes(f)),
		arrowcsv.WithAllocator(alloc),
	}
	if c := f.ReaderOptions.Rune(config.OptComment, 0); c != 0 {
		opts = append(opts, arrowcsv.WithComment(c))
	}
	return opts
}
