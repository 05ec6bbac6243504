package csv

import (
	"bytes"
	"io"
	"iter"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
)

const (
	// DefaultMaxChunkSize bounds a chunk, header included.
	DefaultMaxChunkSize = 50 << 20

	// DefaultReadBlockSize is the increment in which the splitter pulls the
	// source.
	DefaultReadBlockSize = 1 << 20
)

// SplitterOptions configure a Splitter. Zero fields take the defaults.
type SplitterOptions struct {
	// MaxChunkSize is the upper bound of a chunk in bytes, header included. A
	// chunk only exceeds it when one record alone is larger.
	MaxChunkSize int64
	// ReadBlockSize is the source read increment.
	ReadBlockSize int
	// MaxLineSize caps an unterminated run (see Scanner).
	MaxLineSize int
	// Store backs the chunk; nil uses NewMemoryStore. The splitter releases
	// it when the sequence ends.
	Store ChunkStore
	// FileID is only used for logging.
	FileID string
	Logger logrus.FieldLogger
}

// Chunk is one self-contained CSV document: the source header line followed
// by a record-aligned slice of the body. It reads from the splitter's store
// and is only valid inside the loop body that received it.
type Chunk struct {
	// Index is 1-based.
	Index int
	// Size is header plus body in bytes.
	Size int64
	// Digest is the xxh3 hash of the body bytes (header excluded).
	Digest uint64

	r io.Reader
}

func (c *Chunk) Read(p []byte) (int, error) { return c.r.Read(p) }

// Splitter carves a stream into record-aligned chunks.
type Splitter struct {
	src     io.Reader
	opt     SplitterOptions
	scanner Scanner
	log     logrus.FieldLogger

	header  []byte
	pending []byte // bytes read from src but not yet written to a chunk
	eof     bool
	used    bool
}

// NewSplitter returns a Splitter reading from r.
func NewSplitter(r io.Reader, opt SplitterOptions) *Splitter {
	if opt.MaxChunkSize <= 0 {
		opt.MaxChunkSize = DefaultMaxChunkSize
	}
	if opt.ReadBlockSize <= 0 {
		opt.ReadBlockSize = DefaultReadBlockSize
	}
	if opt.MaxLineSize <= 0 {
		opt.MaxLineSize = MaxLineSize
	}
	if opt.Store == nil {
		opt.Store = NewMemoryStore()
	}
	lg := opt.Logger
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &Splitter{
		src:     r,
		opt:     opt,
		scanner: Scanner{BlockSize: opt.ReadBlockSize, MaxLineSize: opt.MaxLineSize},
		log:     lg.WithFields(logrus.Fields{"file": opt.FileID, "step": "chunk"}),
	}
}

// Header returns a copy of the header line without its terminator. It is
// empty until Chunks has started.
func (s *Splitter) Header() []byte { return bytes.Clone(s.header) }

// Chunks yields the chunks in source order. An empty source yields nothing; a
// header-only source yields one chunk holding just the header. Each chunk
// must be consumed before the loop body returns: the store is reset right
// after and released when the loop ends for any reason. The sequence can be
// ranged over once.
func (s *Splitter) Chunks() iter.Seq2[*Chunk, error] {
	return func(yield func(*Chunk, error) bool) {
		if s.used {
			yield(nil, errors.New("csv: splitter already consumed"))
			return
		}
		s.used = true

		store := s.opt.Store
		defer func() {
			if err := store.Release(); err != nil {
				s.log.WithError(err).Warn("release chunk storage")
			}
		}()

		head, tail, found, err := s.scanner.scan(s.src)
		if err != nil {
			yield(nil, err)
			return
		}
		if !found && len(head) == 0 {
			return
		}
		s.header = head
		if found {
			s.pending = tail[1:]
		} else {
			s.eof = true
		}
		budget := s.opt.MaxChunkSize - int64(len(s.header)) - 1

		for index := 1; ; index++ {
			if index > 1 && len(s.pending) == 0 {
				if !s.eof {
					if err := s.more(); err != nil {
						yield(nil, err)
						return
					}
				}
				if len(s.pending) == 0 && s.eof {
					return
				}
			}

			digest, err := s.fill(store, budget)
			if err != nil {
				yield(nil, err)
				return
			}
			rd, err := store.Reader()
			if err != nil {
				yield(nil, err)
				return
			}
			c := &Chunk{Index: index, Size: store.Size(), Digest: digest, r: rd}
			s.log.WithFields(logrus.Fields{"chunk": index, "bytes": c.Size}).Debug("chunk ready")
			if !yield(c, nil) {
				return
			}
			if err := store.Reset(); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// fill writes the header and as many whole records as fit in budget body
// bytes. When the chunk has no record yet and the next one is larger than the
// budget, that record is written alone.
func (s *Splitter) fill(w io.Writer, budget int64) (uint64, error) {
	if _, err := w.Write(s.header); err != nil {
		return 0, err
	}
	if _, err := w.Write([]byte{'\n'}); err != nil {
		return 0, err
	}

	h := xxh3.New()
	var written int64
	put := func(b []byte) error {
		_, _ = h.Write(b)
		written += int64(len(b))
		_, err := w.Write(b)
		return err
	}

	for {
		if cut := bytes.LastIndexByte(s.pending, '\n'); cut >= 0 {
			complete := s.pending[:cut+1]
			if written+int64(len(complete)) > budget {
				room := max(budget-written, 0)
				if i := bytes.LastIndexByte(complete[:room], '\n'); i >= 0 {
					err := put(complete[:i+1])
					s.pending = s.pending[i+1:]
					return h.Sum64(), err
				}
				if written > 0 {
					return h.Sum64(), nil
				}
				i := bytes.IndexByte(s.pending, '\n')
				err := put(s.pending[:i+1])
				s.pending = s.pending[i+1:]
				return h.Sum64(), err
			}
			if err := put(complete); err != nil {
				return 0, err
			}
			s.pending = s.pending[cut+1:]
		}

		if s.eof {
			if len(s.pending) > 0 {
				if written > 0 && written+int64(len(s.pending)) > budget {
					return h.Sum64(), nil
				}
				if err := put(s.pending); err != nil {
					return 0, err
				}
				s.pending = nil
			}
			return h.Sum64(), nil
		}

		if err := s.more(); err != nil {
			return 0, err
		}
	}
}

// more extends pending up to and including the next record terminator, or to
// the end of the source.
func (s *Splitter) more() error {
	room := s.opt.MaxLineSize - len(s.pending)
	if room <= 0 {
		return &SizeLimitError{Limit: s.opt.MaxLineSize, Buffered: len(s.pending)}
	}
	sc := s.scanner
	sc.MaxLineSize = room
	head, tail, found, err := sc.scan(s.src)
	if err != nil {
		var sl *SizeLimitError
		if errors.As(err, &sl) {
			return &SizeLimitError{Limit: s.opt.MaxLineSize, Buffered: len(s.pending) + sl.Buffered}
		}
		return err
	}
	s.pending = append(s.pending, head...)
	s.pending = append(s.pending, tail...)
	if !found {
		s.eof = true
	}
	return nil
}
