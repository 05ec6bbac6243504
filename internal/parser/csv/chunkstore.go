package csv

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"

	"csvingest/internal/scratch"
)

// ChunkStore is the backing buffer of one materialized chunk. The splitter
// writes a chunk, hands out Reader, then calls Reset before writing the next
// one; Release reclaims the storage for good.
type ChunkStore interface {
	io.Writer
	// Reader returns a reader over everything written since the last Reset,
	// positioned at offset 0.
	Reader() (io.Reader, error)
	// Size is the number of bytes written since the last Reset.
	Size() int64
	// Reset discards the contents and keeps the storage for reuse.
	Reset() error
	// Release frees the storage. The store is unusable afterwards.
	Release() error
}

type memStore struct {
	buf bytes.Buffer
}

// NewMemoryStore returns a ChunkStore kept in process memory.
func NewMemoryStore() ChunkStore { return &memStore{} }

func (m *memStore) Write(p []byte) (int, error) { return m.buf.Write(p) }

func (m *memStore) Reader() (io.Reader, error) { return bytes.NewReader(m.buf.Bytes()), nil }

func (m *memStore) Size() int64 { return int64(m.buf.Len()) }

func (m *memStore) Reset() error {
	m.buf.Reset()
	return nil
}

func (m *memStore) Release() error {
	m.buf = bytes.Buffer{}
	return nil
}

type fileStore struct {
	f    *os.File
	size int64
}

// NewFileStore returns a ChunkStore backed by a single file in space. The file
// is truncated between chunks and removed by Release.
func NewFileStore(space *scratch.Space) (ChunkStore, error) {
	f, err := space.CreateFile("chunk-*.csv")
	if err != nil {
		return nil, err
	}
	return &fileStore{f: f}, nil
}

func (s *fileStore) Write(p []byte) (int, error) {
	n, err := s.f.Write(p)
	s.size += int64(n)
	if err != nil {
		return n, errors.Wrap(err, "csv: write chunk")
	}
	return n, nil
}

func (s *fileStore) Reader() (io.Reader, error) {
	adviseSequential(s.f)
	return io.NewSectionReader(s.f, 0, s.size), nil
}

func (s *fileStore) Size() int64 { return s.size }

func (s *fileStore) Reset() error {
	adviseDontNeed(s.f)
	if err := s.f.Truncate(0); err != nil {
		return errors.Wrap(err, "csv: truncate chunk")
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "csv: rewind chunk")
	}
	s.size = 0
	return nil
}

func (s *fileStore) Release() error {
	name := s.f.Name()
	cerr := s.f.Close()
	rerr := os.Remove(name)
	if cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		return errors.Wrap(cerr, "csv: close chunk")
	}
	if rerr != nil && !os.IsNotExist(rerr) {
		return errors.Wrap(rerr, "csv: remove chunk")
	}
	return nil
}
