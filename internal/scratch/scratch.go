// Package scratch provides a caller-owned temporary directory for transient
// files such as materialized chunks. Nothing here is process-global: whoever
// calls New decides when Close reclaims the space.
package scratch

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Space is a private directory for short-lived files. It is safe for
// concurrent use.
type Space struct {
	mu     sync.Mutex
	dir    string
	closed bool
}

// New creates a fresh directory under parent (os.TempDir when empty).
func New(parent string) (*Space, error) {
	dir, err := os.MkdirTemp(parent, "csvingest-*")
	if err != nil {
		return nil, errors.Wrap(err, "scratch: create dir")
	}
	return &Space{dir: dir}, nil
}

// Dir returns the directory path.
func (s *Space) Dir() string { return s.dir }

// CreateFile creates a new empty file whose name matches pattern (see
// os.CreateTemp). The caller removes it when done; Close removes leftovers.
func (s *Space) CreateFile(pattern string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("scratch: space is closed")
	}
	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return nil, errors.Wrap(err, "scratch: create file")
	}
	return f, nil
}

// Close removes the directory and everything in it. It is idempotent.
func (s *Space) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Wrap(os.RemoveAll(s.dir), "scratch: remove dir")
}
