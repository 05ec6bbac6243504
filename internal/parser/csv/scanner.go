package csv

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const (
	// MaxLineSize caps how many bytes may accumulate without a record
	// terminator before the input is declared malformed.
	MaxLineSize = 50 << 20

	// scanBlockSize is the default read increment of FindLineEnd.
	scanBlockSize = 1 << 10
)

// Scanner finds record terminators in a byte stream. The zero value reads
// 1 KiB increments and enforces MaxLineSize.
type Scanner struct {
	// BlockSize is the read increment in bytes.
	BlockSize int
	// MaxLineSize is the largest unterminated run tolerated.
	MaxLineSize int
}

// FindLineEnd is Scanner{}.FindLineEnd.
func FindLineEnd(r io.Reader) (head, tail []byte, err error) {
	return Scanner{}.FindLineEnd(r)
}

// FindLineEnd reads r forward until the next '\n'. head holds the bytes
// before the terminator; tail holds the terminator and whatever else was
// consumed from r in the same read. At end of stream without a terminator it
// returns nil, nil, nil. A run longer than MaxLineSize yields *SizeLimitError.
func (s Scanner) FindLineEnd(r io.Reader) (head, tail []byte, err error) {
	head, tail, found, err := s.scan(r)
	if err != nil || !found {
		return nil, nil, err
	}
	return head, tail, nil
}

// scan is FindLineEnd that also hands back the unterminated remainder at end
// of stream (found=false, head=remainder), which the splitter must not drop.
func (s Scanner) scan(r io.Reader) (head, tail []byte, found bool, err error) {
	block := s.BlockSize
	if block <= 0 {
		block = scanBlockSize
	}
	limit := s.MaxLineSize
	if limit <= 0 {
		limit = MaxLineSize
	}

	buf := make([]byte, block)
	var acc []byte
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			start := len(acc)
			acc = append(acc, buf[:n]...)
			if i := bytes.IndexByte(acc[start:], '\n'); i >= 0 {
				i += start
				if i > limit {
					return nil, nil, false, &SizeLimitError{Limit: limit, Buffered: i}
				}
				return acc[:i], acc[i:], true, nil
			}
			if len(acc) > limit {
				return nil, nil, false, &SizeLimitError{Limit: limit, Buffered: len(acc)}
			}
		}
		if rerr == io.EOF {
			return acc, nil, false, nil
		}
		if rerr != nil {
			return nil, nil, false, errors.Wrap(rerr, "csv: scan for line end")
		}
	}
}
