package csv

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

// PadOptions describe the records PadRecords rewrites.
type PadOptions struct {
	// Fields is the column count every record is padded up to.
	Fields int
	Comma  rune
	// Comment starts a line that is copied untouched; 0 disables it.
	Comment rune
	// LazyQuotes mirrors the engine setting: a quote inside a quoted field
	// that is not followed by a delimiter or line end is literal.
	LazyQuotes bool
}

// PadRecords returns a reader that appends empty fields to every record with
// fewer than opt.Fields columns, so missing trailing values read as null.
// Longer records pass through unchanged and are left to the engine to reject.
// Blank and comment lines are copied as-is. Input must be prepared (see
// Prepare).
func PadRecords(r io.Reader, opt PadOptions) io.Reader {
	if opt.Fields <= 1 {
		return r
	}
	return &padReader{
		br:          bufio.NewReaderSize(r, rewriteBlock),
		opt:         opt,
		recordStart: true,
	}
}

type padState int

const (
	padFieldStart padState = iota
	padUnquoted
	padQuoted
	padQuoteEnd // a '"' inside a quoted field, may close it
	padComment
)

type padReader struct {
	br  *bufio.Reader
	opt PadOptions

	recordStart bool
	state       padState
	commas      int

	buf bytes.Buffer
	err error
}

func (p *padReader) Read(b []byte) (int, error) {
	if p.buf.Len() == 0 && p.err == nil {
		p.refill()
	}
	if p.buf.Len() > 0 {
		return p.buf.Read(b)
	}
	return 0, p.err
}

func (p *padReader) refill() {
	for p.buf.Len() < rewriteBlock {
		r, _, err := p.br.ReadRune()
		if err != nil {
			if !p.recordStart && p.state != padQuoted && p.state != padComment {
				p.pad()
			}
			p.err = err
			return
		}
		p.next(r)
	}
}

func (p *padReader) next(r rune) {
	if p.recordStart {
		switch {
		case r == '\n' || r == '\r':
			p.write(r)
			return
		case p.opt.Comment != 0 && r == p.opt.Comment:
			p.recordStart = false
			p.state = padComment
			p.write(r)
			return
		}
		p.recordStart = false
		p.state = padFieldStart
		p.commas = 0
	}

	switch p.state {
	case padComment:
		p.write(r)
		if r == '\n' {
			p.recordStart = true
		}
		return
	case padQuoted:
		if r == '"' {
			p.state = padQuoteEnd
		}
		p.write(r)
		return
	case padQuoteEnd:
		switch {
		case r == '"':
			p.state = padQuoted
			p.write(r)
			return
		case r != p.opt.Comma && r != '\n' && r != '\r' && p.opt.LazyQuotes:
			p.state = padQuoted
			p.write(r)
			return
		}
	}

	switch {
	case r == p.opt.Comma:
		p.commas++
		p.state = padFieldStart
		p.write(r)
	case r == '\n':
		p.pad()
		p.write(r)
		p.recordStart = true
	case r == '\r':
		next, _, err := p.br.ReadRune()
		if err == nil && next == '\n' {
			p.pad()
			p.buf.WriteString("\r\n")
			p.recordStart = true
			return
		}
		if err == nil {
			_ = p.br.UnreadRune()
		}
		p.state = padUnquoted
		p.write(r)
	case r == '"' && p.state == padFieldStart:
		p.state = padQuoted
		p.write(r)
	default:
		p.state = padUnquoted
		p.write(r)
	}
}

// pad writes the delimiters the current record is short of.
func (p *padReader) pad() {
	for i := p.commas + 1; i < p.opt.Fields; i++ {
		p.write(p.opt.Comma)
	}
}

func (p *padReader) write(r rune) {
	if r < utf8.RuneSelf {
		p.buf.WriteByte(byte(r))
		return
	}
	p.buf.WriteRune(r)
}
