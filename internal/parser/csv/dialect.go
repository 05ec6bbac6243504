package csv

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"csvingest/internal/config"
)

const rewriteBlock = 64 * 1024

// NormalizeDialect returns r unchanged when f already uses RFC 4180 quoting.
// Otherwise it wraps r with a streaming rewriter that turns the configured
// quote char, escape char and non-doubled quotes into standard '"' quoting,
// so the engine sees a dialect it understands. Input must be UTF-8.
//
// Outside quoted fields an escape char is dropped and the next character
// copied as-is; an escaped delimiter or newline there is not preserved.
func NormalizeDialect(r io.Reader, f config.FormatConfig) io.Reader {
	if f.StandardDialect() {
		return r
	}
	return &dialectRewriter{
		br:          bufio.NewReaderSize(r, rewriteBlock),
		comma:       f.Comma(),
		quote:       f.Quote(),
		escape:      f.Escape(),
		doubleQuote: f.DoubleQuote,
		fieldStart:  true,
	}
}

// dialectRewriter is a rune-level state machine. It emits at most
// rewriteBlock bytes of output per refill and holds no other state than the
// current quoting position.
type dialectRewriter struct {
	br          *bufio.Reader
	comma       rune
	quote       rune
	escape      rune
	doubleQuote bool

	fieldStart bool
	inQuotes   bool
	// bare is set while copying an unquoted field that began with '"'; the
	// output wraps it in quotes so the engine keeps the '"' literal.
	bare bool

	buf bytes.Buffer
	err error
}

func (d *dialectRewriter) Read(p []byte) (int, error) {
	if d.buf.Len() == 0 && d.err == nil {
		d.refill()
	}
	if d.buf.Len() > 0 {
		return d.buf.Read(p)
	}
	return 0, d.err
}

func (d *dialectRewriter) refill() {
	for d.buf.Len() < rewriteBlock {
		r, _, err := d.br.ReadRune()
		if err != nil {
			d.closeBare()
			d.err = err
			return
		}
		if d.inQuotes {
			d.quoted(r)
		} else {
			d.unquoted(r)
		}
		if d.err != nil {
			return
		}
	}
}

func (d *dialectRewriter) quoted(r rune) {
	switch {
	case d.escape != 0 && r == d.escape:
		next, _, err := d.br.ReadRune()
		if err != nil {
			d.err = err
			return
		}
		d.literal(next)
	case r == d.quote:
		if d.doubleQuote {
			next, _, err := d.br.ReadRune()
			if err == nil && next == d.quote {
				d.literal(d.quote)
				return
			}
			if err == nil {
				_ = d.br.UnreadRune()
			}
		}
		d.buf.WriteByte('"')
		d.inQuotes = false
	default:
		d.literal(r)
	}
}

func (d *dialectRewriter) unquoted(r rune) {
	switch {
	case r == d.comma || r == '\n':
		d.closeBare()
		d.fieldStart = true
		d.writeRune(r)
		return
	case r == '\r':
		d.closeBare()
		d.writeRune(r)
		return
	case d.fieldStart && r == d.quote:
		d.buf.WriteByte('"')
		d.inQuotes = true
	case d.fieldStart && r == '"':
		d.buf.WriteString(`"""`)
		d.bare = true
	case d.bare && r == '"':
		d.buf.WriteString(`""`)
	case d.escape != 0 && r == d.escape:
		next, _, err := d.br.ReadRune()
		if err != nil {
			d.closeBare()
			d.err = err
			return
		}
		if d.bare {
			d.literal(next)
		} else {
			d.writeRune(next)
		}
	default:
		d.writeRune(r)
	}
	d.fieldStart = false
}

func (d *dialectRewriter) closeBare() {
	if d.bare {
		d.buf.WriteByte('"')
		d.bare = false
	}
}

// literal writes r inside a quoted field.
func (d *dialectRewriter) literal(r rune) {
	if r == '"' {
		d.buf.WriteString(`""`)
		return
	}
	d.writeRune(r)
}

func (d *dialectRewriter) writeRune(r rune) {
	if r < utf8.RuneSelf {
		d.buf.WriteByte(byte(r))
		return
	}
	d.buf.WriteRune(r)
}
