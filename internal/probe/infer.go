package probe

import (
	"bytes"
	stdcsv "encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"csvingest/internal/config"
	pcsv "csvingest/internal/parser/csv"
	"csvingest/internal/schema"
)

// inferSample derives column names and types from a raw sample. It is the
// work done inside the isolated worker.
//
// Only rows starting within the first f.BlockSize decoded bytes are typed;
// the rest of the sample exists so the last of those rows is complete. A
// truncated sample is cut at its last record terminator first. Rows shorter
// than the header count their missing cells as null; longer rows fail.
func inferSample(s Sample, f config.FormatConfig) ([]schema.Field, error) {
	text, err := decodeSample(s, f)
	if err != nil {
		return nil, failure(KindDecode, err)
	}

	cr := stdcsv.NewReader(bytes.NewReader(text))
	cr.Comma = f.Comma()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = f.ReaderOptions.Bool(config.OptLazyQuotes, false) || !f.StandardDialect()
	if c := f.ReaderOptions.Rune(config.OptComment, 0); c != 0 {
		cr.Comment = c
	}

	header, err := cr.Read()
	if err == io.EOF {
		return []schema.Field{}, nil
	}
	if err != nil {
		return nil, failure(KindParse, err)
	}
	header = pcsv.StripHeaderBOM(header)

	cols := make([][]string, len(header))
	block := int64(f.BlockSize)
	if block <= 0 {
		block = config.DefaultBlockSize
	}
	for cr.InputOffset() < block {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, failure(KindParse, err)
		}
		if len(rec) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, failure(KindParse, &stdcsv.ParseError{StartLine: line, Line: line, Column: 1, Err: stdcsv.ErrFieldCount})
		}
		for i, v := range rec {
			cols[i] = append(cols[i], v)
		}
	}

	nulls := make(map[string]struct{})
	for _, v := range f.NullValues() {
		nulls[v] = struct{}{}
	}
	fields := make([]schema.Field, len(header))
	for i, name := range header {
		fields[i] = schema.Field{Name: name, Type: inferColumn(cols[i], nulls)}
	}
	sm, err := schema.New(fields)
	if err != nil {
		return nil, failure(KindSchema, err)
	}
	return sm.Fields(), nil
}

// decodeSample returns the sample as prepared UTF-8 text ending at a record
// terminator when the stream went on past it.
//
// UTF-8 input is cut before decoding so a rune split by the sample boundary
// never reaches the validator. Other encodings are cut after decoding: a
// '\n' byte in the raw sample need not end a character there (UTF-16).
func decodeSample(s Sample, f config.FormatConfig) ([]byte, error) {
	data := s.Bytes
	utf8Input := f.IsUTF8()
	if s.Truncated && utf8Input {
		data = cutAtLastNewline(data)
	}
	r, err := pcsv.Prepare(bytes.NewReader(data), f)
	if err != nil {
		return nil, err
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if s.Truncated && !utf8Input {
		text = cutAtLastNewline(text)
	}
	return text, nil
}

func cutAtLastNewline(b []byte) []byte {
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return b[:i+1]
	}
	return b
}

// inferColumn picks the narrowest type every non-null value parses as, in
// the same way the streaming engine will parse it. A column with no values is
// TypeNull.
func inferColumn(values []string, nulls map[string]struct{}) schema.LogicalType {
	present := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := nulls[v]; !ok {
			present = append(present, v)
		}
	}
	switch {
	case len(present) == 0:
		return schema.TypeNull
	case allMatch(present, isInt):
		return schema.TypeInteger
	case allMatch(present, isFloat):
		return schema.TypeFloat
	case allMatch(present, isBool):
		return schema.TypeBoolean
	case allMatch(present, isDate):
		return schema.TypeDate
	case allMatch(present, isTimestamp):
		return schema.TypeTimestamp
	}
	return schema.TypeString
}

// allMatch reports whether every value satisfies fn.
func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

// isInt requires a signed base-10 integer that fits in int64. No trimming:
// the engine does not trim either.
func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isFloat accepts anything strconv reads as float64, integers included.
func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// isBool accepts the spellings the engine maps to true and false.
func isBool(s string) bool {
	switch s {
	case "true", "True", "false", "False":
		return true
	}
	return false
}

func isDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func isTimestamp(s string) bool {
	_, err := arrow.TimestampFromString(s, schema.TimestampUnit)
	return err == nil
}
