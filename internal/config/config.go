// Package config defines the format model consumed by the ingestion core.
//
// A FormatConfig is resolved by the caller (from a file, a catalog entry or
// flags) before any stream is touched; the core only ever reads it. The two
// option bags are free-form maps whose keys are translated to CSV engine
// settings by the parser and inference packages.
//
// Example (YAML):
//
//	delimiter: ";"
//	quote_char: "\""
//	encoding: windows-1250
//	infer_datatypes: true
//	reader_options: { batch_rows: 5000 }
//	convert_options: { null_values: ["", "NULL"] }
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Reader option keys understood by the CSV engine.
const (
	// OptBatchRows is the number of rows per engine batch.
	OptBatchRows = "batch_rows"
	// OptComment is a single-character comment marker; lines starting with it
	// are skipped.
	OptComment = "comment"
	// OptLazyQuotes relaxes quote handling (bare quotes in unquoted fields).
	OptLazyQuotes = "lazy_quotes"
)

// Converter option keys understood by the CSV engine.
const (
	// OptNullValues lists the cell spellings treated as null.
	OptNullValues = "null_values"
	// OptStringsCanBeNull controls whether string columns honour null_values.
	OptStringsCanBeNull = "strings_can_be_null"
	// OptCheckUTF8 rejects input that is not valid UTF-8 after decoding.
	OptCheckUTF8 = "check_utf8"
)

const (
	// DefaultBlockSize mirrors the engine's default read block in bytes.
	DefaultBlockSize = 10000
	// DefaultBatchRows is the engine batch length when batch_rows is unset.
	DefaultBatchRows = 10000
)

// FormatConfig describes how a CSV byte stream is to be read. The zero value
// is not usable; start from DefaultFormat.
type FormatConfig struct {
	// Delimiter separates fields. Exactly one character.
	Delimiter string `json:"delimiter" yaml:"delimiter"`

	// QuoteChar wraps fields containing delimiters or newlines.
	QuoteChar string `json:"quote_char" yaml:"quote_char"`

	// EscapeChar, when set, escapes the next character inside quoted fields.
	EscapeChar string `json:"escape_char,omitempty" yaml:"escape_char,omitempty"`

	// DoubleQuote treats two consecutive quote characters inside a quoted
	// field as one literal quote.
	DoubleQuote bool `json:"double_quote" yaml:"double_quote"`

	// Encoding is a WHATWG encoding label (utf8, latin1, windows-1250, ...).
	Encoding string `json:"encoding" yaml:"encoding"`

	// NewlinesInValues allows quoted values to span lines. Chunking is never
	// applied to such streams because '\n' is no longer a record boundary.
	NewlinesInValues bool `json:"newlines_in_values" yaml:"newlines_in_values"`

	// BlockSize is the inference block in bytes; the sample is twice this.
	BlockSize int `json:"block_size" yaml:"block_size"`

	// InferDatatypes enables typed inference. When false every column is a
	// string and only the header line is read.
	InferDatatypes bool `json:"infer_datatypes" yaml:"infer_datatypes"`

	// ReaderOptions are passed to the engine's reader (see Opt* constants).
	ReaderOptions Options `json:"reader_options,omitempty" yaml:"reader_options,omitempty"`

	// ConvertOptions are passed to the engine's value converter.
	ConvertOptions Options `json:"convert_options,omitempty" yaml:"convert_options,omitempty"`
}

// DefaultFormat returns the format used when a caller supplies nothing.
func DefaultFormat() FormatConfig {
	return FormatConfig{
		Delimiter:      ",",
		QuoteChar:      `"`,
		DoubleQuote:    true,
		Encoding:       "utf8",
		BlockSize:      DefaultBlockSize,
		InferDatatypes: true,
		ReaderOptions:  Options{},
		ConvertOptions: Options{},
	}
}

// Comma returns the delimiter rune, ',' when unset.
func (f FormatConfig) Comma() rune { return firstRune(f.Delimiter, ',') }

// Quote returns the quote rune, '"' when unset.
func (f FormatConfig) Quote() rune { return firstRune(f.QuoteChar, '"') }

// Escape returns the escape rune or 0 when escaping is disabled.
func (f FormatConfig) Escape() rune { return firstRune(f.EscapeChar, 0) }

// SampleSize is the number of head bytes handed to schema inference.
func (f FormatConfig) SampleSize() int {
	if f.BlockSize <= 0 {
		return 2 * DefaultBlockSize
	}
	return 2 * f.BlockSize
}

// IsUTF8 reports whether the configured encoding is UTF-8 (or unset).
func (f FormatConfig) IsUTF8() bool {
	e := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(f.Encoding), "-", ""))
	return e == "" || e == "utf8"
}

// CheckUTF8 reports whether decoded input must be validated as UTF-8. It
// defaults to true for UTF-8 streams, matching the engine's own default.
func (f FormatConfig) CheckUTF8() bool {
	return f.ConvertOptions.Bool(OptCheckUTF8, f.IsUTF8())
}

// StringsCanBeNull reports whether null spellings in string columns read as
// null. Defaults to true so an empty cell is null in every column type.
func (f FormatConfig) StringsCanBeNull() bool {
	return f.ConvertOptions.Bool(OptStringsCanBeNull, true)
}

// BatchRows is the number of rows per engine batch.
func (f FormatConfig) BatchRows() int {
	return f.ReaderOptions.Int(OptBatchRows, DefaultBatchRows)
}

// NullValues returns the cell spellings treated as null. The empty string is
// always included.
func (f FormatConfig) NullValues() []string {
	vals := f.ConvertOptions.StringSlice(OptNullValues)
	for _, v := range vals {
		if v == "" {
			return vals
		}
	}
	return append([]string{""}, vals...)
}

// StandardDialect reports whether the quoting rules are plain RFC 4180, i.e.
// the engine can read the bytes without rewriting.
func (f FormatConfig) StandardDialect() bool {
	return f.Quote() == '"' && f.Escape() == 0 && f.DoubleQuote
}

// FileDescriptor describes the stream being processed. It is never mutated.
type FileDescriptor struct {
	// ID identifies the object (usually its storage key).
	ID string `json:"id"`
	// Size is the object size in bytes; 0 when unknown.
	Size int64 `json:"size"`
}

// LoadFormat reads a FormatConfig from a .json, .yaml or .yml file. Keys that
// are absent keep their DefaultFormat values.
func LoadFormat(path string) (FormatConfig, error) {
	f := DefaultFormat()
	b, err := os.ReadFile(path)
	if err != nil {
		return f, errors.Wrap(err, "read format config")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &f); err != nil {
			return f, errors.Wrapf(err, "decode %s", path)
		}
	default:
		if err := json.Unmarshal(b, &f); err != nil {
			return f, errors.Wrapf(err, "decode %s", path)
		}
	}
	if f.ReaderOptions == nil {
		f.ReaderOptions = Options{}
	}
	if f.ConvertOptions == nil {
		f.ConvertOptions = Options{}
	}
	return f, nil
}

func firstRune(s string, def rune) rune {
	for _, r := range s {
		return r
	}
	return def
}

// Options is a small helper to fetch typed values from arbitrary decoded
// maps. It performs only minimal type coercion and returns the provided
// default when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64
// and YAML integers as int, so both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings (or of interface values holding strings). Returns nil when the key
// is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Keys returns the option keys in unspecified order.
func (o Options) Keys() []string {
	out := make([]string, 0, len(o))
	for k := range o {
		out = append(out, k)
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// options object decodes to a non-nil, empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
