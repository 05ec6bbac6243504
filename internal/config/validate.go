package config

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users but
	// does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a FormatConfig.
//
// Path is the config key (e.g. "delimiter", "reader_options.batch_rows").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var knownReaderOptions = map[string]struct{}{
	OptBatchRows:  {},
	OptComment:    {},
	OptLazyQuotes: {},
}

var knownConvertOptions = map[string]struct{}{
	OptNullValues:       {},
	OptStringsCanBeNull: {},
	OptCheckUTF8:        {},
}

// ValidateFormat performs static validation of a FormatConfig. It does not
// mutate f. Callers decide whether warnings are fatal.
func ValidateFormat(f FormatConfig) []Issue {
	var issues []Issue

	issues = append(issues, validateSingleChar("delimiter", f.Delimiter, true)...)
	issues = append(issues, validateSingleChar("quote_char", f.QuoteChar, true)...)
	issues = append(issues, validateSingleChar("escape_char", f.EscapeChar, false)...)

	if f.Comma() == f.Quote() {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "quote_char",
			Message:  "quote_char must differ from delimiter",
		})
	}
	if f.Escape() != 0 && f.Escape() == f.Quote() && f.DoubleQuote {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "escape_char",
			Message:  "escape_char equals quote_char; set double_quote=true and drop escape_char instead",
		})
	}
	switch f.Comma() {
	case '\r', '\n', utf8.RuneError:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "delimiter",
			Message:  "delimiter must not be a line terminator or invalid rune",
		})
	}

	if f.BlockSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "block_size",
			Message:  fmt.Sprintf("block_size=%d; must be positive", f.BlockSize),
		})
	}

	if !f.IsUTF8() {
		if _, err := htmlindex.Get(f.Encoding); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "encoding",
				Message:  fmt.Sprintf("unknown encoding %q", f.Encoding),
			})
		}
	}

	if n := f.ReaderOptions.Int(OptBatchRows, 1); n <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "reader_options." + OptBatchRows,
			Message:  "batch_rows must be positive",
		})
	}

	issues = append(issues, unknownKeys("reader_options", f.ReaderOptions, knownReaderOptions)...)
	issues = append(issues, unknownKeys("convert_options", f.ConvertOptions, knownConvertOptions)...)

	return issues
}

func validateSingleChar(path, v string, required bool) []Issue {
	n := utf8.RuneCountInString(v)
	switch {
	case n == 0 && required:
		return []Issue{{Severity: SeverityError, Path: path, Message: path + " must not be empty"}}
	case n > 1:
		return []Issue{{Severity: SeverityError, Path: path, Message: fmt.Sprintf("%s must be a single character, got %q", path, v)}}
	}
	return nil
}

// unknownKeys reports option keys the engine ignores. They are warnings so
// that newer configs keep working with older binaries.
func unknownKeys(prefix string, o Options, known map[string]struct{}) []Issue {
	keys := o.Keys()
	sort.Strings(keys)
	var issues []Issue
	for _, k := range keys {
		if _, ok := known[strings.TrimSpace(k)]; ok {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     prefix + "." + k,
			Message:  fmt.Sprintf("unknown option %q is ignored by the CSV engine", k),
		})
	}
	return issues
}
