package csv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"csvingest/internal/config"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name string
		line string
		mut  func(*config.FormatConfig)
		want []string
	}{
		{name: "plain", line: "id,name,score", want: []string{"id", "name", "score"}},
		{name: "keeps spaces", line: "a, b ,c", want: []string{"a", " b ", "c"}},
		{name: "quoted delimiter", line: `"a,b",c`, want: []string{"a,b", "c"}},
		{name: "bom", line: "\ufeffid,name", want: []string{"id", "name"}},
		{name: "crlf", line: "a,b\r", want: []string{"a", "b"}},
		{name: "empty cells", line: "a,,c", want: []string{"a", "", "c"}},
		{name: "empty line", line: "", want: []string{}},
		{
			name: "semicolon and custom quote",
			line: "'x;y';z",
			mut:  func(f *config.FormatConfig) { f.Delimiter = ";"; f.QuoteChar = "'" },
			want: []string{"x;y", "z"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeader([]byte(tt.line), format(tt.mut))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHeader_Encoding(t *testing.T) {
	raw, err := charmap.ISO8859_2.NewEncoder().String("název,cena")
	require.NoError(t, err)

	got, err := ParseHeader([]byte(raw), format(func(f *config.FormatConfig) { f.Encoding = "iso-8859-2" }))
	require.NoError(t, err)
	assert.Equal(t, []string{"název", "cena"}, got)
}

func TestParseHeader_InvalidUTF8(t *testing.T) {
	_, err := ParseHeader([]byte("a,\xffb"), config.DefaultFormat())
	assert.Error(t, err)
}

func TestStripHeaderBOM(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, StripHeaderBOM([]string{"\ufeffa", "b"}))
	assert.Equal(t, []string{"a"}, StripHeaderBOM([]string{"a"}))
	assert.Empty(t, StripHeaderBOM(nil))
}
