package csv

import (
	"bytes"
	stdcsv "encoding/csv"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"csvingest/internal/config"
)

func format(mut func(*config.FormatConfig)) config.FormatConfig {
	f := config.DefaultFormat()
	if mut != nil {
		mut(&f)
	}
	return f
}

func TestNormalizeDialect_Standard(t *testing.T) {
	r := strings.NewReader(`"a""b",c`)
	assert.Equal(t, io.Reader(r), NormalizeDialect(r, config.DefaultFormat()))
}

func TestNormalizeDialect(t *testing.T) {
	tests := []struct {
		name   string
		mut    func(*config.FormatConfig)
		in     string
		want   string
		fields []string
	}{
		{
			name:   "single quote char",
			mut:    func(f *config.FormatConfig) { f.QuoteChar = "'" },
			in:     "'a,b',c\n",
			want:   "\"a,b\",c\n",
			fields: []string{"a,b", "c"},
		},
		{
			name:   "doubled custom quote",
			mut:    func(f *config.FormatConfig) { f.QuoteChar = "'" },
			in:     "'it''s',x\n",
			want:   "\"it's\",x\n",
			fields: []string{"it's", "x"},
		},
		{
			name:   "double quote inside custom quotes",
			mut:    func(f *config.FormatConfig) { f.QuoteChar = "'" },
			in:     "'say \"hi\"'\n",
			want:   "\"say \"\"hi\"\"\"\n",
			fields: []string{`say "hi"`},
		},
		{
			name:   "field starting with double quote",
			mut:    func(f *config.FormatConfig) { f.QuoteChar = "'" },
			in:     "\"x\",y\n",
			want:   "\"\"\"x\"\"\",y\n",
			fields: []string{`"x"`, "y"},
		},
		{
			name: "backslash escape",
			mut: func(f *config.FormatConfig) {
				f.EscapeChar = `\`
				f.DoubleQuote = false
			},
			in:     "\"a\\\"b\",c\n",
			want:   "\"a\"\"b\",c\n",
			fields: []string{`a"b`, "c"},
		},
		{
			name: "escape outside quotes",
			mut: func(f *config.FormatConfig) {
				f.EscapeChar = `\`
			},
			in:     "a\\b,c\n",
			want:   "ab,c\n",
			fields: []string{"ab", "c"},
		},
		{
			name:   "multibyte and semicolon",
			mut:    func(f *config.FormatConfig) { f.QuoteChar = "'"; f.Delimiter = ";" },
			in:     "'č;ř';ž\r\n",
			want:   "\"č;ř\";ž\r\n",
			fields: []string{"č;ř", "ž"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := format(tt.mut)
			out, err := io.ReadAll(iotest.OneByteReader(NormalizeDialect(strings.NewReader(tt.in), f)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))

			cr := stdcsv.NewReader(bytes.NewReader(out))
			cr.Comma = f.Comma()
			rec, err := cr.Read()
			require.NoError(t, err)
			assert.Equal(t, tt.fields, rec)
		})
	}
}

func TestNormalizeDialect_LargeInput(t *testing.T) {
	f := format(func(f *config.FormatConfig) { f.QuoteChar = "'" })
	in := strings.Repeat("'a,b',c\n", 50_000)
	out, err := io.ReadAll(NormalizeDialect(strings.NewReader(in), f))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("\"a,b\",c\n", 50_000), string(out))
}

func TestDecodeReader(t *testing.T) {
	raw, err := charmap.Windows1250.NewEncoder().String("jméno,příjmení\nŠárka,Čížková\n")
	require.NoError(t, err)

	r, err := DecodeReader(strings.NewReader(raw), format(func(f *config.FormatConfig) { f.Encoding = "windows-1250" }))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "jméno,příjmení\nŠárka,Čížková\n", string(out))
}

func TestDecodeReader_UTF8Check(t *testing.T) {
	bad := "a,b\n\xff,1\n"

	r, err := DecodeReader(strings.NewReader(bad), config.DefaultFormat())
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	assert.Error(t, err)

	off := format(func(f *config.FormatConfig) { f.ConvertOptions[config.OptCheckUTF8] = false })
	r, err = DecodeReader(strings.NewReader(bad), off)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, bad, string(out))
}

func TestDecodeReader_UnknownEncoding(t *testing.T) {
	_, err := DecodeReader(strings.NewReader(""), format(func(f *config.FormatConfig) { f.Encoding = "klingon" }))
	assert.Error(t, err)
}
