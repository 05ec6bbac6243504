package csv

import (
	"bytes"
	stdcsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"

	"csvingest/internal/scratch"
)

type splitChunk struct {
	index  int
	size   int64
	digest uint64
	data   string
}

func collectChunks(t *testing.T, s *Splitter) []splitChunk {
	t.Helper()
	var out []splitChunk
	for c, err := range s.Chunks() {
		require.NoError(t, err)
		b, err := io.ReadAll(c)
		require.NoError(t, err)
		require.Equal(t, c.Size, int64(len(b)))
		out = append(out, splitChunk{index: c.Index, size: c.Size, digest: c.Digest, data: string(b)})
	}
	return out
}

func bodyOf(t *testing.T, header, chunk string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(chunk, header+"\n"), "chunk must start with header: %q", chunk)
	return strings.TrimPrefix(chunk, header+"\n")
}

func rowsCSV(n int) (header, body string) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,name-%03d,%d.5\n", i, i, i)
	}
	return "id,name,score", b.String()
}

func TestSplitter_RecordAligned(t *testing.T) {
	header, body := rowsCSV(200)
	for _, max := range []int64{64, 100, 257, 1024, 1 << 20} {
		t.Run(fmt.Sprint(max), func(t *testing.T) {
			s := NewSplitter(strings.NewReader(header+"\n"+body), SplitterOptions{MaxChunkSize: max, ReadBlockSize: 16})
			chunks := collectChunks(t, s)
			require.NotEmpty(t, chunks)

			var rebuilt strings.Builder
			for i, c := range chunks {
				assert.Equal(t, i+1, c.index)
				assert.LessOrEqual(t, c.size, max)
				b := bodyOf(t, header, c.data)
				assert.True(t, strings.HasSuffix(b, "\n"), "chunk %d ends mid-record", c.index)
				assert.Equal(t, xxh3.HashString(b), c.digest)
				rebuilt.WriteString(b)
			}
			assert.Equal(t, body, rebuilt.String())
			assert.Equal(t, header, string(s.Header()))
		})
	}
}

func TestSplitter_ChunksParseIndependently(t *testing.T) {
	header, body := rowsCSV(50)
	s := NewSplitter(strings.NewReader(header+"\n"+body), SplitterOptions{MaxChunkSize: 300})

	total := 0
	for c, err := range s.Chunks() {
		require.NoError(t, err)
		recs, err := stdcsv.NewReader(c).ReadAll()
		require.NoError(t, err)
		require.NotEmpty(t, recs)
		assert.Equal(t, []string{"id", "name", "score"}, recs[0])
		total += len(recs) - 1
	}
	assert.Equal(t, 50, total)
}

func TestSplitter_OversizeRecordTravelsAlone(t *testing.T) {
	big := strings.Repeat("z", 100)
	in := "h\nsmall\n" + big + "\ntail\n"
	chunks := collectChunks(t, NewSplitter(strings.NewReader(in), SplitterOptions{MaxChunkSize: 20, ReadBlockSize: 8}))

	var bodies []string
	for _, c := range chunks {
		bodies = append(bodies, bodyOf(t, "h", c.data))
	}
	assert.Equal(t, []string{"small\n", big + "\n", "tail\n"}, bodies)
}

func TestSplitter_FinalRecordWithoutTerminator(t *testing.T) {
	chunks := collectChunks(t, NewSplitter(strings.NewReader("a,b\n1,2\n3,4"), SplitterOptions{MaxChunkSize: 10}))
	require.Len(t, chunks, 2)
	assert.Equal(t, "a,b\n1,2\n", chunks[0].data)
	assert.Equal(t, "a,b\n3,4", chunks[1].data)
}

func TestSplitter_Edges(t *testing.T) {
	t.Run("empty stream", func(t *testing.T) {
		assert.Empty(t, collectChunks(t, NewSplitter(strings.NewReader(""), SplitterOptions{})))
	})
	t.Run("header only", func(t *testing.T) {
		chunks := collectChunks(t, NewSplitter(strings.NewReader("a,b\n"), SplitterOptions{}))
		require.Len(t, chunks, 1)
		assert.Equal(t, "a,b\n", chunks[0].data)
	})
	t.Run("header without terminator", func(t *testing.T) {
		chunks := collectChunks(t, NewSplitter(strings.NewReader("a,b"), SplitterOptions{}))
		require.Len(t, chunks, 1)
		assert.Equal(t, "a,b\n", chunks[0].data)
	})
	t.Run("no trailing empty chunk", func(t *testing.T) {
		chunks := collectChunks(t, NewSplitter(strings.NewReader("h\n1\n2\n"), SplitterOptions{MaxChunkSize: 4}))
		require.Len(t, chunks, 2)
		assert.Equal(t, "h\n1\n", chunks[0].data)
		assert.Equal(t, "h\n2\n", chunks[1].data)
	})
}

func TestSplitter_SizeLimit(t *testing.T) {
	in := "h\n" + strings.Repeat("x", 64) + "\n"
	s := NewSplitter(strings.NewReader(in), SplitterOptions{ReadBlockSize: 8, MaxLineSize: 32})
	var gotErr error
	for _, err := range s.Chunks() {
		if err != nil {
			gotErr = err
		}
	}
	assert.ErrorIs(t, gotErr, ErrSizeLimitExceeded)
}

func TestSplitter_SingleUse(t *testing.T) {
	s := NewSplitter(strings.NewReader("h\n1\n"), SplitterOptions{})
	collectChunks(t, s)
	for _, err := range s.Chunks() {
		assert.Error(t, err)
	}
}

type trackingStore struct {
	ChunkStore
	resets   int
	released int
}

func (s *trackingStore) Reset() error {
	s.resets++
	return s.ChunkStore.Reset()
}

func (s *trackingStore) Release() error {
	s.released++
	return s.ChunkStore.Release()
}

func TestSplitter_ReleasesOnEarlyBreak(t *testing.T) {
	header, body := rowsCSV(100)
	store := &trackingStore{ChunkStore: NewMemoryStore()}
	s := NewSplitter(strings.NewReader(header+"\n"+body), SplitterOptions{MaxChunkSize: 128, Store: store})

	for c := range s.Chunks() {
		assert.Equal(t, 1, c.Index)
		break
	}
	assert.Equal(t, 1, store.released)
	assert.Equal(t, 0, store.resets)
}

func TestSplitter_ReleasesOnError(t *testing.T) {
	store := &trackingStore{ChunkStore: NewMemoryStore()}
	s := NewSplitter(strings.NewReader("h\n"+strings.Repeat("x", 64)), SplitterOptions{ReadBlockSize: 8, MaxLineSize: 16, Store: store})
	for range s.Chunks() {
	}
	assert.Equal(t, 1, store.released)
}

func TestSplitter_FileStore(t *testing.T) {
	space, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = space.Close() })

	store, err := NewFileStore(space)
	require.NoError(t, err)

	header, body := rowsCSV(300)
	chunks := collectChunks(t, NewSplitter(strings.NewReader(header+"\n"+body), SplitterOptions{MaxChunkSize: 1000, Store: store}))
	require.Greater(t, len(chunks), 3)

	var rebuilt strings.Builder
	for _, c := range chunks {
		rebuilt.WriteString(bodyOf(t, header, c.data))
	}
	assert.Equal(t, body, rebuilt.String())

	entries, err := os.ReadDir(space.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "chunk file must be removed when the sequence ends")
}

// lines is a reader producing count copies of line.
type lines struct {
	line  []byte
	count int
	off   int
}

func (l *lines) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && l.count > 0 {
		c := copy(p[n:], l.line[l.off:])
		n += c
		l.off += c
		if l.off == len(l.line) {
			l.off = 0
			l.count--
		}
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func TestSplitter_120MiBInto50MiBChunks(t *testing.T) {
	if testing.Short() {
		t.Skip("streams 120 MiB")
	}
	const header = "id,payload"
	line := []byte(fmt.Sprintf("%08d,%s\n", 0, strings.Repeat("p", 54)))
	require.Len(t, line, 64)
	count := (120 << 20) / len(line)

	space, err := scratch.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = space.Close() })
	store, err := NewFileStore(space)
	require.NoError(t, err)

	src := io.MultiReader(strings.NewReader(header+"\n"), &lines{line: line, count: count})
	s := NewSplitter(src, SplitterOptions{MaxChunkSize: 50 << 20, Store: store})

	want := xxh3.New()
	_, err = io.Copy(want, &lines{line: line, count: count})
	require.NoError(t, err)

	got := xxh3.New()
	n, rows := 0, 0
	for c, err := range s.Chunks() {
		require.NoError(t, err)
		n++
		assert.LessOrEqual(t, c.Size, int64(50<<20))

		b, err := io.ReadAll(c)
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(b, []byte(header+"\n")))
		body := b[len(header)+1:]
		require.Equal(t, byte('\n'), body[len(body)-1])
		_, _ = got.Write(body)

		cr := stdcsv.NewReader(bytes.NewReader(b))
		cr.ReuseRecord = true
		for {
			_, err := cr.Read()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			rows++
		}
		rows-- // header
	}
	assert.Equal(t, 3, n)
	assert.Equal(t, count, rows)
	assert.Equal(t, want.Sum64(), got.Sum64())
}
