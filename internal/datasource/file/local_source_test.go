package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvingest/internal/config"
	"csvingest/internal/datasource"
)

var _ datasource.Source = (*Local)(nil)

func TestLocal(t *testing.T) {
	t.Parallel()
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	const payload = "id,name\n1,alice\n2,bob\n"
	csvPath := writeFile(t, dir, "people.csv", payload)
	tsvPath := writeFile(t, dir, "people.tsv", "id\tname\n")

	tests := []struct {
		name    string
		path    string
		ctx     context.Context
		want    config.FileDescriptor
		wantErr error
	}{
		{name: "csv", path: csvPath, ctx: context.Background(), want: config.FileDescriptor{ID: csvPath, Size: int64(len(payload))}},
		{name: "other suffix", path: tsvPath, ctx: context.Background(), want: config.FileDescriptor{ID: tsvPath, Size: 8}},
		{name: "missing", path: filepath.Join(dir, "missing.csv"), ctx: context.Background(), wantErr: os.ErrNotExist},
		{name: "canceled", path: csvPath, ctx: canceled, wantErr: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewLocal(tt.path)

			fd, err := src.Describe(tt.ctx)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				rc, err := src.Open(tt.ctx)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, rc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, fd)

			rc, err := src.Open(tt.ctx)
			require.NoError(t, err)
			defer rc.Close()
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Len(t, b, int(fd.Size))
		})
	}
}

func TestLocalDescribeDirectory(t *testing.T) {
	t.Parallel()
	_, err := NewLocal(t.TempDir()).Describe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}
