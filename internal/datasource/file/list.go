package file

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"csvingest/internal/datasource"
)

// ReadList reads a list file of input paths, one per line, and returns a
// Local source for each in order. Blank lines and lines starting with '#'
// are skipped. Relative paths are taken relative to the list file's
// directory.
func ReadList(path string) ([]datasource.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open list %s", path)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var out []datasource.Source
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(dir, line)
		}
		out = append(out, NewLocal(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read list %s", path)
	}
	return out, nil
}
