//go:build linux

package csv

import (
	"os"

	"golang.org/x/sys/unix"
)

func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

// adviseDontNeed drops the previous chunk's pages before the file is reused.
func adviseDontNeed(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_DONTNEED)
}
