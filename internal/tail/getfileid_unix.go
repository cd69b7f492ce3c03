//go:build !windows

package tail

import (
	"os"
	"syscall"
)

// getFileID returns the inode so a replaced file can be told apart from an appended one
func getFileID(fi os.FileInfo) uint64 {
	if stat, ok := fi.Sys().(*syscall.Stat_t); ok {
		return uint64(stat.Ino)
	}
	return 0
}
