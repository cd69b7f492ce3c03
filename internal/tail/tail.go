// Package tail reads newly appended lines from a log file.
package tail

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Follower remembers how far into a file it has read. Only complete lines are
// returned; a trailing partial line is read again once its newline arrives.
// A Follower is not safe for concurrent use.
type Follower struct {
	path   string
	offset int64
	fileID uint64
}

// NewFollower starts following path at offset.
func NewFollower(path string, offset int64) *Follower {
	return &Follower{path: path, offset: offset}
}

// Path returns the followed file
func (f *Follower) Path() string { return f.path }

// Offset returns the position after the last complete line read
func (f *Follower) Offset() int64 { return f.offset }

// ReadLines calls fn for every complete line appended since the last call and
// returns how many lines were read. A file that shrank or was replaced is read
// again from the start.
func (f *Follower) ReadLines(fn func(line string)) (int, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", f.path, err)
	}

	id := getFileID(info)
	if info.Size() < f.offset || (f.fileID != 0 && id != 0 && id != f.fileID) {
		f.offset = 0
	}
	f.fileID = id

	if info.Size() == f.offset {
		return 0, nil
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek %s to %d: %w", f.path, f.offset, err)
	}

	reader := bufio.NewReader(file)
	lines := 0
	for {
		raw, err := reader.ReadBytes('\n')
		if len(raw) > 0 && raw[len(raw)-1] == '\n' {
			f.offset += int64(len(raw))
			fn(string(bytes.TrimRight(raw, "\r\n")))
			lines++
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, fmt.Errorf("failed to read %s: %w", f.path, err)
		}
	}
}
