package tail

import (
	"os"
	"path/filepath"
	"testing"
)

func appendTo(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		t.Fatal(err)
	}
}

func collect(t *testing.T, f *Follower) []string {
	t.Helper()
	var lines []string
	if _, err := f.ReadLines(func(line string) { lines = append(lines, line) }); err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	return lines
}

func TestFollowerReadsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "L1018000.log")
	appendTo(t, path, "one\ntwo\r\n")

	f := NewFollower(path, 0)
	if got := collect(t, f); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("first read = %q", got)
	}

	appendTo(t, path, "three\npart")
	if got := collect(t, f); len(got) != 1 || got[0] != "three" {
		t.Fatalf("second read = %q", got)
	}

	appendTo(t, path, "ial\n")
	if got := collect(t, f); len(got) != 1 || got[0] != "partial" {
		t.Fatalf("third read = %q, want the completed partial line", got)
	}

	if got := collect(t, f); len(got) != 0 {
		t.Errorf("read with no new data = %q", got)
	}
}

func TestFollowerTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "L1018000.log")
	appendTo(t, path, "aaaaaaaaaa\nbbbbbbbbbb\n")

	f := NewFollower(path, 0)
	collect(t, f)

	if err := os.WriteFile(path, []byte("new\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := collect(t, f); len(got) != 1 || got[0] != "new" {
		t.Errorf("read after truncation = %q", got)
	}
}

func TestFollowerStartOffsetAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "L1018000.log")

	f := NewFollower(path, 0)
	if got := collect(t, f); len(got) != 0 {
		t.Errorf("missing file read = %q", got)
	}

	appendTo(t, path, "skip\nkeep\n")
	f = NewFollower(path, int64(len("skip\n")))
	if got := collect(t, f); len(got) != 1 || got[0] != "keep" {
		t.Errorf("read from offset = %q", got)
	}
	if f.Offset() != int64(len("skip\nkeep\n")) {
		t.Errorf("Offset() = %d", f.Offset())
	}
}
