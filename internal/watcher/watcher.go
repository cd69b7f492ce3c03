// Package watcher follows the CS2 log directory and feeds parsed events to a Sink.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sunday-scrims/internal/events"
	"sunday-scrims/internal/parser"
	"sunday-scrims/internal/tail"

	"github.com/fsnotify/fsnotify"
)

// Sink receives everything the watcher reads.
type Sink interface {
	// Restore is called once at startup with the roster rebuilt from the current log.
	Restore(roster Roster)
	HandleEvent(ev events.Event)
}

// Watcher follows the newest .log file in a directory. CS2 starts a new file on
// every map change, so a newly created log replaces the followed one.
type Watcher struct {
	watcher *fsnotify.Watcher
	parser  *parser.LogParser
	sink    Sink
	logger  *slog.Logger
	dir     string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	queue  chan string

	// owned by the worker goroutine after Start
	follower *tail.Follower
}

// NewWatcher creates a watcher for dir
func NewWatcher(dir string, logParser *parser.LogParser, sink Sink, logger *slog.Logger) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("log directory %s does not exist: %w", absDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absDir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		watcher: fsw,
		parser:  logParser,
		sink:    sink,
		logger:  logger,
		dir:     absDir,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan string, 64),
	}, nil
}

// Start restores state from the newest log and begins following the directory
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}
	w.logger.Info("Watching log directory", "dir", w.dir)

	w.startupCatchup()

	w.wg.Add(2)
	go w.watchLoop()
	go w.worker()

	// pick up anything written between catch-up and the worker starting
	if w.follower != nil {
		w.enqueue(w.follower.Path())
	}
	return nil
}

// Stop stops the watcher and waits for the worker to finish
func (w *Watcher) Stop() {
	w.cancel()
	w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) startupCatchup() {
	path, modTime, ok := newestLog(w.dir)
	if !ok {
		w.logger.Info("No log file found, starting with an empty roster")
		w.sink.Restore(Roster{})
		return
	}

	if age := time.Since(modTime); age > MaxCatchupAge {
		w.logger.Info("Newest log is stale, skipping catch-up", "file", path, "age", age.Round(time.Minute))
		w.follower = tail.NewFollower(path, fileSize(path))
		w.sink.Restore(Roster{})
		return
	}

	roster, follower, err := catchup(path, w.parser)
	if err != nil {
		w.logger.Error("Catch-up failed", "file", path, "error", err)
	}
	w.follower = follower
	w.logger.Info("Catch-up complete", "file", path, "players", len(roster.Players), "ended", roster.Ended, "offset", follower.Offset())
	w.sink.Restore(roster)
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if isLogFile(event.Name) {
					w.enqueue(event.Name)
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", "error", err)
		}
	}
}

// enqueue never blocks the fsnotify loop. A dropped notification is harmless
// because the worker reads everything appended since its last read.
func (w *Watcher) enqueue(path string) {
	select {
	case w.queue <- path:
	default:
		w.logger.Debug("Watcher queue full, coalescing event", "file", path)
	}
}

func (w *Watcher) worker() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case path := <-w.queue:
			w.processFile(path)
		}
	}
}

func (w *Watcher) processFile(path string) {
	if w.follower == nil || w.follower.Path() != path {
		if !w.switchTo(path) {
			return
		}
	}
	w.readNew()
}

// switchTo moves to path if it is at least as new as the followed file
func (w *Watcher) switchTo(path string) bool {
	if w.follower != nil {
		current, err := os.Stat(w.follower.Path())
		next, nextErr := os.Stat(path)
		if nextErr != nil {
			return false
		}
		if err == nil && next.ModTime().Before(current.ModTime()) {
			w.logger.Debug("Ignoring write to older log", "file", path)
			return false
		}
		// finish the old file first
		w.readNew()
	}

	w.logger.Info("Following new log file", "file", path)
	w.follower = tail.NewFollower(path, 0)
	return true
}

func (w *Watcher) readNew() {
	n, err := w.follower.ReadLines(func(line string) {
		if ev, ok := w.parser.Parse(line); ok {
			w.sink.HandleEvent(ev)
		}
	})
	if err != nil {
		w.logger.Error("Error reading log", "file", w.follower.Path(), "error", err)
	}
	if n > 0 {
		w.logger.Debug("Processed log lines", "file", w.follower.Path(), "lines", n, "offset", w.follower.Offset())
	}
}

func isLogFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), ".log")
}

func newestLog(dir string) (string, time.Time, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, false
	}

	var newest string
	var newestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || !isLogFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(dir, entry.Name())
			newestTime = info.ModTime()
		}
	}
	return newest, newestTime, newest != ""
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
