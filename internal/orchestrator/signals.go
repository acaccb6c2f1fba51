package orchestrator

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Signal file names. A pause file holds back new launches while it
// exists. A stop file ends the run once running tasks finish.
const (
	SignalPause = "pause"
	SignalStop  = "stop"
)

// SignalDir is where a run writing into stateDir looks for signal files.
func SignalDir(stateDir string) string {
	return filepath.Join(stateDir, "signals")
}

// WriteSignal creates the signal file name in dir.
func WriteSignal(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create signal directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(time.Now().Format(time.RFC3339)+"\n"), 0644)
}

// ClearSignal removes the signal file name from dir. A missing file is
// not an error.
func ClearSignal(dir, name string) error {
	err := os.Remove(filepath.Join(dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SignalWatcher drives a PauseController from signal files.
type SignalWatcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	pause     *PauseController
	emitter   *EventEmitter
	done      chan struct{}
}

// NewSignalWatcher creates a watcher over dir. The emitter may be nil.
func NewSignalWatcher(dir string, pause *PauseController, emitter *EventEmitter) (*SignalWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &SignalWatcher{
		fsWatcher: fsw,
		dir:       dir,
		pause:     pause,
		emitter:   emitter,
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. A stop file left by an earlier run is removed;
// an existing pause file pauses immediately.
func (w *SignalWatcher) Start() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("create signal directory: %w", err)
	}
	if err := ClearSignal(w.dir, SignalStop); err != nil {
		return fmt.Errorf("clear stale stop signal: %w", err)
	}
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", w.dir, err)
	}
	w.sync()
	go w.loop()
	return nil
}

// Stop terminates the watcher and releases resources.
func (w *SignalWatcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *SignalWatcher) loop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			if base == SignalPause || base == SignalStop {
				w.sync()
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("[orchestrator] signal watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// sync applies the current state of the signal files.
func (w *SignalWatcher) sync() {
	if exists(filepath.Join(w.dir, SignalStop)) {
		w.pause.Stop()
		return
	}
	if exists(filepath.Join(w.dir, SignalPause)) {
		if w.pause.Pause() {
			w.emitter.Emit(Event{Type: EventRunPaused, Timestamp: time.Now()})
		}
		return
	}
	if w.pause.Resume() {
		w.emitter.Emit(Event{Type: EventRunResumed, Timestamp: time.Now()})
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
