package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gekko3d/volumert/volrt/rt/core"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-reads a config file when it changes and passes each valid
// result to onChange. Editors often replace the file instead of writing it
// in place, so the parent directory is watched.
type Watcher struct {
	path     string
	onChange func(Config)
	logger   core.Logger
	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewWatcher(path string, logger core.Logger, onChange func(Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     abs,
		onChange: onChange,
		logger:   core.OrNop(logger),
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

func (w *Watcher) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if abs, err := filepath.Abs(event.Name); err != nil || abs != w.path {
					continue
				}
				cfg, err := w.reload()
				if err != nil {
					w.logger.Warnf("config reload: %v", err)
					continue
				}
				if cfg != nil {
					w.onChange(*cfg)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warnf("config watcher: %v", err)
			}
		}
	}()
}

// reload returns nil without error for an empty file, which is what a
// truncating writer leaves between its two events.
func (w *Watcher) reload() (*Config, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	cfg := Default()
	if err := Parse(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", w.path, err)
	}
	return &cfg, nil
}

func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
