package volume

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads datasets whose atlas files change on disk. Reloads go
// through Provider.Reload, so only the active dataset is republished.
type Watcher struct {
	provider *Provider
	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup

	// OnReload, when set, is called after every reload attempt from the
	// watcher goroutine.
	OnReload func(id DatasetID, v *Volume, err error)
}

func NewWatcher(provider *Provider) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(provider.Catalog().Dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		provider: provider,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop in its own goroutine.
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
				w.handle(event.Name)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.provider.logger.Warnf("asset watcher: %v", err)
			}
		}
	}()
}

func (w *Watcher) handle(path string) {
	id, ok := w.datasetFor(path)
	if !ok {
		return
	}
	v, err := w.provider.Reload(id)
	if err != nil {
		w.provider.logger.Warnf("reload %s: %v", id, err)
	}
	if w.OnReload != nil {
		w.OnReload(id, v, err)
	}
}

func (w *Watcher) datasetFor(path string) (DatasetID, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, false
	}
	for _, id := range AllDatasets() {
		p, err := filepath.Abs(w.provider.Catalog().Path(id))
		if err == nil && p == abs {
			return id, true
		}
	}
	return 0, false
}

func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
