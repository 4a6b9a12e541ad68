package ml

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the wrapper when the artifact file is rewritten on disk.
// It watches the containing directory so replace-by-rename deploys are seen.
type Watcher struct {
	wrapper  *Wrapper
	fsw      *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration
	stop     chan struct{}
}

func NewWatcher(wrapper *Wrapper, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		wrapper:  wrapper,
		fsw:      fsw,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		stop:     make(chan struct{}),
	}, nil
}

func (w *Watcher) Start() error {
	dir := filepath.Dir(w.wrapper.Path())
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	go w.loop()
	w.logger.Info("watching model artifact", zap.String("dir", dir))
	return nil
}

func (w *Watcher) Stop() {
	close(w.stop)
	_ = w.fsw.Close()
}

func (w *Watcher) loop() {
	base := filepath.Base(w.wrapper.Path())
	var timer *time.Timer
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Coalesce the event burst a single write produces.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if err := w.wrapper.Load(); err != nil {
					w.logger.Warn("model reload failed", zap.Error(err))
				}
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("model watcher error", zap.Error(err))
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
