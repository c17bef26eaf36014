// Package watch re-runs an analysis whenever a panorama in a watched
// directory is created or rewritten.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/sunalign/pkg/formats"
)

// PreviewSuffix marks files written by the locator itself. They are never
// handed back to the handler.
const PreviewSuffix = "_sun_preview"

// DefaultDebounce is how long a file must stay quiet before it is handled.
// Large HDR files arrive as many write events.
const DefaultDebounce = 500 * time.Millisecond

// Handler processes one changed image.
type Handler func(ctx context.Context, path string) error

// Watcher monitors directories for new or modified panoramas.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dirs     []string
	handler  Handler
	debounce time.Duration
	log      *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a changed file is handled.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger for watcher diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// New creates a watcher over dirs. Nothing is watched until Run.
func New(dirs []string, handler Handler, opts ...Option) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("watch: no directories given")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		dirs:     dirs,
		handler:  handler,
		debounce: DefaultDebounce,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// IsCandidate reports whether path is an image the handler should see.
func IsCandidate(path string) bool {
	if !formats.IsSupported(path) {
		return false
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return !strings.HasSuffix(stem, PreviewSuffix) && !strings.HasPrefix(base, ".")
}

// Run watches until ctx is cancelled. Handler errors are logged, not
// returned, so one bad file does not stop the watch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.log.Info("watching directory", zap.String("dir", dir))
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsCandidate(event.Name) {
				continue
			}
			w.log.Debug("change detected", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			w.flush(ctx, pending)
			clear(pending)
		}
	}
}

func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if ctx.Err() != nil {
			return
		}
		// Files removed again before the quiet period ended are skipped.
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			continue
		}
		if err := w.handler(ctx, p); err != nil {
			w.log.Error("handling image", zap.String("path", p), zap.Error(err))
		}
	}
}
