// Package watch monitors a local directory and uploads new or changed
// documents to a platform data source.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	virtus "github.com/virtus-ai/virtus-go"
)

const (
	defaultSettle   = 200 * time.Millisecond
	defaultDebounce = 2 * time.Second
)

// Uploader is the client surface the watcher needs.
type Uploader interface {
	UploadDocument(ctx context.Context, dataSourceID, filename string, content io.Reader) (*virtus.Document, error)
}

// Options configures a Watcher.
type Options struct {
	// Extensions to upload. Defaults to .pdf, .txt and .md.
	Extensions []string

	// Settle is how long to wait after an event before reading the file,
	// so that a create immediately followed by writes is read complete.
	Settle time.Duration

	// Debounce suppresses re-uploads of the same path within the window.
	Debounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Watcher uploads documents from a directory as they appear.
type Watcher struct {
	uploader   Uploader
	sourceID   string
	fs         *fsnotify.Watcher
	extensions []string
	settle     time.Duration
	debounce   time.Duration
	uploaded   map[string]time.Time
	log        *slog.Logger
}

// New creates a Watcher that uploads into the given data source.
func New(uploader Uploader, dataSourceID string, opts Options) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".pdf", ".txt", ".md"}
	}
	if opts.Settle == 0 {
		opts.Settle = defaultSettle
	}
	if opts.Debounce == 0 {
		opts.Debounce = defaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Watcher{
		uploader:   uploader,
		sourceID:   dataSourceID,
		fs:         fs,
		extensions: opts.Extensions,
		settle:     opts.Settle,
		debounce:   opts.Debounce,
		uploaded:   make(map[string]time.Time),
		log:        log.With(slog.String("component", "watch")),
	}, nil
}

// Run monitors dir until the context is cancelled or the watcher is closed.
// Each created or modified file with a watched extension is uploaded once;
// bursts of events for the same path collapse into a single upload.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.log.Info("watching directory",
		slog.String("dir", dir),
		slog.String("data_source", w.sourceID))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			if w.recentlyUploaded(event.Name) {
				continue
			}
			time.Sleep(w.settle)
			if err := w.upload(ctx, event.Name); err != nil {
				w.log.Error("upload failed",
					slog.String("path", event.Name),
					slog.Any("error", err))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", slog.Any("error", err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := w.uploader.UploadDocument(ctx, w.sourceID, filepath.Base(path), f)
	if err != nil {
		return err
	}
	w.uploaded[path] = time.Now()
	w.log.Info("uploaded document",
		slog.String("path", path),
		slog.String("document_id", doc.ID),
		slog.String("status", doc.Status))
	return nil
}

// recentlyUploaded reports whether path was uploaded within the debounce
// window. Failed uploads are not recorded, so a later write retries.
func (w *Watcher) recentlyUploaded(path string) bool {
	t, ok := w.uploaded[path]
	return ok && time.Since(t) < w.debounce
}

func (w *Watcher) isWatchedExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
