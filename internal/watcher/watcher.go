// Package watcher ingests files dropped into a local directory. It exists so
// a running instance can be fed by scp, a Syncthing folder, or a plain cp
// without touching the HTTP API.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/service"
)

// DefaultSettleDelay is how long a file must stay quiet before it is
// ingested. Drops arrive as bursts of write events; ingesting on the first
// one would read a half-copied file.
const DefaultSettleDelay = 2 * time.Second

// FileIngester is the slice of the ingestion service the watcher needs.
type FileIngester interface {
	Ingest(ctx context.Context, file service.IngestFile) (*service.IngestResult, error)
}

// Watcher monitors a drop directory and ingests every supported file that
// appears in it. Files already ingested under the same name are skipped via
// the duplicate-filename check, so re-drops and restarts are harmless.
type Watcher struct {
	dir      string
	ingester FileIngester
	settle   time.Duration

	mu       sync.Mutex
	pending  map[string]*time.Timer
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWatcher creates a new Watcher instance
func NewWatcher(dir string, ingester FileIngester, settle time.Duration) *Watcher {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Watcher{
		dir:      dir,
		ingester: ingester,
		settle:   settle,
		pending:  make(map[string]*time.Timer),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins watching the drop directory. It blocks until the context is
// cancelled or Stop is called. Files already present at startup are
// processed first.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("watch dir error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch dir error: %s is not a directory", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()
	defer close(w.doneChan)

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	log.Printf("watcher: watching %s (settle delay %v)", w.dir, w.settle)

	w.sweepExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("watcher stopped: context cancelled")
			return nil
		case <-w.stopChan:
			log.Println("watcher stopped: stop signal received")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: %v", err)
		}
	}
}

// Stop gracefully stops the watcher
func (w *Watcher) Stop() {
	close(w.stopChan)
	<-w.doneChan
}

// sweepExisting ingests files that were dropped while the process was down.
func (w *Watcher) sweepExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		log.Printf("watcher: failed to read %s: %v", w.dir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.schedule(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

// schedule arms (or re-arms) the settle timer for a path. The file is
// ingested only after it has stopped changing for the settle delay.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !supportedFile(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("watcher: failed to read %s: %v", path, err)
		return
	}

	filename := filepath.Base(path)
	result, err := w.ingester.Ingest(ctx, service.IngestFile{
		Filename:    filename,
		ContentType: contentTypeFor(filename),
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateFilename) {
			log.Printf("watcher: %s already ingested, skipping", filename)
			return
		}
		log.Printf("watcher: failed to ingest %s: %v", filename, err)
		return
	}

	log.Printf("watcher: ingested %s (document %s, %d chunks, %d images)",
		filename, result.DocumentID, result.ChunkCount, result.ImageCount)
}

// supportedFile reports whether the path looks like something the parsers
// can handle. Hidden files and copy-in-progress artifacts are skipped.
func supportedFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt", ".md", ".markdown":
		return true
	}
	return false
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return "text/plain"
	}
}
