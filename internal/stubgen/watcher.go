package stubgen

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the root directory for source changes and triggers
// regeneration. Unchanged files hit the generator's extraction cache, so a
// rebuild only re-parses what actually changed.
type Watcher struct {
	generator    *Generator
	discovery    *FileDiscovery
	rootDir      string
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
}

// NewWatcher creates a file watcher driving the given generator.
func NewWatcher(g *Generator) (*Watcher, error) {
	fd, err := NewFileDiscovery(g.opts.Root, g.opts.Patterns, g.opts.Ignore)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		generator:    g,
		discovery:    fd,
		rootDir:      g.opts.Root,
		watcher:      watcher,
		debounceTime: 500 * time.Millisecond,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	if err := w.addDirectoriesRecursively(g.opts.Root); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the file watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.watcher.Close()
	})
}

// watch is the main event loop with debouncing logic.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	regenCh := make(chan struct{}, 1)
	changed := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.shouldProcessEvent(event) {
				continue
			}

			relPath, _ := filepath.Rel(w.rootDir, event.Name)
			changed[relPath] = true

			// New directories need to be added to the watch set.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addDirectoriesRecursively(event.Name); err != nil {
						log.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}

			if debounceTimer != nil {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
			}
			debounceTimer = time.AfterFunc(w.debounceTime, func() {
				select {
				case regenCh <- struct{}{}:
				default:
				}
			})

		case <-regenCh:
			w.regenerate(ctx, changed)
			changed = make(map[string]bool)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}

func (w *Watcher) regenerate(ctx context.Context, changed map[string]bool) {
	if len(changed) == 0 {
		return
	}

	log.Printf("Regenerating stubs after changes in %d file(s)...", len(changed))
	start := time.Now()

	report, err := w.generator.Run(ctx)
	if err != nil {
		log.Printf("Error during regeneration: %v", err)
		return
	}
	log.Printf("Regeneration complete in %v (%d file(s), %d failed)",
		time.Since(start), len(report.Results), report.Failed)
}

// shouldProcessEvent filters events down to relevant source file changes.
// Generated .pyi files are never processed, so writing output does not
// retrigger the watcher.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if strings.HasSuffix(event.Name, ".pyi") {
		return false
	}

	relPath, err := filepath.Rel(w.rootDir, event.Name)
	if err != nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)

	if w.discovery.shouldIgnore(relPath) {
		return false
	}
	if w.discovery.matchesAnyPattern(relPath, w.discovery.sourcePatterns) {
		return true
	}
	// Companion definition files feed into their .pyx unit.
	if strings.HasSuffix(relPath, ".pxd") {
		return true
	}
	// Directory events matter for the watch set.
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		return true
	}
	return false
}

func (w *Watcher) addDirectoriesRecursively(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(w.rootDir, path)
		if err != nil {
			return nil
		}
		if w.discovery.shouldIgnore(filepath.ToSlash(relPath)) && relPath != "." {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}
