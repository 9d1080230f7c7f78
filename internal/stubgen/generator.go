package stubgen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/maypok86/otter"

	"github.com/jon-edward/stubgen-pyx/internal/extract"
	"github.com/jon-edward/stubgen-pyx/internal/render"
)

const defaultCacheCapacity = 4096

// Options configures a generation run.
type Options struct {
	Root           string   // directory to scan
	OutDir         string   // output directory; empty means next to sources
	Patterns       []string // source glob patterns, e.g. **/*.pyx
	Ignore         []string // ignore glob patterns
	IncludePrivate bool     // emit internal declarations in stubs
	FailFast       bool     // stop the batch on the first unit error
	Workers        int      // 0 means GOMAXPROCS
}

// Result is the outcome for one source unit.
type Result struct {
	Source string
	Stub   string
	Module *extract.Module
	Cached bool
	Err    error
}

// StatusMessage is a human-readable one-line summary.
func (r Result) StatusMessage() string {
	if r.Err != nil {
		return fmt.Sprintf("failed to convert %s: %v", r.Source, r.Err)
	}
	return fmt.Sprintf("converted %s to %s", r.Source, r.Stub)
}

// Report summarizes one generation run.
type Report struct {
	RunID    string
	Results  []Result
	Failed   int
	Warnings int
}

// Reporter receives progress callbacks during a run. Implementations must
// tolerate concurrent OnFileProcessed calls.
type Reporter interface {
	OnDiscoveryComplete(totalFiles int)
	OnFileProcessed(result Result)
	OnRunComplete(report *Report)
}

// NopReporter discards all progress events.
type NopReporter struct{}

func (NopReporter) OnDiscoveryComplete(int) {}
func (NopReporter) OnFileProcessed(Result)  {}
func (NopReporter) OnRunComplete(*Report)   {}

// Generator runs extraction and rendering over a tree of source files.
// Extracted modules are memoized by path and content hash so watch-mode
// rebuilds skip unchanged files.
type Generator struct {
	opts     Options
	builder  render.Builder
	reporter Reporter
	cache    otter.Cache[string, *extract.Module]
}

// New creates a Generator. Pass nil for reporter to run silently.
func New(opts Options, reporter Reporter) (*Generator, error) {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"**/*.pyx"}
	}
	cache, err := otter.MustBuilder[string, *extract.Module](defaultCacheCapacity).Build()
	if err != nil {
		return nil, fmt.Errorf("building extraction cache: %w", err)
	}
	return &Generator{
		opts:     opts,
		builder:  render.Builder{IncludePrivate: opts.IncludePrivate},
		reporter: reporter,
		cache:    cache,
	}, nil
}

// Close releases the extraction cache.
func (g *Generator) Close() {
	g.cache.Close()
}

// Run discovers source files and generates a stub per file. Unit failures
// are recorded per file and do not halt the batch unless FailFast is set.
func (g *Generator) Run(ctx context.Context) (*Report, error) {
	fd, err := NewFileDiscovery(g.opts.Root, g.opts.Patterns, g.opts.Ignore)
	if err != nil {
		return nil, fmt.Errorf("compiling discovery patterns: %w", err)
	}
	files, err := fd.DiscoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	g.reporter.OnDiscoveryComplete(len(files))

	report := &Report{RunID: uuid.NewString()}
	if len(files) == 0 {
		g.reporter.OnRunComplete(report)
		return report, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := g.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan string)
	var (
		mu      sync.Mutex
		results []Result
		wg      sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if runCtx.Err() != nil {
					return
				}
				res := g.processFile(path)
				g.reporter.OnFileProcessed(res)

				mu.Lock()
				results = append(results, res)
				mu.Unlock()

				if res.Err != nil && g.opts.FailFast {
					cancel()
					return
				}
			}
		}()
	}

	for _, path := range files {
		if runCtx.Err() != nil {
			break
		}
		select {
		case jobs <- path:
		case <-runCtx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Source < results[j].Source })
	report.Results = results
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
		} else if r.Module != nil {
			report.Warnings += len(r.Module.Warnings)
		}
	}

	g.reporter.OnRunComplete(report)

	if g.opts.FailFast && report.Failed > 0 {
		for _, r := range results {
			if r.Err != nil {
				return report, r.Err
			}
		}
	}
	return report, nil
}

// processFile extracts one unit, merges its companion .pxd declarations if
// present, renders the stub, and writes it out.
func (g *Generator) processFile(path string) Result {
	res := Result{Source: path, Stub: g.stubPath(path)}

	source, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("reading %s: %w", path, err)
		return res
	}

	companionPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".pxd"
	var companion []byte
	if companionPath != path {
		companion, _ = os.ReadFile(companionPath)
	}

	key := cacheKey(path, source, companion)
	mod, hit := g.cache.Get(key)
	if !hit {
		rel, relErr := filepath.Rel(g.opts.Root, path)
		if relErr != nil {
			rel = path
		}
		mod, err = extract.ExtractNamed(extract.ModuleNameFromPath(rel), source)
		if err != nil {
			res.Err = err
			return res
		}
		if len(companion) > 0 {
			pxdMod, pxdErr := extract.Extract(companion)
			if pxdErr != nil {
				mod.Warnings = append(mod.Warnings, extract.Warning{
					Kind:    extract.StructuralWarning,
					Line:    1,
					Column:  1,
					Message: fmt.Sprintf("companion %s skipped: %v", filepath.Base(companionPath), pxdErr),
				})
			} else {
				extract.Merge(mod, pxdMod)
			}
		}
		g.cache.Set(key, mod)
	}
	res.Module = mod
	res.Cached = hit

	content := g.builder.BuildModule(mod)
	if err := os.MkdirAll(filepath.Dir(res.Stub), 0o755); err != nil {
		res.Err = fmt.Errorf("creating output directory: %w", err)
		return res
	}
	if err := os.WriteFile(res.Stub, []byte(content), 0o644); err != nil {
		res.Err = fmt.Errorf("writing %s: %w", res.Stub, err)
		return res
	}
	return res
}

func (g *Generator) stubPath(sourcePath string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath)) + ".pyi"
	if g.opts.OutDir != "" {
		return filepath.Join(g.opts.OutDir, base)
	}
	return filepath.Join(filepath.Dir(sourcePath), base)
}

func cacheKey(path string, source, companion []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(source)
	h.Write([]byte{0})
	h.Write(companion)
	return hex.EncodeToString(h.Sum(nil))
}
