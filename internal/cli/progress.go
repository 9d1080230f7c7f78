package cli

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/jon-edward/stubgen-pyx/internal/stubgen"
)

// CLIProgressReporter implements progress reporting with progress bars.
type CLIProgressReporter struct {
	quiet   bool
	verbose bool

	mu        sync.Mutex
	fileBar   *progressbar.ProgressBar
	startTime time.Time
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(quiet, verbose bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:     quiet,
		verbose:   verbose,
		startTime: time.Now(),
	}
}

func (c *CLIProgressReporter) OnDiscoveryComplete(totalFiles int) {
	if c.quiet {
		return
	}
	if totalFiles == 0 {
		log.Println("No source files matched")
		return
	}
	log.Printf("Found %d file(s) to convert\n", totalFiles)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fileBar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetDescription("Generating stubs"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func (c *CLIProgressReporter) OnFileProcessed(result stubgen.Result) {
	c.mu.Lock()
	if c.fileBar != nil {
		c.fileBar.Add(1)
	}
	c.mu.Unlock()

	if c.quiet {
		return
	}
	if result.Err != nil {
		log.Println(result.StatusMessage())
		return
	}
	if c.verbose {
		log.Println(result.StatusMessage())
		if result.Module != nil {
			for _, w := range result.Module.Warnings {
				log.Printf("  %s: %s\n", result.Source, w)
			}
		}
	}
}

func (c *CLIProgressReporter) OnRunComplete(report *stubgen.Report) {
	if c.quiet {
		return
	}
	converted := len(report.Results) - report.Failed
	log.Printf("Converted %d file(s) in %v (%d failed, %d warning(s)) [run %s]\n",
		converted, time.Since(c.startTime).Round(time.Millisecond),
		report.Failed, report.Warnings, report.RunID)
}
