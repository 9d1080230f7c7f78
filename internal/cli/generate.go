package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jon-edward/stubgen-pyx/internal/config"
	"github.com/jon-edward/stubgen-pyx/internal/stubgen"
)

var (
	quietFlag          bool
	watchFlag          bool
	outDirFlag         string
	includePrivateFlag bool
	failFastFlag       bool
	fileFlag           string
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate [dir]",
	Short: "Generate .pyi stubs for Cython sources",
	Long: `Generate scans a directory for .pyx files and writes a .pyi type
stub next to each one (or into --out).

The generator:
  - Parses each .pyx file statically (no compilation, no execution)
  - Extracts classes, methods, properties, functions, and typed bindings
  - Classifies public vs. internal declarations
  - Merges companion .pxd declarations into the stub
  - Reports per-file errors without halting the batch

Examples:
  # Generate stubs for the current directory
  stubgen-pyx generate

  # Generate stubs for a specific tree into ./stubs
  stubgen-pyx generate ./src --out ./stubs

  # Watch for changes and regenerate incrementally
  stubgen-pyx generate --watch

  # Only convert files matching a pattern
  stubgen-pyx generate --file "core/**/*.pyx"
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	generateCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for file changes and regenerate incrementally")
	generateCmd.Flags().StringVar(&outDirFlag, "out", "", "Output directory for .pyi files (default: next to sources)")
	generateCmd.Flags().BoolVar(&includePrivateFlag, "include-private", false, "Include internal declarations in stubs")
	generateCmd.Flags().BoolVar(&failFastFlag, "fail-fast", false, "Stop the batch on the first file that fails")
	generateCmd.Flags().StringVar(&fileFlag, "file", "", "Glob pattern for files to generate stubs for")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted! Cancelling generation...")
		cancel()
	}()

	rootDir := "."
	if len(args) > 0 {
		rootDir = args[0]
	}

	cfg, err := config.NewLoader(rootDir).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	opts := stubgen.Options{
		Root:           rootDir,
		OutDir:         cfg.Generate.OutDir,
		Patterns:       cfg.Paths.Sources,
		Ignore:         cfg.Paths.Ignore,
		IncludePrivate: cfg.Generate.IncludePrivate,
		FailFast:       cfg.Generate.FailFast,
		Workers:        cfg.Generate.Workers,
	}
	if outDirFlag != "" {
		opts.OutDir = outDirFlag
	}
	if includePrivateFlag {
		opts.IncludePrivate = true
	}
	if failFastFlag {
		opts.FailFast = true
	}
	if fileFlag != "" {
		opts.Patterns = []string{fileFlag}
	}

	progress := NewCLIProgressReporter(quietFlag, verbose)

	gen, err := stubgen.New(opts, progress)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	defer gen.Close()

	report, err := gen.Run(ctx)
	if err != nil {
		return err
	}

	if watchFlag {
		watcher, werr := stubgen.NewWatcher(gen)
		if werr != nil {
			return fmt.Errorf("failed to create watcher: %w", werr)
		}
		watcher.Start(ctx)
		defer watcher.Stop()

		if !quietFlag {
			log.Println("Watching for changes. Press Ctrl+C to stop.")
		}
		<-ctx.Done()
		return nil
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", report.Failed, len(report.Results))
	}
	return nil
}
