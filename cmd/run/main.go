package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/leegramling/modhost/engine"
	"github.com/leegramling/modhost/errors"
	"github.com/leegramling/modhost/host"
	"github.com/leegramling/modhost/loader"
	"github.com/leegramling/modhost/sharedmod"
)

func main() {
	var (
		modulePath  = flag.String("module", "", "Path to shared module (.wasm)")
		emit        = flag.Bool("emit", false, "Write the reference module to the path and exit")
		list        = flag.Bool("list", false, "Print the required export surface and exit")
		watch       = flag.Bool("watch", false, "Re-run the sequence whenever the module file changes")
		interactive = flag.Bool("i", false, "Interactive inspector TUI")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *list {
		printSurface()
		return
	}

	if *modulePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -module <file.wasm> [-v] [-watch] [-i]")
		fmt.Fprintln(os.Stderr, "       run -module <file.wasm> -emit  (write the reference module)")
		fmt.Fprintln(os.Stderr, "       run -list")
		os.Exit(1)
	}

	if *emit {
		if err := sharedmod.WriteFile(*modulePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote reference module %s (version %s)\n", *modulePath, sharedmod.Version)
		return
	}

	if *interactive {
		if err := runInteractive(*modulePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	var err error
	if *watch {
		err = watchLoop(*modulePath, logger)
	} else {
		err = runOnce(*modulePath, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// exitCode maps failures onto the contract's exit codes: resolution and
// symbol failures are 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

func printSurface() {
	surface := loader.DefaultSurface()
	fmt.Println("Required export surface:")
	for _, name := range surface.Names() {
		fmt.Printf("  %s %s\n", name, surface.Describe(name))
	}
	fmt.Println("  lib_global_counter (mut i32)")
	fmt.Println("  memory")
}

func runOnce(path string, logger *zap.Logger) error {
	ctx := context.Background()

	eng, err := engine.New(ctx, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	defer eng.Close(ctx)

	report, err := host.Run(ctx, eng, path, logger)
	if err != nil {
		return err
	}
	printReport(path, report)
	return nil
}

func printReport(path string, r *host.Report) {
	fmt.Printf("Module: %s (version %s, instance %s)\n", path, r.Version, r.ModuleID)
	fmt.Printf("  initialize        -> %d\n", r.InitStatus)
	fmt.Printf("  process           -> %q (%d bytes)\n", r.Processed, r.ProcessedCount)
	fmt.Printf("  execute_callback  -> %d\n", r.CallbackResult)
	fmt.Printf("  counter           -> %d then %d\n", r.CounterBefore, r.CounterAfter)
	for _, f := range r.Failures {
		fmt.Printf("  step %s FAILED: %v\n", f.Step, f.Err)
	}
}

// samePath compares a watcher event name against the user-supplied module
// path. fsnotify reports names joined from the watched directory, so a
// non-clean argument like ./mod.wasm never matches byte for byte.
func samePath(event, path string) bool {
	return filepath.Clean(event) == filepath.Clean(path)
}

// watchLoop re-drives the module every time its file changes, the rebuild
// loop of the original exercise (edit, recompile, re-run) without
// restarting the host.
func watchLoop(path string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors and compilers typically replace the file
	// rather than write it in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	runAndReport := func() {
		if err := runOnce(path, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			var structured *errors.Error
			if stderrors.As(err, &structured) && structured.Kind == errors.KindModuleNotFound {
				fmt.Fprintln(os.Stderr, "waiting for module to appear...")
			}
		}
	}

	runAndReport()
	fmt.Printf("watching %s (ctrl-c to stop)\n", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !samePath(event.Name, path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fmt.Printf("\n%s changed, reloading\n", path)
				runAndReport()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
