package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/jwtly10/compactbook/internal/cli"
	"github.com/jwtly10/compactbook/internal/config"
	"github.com/jwtly10/compactbook/internal/transformer"
)

const usage = `Usage: compactbook <command> [flags] <path>

Commands:
  enhance   add playground controls to the compact blocks of an mdBook output directory or page
  check     list the compact blocks of markdown sources and whether they are runnable

Run 'compactbook <command> -h' for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "enhance":
		err = enhance(os.Args[2:])
	case "check":
		err = check(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Printf("Unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	if debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
}

func pathArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one path, got %d", len(args))
	}
	return filepath.Abs(args[0])
}

func enhance(args []string) error {
	var noBackup bool
	var outDir string
	cfg, err := config.Load("compactbook enhance", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&noBackup, "no-backup", false, "do not back up pages before overwriting them")
		fs.StringVar(&outDir, "out", "", "write enhanced pages under this directory instead of in place")
	})
	if err != nil {
		return err
	}
	setupLogging(cfg.Debug)

	path, err := pathArg(cfg.Args)
	if err != nil {
		return err
	}

	bookRoot := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		bookRoot = filepath.Dir(path)
	}
	if outDir != "" {
		if outDir, err = filepath.Abs(outDir); err != nil {
			return err
		}
	}

	opts := transformer.TransformOptions{
		Playground: cfg.Playground,
		AutoRun:    cfg.Playground.AutoRun,
		NoBackup:   noBackup,
		BookRoot:   bookRoot,
		OutDir:     outDir,
	}
	slog.Debug("enhancing book", "path", path, "options", opts.Pretty())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results, err := cli.NewProcessor(opts).ProcessPath(ctx, path)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		fmt.Printf("Enhanced %s (%d blocks, %d runnable) -> %s\n", r.Path, r.Blocks, r.Runnable, r.OutPath)
		failed += r.Failed
	}
	fmt.Printf("Enhanced %d pages in %s\n", len(results), time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d runnable blocks did not compile", failed)
	}
	return nil
}

func check(args []string) error {
	cfg, err := config.Load("compactbook check", args)
	if err != nil {
		return err
	}
	setupLogging(cfg.Debug)

	path, err := pathArg(cfg.Args)
	if err != nil {
		return err
	}

	results, err := cli.Check(path)
	if err != nil {
		return err
	}

	for _, r := range results {
		for _, b := range r.Document.Blocks {
			kind := "snippet"
			if b.Runnable {
				kind = "runnable"
			}
			fmt.Printf("%s:%d-%d\t%s\n", r.Path, b.Position.StartLine, b.Position.EndLine, kind)
		}
	}
	return nil
}
