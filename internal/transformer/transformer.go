package transformer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/net/html"

	"github.com/jwtly10/compactbook"
	"github.com/jwtly10/compactbook/internal/compile"
	"github.com/jwtly10/compactbook/internal/highlight"
	"github.com/jwtly10/compactbook/internal/page"
	"github.com/jwtly10/compactbook/internal/playground"
)

type TransformOptions struct {
	// Playground configuration before the overrides of each page
	Playground playground.Config
	// If true, every runnable block is compiled and its result is baked into the page,
	// whatever the page's script tag says
	AutoRun bool
	// If true, no backup will be created
	NoBackup bool
	// Root of the book, pages are resolved relative to it
	BookRoot string
	// If set, enhanced pages are written under this directory instead of in place
	OutDir string
}

func (t *TransformOptions) Pretty() string {
	out := "in place"
	if t.OutDir != "" {
		out = t.OutDir
	}
	return fmt.Sprintf("api=%s editable=%s autorun=%s backup=%s out=%s",
		t.Playground.APIURL,
		boolToText(t.Playground.Editable),
		boolToText(t.AutoRun || t.Playground.AutoRun),
		boolToText(!t.NoBackup),
		out)
}

func boolToText(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// CompilerFactory returns the compiler for a compilation service base URL
type CompilerFactory func(endpoint string) playground.Compiler

type Transformer struct {
	backup      *compactbook.BackupManager
	compilers   CompilerFactory
	highlighter playground.Highlighter

	opts TransformOptions
}

// NewTransformer creates a new Transformer instance with the specified options [TransformOptions]
func NewTransformer(opts TransformOptions) *Transformer {
	return &Transformer{
		backup: compactbook.NewBackupManager(),
		compilers: func(endpoint string) playground.Compiler {
			return compile.NewClient(endpoint)
		},
		highlighter: highlight.New(),
		opts:        opts,
	}
}

// WithCompilerFactory replaces the HTTP compile client used for autorun
func (t *Transformer) WithCompilerFactory(f CompilerFactory) *Transformer {
	t.compilers = f
	return t
}

type PageSource struct {
	Content  io.Reader
	Metadata compactbook.MetaData
}

type Result struct {
	OutPath  string
	Blocks   int
	Runnable int
	// Runs that did not end in success, only counted with autorun
	Failed int
}

// Transform enhances the compact blocks of an mdBook page and writes the page out.
//
// A page without compact blocks is left untouched and the result has an empty OutPath.
// Enhancing an enhanced page again adopts its markup, so the command can be rerun on a book.
func (t *Transformer) Transform(ctx context.Context, input PageSource) (Result, error) {
	slog.Debug("transforming page", "path", input.Metadata.Source)
	if input.Metadata.Source == "" {
		return Result{}, fmt.Errorf("source metadata is required for transformation")
	}

	doc, err := page.Parse(input.Content)
	if err != nil {
		return Result{}, fmt.Errorf("parse error: %w", err)
	}

	var cfg playground.Config
	doc.View(func(root *html.Node) {
		cfg = t.opts.Playground.WithPage(root)
	})
	if t.opts.AutoRun {
		cfg.AutoRun = true
	}

	manager := playground.NewManager(doc, cfg, t.compilers(cfg.APIURL), playground.WithHighlighter(t.highlighter))
	blocks := manager.Init(ctx)
	if len(blocks) == 0 {
		slog.Debug("no compact blocks, skipping page", "path", input.Metadata.Source)
		return Result{}, nil
	}

	result := Result{Blocks: len(blocks)}
	for _, b := range blocks {
		snap := b.Snapshot()
		if !snap.Runnable {
			continue
		}
		result.Runnable++
		if snap.State.Terminal() && snap.State != playground.StateSuccess {
			result.Failed++
		}
	}

	outPath, err := compactbook.ResolveOutputPath(input.Metadata.Source, t.opts.BookRoot, t.opts.OutDir)
	if err != nil {
		return Result{}, fmt.Errorf("resolve output path error: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return Result{}, fmt.Errorf("render error: %w", err)
	}

	var bkPath string
	if !t.opts.NoBackup {
		bkPath, err = t.backup.CreateBackupOf(outPath, buf.Bytes())
		if err != nil {
			return Result{}, fmt.Errorf("backup error: %w", err)
		}
	}

	if bkPath != "" {
		slog.Info("page changed. Created backup", "backup", bkPath, "page", outPath)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		return Result{}, fmt.Errorf("failed to write output file: %w", err)
	}

	result.OutPath = outPath
	return result, nil
}
