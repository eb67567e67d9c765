package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/jwtly10/compactbook"
	"github.com/jwtly10/compactbook/internal/transformer"
)

const (
	maxFiles   = 2000
	maxWorkers = 4
)

var pageExtensions = []string{".html", ".htm"}

type EnhanceResult struct {
	Path     string
	OutPath  string
	Blocks   int
	Runnable int
	Failed   int
}

type ProcessResult struct {
	Path   string
	Result transformer.Result
	Error  error
}

type Processor struct {
	transformer *transformer.Transformer
	opts        transformer.TransformOptions
}

func NewProcessor(opts transformer.TransformOptions) *Processor {
	return &Processor{
		transformer: transformer.NewTransformer(opts),
		opts:        opts,
	}
}

// NewProcessorWith uses a prepared transformer, e.g. one with a custom compiler
func NewProcessorWith(t *transformer.Transformer, opts transformer.TransformOptions) *Processor {
	return &Processor{
		transformer: t,
		opts:        opts,
	}
}

// ProcessPath enhances a single page, or every page of a book directory.
// Pages without compact blocks are not part of the results.
func (p *Processor) ProcessPath(ctx context.Context, path string) ([]EnhanceResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path: %w", err)
	}

	if info.IsDir() {
		return p.processDirectory(ctx, path)
	}

	result := p.processFile(ctx, path)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.Result.OutPath == "" {
		return nil, nil
	}

	return []EnhanceResult{toEnhanceResult(result.Path, result.Result)}, nil
}

func toEnhanceResult(path string, r transformer.Result) EnhanceResult {
	return EnhanceResult{
		Path:     path,
		OutPath:  r.OutPath,
		Blocks:   r.Blocks,
		Runnable: r.Runnable,
		Failed:   r.Failed,
	}
}

// findFiles walks the directory tree starting at root and returns the files with one of
// the given extensions
//
// If a .git directory is found, it will be used to load .gitignore patterns.
// Backups and the output directory of a previous run are never returned.
func findFiles(root string, extensions []string, skipDir string) ([]string, error) {
	var files []string
	var patterns []gitignore.Pattern

	// If .git exists, set up gitignore patterns
	if _, err := os.Stat(filepath.Join(root, ".git")); err == nil {
		// Add .git directory pattern
		patterns = append(patterns, gitignore.ParsePattern(".git/", nil))

		// Load .gitignore if it exists
		if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
			for _, p := range strings.Split(string(data), "\n") {
				if p = strings.TrimSpace(p); p != "" && !strings.HasPrefix(p, "#") {
					patterns = append(patterns, gitignore.ParsePattern(p, nil))
				}
			}
		}
	}

	matcher := gitignore.NewMatcher(patterns)

	absSkip := ""
	if skipDir != "" {
		absSkip, _ = filepath.Abs(skipDir)
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() && absSkip != "" {
			if abs, _ := filepath.Abs(path); abs == absSkip {
				return filepath.SkipDir
			}
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		pathComponents := strings.Split(relPath, string(os.PathSeparator))

		if len(patterns) > 0 {
			if matcher.Match(pathComponents, info.IsDir()) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if !info.IsDir() && hasExtension(path, extensions) {
			if len(files) >= maxFiles {
				return fmt.Errorf("max files limit reached (%d)", maxFiles)
			}
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found", strings.Join(extensions, " or "))
	}

	return files, nil
}

func hasExtension(path string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func (p *Processor) processDirectory(ctx context.Context, root string) ([]EnhanceResult, error) {
	startTime := time.Now()
	slog.Debug("starting directory processing", "path", root)
	files, err := findFiles(root, pageExtensions, p.opts.OutDir)
	if err != nil {
		return nil, err
	}

	slog.Debug("found pages to process", "count", len(files), "duration", time.Since(startTime))

	jobs := make(chan string, len(files))
	results := make(chan ProcessResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- p.processFile(ctx, path)
			}
		}()
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var errors []error
	var enhanced []EnhanceResult

	absRoot, _ := filepath.Abs(root)
	for result := range results {
		if result.Error != nil {
			errors = append(errors, fmt.Errorf("failed to process %s: %w", result.Path, result.Error))
			slog.Debug("failed to process page", "path", result.Path, "error", result.Error)
			continue
		}
		if result.Result.OutPath == "" {
			continue
		}

		relSource, _ := filepath.Rel(absRoot, result.Path)
		er := toEnhanceResult(relSource, result.Result)
		if relOut, err := filepath.Rel(absRoot, er.OutPath); err == nil {
			er.OutPath = relOut
		}
		enhanced = append(enhanced, er)

		slog.Debug("page enhanced",
			"source", relSource,
			"output", er.OutPath,
			"blocks", er.Blocks,
		)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("encountered %d errors during enhancement. Please rerun with -debug to see trace", len(errors))
	}

	slices.SortFunc(enhanced, func(a, b EnhanceResult) int {
		return strings.Compare(a.Path, b.Path)
	})

	slog.Debug("enhancement completed", "duration", time.Since(startTime), "processed", len(enhanced))
	return enhanced, nil
}

func (p *Processor) processFile(ctx context.Context, path string) ProcessResult {
	startTime := time.Now()
	var result ProcessResult

	absPath, err := filepath.Abs(path)
	if err != nil {
		result.Error = fmt.Errorf("failed to resolve absolute path: %w", err)
		return result
	}

	result.Path = absPath

	slog.Debug("processing page", "path", absPath)

	if !hasExtension(absPath, pageExtensions) {
		result.Error = fmt.Errorf("invalid file extension, expected %s", strings.Join(pageExtensions, " or "))
		return result
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		result.Error = fmt.Errorf("error reading file: %w", err)
		return result
	}

	src := transformer.PageSource{
		Content: bytes.NewReader(content),
		Metadata: compactbook.MetaData{
			Source: absPath,
		},
	}

	res, err := p.transformer.Transform(ctx, src)
	if err != nil {
		result.Error = err
		return result
	}

	result.Result = res
	slog.Debug("page processed",
		"path", absPath,
		"duration", time.Since(startTime))

	return result
}
