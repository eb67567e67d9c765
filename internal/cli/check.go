package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jwtly10/compactbook"
)

var sourceExtensions = []string{".md"}

// CheckResult is a markdown source and the compact blocks found in it
type CheckResult struct {
	Path     string
	Document *compactbook.Document
}

// Check lists the compact blocks of a markdown source, or of every markdown source under a
// book directory, with their classification. Sources without blocks are not reported.
func Check(path string) ([]CheckResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path: %w", err)
	}

	files := []string{path}
	root := filepath.Dir(path)
	if info.IsDir() {
		root = path
		if files, err = findFiles(path, sourceExtensions, ""); err != nil {
			return nil, err
		}
	}

	parser := compactbook.NewParser()
	var results []CheckResult
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error reading file: %w", err)
		}

		rel, err := filepath.Rel(root, file)
		if err != nil {
			rel = file
		}

		doc, err := parser.ParseMarkdownDoc(bytes.NewReader(content), compactbook.MetaData{Source: rel})
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", rel, err)
		}
		if len(doc.Blocks) == 0 {
			slog.Debug("no compact blocks", "path", rel)
			continue
		}
		results = append(results, CheckResult{Path: rel, Document: doc})
	}

	slices.SortFunc(results, func(a, b CheckResult) int {
		return strings.Compare(a.Path, b.Path)
	})
	return results, nil
}
