package compactbook

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolveOutputPath determines where an enhanced page is written.
//
// With an empty outRoot the page is enhanced in place. Otherwise the page keeps its
// position relative to bookRoot under outRoot.
func ResolveOutputPath(pagePath, bookRoot, outRoot string) (string, error) {
	if outRoot == "" {
		return pagePath, nil
	}

	rel, err := filepath.Rel(bookRoot, pagePath)
	if err != nil {
		return "", fmt.Errorf("resolving page relative to book: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("page %s is outside of book %s", pagePath, bookRoot)
	}

	return filepath.Join(outRoot, rel), nil
}
