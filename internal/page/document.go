// Package page is the host page model the playground enhances.
//
// A page is an HTML document parsed with golang.org/x/net/html. Node trees are not safe for
// concurrent use, so every write goes through [Document.Mutate] and every read that spans
// more than one block goes through [Document.View].
package page

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type Document struct {
	mu   sync.RWMutex
	root *html.Node
}

// Parse reads a full HTML page
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is a convenience wrapper around [Parse]
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Mutate runs fn with exclusive access to the node tree
func (d *Document) Mutate(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// View runs fn with shared access to the node tree
func (d *Document) View(fn func(root *html.Node)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.root)
}

// Render writes the page as HTML
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// Body returns the body element, or nil for a fragment without one
func Body(root *html.Node) *html.Node {
	return First(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	})
}

// First returns the first node in document order matching pred
func First(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAll returns every node in document order matching pred
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	walk(root, func(n *html.Node) bool {
		if pred(n) {
			found = append(found, n)
		}
		return true
	})
	return found
}

// walk visits the descendants of root in document order until visit returns false
func walk(root *html.Node, visit func(*html.Node) bool) bool {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if !visit(c) || !walk(c, visit) {
			return false
		}
	}
	return true
}
