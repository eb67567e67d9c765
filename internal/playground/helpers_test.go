package playground

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jwtly10/compactbook/internal/compile"
	"github.com/jwtly10/compactbook/internal/page"
)

const testPage = `<!DOCTYPE html>
<html><head><title>Counter</title></head><body>
<h1>Counter</h1>
<pre><code class="language-compact">pragma language_version 0.16;
import CompactStandardLibrary;
export ledger round: Counter;
</code></pre>
<p>A fragment:</p>
<pre><code class="language-compact">circuit add(x: Field): Field { return x; }</code></pre>
<pre><code class="language-rust">fn main() {}</code></pre>
</body></html>`

type stubCompiler struct {
	mu      sync.Mutex
	sources []string
	outcome compile.Outcome
	panics  bool

	// when set, Compile signals started and waits for release
	started chan struct{}
	release chan struct{}
}

func (s *stubCompiler) Compile(ctx context.Context, source string) compile.Outcome {
	s.mu.Lock()
	s.sources = append(s.sources, source)
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
		<-s.release
	}
	if s.panics {
		panic("compiler exploded")
	}
	return s.outcome
}

func (s *stubCompiler) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sources...)
}

type memClipboard struct {
	text string
	err  error
}

func (c *memClipboard) WriteText(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

var errClipboardDenied = errors.New("clipboard permission denied")

func newTestManager(t *testing.T, src string, cfg Config, compiler Compiler, opts ...ManagerOption) *Manager {
	t.Helper()
	doc, err := page.ParseString(src)
	require.NoError(t, err)
	return NewManager(doc, cfg, compiler, opts...)
}

func countClass(doc *page.Document, class string) int {
	var n int
	doc.View(func(root *html.Node) {
		n = len(page.FindAll(root, func(n *html.Node) bool { return page.HasClass(n, class) }))
	})
	return n
}

func countElements(doc *page.Document, tag atom.Atom) int {
	var n int
	doc.View(func(root *html.Node) {
		n = len(page.FindAll(root, func(n *html.Node) bool { return page.IsElement(n, tag) }))
	})
	return n
}
