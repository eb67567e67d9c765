package playground

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jwtly10/compactbook"
	"github.com/jwtly10/compactbook/internal/page"
)

// CodeClass marks the code elements the playground enhances, as produced by mdBook and goldmark
const CodeClass = "language-" + compactbook.Language

var errNoPre = errors.New("code element is not inside a pre element")

// Manager discovers the compact blocks of one page and owns one [Controller] per block.
type Manager struct {
	cfg Config
	doc *page.Document

	compiler    Compiler
	highlighter Highlighter
	clipboard   Clipboard
	observer    func(Event)

	mu     sync.Mutex
	blocks []*Controller
	byPre  map[*html.Node]*Controller
}

type ManagerOption func(*Manager)

// WithHighlighter enables syntax highlighting of discovered blocks
func WithHighlighter(h Highlighter) ManagerOption {
	return func(m *Manager) {
		m.highlighter = h
	}
}

func WithClipboard(cb Clipboard) ManagerOption {
	return func(m *Manager) {
		m.clipboard = cb
	}
}

// WithObserver registers fn for the lifecycle events of every block.
// fn is called synchronously and must not call back into the controller.
func WithObserver(fn func(Event)) ManagerOption {
	return func(m *Manager) {
		m.observer = fn
	}
}

func NewManager(doc *page.Document, cfg Config, compiler Compiler, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:      cfg,
		doc:      doc,
		compiler: compiler,
		byPre:    make(map[*html.Node]*Controller),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) Document() *page.Document {
	return m.doc
}

// Init discovers the blocks of the page and, with AutoRun, compiles every runnable block
// one after the other.
func (m *Manager) Init(ctx context.Context) []*Controller {
	controllers := m.Discover()
	if !m.cfg.AutoRun {
		return controllers
	}

	for _, c := range controllers {
		if !c.block.Runnable {
			continue
		}
		if _, err := c.Run(ctx); err != nil {
			slog.Debug("autorun skipped", "block", c.Index(), "error", err)
		}
	}
	return controllers
}

// Discover enhances every compact code element of the page and returns all controllers
// in page order. It is idempotent: blocks that are already attached are returned as is.
func (m *Manager) Discover() []*Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.doc.Mutate(func(root *html.Node) {
		codes := page.FindAll(root, func(n *html.Node) bool {
			return page.IsElement(n, atom.Code) && page.HasClass(n, CodeClass)
		})
		for _, code := range codes {
			if _, err := m.attach(code); err != nil {
				slog.Debug("skipping code element", "error", err)
			}
		}
	})

	slog.Debug("discovered compact blocks", "count", len(m.blocks))
	return append([]*Controller(nil), m.blocks...)
}

// Attach enhances a single code element of the page. Attaching the same element twice
// returns the existing controller.
func (m *Manager) Attach(code *html.Node) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		c   *Controller
		err error
	)
	m.doc.Mutate(func(*html.Node) {
		c, err = m.attach(code)
	})
	return c, err
}

// Block returns the controller of the block with the given index
func (m *Manager) Block(index int) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.blocks) {
		return nil, false
	}
	return m.blocks[index], true
}

func (m *Manager) Blocks() []*Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Controller(nil), m.blocks...)
}

// attach must be called with m.mu held and the document locked for writing
func (m *Manager) attach(code *html.Node) (*Controller, error) {
	pre := page.Closest(code, atom.Pre)
	if pre == nil {
		return nil, errNoPre
	}
	if c, ok := m.byPre[pre]; ok {
		return c, nil
	}

	b := newBlock(len(m.blocks), code, pre)
	b.enhance()
	b.Enhanced = true

	c := &Controller{
		block:       b,
		doc:         m.doc,
		compiler:    m.compiler,
		highlighter: m.highlighter,
		clipboard:   m.clipboard,
		observer:    m.observer,
	}

	c.highlight()
	b.Editable = m.cfg.Editable && b.Runnable
	b.syncEditable()

	m.blocks = append(m.blocks, c)
	m.byPre[pre] = c

	slog.Debug("attached block", "block", b.Index, "runnable", b.Runnable, "editable", b.Editable)
	return c, nil
}
