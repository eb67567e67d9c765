package playground

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/jwtly10/compactbook/internal/compile"
	"github.com/jwtly10/compactbook/internal/page"
	"github.com/jwtly10/compactbook/internal/render"
)

// Compiler runs one compile attempt. *compile.Client implements it.
type Compiler interface {
	Compile(ctx context.Context, source string) compile.Outcome
}

// Highlighter rewrites a code element into highlighted markup from its current text
type Highlighter interface {
	Highlight(code *html.Node) error
}

// Clipboard receives the text of copied blocks
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// Event is emitted after every lifecycle transition of a block
type Event struct {
	Block   int             `json:"block"`
	State   State           `json:"state"`
	Payload *render.Payload `json:"payload,omitempty"`
}

// Key is a key press inside an editable block
type Key struct {
	// Key name as reported by the browser, e.g. "Enter" or "Tab"
	Name string `json:"key"`
	Ctrl bool   `json:"ctrlKey"`
	Meta bool   `json:"metaKey"`
	// Caret position in bytes. Nil or a negative value means the end of the text.
	Offset *int `json:"offset,omitempty"`
}

// Controller drives the lifecycle of one block.
//
// The block state is only read and written with mu held. The network round trip of a run
// happens without it, so that snapshots stay available while compiling.
type Controller struct {
	mu    sync.Mutex
	block *Block

	doc         *page.Document
	compiler    Compiler
	highlighter Highlighter
	clipboard   Clipboard
	observer    func(Event)
}

// Index returns the stable index of the block on its page
func (c *Controller) Index() int {
	return c.block.Index
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Snapshot
	c.doc.View(func(*html.Node) {
		s = c.block.snapshot()
	})
	return s
}

// Run compiles the current source of the block and displays the outcome.
//
// An empty block displays "No code to compile" without contacting the service. A run
// requested while the block is compiling returns [ErrBusy] and sends nothing. Every
// other run ends in a terminal state with the trigger enabled again, even when the
// compiler panics.
func (c *Controller) Run(ctx context.Context) (payload render.Payload, err error) {
	source, err := c.begin()
	if err != nil {
		return render.Payload{}, err
	}
	if strings.TrimSpace(source) == "" {
		return c.finish(compile.Failure{Message: render.NothingToCompile}), nil
	}

	outcome := compile.Outcome(compile.TransportError{Message: "compilation was interrupted"})
	defer func() {
		if r := recover(); r != nil {
			slog.Error("compiler panicked", "block", c.block.Index, "panic", r)
			outcome = compile.TransportError{Message: fmt.Sprint(r)}
		}
		payload = c.finish(outcome)
	}()

	slog.Debug("compiling block", "block", c.block.Index, "bytes", len(source))
	outcome = c.compiler.Compile(ctx, source)
	if outcome == nil {
		outcome = compile.TransportError{Message: "compiler returned no outcome"}
	}
	return payload, nil
}

// begin gates a run and moves a non empty block to Compiling
func (c *Controller) begin() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.block
	if !b.Runnable {
		return "", ErrNotRunnable
	}
	if b.State == StateCompiling {
		slog.Debug("ignoring run while compiling", "block", b.Index)
		return "", ErrBusy
	}

	var source string
	c.doc.View(func(*html.Node) {
		source = b.source()
	})
	if strings.TrimSpace(source) == "" {
		return source, nil
	}

	b.State = StateCompiling
	b.TriggerDisabled = true
	loading := render.Compiling()
	c.doc.Mutate(func(*html.Node) {
		b.resetCopied()
		b.syncTrigger()
		render.Apply(b.output, loading)
	})
	c.emit(Event{Block: b.Index, State: b.State})
	return source, nil
}

// finish records the terminal outcome of a run and re-enables the trigger
func (c *Controller) finish(outcome compile.Outcome) render.Payload {
	payload := render.Render(outcome)

	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.block
	b.State = stateFor(outcome)
	b.TriggerDisabled = false
	b.Payload = &payload
	c.doc.Mutate(func(*html.Node) {
		b.syncTrigger()
		render.Apply(b.output, payload)
	})

	slog.Debug("block run finished", "block", b.Index, "state", b.State)
	c.emit(Event{Block: b.Index, State: b.State, Payload: b.Payload})
	return payload
}

// Copy writes the current source to the clipboard. Failures are logged and reported as
// false, they never change the lifecycle state. The "Copied!" confirmation lasts until
// the next action on the block.
func (c *Controller) Copy(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.block
	var source string
	c.doc.Mutate(func(*html.Node) {
		b.resetCopied()
		source = b.source()
	})

	if c.clipboard == nil {
		slog.Warn("failed to copy code", "block", b.Index, "error", "no clipboard")
		return false
	}
	if err := c.clipboard.WriteText(ctx, source); err != nil {
		slog.Warn("failed to copy code", "block", b.Index, "error", err)
		return false
	}

	c.doc.Mutate(func(*html.Node) {
		page.AddClass(b.copy, CopiedClass)
		page.SetTextContent(label(b.copy), "Copied!")
	})
	return true
}

// Edit replaces the text of an editable block. The lifecycle state and the runnable
// classification are left untouched. The text stays plain until [Controller.Rehighlight].
func (c *Controller) Edit(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.block
	if !b.Editable {
		return ErrNotEditable
	}
	c.doc.Mutate(func(*html.Node) {
		page.SetTextContent(b.code, text)
		b.resetCopied()
	})
	return nil
}

// Rehighlight re-applies highlighting to the current text, as when an edit completes
func (c *Controller) Rehighlight() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.doc.Mutate(func(*html.Node) {
		c.block.resetCopied()
		c.highlight()
	})
}

// HandleKey applies the editing shortcuts of an editable block: Tab inserts two spaces
// at the caret and Ctrl+Enter or Cmd+Enter runs the block unless it is compiling.
// It reports whether the key was handled.
func (c *Controller) HandleKey(ctx context.Context, k Key) bool {
	c.mu.Lock()
	b := c.block
	editable, state := b.Editable, b.State
	c.mu.Unlock()

	if !editable {
		return false
	}

	switch {
	case k.Name == "Tab":
		c.mu.Lock()
		c.doc.Mutate(func(*html.Node) {
			text := page.TextContent(b.code)
			at := caret(text, k.Offset)
			page.SetTextContent(b.code, text[:at]+"  "+text[at:])
		})
		c.mu.Unlock()
		return true
	case k.Name == "Enter" && (k.Ctrl || k.Meta):
		if state == StateCompiling {
			return true
		}
		if _, err := c.Run(ctx); err != nil {
			slog.Debug("shortcut run rejected", "block", b.Index, "error", err)
		}
		return true
	}
	return false
}

// caret returns the insertion point for offset, moved back to the start of a rune
func caret(text string, offset *int) int {
	if offset == nil || *offset < 0 || *offset > len(text) {
		return len(text)
	}
	at := *offset
	for at > 0 && at < len(text) && !utf8.RuneStart(text[at]) {
		at--
	}
	return at
}

// highlight must be called with the document locked for writing
func (c *Controller) highlight() {
	if c.highlighter == nil {
		return
	}
	b := c.block
	text := page.TextContent(b.code)
	page.SetTextContent(b.code, text)
	if err := c.highlighter.Highlight(b.code); err != nil {
		slog.Warn("highlighting failed", "block", b.Index, "error", err)
	}
}

func (c *Controller) emit(e Event) {
	if c.observer != nil {
		c.observer(e)
	}
}
