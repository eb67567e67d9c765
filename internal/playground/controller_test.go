package playground

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jwtly10/compactbook/internal/compile"
	"github.com/jwtly10/compactbook/internal/highlight"
	"github.com/jwtly10/compactbook/internal/render"
)

const runnableSource = "pragma language_version 0.16;\nimport CompactStandardLibrary;\nexport ledger round: Counter;"

func runnable(t *testing.T, m *Manager) *Controller {
	t.Helper()
	blocks := m.Discover()
	require.Len(t, blocks, 2)
	require.True(t, blocks[0].Snapshot().Runnable)
	return blocks[0]
}

func offset(n int) *int {
	return &n
}

func TestRunTerminalStates(t *testing.T) {
	tests := []struct {
		name        string
		compiler    *stubCompiler
		wantState   State
		wantHeading string
		wantSummary string
		wantItems   []render.Item
	}{
		{
			name:        "success with timing",
			compiler:    &stubCompiler{outcome: compile.Success{ExecutionTimeMs: 42}},
			wantState:   StateSuccess,
			wantHeading: "Compilation Successful",
			wantSummary: "Compiled in 42ms",
		},
		{
			name: "failure with located errors",
			compiler: &stubCompiler{outcome: compile.Failure{Errors: []compile.Diagnostic{
				{Message: "unexpected token", Line: 3, Column: 5},
				{Message: "unknown type"},
			}}},
			wantState:   StateFailure,
			wantHeading: "Compilation Failed",
			wantSummary: "Found 2 errors in your code",
			wantItems: []render.Item{
				{LocationText: "Line 3:5", MessageText: "unexpected token"},
				{MessageText: "unknown type"},
			},
		},
		{
			name:        "transport error",
			compiler:    &stubCompiler{outcome: compile.TransportError{Message: "Server error: 502 - bad gateway", StatusCode: 502}},
			wantState:   StateTransportError,
			wantHeading: "Connection Error",
			wantSummary: "Failed to connect to compilation server",
			wantItems:   []render.Item{{MessageText: "Server error: 502 - bad gateway"}},
		},
		{
			name:        "compiler panic",
			compiler:    &stubCompiler{panics: true},
			wantState:   StateTransportError,
			wantHeading: "Connection Error",
			wantSummary: "Failed to connect to compilation server",
			wantItems:   []render.Item{{MessageText: "compiler exploded"}},
		},
		{
			name:        "nil outcome",
			compiler:    &stubCompiler{},
			wantState:   StateTransportError,
			wantHeading: "Connection Error",
			wantSummary: "Failed to connect to compilation server",
			wantItems:   []render.Item{{MessageText: "compiler returned no outcome"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(t, testPage, DefaultConfig(), tc.compiler)
			c := runnable(t, m)

			payload, err := c.Run(context.Background())
			require.NoError(t, err)
			require.Equal(t, tc.wantHeading, payload.Heading)
			require.Equal(t, tc.wantSummary, payload.SummaryText)
			require.Equal(t, tc.wantItems, payload.Items)

			snap := c.Snapshot()
			require.Equal(t, tc.wantState, snap.State)
			require.True(t, snap.State.Terminal())
			require.False(t, snap.TriggerDisabled)
			require.Equal(t, &payload, snap.Payload)
			require.Equal(t, []string{runnableSource}, tc.compiler.calls())

			out := m.Document().String()
			require.NotContains(t, out, "disabled")
			require.Contains(t, out, tc.wantHeading)
			require.Contains(t, out, ">Run<")
		})
	}
}

func TestRunAtMostOneInFlight(t *testing.T) {
	compiler := &stubCompiler{
		outcome: compile.Success{},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := newTestManager(t, testPage, DefaultConfig(), compiler)
	c := runnable(t, m)

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		done <- err
	}()
	<-compiler.started

	snap := c.Snapshot()
	require.Equal(t, StateCompiling, snap.State)
	require.True(t, snap.TriggerDisabled)
	out := m.Document().String()
	require.Contains(t, out, "Compiling...")
	require.Contains(t, out, `class="compact-output loading"`)

	_, err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrBusy)
	require.True(t, c.HandleKey(context.Background(), Key{Name: "Enter", Ctrl: true}))

	close(compiler.release)
	require.NoError(t, <-done)

	require.Len(t, compiler.calls(), 1)
	require.Equal(t, StateSuccess, c.Snapshot().State)
	require.False(t, c.Snapshot().TriggerDisabled)
}

func TestRunSnippetIsRejected(t *testing.T) {
	compiler := &stubCompiler{outcome: compile.Success{}}
	m := newTestManager(t, testPage, DefaultConfig(), compiler)
	snippet := m.Discover()[1]

	_, err := snippet.Run(context.Background())
	require.ErrorIs(t, err, ErrNotRunnable)
	require.Empty(t, compiler.calls())
	require.Equal(t, StateIdle, snippet.Snapshot().State)
}

func TestRunEmptySource(t *testing.T) {
	compiler := &stubCompiler{outcome: compile.Success{}}
	m := newTestManager(t, testPage, DefaultConfig(), compiler)
	c := runnable(t, m)

	require.NoError(t, c.Edit("  \n\t"))
	payload, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, render.Empty(), payload)
	require.Equal(t, []render.Item{{MessageText: render.NothingToCompile}}, payload.Items)
	require.Empty(t, compiler.calls())

	snap := c.Snapshot()
	require.Equal(t, StateFailure, snap.State)
	require.True(t, snap.Runnable)
	require.False(t, snap.TriggerDisabled)
}

func TestRunStripsInjectedLineNumbers(t *testing.T) {
	src := `<pre><code class="language-compact">123pragma language_version 0.16;
module M { }</code></pre>`
	compiler := &stubCompiler{outcome: compile.Success{}}
	m := newTestManager(t, src, DefaultConfig(), compiler)
	blocks := m.Discover()
	require.Len(t, blocks, 1)

	_, err := blocks[0].Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"pragma language_version 0.16;\nmodule M { }"}, compiler.calls())
}

func TestRunOutputIsEscaped(t *testing.T) {
	hostile := `<script>alert(1)</script><img src=x onerror="x()">`
	compiler := &stubCompiler{outcome: compile.Failure{Errors: []compile.Diagnostic{{Message: hostile, Line: 1}}}}
	m := newTestManager(t, testPage, DefaultConfig(), compiler)
	c := runnable(t, m)

	scripts := countElements(m.Document(), atom.Script)
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	out := m.Document().String()
	require.Contains(t, out, "&lt;script&gt;alert(1)&lt;/script&gt;")
	require.Equal(t, scripts, countElements(m.Document(), atom.Script))
	require.Zero(t, countElements(m.Document(), atom.Img))
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Event
	)
	observer := func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}

	compiler := &stubCompiler{outcome: compile.Failure{Message: "bad"}}
	m := newTestManager(t, testPage, DefaultConfig(), compiler, WithObserver(observer))
	c := runnable(t, m)

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 2)
	require.Equal(t, StateCompiling, events[0].State)
	require.Nil(t, events[0].Payload)
	require.Equal(t, StateFailure, events[1].State)
	require.Equal(t, "Found 1 error in your code", events[1].Payload.SummaryText)
	require.Equal(t, 0, events[1].Block)
}

func TestRunAfterEditSendsEditedText(t *testing.T) {
	compiler := &stubCompiler{outcome: compile.Success{}}
	m := newTestManager(t, testPage, DefaultConfig(), compiler)
	c := runnable(t, m)

	// an edit never reclassifies the block
	require.NoError(t, c.Edit("circuit only(): Field { return 1; }"))
	require.True(t, c.Snapshot().Runnable)

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"circuit only(): Field { return 1; }"}, compiler.calls())
}

func TestEditRequiresEditableBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Editable = false
	m := newTestManager(t, testPage, cfg, &stubCompiler{})
	c := runnable(t, m)

	require.ErrorIs(t, c.Edit("module X { }"), ErrNotEditable)
	require.False(t, c.HandleKey(context.Background(), Key{Name: "Tab"}))
	require.NotContains(t, m.Document().String(), "contenteditable")
}

func TestCopy(t *testing.T) {
	t.Run("writes current source", func(t *testing.T) {
		cb := &memClipboard{}
		m := newTestManager(t, testPage, DefaultConfig(), &stubCompiler{}, WithClipboard(cb))
		c := runnable(t, m)

		require.True(t, c.Copy(context.Background()))
		require.Equal(t, runnableSource, cb.text)
		require.Equal(t, 1, countClass(m.Document(), CopiedClass))
		require.Equal(t, StateIdle, c.Snapshot().State)
	})

	t.Run("failure leaves state untouched", func(t *testing.T) {
		cb := &memClipboard{err: errClipboardDenied}
		m := newTestManager(t, testPage, DefaultConfig(), &stubCompiler{}, WithClipboard(cb))
		c := runnable(t, m)

		require.False(t, c.Copy(context.Background()))
		require.Zero(t, countClass(m.Document(), CopiedClass))
		require.Equal(t, StateIdle, c.Snapshot().State)
	})

	t.Run("confirmation clears on next action", func(t *testing.T) {
		m := newTestManager(t, testPage, DefaultConfig(), &stubCompiler{outcome: compile.Success{}}, WithClipboard(&memClipboard{}))
		c := runnable(t, m)

		require.True(t, c.Copy(context.Background()))
		require.Contains(t, m.Document().String(), "<span>Copied!</span>")

		_, err := c.Run(context.Background())
		require.NoError(t, err)
		require.Zero(t, countClass(m.Document(), CopiedClass))
		require.NotContains(t, m.Document().String(), "Copied!")

		require.True(t, c.Copy(context.Background()))
		c.Rehighlight()
		require.Zero(t, countClass(m.Document(), CopiedClass))
	})

	t.Run("no clipboard", func(t *testing.T) {
		m := newTestManager(t, testPage, DefaultConfig(), &stubCompiler{})
		require.False(t, m.Discover()[1].Copy(context.Background()))
	})
}

func TestHandleKey(t *testing.T) {
	src := `<pre><code class="language-compact">module M {}</code></pre>`

	tests := []struct {
		name        string
		key         Key
		wantHandled bool
		wantSource  string
		wantRuns    int
	}{
		{name: "tab at caret", key: Key{Name: "Tab", Offset: offset(9)}, wantHandled: true, wantSource: "module M   {}"},
		{name: "tab at start", key: Key{Name: "Tab", Offset: offset(0)}, wantHandled: true, wantSource: "  module M {}"},
		{name: "tab without caret", key: Key{Name: "Tab"}, wantHandled: true, wantSource: "module M {}  "},
		{name: "tab at end", key: Key{Name: "Tab", Offset: offset(-1)}, wantHandled: true, wantSource: "module M {}  "},
		{name: "tab past end", key: Key{Name: "Tab", Offset: offset(100)}, wantHandled: true, wantSource: "module M {}  "},
		{name: "ctrl enter runs", key: Key{Name: "Enter", Ctrl: true}, wantHandled: true, wantSource: "module M {}", wantRuns: 1},
		{name: "cmd enter runs", key: Key{Name: "Enter", Meta: true}, wantHandled: true, wantSource: "module M {}", wantRuns: 1},
		{name: "plain enter", key: Key{Name: "Enter"}, wantSource: "module M {}"},
		{name: "other key", key: Key{Name: "a"}, wantSource: "module M {}"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			compiler := &stubCompiler{outcome: compile.Success{}}
			m := newTestManager(t, src, DefaultConfig(), compiler)
			c := m.Discover()[0]

			require.Equal(t, tc.wantHandled, c.HandleKey(context.Background(), tc.key))
			require.Equal(t, tc.wantSource, c.Snapshot().Source)
			require.Len(t, compiler.calls(), tc.wantRuns)
		})
	}
}

func TestCaret(t *testing.T) {
	text := "x = \"é\";"

	tests := []struct {
		name   string
		offset *int
		want   int
	}{
		{name: "missing", offset: nil, want: len(text)},
		{name: "negative", offset: offset(-3), want: len(text)},
		{name: "past end", offset: offset(42), want: len(text)},
		{name: "rune start", offset: offset(5), want: 5},
		{name: "inside rune", offset: offset(6), want: 5},
		{name: "end", offset: offset(len(text)), want: len(text)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := caret(text, tc.offset)
			require.Equal(t, tc.want, got)
			require.True(t, utf8.ValidString(text[:got]+"  "+text[got:]))
		})
	}
}

func TestRehighlightAfterEdit(t *testing.T) {
	m := newTestManager(t, testPage, DefaultConfig(), &stubCompiler{}, WithHighlighter(highlight.New()))
	c := runnable(t, m)
	require.Contains(t, m.Document().String(), `<span class="hljs-meta">`)

	require.NoError(t, c.Edit("export circuit f(): Field { return 1; }"))
	require.NotContains(t, m.Document().String(), `<span class="hljs-title">f</span>`)

	c.Rehighlight()
	out := m.Document().String()
	require.Contains(t, out, `<span class="hljs-title">f</span>`)
	require.Equal(t, "export circuit f(): Field { return 1; }", c.Snapshot().Source)
}

type failingHighlighter struct{}

func (failingHighlighter) Highlight(*html.Node) error { return errors.New("grammar not loaded") }

func TestHighlightFailureKeepsPlainText(t *testing.T) {
	m := newTestManager(t, testPage, DefaultConfig(), &stubCompiler{}, WithHighlighter(failingHighlighter{}))
	c := runnable(t, m)
	require.Equal(t, runnableSource, c.Snapshot().Source)
	require.False(t, strings.Contains(m.Document().String(), "hljs"))
}
