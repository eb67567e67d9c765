package playground

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jwtly10/compactbook/internal/compile"
	"github.com/jwtly10/compactbook/internal/page"
	"github.com/jwtly10/compactbook/internal/render"
)

func TestDiscover(t *testing.T) {
	m := newTestManager(t, testPage, DefaultConfig(), &stubCompiler{})
	blocks := m.Discover()
	require.Len(t, blocks, 2)

	prog, snippet := blocks[0].Snapshot(), blocks[1].Snapshot()
	require.Equal(t, Snapshot{
		Index:    0,
		Runnable: true,
		Editable: true,
		State:    StateIdle,
		Source:   runnableSource,
	}, prog)
	require.Equal(t, Snapshot{
		Index:  1,
		State:  StateIdle,
		Source: "circuit add(x: Field): Field { return x; }",
	}, snippet)

	doc := m.Document()
	require.Equal(t, 2, countClass(doc, EnhancedClass))
	require.Equal(t, 2, countClass(doc, WrapperClass))
	require.Equal(t, 1, countClass(doc, SnippetClass))
	require.Equal(t, 1, countClass(doc, RunClass))
	require.Equal(t, 2, countClass(doc, CopyClass))
	require.Equal(t, 1, countClass(doc, IndicatorClass))
	require.Equal(t, 1, countClass(doc, EditableClass))

	out := doc.String()
	require.Contains(t, out, `class="compact-output" hidden=""`)
	require.Contains(t, out, `data-block-index="1"`)
	require.Contains(t, out, `<code class="language-rust">fn main() {}</code>`)
}

func TestDiscoverIsIdempotent(t *testing.T) {
	m := newTestManager(t, testPage, DefaultConfig(), &stubCompiler{})
	first := m.Discover()
	second := m.Discover()

	require.Len(t, second, 2)
	require.Same(t, first[0], second[0])
	require.Same(t, first[1], second[1])
	require.Equal(t, 2, countClass(m.Document(), WrapperClass))
	require.Equal(t, 2, countClass(m.Document(), ToolbarClass))
}

func TestDiscoverAdoptsEnhancedPage(t *testing.T) {
	compiler := &stubCompiler{outcome: compile.Success{ExecutionTimeMs: 7}}
	m := newTestManager(t, testPage, DefaultConfig(), compiler)
	_, err := m.Discover()[0].Run(context.Background())
	require.NoError(t, err)
	rendered := m.Document().String()

	again := newTestManager(t, rendered, DefaultConfig(), compiler)
	blocks := again.Discover()
	require.Len(t, blocks, 2)

	doc := again.Document()
	require.Equal(t, 2, countClass(doc, WrapperClass))
	require.Equal(t, 2, countClass(doc, ToolbarClass))
	require.Equal(t, 1, countClass(doc, RunClass))
	require.Equal(t, 1, countClass(doc, render.OutputClass))

	snap := blocks[0].Snapshot()
	require.Equal(t, StateIdle, snap.State)
	require.True(t, snap.Runnable)
	require.Equal(t, runnableSource, snap.Source)

	_, err = blocks[0].Run(context.Background())
	require.NoError(t, err)
	require.Len(t, compiler.calls(), 2)
	require.Contains(t, doc.String(), "Compiled in 7ms")
}

func TestDiscoverRepairsIncompleteMarkup(t *testing.T) {
	const code = `<pre class="compact-playground-enhanced"><code class="language-compact">module M { }</code></pre>`
	const toolbar = `<div class="compact-playground-toolbar">` +
		`<button class="compact-playground-btn compact-playground-run"><span>Run</span></button>` +
		`<button class="compact-playground-btn compact-playground-copy"><span>Copy</span></button></div>`

	tests := []struct {
		name string
		src  string
	}{
		{name: "pre without wrapper", src: code},
		{name: "wrapper without output", src: `<div class="compact-playground-wrapper">` + toolbar + code + `</div>`},
		{name: "wrapper without toolbar", src: `<div class="compact-playground-wrapper">` + code + `<div class="compact-output" hidden=""></div></div>`},
		{
			name: "toolbar without run button",
			src: `<div class="compact-playground-wrapper"><div class="compact-playground-toolbar">` +
				`<button class="compact-playground-btn compact-playground-copy"><span>Copy</span></button></div>` + code + `</div>`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			compiler := &stubCompiler{outcome: compile.Success{ExecutionTimeMs: 3}}
			m := newTestManager(t, tc.src, DefaultConfig(), compiler)

			blocks := m.Discover()
			require.Len(t, blocks, 1)

			doc := m.Document()
			require.Equal(t, 1, countClass(doc, WrapperClass))
			require.Equal(t, 1, countClass(doc, ToolbarClass))
			require.Equal(t, 1, countClass(doc, RunClass))
			require.Equal(t, 1, countClass(doc, CopyClass))
			require.Equal(t, 1, countClass(doc, IndicatorClass))
			require.Equal(t, 1, countClass(doc, render.OutputClass))

			_, err := blocks[0].Run(context.Background())
			require.NoError(t, err)
			require.Contains(t, doc.String(), "Compiled in 3ms")

			// a second page load finds nothing left to add
			again := newTestManager(t, doc.String(), DefaultConfig(), compiler)
			require.Len(t, again.Discover(), 1)
			require.Equal(t, 1, countClass(again.Document(), ToolbarClass))
			require.Equal(t, 1, countClass(again.Document(), RunClass))
		})
	}
}

func TestDiscoverDropsAffordancesOfSnippets(t *testing.T) {
	src := `<div class="compact-playground-wrapper"><div class="compact-playground-toolbar">` +
		`<button class="compact-playground-btn compact-playground-run"><span>Run</span></button>` +
		`<span class="compact-editable-indicator">Editable</span></div>` +
		`<pre class="compact-playground-enhanced"><code class="language-compact">circuit f(): Field { return 1; }</code></pre>` +
		`<div class="compact-output"></div></div>`
	m := newTestManager(t, src, DefaultConfig(), &stubCompiler{})

	blocks := m.Discover()
	require.Len(t, blocks, 1)
	require.False(t, blocks[0].Snapshot().Runnable)

	doc := m.Document()
	require.Equal(t, 1, countClass(doc, SnippetClass))
	require.Equal(t, 1, countClass(doc, CopyClass))
	require.Zero(t, countClass(doc, RunClass))
	require.Zero(t, countClass(doc, IndicatorClass))
	require.Zero(t, countClass(doc, render.OutputClass))
}

func TestDiscoverMirrorsEditableSetting(t *testing.T) {
	enhanced := newTestManager(t, testPage, DefaultConfig(), &stubCompiler{})
	enhanced.Discover()
	rendered := enhanced.Document().String()
	require.Contains(t, rendered, `contenteditable="true"`)

	cfg := DefaultConfig()
	cfg.Editable = false
	m := newTestManager(t, rendered, cfg, &stubCompiler{})
	c := m.Discover()[0]

	require.False(t, c.Snapshot().Editable)
	require.ErrorIs(t, c.Edit("module X { }"), ErrNotEditable)

	out := m.Document().String()
	require.NotContains(t, out, "contenteditable")
	require.NotContains(t, out, "spellcheck")
	require.Zero(t, countClass(m.Document(), EditableClass))

	// and back again
	editable := newTestManager(t, out, DefaultConfig(), &stubCompiler{})
	require.True(t, editable.Discover()[0].Snapshot().Editable)
	require.Equal(t, 1, countClass(editable.Document(), EditableClass))
	require.Contains(t, editable.Document().String(), `contenteditable="true"`)
}

func TestDiscoverClearsSavedCopiedState(t *testing.T) {
	src := `<div class="compact-playground-wrapper"><div class="compact-playground-toolbar">` +
		`<button class="compact-playground-btn compact-playground-copy success"><span>Copied!</span></button></div>` +
		`<pre class="compact-playground-enhanced"><code class="language-compact">circuit f(): Field { return 1; }</code></pre></div>`
	m := newTestManager(t, src, DefaultConfig(), &stubCompiler{})
	m.Discover()

	require.Zero(t, countClass(m.Document(), CopiedClass))
	require.Contains(t, m.Document().String(), "<span>Copy</span>")
}

func TestDiscoverAdoptResetsSavedCompilingTrigger(t *testing.T) {
	src := `<div class="compact-playground-wrapper" data-block-index="0">` +
		`<div class="compact-playground-toolbar">` +
		`<button class="compact-playground-btn compact-playground-run loading" disabled=""><span>Compiling...</span></button>` +
		`<button class="compact-playground-btn compact-playground-copy"><span>Copy</span></button></div>` +
		`<pre class="compact-playground-enhanced"><code class="language-compact">module M { }</code></pre>` +
		`<div class="compact-output loading"><div class="compact-output-message">Compiling...</div></div></div>`
	m := newTestManager(t, src, DefaultConfig(), &stubCompiler{})

	blocks := m.Discover()
	require.Len(t, blocks, 1)
	require.False(t, blocks[0].Snapshot().TriggerDisabled)
	require.Equal(t, 1, countClass(m.Document(), WrapperClass))

	out := m.Document().String()
	require.NotContains(t, out, "disabled")
	require.Contains(t, out, "<span>Run</span>")
}

func TestAttach(t *testing.T) {
	src := `<pre><code class="language-compact">module M { }</code></pre><code class="language-compact">module Inline { }</code>`
	m := newTestManager(t, src, DefaultConfig(), &stubCompiler{})

	var codes []*html.Node
	m.Document().View(func(root *html.Node) {
		codes = page.FindAll(root, func(n *html.Node) bool { return page.IsElement(n, atom.Code) })
	})
	require.Len(t, codes, 2)

	c, err := m.Attach(codes[0])
	require.NoError(t, err)
	again, err := m.Attach(codes[0])
	require.NoError(t, err)
	require.Same(t, c, again)

	_, err = m.Attach(codes[1])
	require.ErrorIs(t, err, errNoPre)

	require.Len(t, m.Discover(), 1)

	got, ok := m.Block(0)
	require.True(t, ok)
	require.Same(t, c, got)
	_, ok = m.Block(1)
	require.False(t, ok)
	_, ok = m.Block(-1)
	require.False(t, ok)
}

func TestInit(t *testing.T) {
	tests := []struct {
		name     string
		autoRun  bool
		wantRuns int
		want     State
	}{
		{name: "autorun compiles runnable blocks", autoRun: true, wantRuns: 1, want: StateSuccess},
		{name: "without autorun nothing is sent", autoRun: false, wantRuns: 0, want: StateIdle},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AutoRun = tc.autoRun
			compiler := &stubCompiler{outcome: compile.Success{}}
			m := newTestManager(t, testPage, cfg, compiler)

			blocks := m.Init(context.Background())
			require.Len(t, blocks, 2)
			require.Len(t, compiler.calls(), tc.wantRuns)
			require.Equal(t, tc.want, blocks[0].Snapshot().State)
			require.Equal(t, StateIdle, blocks[1].Snapshot().State)
		})
	}
}
