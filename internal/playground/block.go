package playground

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jwtly10/compactbook"
	"github.com/jwtly10/compactbook/internal/page"
	"github.com/jwtly10/compactbook/internal/render"
)

// Class names of the enhanced markup. The browser side script and stylesheet depend on them.
const (
	EnhancedClass  = "compact-playground-enhanced"
	WrapperClass   = "compact-playground-wrapper"
	SnippetClass   = "snippet-only"
	ToolbarClass   = "compact-playground-toolbar"
	ButtonClass    = "compact-playground-btn"
	RunClass       = "compact-playground-run"
	CopyClass      = "compact-playground-copy"
	IndicatorClass = "compact-editable-indicator"
	EditableClass  = "compact-editable"
	LoadingClass   = "loading"
	CopiedClass    = "success"

	// BlockIndexAttr carries the block index on the wrapper so that browser actions can be
	// routed back to the block
	BlockIndexAttr = "data-block-index"
)

// Block is the record of one enhanced code block.
//
// It is owned by its [Controller]. The DOM attributes written for it (enhanced class,
// disabled trigger, editable code) mirror these fields and are never read back as state,
// except when adopting a page that was enhanced by an earlier run.
type Block struct {
	Index int
	// Text of the code element at discovery, trailing whitespace removed
	Original string
	// Classification of Original, fixed for the lifetime of the block
	Runnable bool
	Editable bool
	Enhanced bool

	State           State
	TriggerDisabled bool
	// Last displayed payload, nil until the first run
	Payload *render.Payload

	code    *html.Node
	pre     *html.Node
	wrapper *html.Node
	trigger *html.Node
	copy    *html.Node
	output  *html.Node
}

// Snapshot is a copy of the observable state of a block
type Snapshot struct {
	Index           int             `json:"index"`
	Runnable        bool            `json:"runnable"`
	Editable        bool            `json:"editable"`
	State           State           `json:"state"`
	TriggerDisabled bool            `json:"triggerDisabled"`
	Source          string          `json:"source"`
	Payload         *render.Payload `json:"payload,omitempty"`
}

func newBlock(index int, code, pre *html.Node) *Block {
	original := strings.TrimRight(page.TextContent(code), " \t\r\n")
	return &Block{
		Index:    index,
		Original: original,
		Runnable: compactbook.Classify(original).Runnable,
		code:     code,
		pre:      pre,
	}
}

// enhance wraps the pre element with its toolbar and output region.
// Markup left by an earlier run is reused, only the missing parts are created and parts
// that do not fit the classification are removed.
func (b *Block) enhance() {
	page.AddClass(b.pre, EnhancedClass)

	// the page may carry trailing newlines inside the code element
	if page.TextContent(b.code) != b.Original {
		page.SetTextContent(b.code, b.Original)
	}

	b.wrapper = b.pre.Parent
	if !page.HasClass(b.wrapper, WrapperClass) {
		b.wrapper = page.Element(atom.Div, "class", WrapperClass)
		page.Wrap(b.pre, b.wrapper)
	}
	page.SetAttr(b.wrapper, BlockIndexAttr, strconv.Itoa(b.Index))
	if b.Runnable {
		page.RemoveClass(b.wrapper, SnippetClass)
	} else {
		page.AddClass(b.wrapper, SnippetClass)
	}

	toolbar := page.ChildByClass(b.wrapper, ToolbarClass)
	if toolbar == nil {
		toolbar = page.Element(atom.Div, "class", ToolbarClass)
		b.wrapper.InsertBefore(toolbar, b.pre)
	}

	b.trigger = page.ChildByClass(b.wrapper, RunClass)
	switch {
	case b.Runnable && b.trigger == nil:
		b.trigger = button(RunClass, "Run", "Compile and run (Ctrl+Enter)", "Run code")
		toolbar.InsertBefore(b.trigger, toolbar.FirstChild)
	case !b.Runnable && b.trigger != nil:
		page.Remove(b.trigger)
		b.trigger = nil
	}

	b.copy = page.ChildByClass(b.wrapper, CopyClass)
	if b.copy == nil {
		b.copy = button(CopyClass, "Copy", "Copy code to clipboard", "Copy code")
		next := toolbar.FirstChild
		if b.trigger != nil && b.trigger.Parent == toolbar {
			next = b.trigger.NextSibling
		}
		toolbar.InsertBefore(b.copy, next)
	}
	b.resetCopied()

	indicator := page.ChildByClass(b.wrapper, IndicatorClass)
	switch {
	case b.Runnable && indicator == nil:
		indicator = page.Element(atom.Span, "class", IndicatorClass, "title", "You can edit this code and run it")
		page.Append(indicator, page.Text("Editable"))
		page.Append(toolbar, indicator)
	case !b.Runnable && indicator != nil:
		page.Remove(indicator)
	}

	b.output = page.ChildByClass(b.wrapper, render.OutputClass)
	switch {
	case b.Runnable && b.output == nil:
		b.output = page.Element(atom.Div, "class", render.OutputClass, "hidden", "")
		page.Append(b.wrapper, b.output)
	case !b.Runnable && b.output != nil:
		page.Remove(b.output)
		b.output = nil
	}

	// a page saved while compiling keeps the disabled mirror, the record starts idle
	b.syncTrigger()
}

// syncEditable mirrors Editable into the code element
func (b *Block) syncEditable() {
	if b.Editable {
		page.SetAttr(b.code, "contenteditable", "true")
		page.SetAttr(b.code, "spellcheck", "false")
		page.AddClass(b.code, EditableClass)
		return
	}
	page.RemoveAttr(b.code, "contenteditable")
	page.RemoveAttr(b.code, "spellcheck")
	page.RemoveClass(b.code, EditableClass)
}

// resetCopied clears the copied confirmation of the copy button
func (b *Block) resetCopied() {
	if !page.HasClass(b.copy, CopiedClass) {
		return
	}
	page.RemoveClass(b.copy, CopiedClass)
	page.SetTextContent(label(b.copy), "Copy")
}

// syncTrigger mirrors TriggerDisabled into the run button
func (b *Block) syncTrigger() {
	if b.trigger == nil {
		return
	}
	if b.TriggerDisabled {
		page.SetAttr(b.trigger, "disabled", "")
		page.AddClass(b.trigger, LoadingClass)
		page.SetTextContent(label(b.trigger), "Compiling...")
		return
	}
	page.RemoveAttr(b.trigger, "disabled")
	page.RemoveClass(b.trigger, LoadingClass)
	page.SetTextContent(label(b.trigger), "Run")
}

// source returns the text submitted for compilation
func (b *Block) source() string {
	return compactbook.StripLineNumbers(page.TextContent(b.code))
}

func (b *Block) snapshot() Snapshot {
	return Snapshot{
		Index:           b.Index,
		Runnable:        b.Runnable,
		Editable:        b.Editable,
		State:           b.State,
		TriggerDisabled: b.TriggerDisabled,
		Source:          b.source(),
		Payload:         b.Payload,
	}
}

func button(class, text, title, aria string) *html.Node {
	btn := page.Element(atom.Button, "class", ButtonClass+" "+class, "type", "button", "title", title, "aria-label", aria)
	span := page.Element(atom.Span)
	page.Append(span, page.Text(text))
	page.Append(btn, span)
	return btn
}

// label returns the text holder of a toolbar button
func label(btn *html.Node) *html.Node {
	if span := page.First(btn, func(n *html.Node) bool { return page.IsElement(n, atom.Span) }); span != nil {
		return span
	}
	return btn
}
