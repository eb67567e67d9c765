package highlight

import (
	"errors"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jwtly10/compactbook/internal/page"
)

// HighlightedClass marks a code element whose content is made of highlight spans
const HighlightedClass = "hljs"

var errNotElement = errors.New("highlight target is not an element")

// Compact highlights Compact code elements in place.
type Compact struct{}

func New() *Compact {
	return &Compact{}
}

// Highlight replaces the content of the code element with highlight spans built from its
// current text. Highlighting an already highlighted element starts again from its text.
func (c *Compact) Highlight(code *html.Node) error {
	if code == nil || code.Type != html.ElementNode {
		return errNotElement
	}

	tokens, err := Tokenize(page.TextContent(code))
	if err != nil {
		return err
	}

	nodes := make([]*html.Node, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Kind == Plain {
			nodes = append(nodes, page.Text(tok.Text))
			continue
		}
		span := page.Element(atom.Span, "class", tok.Kind.Class())
		page.Append(span, page.Text(tok.Text))
		nodes = append(nodes, span)
	}

	page.ReplaceChildren(code, nodes...)
	page.AddClass(code, HighlightedClass)
	return nil
}
