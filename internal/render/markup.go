package render

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jwtly10/compactbook/internal/page"
)

const (
	// OutputClass is the class of the output region of a block
	OutputClass = "compact-output"

	classHeader   = "compact-output-header"
	classMessage  = "compact-output-message"
	classWarnings = "compact-output-warnings"
	classErrors   = "compact-output-errors"
	classItem     = "compact-error-item"
	classLocation = "compact-error-location"
	classText     = "compact-error-message"
	classMeta     = "compact-output-meta"
)

// Markup builds the content of an output region for p.
//
// Every piece of text coming from the payload becomes a text node, so the content is
// escaped by the HTML renderer and can never introduce elements or attributes.
func Markup(p Payload) []*html.Node {
	if p.Status == StatusLoading {
		return []*html.Node{withText(page.Element(atom.Div, "class", classMessage), p.SummaryText)}
	}

	header := page.Element(atom.Div, "class", classHeader)
	page.Append(header, withText(page.Element(atom.Span), p.Heading))
	nodes := []*html.Node{header}

	if len(p.Items) > 0 {
		nodes = append(nodes, itemList(p))
	}

	return append(nodes, withText(page.Element(atom.Div, "class", classMeta), p.SummaryText))
}

// Apply replaces the content of the output region with the markup of p and mirrors the
// status in the region's classes. The region is made visible.
func Apply(output *html.Node, p Payload) {
	page.SetAttr(output, "class", OutputClass+" "+string(p.Status))
	page.RemoveAttr(output, "hidden")
	page.ReplaceChildren(output, Markup(p)...)
}

// String renders the markup of p as an HTML fragment
func String(p Payload) (string, error) {
	var buf bytes.Buffer
	for _, n := range Markup(p) {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func itemList(p Payload) *html.Node {
	if p.Status == StatusSuccess {
		list := page.Element(atom.Ul)
		for _, it := range p.Items {
			page.Append(list, item(page.Element(atom.Li), it))
		}
		box := page.Element(atom.Div, "class", classWarnings)
		page.Append(box, withText(page.Element(atom.Strong), "Warnings:"), list)
		return box
	}

	box := page.Element(atom.Div, "class", classErrors)
	for _, it := range p.Items {
		page.Append(box, item(page.Element(atom.Div, "class", classItem), it))
	}
	return box
}

func item(n *html.Node, it Item) *html.Node {
	if it.LocationText != "" {
		page.Append(n, withText(page.Element(atom.Span, "class", classLocation), it.LocationText), page.Text(" "))
	}
	page.Append(n, withText(page.Element(atom.Span, "class", classText), it.MessageText))
	return n
}

func withText(n *html.Node, s string) *html.Node {
	page.Append(n, page.Text(s))
	return n
}
