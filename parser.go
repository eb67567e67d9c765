package compactbook

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var pragmaRegex = regexp.MustCompile(`^<!--\s*@playground\s+(\w+)\s*:\s*([^>]+?)\s*-->$`)

type Parser struct {
	gm goldmark.Markdown
}

func NewParser() *Parser {
	return &Parser{
		gm: goldmark.New(),
	}
}

// ParseMarkdownDoc parses a markdown page into its pragmas and compact code blocks.
//
// Unlike a rendered page, a markdown page without compact blocks is not an error,
// the returned document simply has no blocks.
func (p *Parser) ParseMarkdownDoc(r io.Reader, md MetaData) (*Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Metadata: md,
	}

	hasWalkedOtherNodes := false
	root := p.gm.Parser().Parse(text.NewReader(content))

	if err := p.walkAst(root, content, &hasWalkedOtherNodes, doc); err != nil {
		return nil, err
	}

	slog.Debug("parsed markdown page", "source", md.Source, "blocks", len(doc.Blocks))
	return doc, nil
}

func getLineNumber(content []byte, byteOffset int) int {
	return bytes.Count(content[:byteOffset], []byte("\n")) + 1
}

// walkAst walks the AST of a markdown document and extracts pragmas and code blocks
func (p *Parser) walkAst(root ast.Node, content []byte, hasWalkedOtherNodes *bool, result *Document) error {
	return ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if _, ok := n.(*ast.HTMLBlock); !ok {
			if _, isDoc := n.(*ast.Document); !isDoc {
				// Pragmas are only honoured before any other content
				*hasWalkedOtherNodes = true
			}
		}

		switch node := n.(type) {
		case *ast.HTMLBlock:
			if err := p.handleHTMLBlock(node, content, hasWalkedOtherNodes, result); err != nil {
				return ast.WalkStop, err
			}
		case *ast.FencedCodeBlock:
			p.handleCodeBlock(node, content, result)
		}

		return ast.WalkContinue, nil
	})
}

// handleHTMLBlock parses pragma values from HTML comments at the top of the page.
//
// For example:
//
// [SOF]
//
// <!-- @playground editable: false -->
//
// # Counter contract
//
// [EOF]
//
// disables editing for every block of the page. The same comment after the heading is ignored.
func (p *Parser) handleHTMLBlock(hb *ast.HTMLBlock, content []byte, hasWalkedOtherNodes *bool, doc *Document) error {
	if *hasWalkedOtherNodes || hb.HTMLBlockType != ast.HTMLBlockType2 {
		return nil
	}

	var buf bytes.Buffer
	l := hb.Lines().Len()
	for i := 0; i < l; i++ {
		line := hb.Lines().At(i)
		buf.Write(line.Value(content))
	}
	return p.extractPragmaFromLine(&doc.Pragmas, buf.String())
}

func (p *Parser) handleCodeBlock(cb *ast.FencedCodeBlock, content []byte, doc *Document) {
	lang := string(cb.Language(content))
	if lang != Language {
		return
	}

	var buf bytes.Buffer
	l := cb.Lines().Len()
	for i := 0; i < l; i++ {
		line := cb.Lines().At(i)
		buf.Write(line.Value(content))
	}

	var pos Position
	if l > 0 {
		pos.StartLine = getLineNumber(content, cb.Lines().At(0).Start)
		pos.EndLine = getLineNumber(content, cb.Lines().At(l-1).Start)
	}

	code := buf.String()
	block := CodeBlock{
		Index:    len(doc.Blocks),
		Code:     code,
		Source:   doc.Metadata.Source,
		Position: pos,
		Runnable: Classify(code).Runnable,
	}
	slog.Debug("found compact block", "index", block.Index, "lines", l, "runnable", block.Runnable)

	doc.Blocks = append(doc.Blocks, block)
}

// extractPragmaFromLine parses a page option from a markdown comment
//
// A pragma line may look like this: <!-- @playground autorun: true -->
//
// If multiple lines contain the same key, the last one will be used.
// Unknown keys and malformed comments are ignored.
//
// Will return an error if the value cannot be parsed
func (p *Parser) extractPragmaFromLine(pragma *Pragma, line string) error {
	line = strings.TrimSpace(line)

	matches := pragmaRegex.FindStringSubmatch(line)
	if len(matches) != 3 {
		slog.Debug("ignoring html comment", "line", line)
		return nil
	}

	key := strings.ToLower(matches[1])
	value := matches[2]

	switch PragmaKey(key) {
	case PragmaEditable, PragmaAutoRun:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("could not parse %s pragma value: %w", key, err)
		}
		if PragmaKey(key) == PragmaEditable {
			pragma.Editable = &b
		} else {
			pragma.AutoRun = &b
		}
	default:
		slog.Debug("unknown pragma key", "key", key)
	}

	return nil
}
