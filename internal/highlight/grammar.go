// Package highlight tokenizes Compact source for presentation.
//
// The tokenizer is lossless: concatenating the text of every token returns the input.
package highlight

import (
	"slices"

	"github.com/alecthomas/chroma/v2"
)

type Kind int

const (
	Plain Kind = iota
	Keyword
	Type
	BuiltIn
	Literal
	String
	Comment
	Number
	Meta
	Title
)

var kindClasses = map[Kind]string{
	Keyword: "hljs-keyword",
	Type:    "hljs-type",
	BuiltIn: "hljs-built_in",
	Literal: "hljs-literal",
	String:  "hljs-string",
	Comment: "hljs-comment",
	Number:  "hljs-number",
	Meta:    "hljs-meta",
	Title:   "hljs-title",
}

// Class returns the highlight.js compatible class of k, "" for plain text
func (k Kind) Class() string {
	return kindClasses[k]
}

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Keyword:
		return "keyword"
	case Type:
		return "type"
	case BuiltIn:
		return "built_in"
	case Literal:
		return "literal"
	case String:
		return "string"
	case Comment:
		return "comment"
	case Number:
		return "number"
	case Meta:
		return "meta"
	case Title:
		return "title"
	default:
		return "unknown"
	}
}

var (
	keywords = []string{
		"pragma", "language_version", "import", "export", "from", "module", "contract",
		"pure", "ledger", "sealed", "type", "const", "let", "if", "else", "for", "of", "in",
		"return", "assert", "disclose", "as", "some", "none", "left", "right",
	}

	// the next identifier after one of these names a declaration
	declarators = []string{"circuit", "witness", "struct", "enum"}

	literals = []string{"true", "false"}

	types = []string{
		"Boolean", "Field", "Uint", "Bytes", "Vector", "Map", "Set", "Maybe", "Either",
		"Counter", "MerkleTree", "Void",
	}

	builtIns = []string{
		"fold", "map", "filter", "hash", "persistentHash", "transientHash", "transientCommit",
		"lookup", "member", "insert", "remove", "insertDefault", "is_some", "is_none", "is_left",
		"is_right", "value", "size", "pad", "slice", "CompactStandardLibrary",
	}
)

const (
	ident = `[A-Za-z_][A-Za-z0-9_]*`
	// identifiers are ASCII, a word ends where no identifier character follows
	wordEnd = `(?![A-Za-z0-9_])`
)

func words(list []string) string {
	return chroma.Words(``, wordEnd, slices.Clone(list)...)
}

// compact is the Compact grammar. Its token types map to highlight.js classes via tokenKinds.
var compact = chroma.MustNewLexer(
	&chroma.Config{
		Name:      "Compact",
		Aliases:   []string{"compact"},
		Filenames: []string{"*.compact"},
		MimeTypes: []string{"text/x-compact"},
	},
	compactRules,
)

func compactRules() chroma.Rules {
	return chroma.Rules{
		"comments": {
			{Pattern: `//[^\n]*`, Type: chroma.CommentSingle, Mutator: nil},
			{Pattern: `/\*[\s\S]*?(?:\*/|\z)`, Type: chroma.CommentMultiline, Mutator: nil},
		},
		"root": {
			chroma.Include("comments"),
			{Pattern: `"(?:\\[\s\S]?|[^"\\\n])*"?`, Type: chroma.LiteralString, Mutator: nil},
			{Pattern: `'(?:\\[\s\S]?|[^'\\\n])*'?`, Type: chroma.LiteralString, Mutator: nil},
			{Pattern: `0[xX][0-9a-fA-F]+`, Type: chroma.LiteralNumberHex, Mutator: nil},
			{Pattern: `[0-9]+`, Type: chroma.LiteralNumberInteger, Mutator: nil},
			{Pattern: `pragma\s+language_version[^;]*;?`, Type: chroma.CommentPreproc, Mutator: nil},
			{Pattern: words(literals), Type: chroma.KeywordConstant, Mutator: nil},
			{Pattern: words(declarators), Type: chroma.KeywordDeclaration, Mutator: chroma.Push("declaration")},
			{Pattern: words(keywords), Type: chroma.Keyword, Mutator: nil},
			{Pattern: words(types), Type: chroma.KeywordType, Mutator: nil},
			// generic instantiation, e.g. MyVector<3, Field>
			{Pattern: `[A-Z][A-Za-z0-9_]*(?=[ \t]*<)`, Type: chroma.KeywordType, Mutator: nil},
			{Pattern: words(builtIns), Type: chroma.NameBuiltin, Mutator: nil},
			{Pattern: ident, Type: chroma.Name, Mutator: nil},
			{Pattern: `[\s\S]`, Type: chroma.Text, Mutator: nil},
		},
		"declaration": {
			{Pattern: `\s+`, Type: chroma.Text, Mutator: nil},
			chroma.Include("comments"),
			{Pattern: words(literals), Type: chroma.KeywordConstant, Mutator: nil},
			{Pattern: words(declarators), Type: chroma.KeywordDeclaration, Mutator: nil},
			{Pattern: words(keywords), Type: chroma.Keyword, Mutator: nil},
			{Pattern: words(types), Type: chroma.KeywordType, Mutator: nil},
			{Pattern: `[A-Z][A-Za-z0-9_]*(?=[ \t]*<)`, Type: chroma.KeywordType, Mutator: chroma.Pop(1)},
			{Pattern: ident, Type: chroma.NameFunction, Mutator: chroma.Pop(1)},
			chroma.Default(chroma.Pop(1)),
		},
	}
}

var tokenKinds = map[chroma.TokenType]Kind{
	chroma.Keyword:              Keyword,
	chroma.KeywordDeclaration:   Keyword,
	chroma.KeywordType:          Type,
	chroma.KeywordConstant:      Literal,
	chroma.NameBuiltin:          BuiltIn,
	chroma.NameFunction:         Title,
	chroma.LiteralString:        String,
	chroma.LiteralNumberHex:     Number,
	chroma.LiteralNumberInteger: Number,
	chroma.CommentSingle:        Comment,
	chroma.CommentMultiline:     Comment,
	chroma.CommentPreproc:       Meta,
}
