package highlight

import (
	"fmt"

	"github.com/alecthomas/chroma/v2"
)

type Token struct {
	Kind Kind
	Text string
}

// Tokenize splits src into classified tokens. Adjacent plain text is merged.
func Tokenize(src string) ([]Token, error) {
	// without EnsureLF, so that CRLF line endings survive
	it, err := compact.Tokenise(&chroma.TokeniseOptions{State: "root"}, src)
	if err != nil {
		return nil, fmt.Errorf("tokenize compact: %w", err)
	}

	var tokens []Token
	for _, t := range it.Tokens() {
		if t.Value == "" {
			continue
		}
		kind := tokenKinds[t.Type]
		if n := len(tokens); n > 0 && kind == Plain && tokens[n-1].Kind == Plain {
			tokens[n-1].Text += t.Value
			continue
		}
		tokens = append(tokens, Token{Kind: kind, Text: t.Value})
	}
	return tokens, nil
}
