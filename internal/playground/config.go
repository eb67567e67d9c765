package playground

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jwtly10/compactbook"
	"github.com/jwtly10/compactbook/internal/compile"
	"github.com/jwtly10/compactbook/internal/page"
)

// ScriptName identifies the playground script tag of a host page
const ScriptName = "compact-playground"

// Config is the process wide playground configuration.
//
// It is a plain value: build it once and pass it to [NewManager], nothing reads it from
// globals afterwards.
type Config struct {
	// Base URL of the compilation service, POST {APIURL}/compile
	APIURL string
	// Runnable blocks can be edited in place
	Editable bool
	// Runnable blocks are compiled as soon as they are discovered
	AutoRun bool
}

func DefaultConfig() Config {
	return Config{
		APIURL:   compile.DefaultEndpoint,
		Editable: true,
		AutoRun:  false,
	}
}

// WithPage applies the overrides carried by the playground script tag of the page:
//
//	<script src="compact-playground.js" data-api-url="http://localhost:3000" data-editable="false" data-auto-run="true"></script>
//
// Like the browser dataset rules, editing is only disabled by the exact value "false"
// and autorun is only enabled by the exact value "true".
func (c Config) WithPage(root *html.Node) Config {
	script := page.First(root, func(n *html.Node) bool {
		if !page.IsElement(n, atom.Script) {
			return false
		}
		src, _ := page.Attr(n, "src")
		return strings.Contains(src, ScriptName)
	})
	if script == nil {
		return c
	}

	if v, ok := page.Attr(script, "data-api-url"); ok && strings.TrimSpace(v) != "" {
		c.APIURL = strings.TrimSpace(v)
	}
	if v, ok := page.Attr(script, "data-editable"); ok {
		c.Editable = v != "false"
	}
	if v, ok := page.Attr(script, "data-auto-run"); ok {
		c.AutoRun = v == "true"
	}
	return c
}

// WithPragma applies the page options of a markdown source
func (c Config) WithPragma(p compactbook.Pragma) Config {
	if p.Editable != nil {
		c.Editable = *p.Editable
	}
	if p.AutoRun != nil {
		c.AutoRun = *p.AutoRun
	}
	return c
}
