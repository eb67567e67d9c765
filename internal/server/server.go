// Package server serves book pages with live playground blocks.
//
// Every page load creates a session that owns the enhanced page. The browser drives the
// blocks of its session through the block routes and follows their lifecycle over the
// events websocket.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jwtly10/compactbook"
	"github.com/jwtly10/compactbook/internal/compile"
	"github.com/jwtly10/compactbook/internal/highlight"
	"github.com/jwtly10/compactbook/internal/page"
	"github.com/jwtly10/compactbook/internal/playground"
)

// SessionMeta names the meta element carrying the session id of a served page
const SessionMeta = "compact-playground-session"

var errNotPage = errors.New("not a book page")

// CompilerFactory returns the compiler for a compilation service base URL
type CompilerFactory func(endpoint string) playground.Compiler

type Server struct {
	bookDir  string
	base     playground.Config
	sessions *Store

	compilers   CompilerFactory
	highlighter playground.Highlighter
	parser      *compactbook.Parser
	md          goldmark.Markdown
}

type Option func(*Server)

// WithCompilerFactory replaces the HTTP compile client
func WithCompilerFactory(f CompilerFactory) Option {
	return func(s *Server) {
		s.compilers = f
	}
}

func WithHighlighter(h playground.Highlighter) Option {
	return func(s *Server) {
		s.highlighter = h
	}
}

func New(bookDir string, base playground.Config, sessions *Store, opts ...Option) *Server {
	s := &Server{
		bookDir:  bookDir,
		base:     base,
		sessions: sessions,
		compilers: func(endpoint string) playground.Compiler {
			return compile.NewClient(endpoint)
		},
		highlighter: highlight.New(),
		parser:      compactbook.NewParser(),
		md:          goldmark.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/book/*path", s.ServePage)

	sess := r.Group("/sessions/:session")
	{
		sess.GET("/page", s.RenderPage)
		sess.GET("/events", s.Events)
		sess.GET("/blocks", s.ListBlocks)
		sess.GET("/blocks/:block", s.GetBlock)
		sess.POST("/blocks/:block/run", s.RunBlock)
		sess.POST("/blocks/:block/copy", s.CopyBlock)
		sess.POST("/blocks/:block/edit", s.EditBlock)
		sess.POST("/blocks/:block/highlight", s.HighlightBlock)
		sess.POST("/blocks/:block/key", s.KeyBlock)
	}
}

// ServePage loads a page of the book, enhances its compact blocks in a new session and
// returns the enhanced HTML. Markdown sources are rendered first and honour their pragmas.
func (s *Server) ServePage(c *gin.Context) {
	rel := path.Clean("/" + c.Param("path"))
	file, err := s.resolve(rel)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	doc, cfg, err := s.load(file, rel)
	if err != nil {
		slog.Error("failed to load page", "path", rel, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	session := s.sessions.Create(rel, func(cb playground.Clipboard, observe func(playground.Event)) *playground.Manager {
		return playground.NewManager(doc, cfg, s.compilers(cfg.APIURL),
			playground.WithHighlighter(s.highlighter),
			playground.WithClipboard(cb),
			playground.WithObserver(observe),
		)
	})
	doc.Mutate(func(root *html.Node) {
		injectSession(root, session.ID)
	})

	blocks := session.Manager.Init(c.Request.Context())
	slog.Info("page session created", "session", session.ID, "path", rel, "blocks", len(blocks), "autorun", cfg.AutoRun)

	s.writePage(c, session)
}

func (s *Server) RenderPage(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	s.writePage(c, session)
}

func (s *Server) ListBlocks(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	blocks := session.Manager.Blocks()
	snaps := make([]playground.Snapshot, 0, len(blocks))
	for _, b := range blocks {
		snaps = append(snaps, b.Snapshot())
	}
	c.JSON(http.StatusOK, gin.H{"session": session.ID, "blocks": snaps})
}

func (s *Server) GetBlock(c *gin.Context) {
	_, block, ok := s.block(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, block.Snapshot())
}

// RunBlock compiles the block and answers with the displayed payload. A block that is
// already compiling answers 409 and no request is sent.
func (s *Server) RunBlock(c *gin.Context) {
	_, block, ok := s.block(c)
	if !ok {
		return
	}

	payload, err := block.Run(c.Request.Context())
	switch {
	case errors.Is(err, playground.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "block": block.Snapshot()})
		return
	case errors.Is(err, playground.ErrNotRunnable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payload": payload, "block": block.Snapshot()})
}

func (s *Server) CopyBlock(c *gin.Context) {
	session, block, ok := s.block(c)
	if !ok {
		return
	}
	if !block.Copy(c.Request.Context()) {
		c.JSON(http.StatusOK, gin.H{"copied": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"copied": true, "text": session.clipboard.Text()})
}

// EditBlock replaces the text of an editable block. The text stays plain until the
// highlight route is called, as when the editor loses focus.
func (s *Server) EditBlock(c *gin.Context) {
	_, block, ok := s.block(c)
	if !ok {
		return
	}

	var body struct {
		Text *string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := block.Edit(*body.Text); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, block.Snapshot())
}

func (s *Server) HighlightBlock(c *gin.Context) {
	_, block, ok := s.block(c)
	if !ok {
		return
	}
	block.Rehighlight()
	c.JSON(http.StatusOK, block.Snapshot())
}

func (s *Server) KeyBlock(c *gin.Context) {
	_, block, ok := s.block(c)
	if !ok {
		return
	}

	var key playground.Key
	if err := c.ShouldBindJSON(&key); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	handled := block.HandleKey(c.Request.Context(), key)
	c.JSON(http.StatusOK, gin.H{"handled": handled, "block": block.Snapshot()})
}

func (s *Server) session(c *gin.Context) (*Session, bool) {
	id, err := uuid.Parse(c.Param("session"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil, false
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return session, true
}

func (s *Server) block(c *gin.Context) (*Session, *playground.Controller, bool) {
	session, ok := s.session(c)
	if !ok {
		return nil, nil, false
	}
	index, err := strconv.Atoi(c.Param("block"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block index"})
		return nil, nil, false
	}
	block, ok := session.Block(index)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return nil, nil, false
	}
	return session, block, true
}

func (s *Server) writePage(c *gin.Context, session *Session) {
	var buf bytes.Buffer
	if err := session.Manager.Document().Render(&buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render page"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// resolve maps a cleaned url path to a page file inside the book
func (s *Server) resolve(rel string) (string, error) {
	file := filepath.Join(s.bookDir, filepath.FromSlash(rel))
	info, err := os.Stat(file)
	if err != nil {
		return "", fmt.Errorf("page %s not found", rel)
	}
	if info.IsDir() {
		file = filepath.Join(file, "index.html")
		if _, err := os.Stat(file); err != nil {
			return "", fmt.Errorf("page %s not found", rel)
		}
	}
	switch filepath.Ext(file) {
	case ".html", ".htm", ".md":
		return file, nil
	default:
		return "", errNotPage
	}
}

// load parses a page file and resolves its playground configuration
func (s *Server) load(file, rel string) (*page.Document, playground.Config, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, playground.Config{}, fmt.Errorf("read page: %w", err)
	}

	if filepath.Ext(file) != ".md" {
		doc, err := page.Parse(bytes.NewReader(content))
		if err != nil {
			return nil, playground.Config{}, err
		}
		var cfg playground.Config
		doc.View(func(root *html.Node) {
			cfg = s.base.WithPage(root)
		})
		return doc, cfg, nil
	}

	md, err := s.parser.ParseMarkdownDoc(bytes.NewReader(content), compactbook.MetaData{Source: rel})
	if err != nil {
		return nil, playground.Config{}, fmt.Errorf("parse markdown page: %w", err)
	}

	var body bytes.Buffer
	body.WriteString("<!DOCTYPE html>\n<html><head><title>" + html.EscapeString(path.Base(rel)) + "</title></head><body>\n")
	if err := s.md.Convert(content, &body); err != nil {
		return nil, playground.Config{}, fmt.Errorf("render markdown page: %w", err)
	}
	body.WriteString("</body></html>\n")

	doc, err := page.Parse(&body)
	if err != nil {
		return nil, playground.Config{}, err
	}
	return doc, s.base.WithPragma(md.Pragmas), nil
}

func injectSession(root *html.Node, id uuid.UUID) {
	head := page.First(root, func(n *html.Node) bool { return page.IsElement(n, atom.Head) })
	if head == nil {
		return
	}
	meta := page.First(head, func(n *html.Node) bool {
		name, _ := page.Attr(n, "name")
		return page.IsElement(n, atom.Meta) && name == SessionMeta
	})
	if meta == nil {
		meta = page.Element(atom.Meta, "name", SessionMeta)
		page.Append(head, meta)
	}
	page.SetAttr(meta, "content", id.String())
}

// Shutdown closes the event streams of every live session
func (s *Server) Shutdown(_ context.Context) {
	for _, id := range s.sessions.cache.Keys() {
		if session, ok := s.sessions.cache.Peek(id); ok {
			session.events.Close()
		}
	}
}
