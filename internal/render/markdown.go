// Package render turns entry content into HTML.
package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"workdiary/internal/cache"
)

// Markdown renders entry content. Raw HTML in the source is not passed
// through, so the output is safe to embed in the page.
type Markdown struct {
	md    goldmark.Markdown
	cache *cache.LRUCache[template.HTML]
}

func NewMarkdown(cacheSize int, ttl time.Duration) *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
			goldmark.WithExtensions(&externalLinks{}),
		),
		cache: cache.NewLRUCache[template.HTML](cacheSize, ttl),
	}
}

// HTML renders src, falling back to the escaped plain text if conversion fails.
func (m *Markdown) HTML(src string) template.HTML {
	if strings.TrimSpace(src) == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(src))
	key := hex.EncodeToString(sum[:])
	if out, ok := m.cache.Get(key); ok {
		return out
	}

	var b bytes.Buffer
	if err := m.md.Convert([]byte(src), &b); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	out := template.HTML(b.String())
	m.cache.Set(key, out)
	return out
}

// Cache exposes the fragment cache for cleanup and stats.
func (m *Markdown) Cache() *cache.LRUCache[template.HTML] { return m.cache }

type externalLinks struct{}

func (e *externalLinks) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&externalLinksTransformer{}, 100),
	))
}

type externalLinksTransformer struct{}

func (t *externalLinksTransformer) Transform(node *ast.Document, reader text.Reader, _ parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch link := n.(type) {
		case *ast.Link:
			if isExternal(link.Destination) {
				markExternal(link)
			}
		case *ast.AutoLink:
			if link.AutoLinkType == ast.AutoLinkURL && isExternal(link.URL(reader.Source())) {
				markExternal(link)
			}
		}
		return ast.WalkContinue, nil
	})
}

func markExternal(n ast.Node) {
	n.SetAttributeString("target", []byte("_blank"))
	n.SetAttributeString("rel", []byte("noopener noreferrer"))
}

func isExternal(dest []byte) bool {
	s := strings.ToLower(strings.TrimSpace(string(dest)))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
