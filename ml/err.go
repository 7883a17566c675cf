package ml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

var (
	ErrMissingTagEnd       = errors.New("missing matching '>'")
	ErrUnexpectedEOF       = errors.New("unexpected end of stream")
	ErrUnterminatedRawText = errors.New("missing end tag for raw text tag")
	ErrMissingQuote        = errors.New("missing matching quote")
	ErrMalformedToken      = errors.New("malformed token")
)

// maxTokenContext limits the token text kept in a ParseError.
const maxTokenContext = 200

// ParseError is a fatal parse error. It wraps one of the Err* sentinels (or a read error of the
// underlying stream) and records where scanning of the failing token began.
type ParseError struct {
	// Pos is where the failing token started.
	Pos Span
	// Tag is the name of the tag being parsed, if it was known.
	Tag string
	// Token is the (possibly truncated) text scanned for the failing token.
	Token string

	err error
	doc *etree.Element
}

func newParseError(pos Span, tag, token string, err error, anchor *Tag, page *Page) *ParseError {
	if len(token) > maxTokenContext {
		token = token[:maxTokenContext] + "..."
	}
	pe := &ParseError{Pos: pos, Tag: tag, Token: token, err: err}
	if anchor != nil {
		pe.doc = buildErrorContext(anchor, page)
	}
	return pe
}

func (e *ParseError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("%s: <%s>: %v", e.Pos, e.Tag, e.err)
	}
	return fmt.Sprintf("%s: %v", e.Pos, e.err)
}

func (e *ParseError) Unwrap() error {
	return e.err
}

// HTMLContext renders the part of the tree built around the failure point.
func (e *ParseError) HTMLContext() string {
	if e.doc == nil {
		return ""
	}
	return renderErrorContext(e.doc)
}

// errorContextBuilder is a type to organize helper functions for building error context trees.
type errorContextBuilder struct{}

func (b errorContextBuilder) siblings(t *Tag, page *Page) []*Tag {
	if t.Parent != nil {
		return t.Parent.Children
	}
	return page.Tags
}

func (b errorContextBuilder) addPrevSiblings(doc *etree.Element, t *Tag, page *Page) {
	siblings := b.siblings(t, page)
	i := indexOfTag(siblings, t)

	var prev []*Tag
	for j := i - 1; j >= 0; j-- {
		// skip white space text nodes
		if siblings[j].Kind == TextKind && isBlank(siblings[j].Content) {
			continue
		}
		if len(prev) == 2 {
			doc.AddChild(etree.NewText("..."))
			break
		}
		prev = append(prev, siblings[j])
	}
	for j := len(prev) - 1; j >= 0; j-- {
		b.addToken(doc, prev[j])
	}
}

func (b errorContextBuilder) addNextSiblings(doc *etree.Element, t *Tag, page *Page) {
	siblings := b.siblings(t, page)
	i := indexOfTag(siblings, t)
	if i == -1 {
		return
	}

	for j, c := i+1, 0; j < len(siblings); j++ {
		// skip white space text nodes
		if siblings[j].Kind == TextKind && isBlank(siblings[j].Content) {
			continue
		}
		if c == 2 {
			doc.AddChild(etree.NewText("..."))
			break
		}
		b.addToken(doc, siblings[j])
		c++
	}
}

func (b errorContextBuilder) addToken(doc *etree.Element, t *Tag) {
	switch t.Kind {
	case ElementKind:
		clone := etree.NewElement(t.Name)
		for _, a := range t.Attr {
			clone.CreateAttr(a.Key, a.Val)
		}
		if hasChildElements(t) {
			clone.AddChild(etree.NewText("..."))
		} else if text := t.Text(); text != "" {
			clone.SetText(text)
		}
		doc.AddChild(clone)
	case TextKind:
		if !isBlank(t.Content) {
			doc.AddChild(etree.NewText(t.Content))
		}
	case CommentKind:
		c := strings.TrimSuffix(strings.TrimPrefix(t.Content, "<!--"), "-->")
		doc.AddChild(etree.NewComment(c))
	case CDataKind:
		doc.AddChild(etree.NewCData(t.Content))
	}
}

func (b errorContextBuilder) wrapParent(doc *etree.Element, t *Tag) *etree.Element {
	parent := t.Parent
	if parent == nil {
		return doc // do not wrap top-level tags
	}

	doc.Tag = parent.Name
	for _, a := range parent.Attr {
		doc.CreateAttr(a.Key, a.Val)
	}

	wrapper := &etree.Element{}
	wrapper.AddChild(doc)

	return wrapper
}

// buildErrorContext creates an XML tree around the tag t to provide context for an error.
func buildErrorContext(t *Tag, page *Page) *etree.Element {
	doc := &etree.Element{}
	b := errorContextBuilder{}
	b.addPrevSiblings(doc, t, page)
	b.addToken(doc, t)
	b.addNextSiblings(doc, t, page)
	doc = b.wrapParent(doc, t)
	return doc
}

func renderErrorContext(doc *etree.Element) string {
	dst := &html.Node{Type: html.DocumentNode}

	// traverse the etree.Element and build the html.Node
	var render func(*html.Node, *etree.Element)
	render = func(dst *html.Node, src *etree.Element) {
		for _, c := range src.Child {
			switch t := c.(type) {
			case *etree.Element:
				n := &html.Node{Type: html.ElementNode, Data: t.FullTag()}
				for _, a := range t.Attr {
					n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Value})
				}
				dst.AppendChild(n)
				render(n, t)
			case *etree.CharData:
				dst.AppendChild(&html.Node{Type: html.TextNode, Data: t.Data})
			case *etree.Comment:
				dst.AppendChild(&html.Node{Type: html.CommentNode, Data: t.Data})
			}
		}
	}

	render(dst, doc)

	var buf strings.Builder
	_ = html.Render(&buf, dst)

	return buf.String()
}

func hasChildElements(t *Tag) bool {
	for _, c := range t.Children {
		if c.Kind == ElementKind {
			return true
		}
	}
	return false
}

func indexOfTag(tags []*Tag, t *Tag) int {
	for i := len(tags) - 1; i >= 0; i-- {
		if tags[i] == t {
			return i
		}
	}
	return -1
}

func isBlank(s string) bool {
	return strings.TrimLeft(s, whitespace) == ""
}
