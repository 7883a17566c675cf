// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Modifications:
// Copyright 2024 Daniel Potapov
//  - Tag struct with ordered children slice, ordered attributes and the self-closing flag.

package ml

import "strings"

// Kind is the variant of a Tag.
type Kind int

const (
	ElementKind Kind = iota
	TextKind
	CommentKind
	CDataKind
	DeclarationKind
)

func (k Kind) String() string {
	switch k {
	case ElementKind:
		return "element"
	case TextKind:
		return "text"
	case CommentKind:
		return "comment"
	case CDataKind:
		return "cdata"
	case DeclarationKind:
		return "declaration"
	}
	return "unknown"
}

// Names of the tags that carry raw content rather than a tag name.
const (
	TextName    = "#text"
	CommentName = "#comment"
	CDataName   = "#cdata-section"
)

// Tag is one parsed element or pseudo-element. Text, comment, CDATA and declaration tags keep
// their source verbatim in Content and never have children.
type Tag struct {
	Kind Kind

	// Name is the tag name for elements and declarations (e.g. "!DOCTYPE"), or one of the
	// sentinel names for the other kinds.
	Name string

	// Content is the raw text of non-element tags.
	Content string

	// Attr keeps attributes in source order. A repeated key overwrites the earlier value in place.
	Attr []Attribute

	// SelfClosing is set once no further children will be attached by the parser.
	SelfClosing bool

	Children []*Tag

	// Parent is nil for tags attached directly to the Page.
	Parent *Tag

	// Pos is where the opening token started.
	Pos Span
}

type Attribute struct {
	Key string
	Val string
}

func newText(kind Kind, content string, pos Span) *Tag {
	name := TextName
	switch kind {
	case CommentKind:
		name = CommentName
	case CDataKind:
		name = CDataName
	}
	return &Tag{Kind: kind, Name: name, Content: content, SelfClosing: true, Pos: pos}
}

// IsElement reports whether t is an ElementKind tag.
func (t *Tag) IsElement() bool {
	return t.Kind == ElementKind
}

// AppendChild adds a tag c as the last child of t.
//
// It will panic if c already has a parent.
func (t *Tag) AppendChild(c *Tag) {
	if c.Parent != nil {
		panic("ml: AppendChild called for an attached child Tag")
	}
	c.Parent = t
	t.Children = append(t.Children, c)
}

// GetAttr returns the value of the attribute key.
func (t *Tag) GetAttr(key string) (string, bool) {
	for _, a := range t.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func (t *Tag) HasAttr(key string) bool {
	_, ok := t.GetAttr(key)
	return ok
}

// SetAttr sets the attribute key, keeping the position of an existing one.
func (t *Tag) SetAttr(key, val string) {
	for i := range t.Attr {
		if t.Attr[i].Key == key {
			t.Attr[i].Val = val
			return
		}
	}
	t.Attr = append(t.Attr, Attribute{Key: key, Val: val})
}

// Walk visits t and its descendants in document order. If fn returns false, the children of
// the visited tag are skipped.
func (t *Tag) Walk(fn func(*Tag) bool) {
	walk([]*Tag{t}, fn)
}

// Text returns the concatenated content of all text descendants.
func (t *Tag) Text() string {
	var sb strings.Builder
	t.Walk(func(n *Tag) bool {
		if n.Kind == TextKind {
			sb.WriteString(n.Content)
		}
		return true
	})
	return sb.String()
}

// walk is an iterative pre-order traversal over roots.
func walk(roots []*Tag, fn func(*Tag) bool) {
	stack := make(tagStack, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		n := stack.pop()
		if !fn(n) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// tagStack is a stack of tags.
type tagStack []*Tag

// pop pops the stack. It will panic if s is empty.
func (s *tagStack) pop() *Tag {
	i := len(*s)
	n := (*s)[i-1]
	*s = (*s)[:i-1]
	return n
}

// top returns the most recently pushed tag, or nil if s is empty.
func (s *tagStack) top() *Tag {
	if i := len(*s); i > 0 {
		return (*s)[i-1]
	}
	return nil
}
