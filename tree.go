package looseml

import (
	"log/slog"

	"github.com/dpotapov/go-looseml/ml"
)

// TreeNode is the JSON form of an ml.Tag.
type TreeNode struct {
	Kind        string      `json:"kind"`
	Name        string      `json:"name,omitempty"`
	Content     string      `json:"content,omitempty"`
	Attrs       []AttrView  `json:"attrs,omitempty"`
	SelfClosing bool        `json:"selfClosing,omitempty"`
	Line        int         `json:"line"`
	Column      int         `json:"column"`
	Children    []*TreeNode `json:"children,omitempty"`
}

type AttrView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type DiagnosticView struct {
	Level   string `json:"level"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Tag     string `json:"tag,omitempty"`
	Message string `json:"message"`
}

// Result is the document returned for every parse.
type Result struct {
	Tree        []*TreeNode      `json:"tree"`
	Diagnostics []DiagnosticView `json:"diagnostics"`
	Error       *ErrorView       `json:"error,omitempty"`
}

// NewTreeView converts the tags of page. Deep trees are converted without recursion.
func NewTreeView(page *ml.Page) []*TreeNode {
	type item struct {
		tag    *ml.Tag
		parent *TreeNode
	}

	roots := make([]*TreeNode, 0, len(page.Tags))
	stack := make([]item, 0, len(page.Tags))
	for i := len(page.Tags) - 1; i >= 0; i-- {
		stack = append(stack, item{tag: page.Tags[i]})
	}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := newTreeNode(it.tag)
		if it.parent == nil {
			roots = append(roots, n)
		} else {
			it.parent.Children = append(it.parent.Children, n)
		}

		for i := len(it.tag.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{tag: it.tag.Children[i], parent: n})
		}
	}

	return roots
}

func newTreeNode(t *ml.Tag) *TreeNode {
	n := &TreeNode{
		Kind:        t.Kind.String(),
		SelfClosing: t.SelfClosing,
		Line:        t.Pos.Line,
		Column:      t.Pos.Column,
	}
	switch t.Kind {
	case ml.ElementKind, ml.DeclarationKind:
		n.Name = t.Name
	}
	if t.Kind != ml.ElementKind {
		n.Content = t.Content
	}
	for _, a := range t.Attr {
		n.Attrs = append(n.Attrs, AttrView{Key: a.Key, Value: a.Val})
	}
	return n
}

// NewResult builds the response document for page and the error returned with it.
func NewResult(page *ml.Page, err error, src []byte) *Result {
	res := &Result{
		Tree:        []*TreeNode{},
		Diagnostics: []DiagnosticView{},
	}
	if page != nil {
		res.Tree = NewTreeView(page)
		for _, d := range page.Diagnostics {
			res.Diagnostics = append(res.Diagnostics, DiagnosticView{
				Level:   levelName(d.Level),
				Line:    d.Pos.Line,
				Column:  d.Pos.Column,
				Tag:     d.Tag,
				Message: d.Msg,
			})
		}
	}
	if err != nil {
		res.Error = NewErrorView(err, src)
	}
	return res
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warning"
	case l >= slog.LevelInfo:
		return "info"
	}
	return "debug"
}
