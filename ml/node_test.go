package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagAttributes(t *testing.T) {
	tag := &Tag{Kind: ElementKind, Name: "a"}
	tag.SetAttr("href", "/x")
	tag.SetAttr("class", "c")
	tag.SetAttr("href", "/y")

	assert.Equal(t, []Attribute{{Key: "href", Val: "/y"}, {Key: "class", Val: "c"}}, tag.Attr)

	v, ok := tag.GetAttr("class")
	assert.True(t, ok)
	assert.Equal(t, "c", v)
	assert.False(t, tag.HasAttr("id"))
}

func TestTagAppendChildAttached(t *testing.T) {
	parent := &Tag{Name: "div"}
	child := &Tag{Name: "p"}
	parent.AppendChild(child)

	assert.Same(t, parent, child.Parent)
	require.Panics(t, func() { (&Tag{Name: "span"}).AppendChild(child) })

	page := newPage(nil)
	require.Panics(t, func() { page.AddTag(child) })
}

func TestTagWalk(t *testing.T) {
	page, err := ParseString("<div><p>a<b>b</b></p><ul><li>c</ul></div>", nil)
	require.NoError(t, err)

	var visited []string
	page.Walk(func(t *Tag) bool {
		if t.IsElement() {
			visited = append(visited, t.Name)
		}
		return t.Name != "p"
	})
	assert.Equal(t, []string{"div", "p", "ul", "li"}, visited)
	assert.Equal(t, "abc", page.Tags[0].Text())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "element", ElementKind.String())
	assert.Equal(t, "cdata", CDataKind.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
