// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ml

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// removeIndent removes the common leading indentation of s. It's used to make test cases more
// readable. The very first \n is also removed.
func removeIndent(s string) string {
	s = strings.TrimLeft(s, "\n") // ignore leading newline

	// find first non-whitespace character
	i := strings.IndexFunc(s, func(r rune) bool {
		return r != ' ' && r != '\t'
	})
	if i == -1 {
		return s
	}

	// remove that amount of leading whitespace from all lines
	lines := strings.Split(s, "\n")
	for j, line := range lines {
		lines[j] = line[i:]
	}
	return strings.Join(lines, "\n")
}

// checkTreeConsistency checks that every tag is referenced exactly once and that parent
// pointers agree with the children slices.
func checkTreeConsistency(page *Page) error {
	seen := make(map[*Tag]bool)
	var err error
	check := func(parent *Tag, children []*Tag) {
		for _, c := range children {
			if seen[c] {
				err = fmt.Errorf("tag %q is attached twice", c.Name)
			}
			seen[c] = true
			if c.Parent != parent {
				err = fmt.Errorf("tag %q has inconsistent parent", c.Name)
			}
			if c.Kind != ElementKind && len(c.Children) > 0 {
				err = fmt.Errorf("%s tag has children", c.Kind)
			}
		}
	}
	check(nil, page.Tags)
	page.Walk(func(t *Tag) bool {
		check(t, t.Children)
		return err == nil
	})
	return err
}

func TestParserHTML(t *testing.T) {
	tests := []struct {
		name, text, want string
		warns            int
	}{
		{
			name: "empty",
			text: "",
			want: "",
		},
		{
			name: "whitespace only",
			text: " \n\t ",
			want: "",
		},
		{
			name: "simple text",
			text: "Test",
			want: `
			| "Test"
			`,
		},
		{
			name: "simple element",
			text: "<p>Test</p>",
			want: `
			| <p>
			|   "Test"
			`,
		},
		{
			name: "simple element with attribute",
			text: `<p class="bold">Test</p>`,
			want: `
			| <p>
			|   class="bold"
			|   "Test"
			`,
		},
		{
			name: "several top-level siblings",
			text: "<h1>A</h1> <h2>B</h2>",
			want: `
			| <h1>
			|   "A"
			| <h2>
			|   "B"
			`,
		},
		{
			name: "li auto-closed",
			text: "<ul><li>ABC<li>DEF</ul>",
			want: `
			| <ul>
			|   <li>
			|     "ABC"
			|   <li>
			|     "DEF"
			`,
		},
		{
			name: "p closed by block element",
			text: "<p>one<div>two</div>",
			want: `
			| <p>
			|   "one"
			| <div>
			|   "two"
			`,
		},
		{
			name: "br auto-closed",
			text: "Test<br>tesT",
			want: `
			| "Test"
			| <br/>
			| "tesT"
			`,
		},
		{
			name: "explicit self-closing",
			text: "<div/><p>x</p>",
			want: `
			| <div/>
			| <p>
			|   "x"
			`,
		},
		{
			name: "unquoted and bare attributes",
			text: "<input type=checkbox checked disabled>",
			want: `
			| <input/>
			|   type="checkbox"
			|   checked="checked"
			|   disabled="disabled"
			`,
		},
		{
			name: "duplicate attribute keeps its position",
			text: `<a href="1" title='t' href="2">x</a>`,
			want: `
			| <a>
			|   href="2"
			|   title="t"
			|   "x"
			`,
		},
		{
			name: "whitespace around equal sign",
			text: "<a href = \"x\"\n\tclass=y>z</a>",
			want: `
			| <a>
			|   href="x"
			|   class="y"
			|   "z"
			`,
		},
		{
			name: "quoted greater-than",
			text: `<img alt="a > b">`,
			want: `
			| <img/>
			|   alt="a > b"
			`,
		},
		{
			name: "single quoted greater-than with double quote inside",
			text: `<img alt='say "a > b"'>`,
			want: `
			| <img/>
			|   alt="say "a > b""
			`,
		},
		{
			name: "unquoted value before self-closing",
			text: "<a href=x/>",
			want: `
			| <a/>
			|   href="x"
			`,
		},
		{
			name: "raw text",
			text: "<script>if (a < b) { }</script>",
			want: `
			| <script>
			|   "if (a < b) { }"
			`,
		},
		{
			name: "raw text closed case-insensitively",
			text: "<style>a{}</STYLE><p>x</p>",
			want: `
			| <style>
			|   "a{}"
			| <p>
			|   "x"
			`,
		},
		{
			name: "raw text with a longer tag name inside",
			text: "<script>x</scripts>y</script >",
			want: `
			| <script>
			|   "x</scripts>y"
			`,
		},
		{
			name: "empty raw text",
			text: "<script></script><b>x</b>",
			want: `
			| <script>
			| <b>
			|   "x"
			`,
		},
		{
			name: "comment",
			text: "<div><!-- <p>note</p> --></div>",
			want: `
			| <div>
			|   <!-- <p>note</p> -->
			`,
		},
		{
			name: "doctype goes to the page",
			text: "<!DOCTYPE html><html><body></body></html>",
			want: `
			| <!DOCTYPE html>
			| <html>
			|   <body>
			`,
		},
		{
			name: "processing instruction inside an element",
			text: "<div><?php echo 1 ?></div>",
			want: `
			| <div>
			| <?php echo 1 ?>
			`,
		},
		{
			name: "legacy cdata marker",
			text: "<x><!CDATA[[a<b>c]]></x>",
			want: `
			| <x>
			|   <!CDATA[[a<b>c]]>
			`,
		},
		{
			name: "standard cdata marker",
			text: "<x><![CDATA[]]></x>",
			want: `
			| <x>
			|   <![CDATA[]]>
			`,
		},
		{
			name: "case-insensitive end tag",
			text: "<DIV>x</div>",
			want: `
			| <DIV>
			|   "x"
			`,
		},
		{
			name: "lazy self-closing",
			text: "<div><span><b>x</div>",
			want: `
			| <div>
			|   <span/>
			|   <b/>
			|   "x"
			`,
			warns: 2,
		},
		{
			name: "lazy self-closing keeps document order",
			text: "<ul><li>a<b>b<i>c</ul>",
			want: `
			| <ul>
			|   <li/>
			|   "a"
			|   <b/>
			|   "b"
			|   <i/>
			|   "c"
			`,
			warns: 3,
		},
		{
			name: "no-break space is text",
			text: "<td>\u00a0</td><td>\u00a0x</td>",
			want: `
			| <td>
			|   "\u00a0"
			| <td>
			|   "\u00a0x"
			`,
		},
		{
			name: "invalid utf-8 passes through",
			text: "<p>caf\xe9</p>",
			want: `
			| <p>
			|   "caf\xe9"
			`,
		},
		{
			name: "doctype with an internal subset",
			text: `<!DOCTYPE x [<!ENTITY a "b>c">]><p>y</p>`,
			want: `
			| <!DOCTYPE x [<!ENTITY a "b>c">]>
			| <p>
			|   "y"
			`,
		},
		{
			name: "quoted literal in a declaration",
			text: `<!ELEMENT x 'a>b'>z`,
			want: `
			| <!ELEMENT x 'a>b'>
			| "z"
			`,
		},
		{
			name: "orphan end tag at the root",
			text: "</div>x",
			want: `
			| "x"
			`,
			warns: 1,
		},
		{
			name: "end tag with junk after the name",
			text: "<b>x</b class=y>",
			want: `
			| <b>
			|   "x"
			`,
		},
		{
			name: "empty end tag",
			text: "<b>x</ >",
			want: `
			| <b>
			|   "x"
			`,
			warns: 2,
		},
		{
			name: "unclosed tags",
			text: "<div><span>x",
			want: `
			| <div>
			|   <span>
			|     "x"
			`,
			warns: 2,
		},
		{
			name: "tag without a name",
			text: "a<>b",
			want: `
			| "a"
			| "<>"
			| "b"
			`,
			warns: 1,
		},
		{
			name: "unterminated comment",
			text: "<p>x</p><!-- y",
			want: `
			| <p>
			|   "x"
			| <!-- y
			`,
			warns: 1,
		},
		{
			name: "stray less-than at the end",
			text: "x<",
			want: `
			| "x"
			`,
			warns: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ParseString(tt.text, nil)
			require.NoError(t, err)
			require.NoError(t, checkTreeConsistency(page))

			assert.Equal(t, removeIndent(tt.want), DumpString(page))
			assert.Len(t, page.Warnings(), tt.warns, "%v", page.Diagnostics)
		})
	}
}

func TestParseWellFormedOrder(t *testing.T) {
	src := `<html><head><meta-x></meta-x></head><body><section><h1>T</h1><article><em>a</em></article></section><footer></footer></body></html>`

	page, err := ParseString(src, XMLGrammar())
	require.NoError(t, err)
	require.Empty(t, page.Diagnostics)

	var names []string
	page.Walk(func(t *Tag) bool {
		if t.IsElement() {
			names = append(names, t.Name)
		}
		return true
	})
	assert.Equal(t, []string{"html", "head", "meta-x", "body", "section", "h1", "article", "em", "footer"}, names)
}

func TestParseSelfCloserNotPushed(t *testing.T) {
	page, err := ParseString("<p>a<br>b</p>", nil)
	require.NoError(t, err)

	p := page.First("p")
	require.NotNil(t, p)
	require.Len(t, p.Children, 3)

	br := p.Children[1]
	assert.Equal(t, "br", br.Name)
	assert.True(t, br.SelfClosing)
	assert.Empty(t, br.Children)
	assert.Same(t, p, p.Children[2].Parent)
}

func TestParseOptionalEnderRecovery(t *testing.T) {
	g := NewGrammar(GrammarConfig{OptionalEnd: map[string][]string{"li": {"li"}}})

	page, err := ParseString("<li>A<li>B</ul>", g)
	require.NoError(t, err)

	require.Len(t, page.Tags, 2)
	for i, text := range []string{"A", "B"} {
		li := page.Tags[i]
		assert.Equal(t, "li", li.Name)
		require.Len(t, li.Children, 1)
		assert.Equal(t, TextKind, li.Children[0].Kind)
		assert.Equal(t, text, li.Children[0].Content)
	}
	// </ul> matches nothing
	require.Len(t, page.Warnings(), 1)
	assert.Contains(t, page.Warnings()[0].Msg, "</ul>")
}

func TestParseOrphanEndTag(t *testing.T) {
	var logs bytes.Buffer
	p := &Parser{
		Grammar: XMLGrammar(),
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
	}

	page, err := p.Parse(strings.NewReader("<p>hi</div>"))
	require.NoError(t, err)

	require.Len(t, page.Tags, 1)
	para := page.Tags[0]
	assert.Equal(t, "p", para.Name)
	assert.False(t, para.SelfClosing)
	require.Len(t, para.Children, 1)
	assert.Equal(t, "hi", para.Children[0].Content)

	want := []Diagnostic{
		{Level: slog.LevelWarn, Pos: Span{Offset: 5, Line: 1, Column: 6}, Tag: "div", Msg: "missing opening tag for closing tag </div>"},
		{Level: slog.LevelWarn, Pos: Span{Offset: 0, Line: 1, Column: 1}, Tag: "p", Msg: "missing end tag for <p>"},
	}
	assert.Equal(t, want, page.Diagnostics)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "missing end tag for <p>")
}

func TestParseDoctypeAttributes(t *testing.T) {
	src := `<!doctype HTML PUBLIC "-//W3C//DTD HTML 4.01//EN" "http://www.w3.org/TR/html4/strict.dtd">` + "\n<p>x"
	page, err := ParseString(src, nil)
	require.NoError(t, err)

	d := page.Tags[0]
	assert.Equal(t, DeclarationKind, d.Kind)
	assert.Equal(t, "!doctype", d.Name)
	assert.Equal(t, []Attribute{
		{Key: "name", Val: "html"},
		{Key: "public", Val: "-//W3C//DTD HTML 4.01//EN"},
		{Key: "system", Val: "http://www.w3.org/TR/html4/strict.dtd"},
	}, d.Attr)
}

func TestParseDeepNesting(t *testing.T) {
	const depth = 100000
	src := strings.Repeat("<div>", depth) + "x" + strings.Repeat("</div>", depth)

	page, err := ParseString(src, nil)
	require.NoError(t, err)
	require.Empty(t, page.Diagnostics)

	n, levels := page.Tags[0], 1
	for len(n.Children) == 1 && n.Children[0].IsElement() {
		n = n.Children[0]
		levels++
	}
	assert.Equal(t, depth, levels)
	assert.Equal(t, "x", n.Text())
	assert.Len(t, page.ByName("div"), depth)
}

func TestParseUnbalancedDeepNesting(t *testing.T) {
	const depth = 10000
	page, err := ParseString(strings.Repeat("<span>", depth), nil)
	require.NoError(t, err)
	assert.Len(t, page.Warnings(), depth)
}

func TestParseLazySelfClosingScales(t *testing.T) {
	const n = 100000
	src := "<div>" + strings.Repeat("<span>a", n) + "</div>"

	page, err := ParseString(src, nil)
	require.NoError(t, err)
	require.NoError(t, checkTreeConsistency(page))
	assert.Len(t, page.Warnings(), n)

	require.Len(t, page.Tags, 1)
	div := page.Tags[0]
	require.Len(t, div.Children, 2*n)
	for i := 0; i < n; i++ {
		span, text := div.Children[2*i], div.Children[2*i+1]
		if span.Name != "span" || !span.SelfClosing || len(span.Children) != 0 || text.Content != "a" {
			t.Fatalf("child %d: got <%s> self-closing=%v children=%d then %q",
				2*i, span.Name, span.SelfClosing, len(span.Children), text.Content)
		}
	}
}

func TestParseRawTextCloserIgnoresCase(t *testing.T) {
	g := NewGrammar(GrammarConfig{CaseSensitive: true, RawText: []string{"script"}})

	page, err := ParseString("<script>x</SCRIPT><p>y</p>", g)
	require.NoError(t, err)
	assert.Equal(t, removeIndent(`
	| <script>
	|   "x"
	| <p>
	|   "y"
	`), DumpString(page))
}

func TestParsePositions(t *testing.T) {
	page, err := ParseString("<div>\n  <p>é<b>x</b></p>\n</div>", nil)
	require.NoError(t, err)

	assert.Equal(t, Span{Offset: 0, Line: 1, Column: 1}, page.First("div").Pos)
	assert.Equal(t, Span{Offset: 8, Line: 2, Column: 3}, page.First("p").Pos)
	// é is two bytes but one column
	assert.Equal(t, Span{Offset: 13, Line: 2, Column: 7}, page.First("b").Pos)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
		wantTag string
		wantPos Span
		// want is the dump of the partial page
		want string
	}{
		{
			name:    "end of stream inside a start tag",
			text:    "<p>hello<b",
			wantErr: ErrUnexpectedEOF,
			wantPos: Span{Offset: 8, Line: 1, Column: 9},
			want: `
			| <p>
			|   "hello"
			`,
		},
		{
			name:    "quote runs to the end of stream",
			text:    `<p title="x>y</p>`,
			wantErr: ErrUnexpectedEOF,
			wantPos: Span{Offset: 0, Line: 1, Column: 1},
		},
		{
			name:    "bare less-than in text",
			text:    "a < b",
			wantErr: ErrUnexpectedEOF,
			wantPos: Span{Offset: 2, Line: 1, Column: 3},
			want: `
			| "a "
			`,
		},
		{
			name:    "unterminated raw text",
			text:    "<div><script>never closed",
			wantErr: ErrUnterminatedRawText,
			wantTag: "script",
			wantPos: Span{Offset: 5, Line: 1, Column: 6},
			want: `
			| <div>
			|   <script>
			`,
		},
		{
			name:    "escaped closing quote",
			text:    `<a title="x\">y</a>`,
			wantErr: ErrMissingQuote,
			wantTag: "a",
			wantPos: Span{Offset: 0, Line: 1, Column: 1},
		},
		{
			name:    "unterminated cdata",
			text:    "<!CDATA[[abc",
			wantErr: ErrUnexpectedEOF,
			wantPos: Span{Offset: 0, Line: 1, Column: 1},
		},
		{
			name:    "unterminated declaration",
			text:    "<!DOCTYPE html",
			wantErr: ErrMissingTagEnd,
			wantPos: Span{Offset: 0, Line: 1, Column: 1},
		},
		{
			name:    "unterminated end tag",
			text:    "<b>x</b",
			wantErr: ErrMissingTagEnd,
			wantPos: Span{Offset: 4, Line: 1, Column: 5},
			want: `
			| <b>
			|   "x"
			`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ParseString(tt.text, nil)
			require.Error(t, err)
			require.NotNil(t, page)
			require.ErrorIs(t, err, tt.wantErr)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantTag, pe.Tag)
			assert.Equal(t, tt.wantPos, pe.Pos)
			assert.Equal(t, removeIndent(tt.want), DumpString(page))
		})
	}
}

func TestParseErrorContext(t *testing.T) {
	src := `<div><h1>Title</h1><p class="x">para</p><br><i a='`

	_, err := ParseString(src, nil)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)

	assert.Equal(t, `<div><h1>Title</h1><p class="x">para</p><br/></div>`, pe.HTMLContext())
	assert.Equal(t, "1:45: unexpected end of stream", pe.Error())
}

func TestParserReuse(t *testing.T) {
	p := &Parser{Grammar: HTMLGrammar()}

	first, err := p.Parse(strings.NewReader("<div><span>"))
	require.NoError(t, err)
	second, err := p.Parse(strings.NewReader("<p>x</p>"))
	require.NoError(t, err)

	assert.Len(t, first.Warnings(), 2)
	assert.Empty(t, second.Diagnostics)
	assert.Nil(t, second.Tags[0].Parent)
}

func TestParseFile(t *testing.T) {
	fsys := fstest.MapFS{"doc.xml": {Data: []byte("<doc><Item/></doc>")}}

	page, err := ParseFile(fsys, "doc.xml", XMLGrammar())
	require.NoError(t, err)
	assert.Len(t, page.ByName("Item"), 1)

	page, err = ParseFile(fsys, "missing.xml", nil)
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Nil(t, page)
}

func BenchmarkParser(b *testing.B) {
	src := strings.Repeat(`<ul class="menu"><li><a href="/x?a=1&b=2">item</a><li>other<br></ul><script>var x = 1 < 2;</script>`, 200)
	b.SetBytes(int64(len(src)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseString(src, nil); err != nil {
			b.Fatalf("Parse: %v", err)
		}
	}
}
