// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Modifications:
// Copyright 2024 Daniel Potapov
//  - Replaced HTML5 tree construction with a grammar-table driven loose parser that keeps the
//    tree close to the source and never recurses per nesting level.

// Package ml parses loosely structured HTML and XML.
package ml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
)

// Parser builds a Page from loosely structured markup. It tolerates missing and optional end
// tags, self-closing tags without "/>", comments, raw text bodies, CDATA sections and
// declarations, and it never recurses per nesting depth.
//
// The fields are configuration only. Every call starts from fresh state, so one Parser can
// serve any number of parses, including concurrent ones.
type Parser struct {
	// Grammar holds the per-tag policies. HTMLGrammar is used if nil.
	Grammar *Grammar

	// Logger receives debug records and recoverable anomalies. Nothing is logged if nil.
	Logger *slog.Logger
}

// Parse parses the UTF-8 markup from r.
//
// The returned Page is never nil. A non-nil error is a *ParseError; the Page then holds
// whatever was built before the failure.
func (p *Parser) Parse(r io.Reader) (*Page, error) {
	return p.ParseSource(NewReader(r))
}

// ParseSource parses the markup supplied by src. See Parse.
func (p *Parser) ParseSource(src Source) (*Page, error) {
	g := p.Grammar
	if g == nil {
		g = HTMLGrammar()
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	lp := &looseParser{
		src:  src,
		g:    g,
		log:  logger,
		page: newPage(g),
		buf:  make([]byte, 0, 512),
	}
	err := lp.parse()
	lp.page.rebuildIndex()
	return lp.page, err
}

// Parse parses the markup from r with grammar g, see Parser.Parse.
func Parse(r io.Reader, g *Grammar) (*Page, error) {
	p := &Parser{Grammar: g}
	return p.Parse(r)
}

// ParseString parses s with grammar g, see Parser.Parse.
func ParseString(s string, g *Grammar) (*Page, error) {
	return Parse(strings.NewReader(s), g)
}

// ParseFile parses the file name from fsys with grammar g. The Page is nil only if the file
// could not be opened.
func ParseFile(fsys fs.FS, name string, g *Grammar) (*Page, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	return Parse(f, g)
}

// Markers of SGML CDATA sections. The first one is a legacy spelling found in older inputs.
var cdataMarkers = []string{"<!CDATA[[", "<![CDATA["}

// looseParser holds the state of one parse.
type looseParser struct {
	src  Source
	g    *Grammar
	log  *slog.Logger
	page *Page

	// oe is the stack of open elements. Its top is the tag new children are attached to.
	oe tagStack

	// buf holds the token being scanned, pos delimits it.
	buf []byte
	pos Cursor
	// tokPos is where buf[0] was read.
	tokPos Span

	// last is the most recently attached tag, used as the anchor of error context.
	last *Tag
}

func (p *looseParser) parse() error {
	for {
		p.pos.Reset()

		if len(p.buf) == 0 {
			c, err := p.src.SkipWhitespace()
			if err == io.EOF {
				break
			}
			if err != nil {
				return p.readError(err)
			}
			p.tokPos = p.src.Pos()
			p.buf = append(p.buf, c...)
		}
		p.pos.Start = 0

		if p.buf[0] != '<' {
			if err := p.scanText(); err != nil {
				return err
			}
			continue
		}

		run, err := p.src.ReadUntil('>')
		if err != nil && err != io.EOF {
			return p.readError(err)
		}
		p.buf = append(p.buf, run...)
		eof := err == io.EOF

		if len(p.buf) < 2 {
			p.warn(p.tokPos, "", "stray '<' at end of stream")
			p.buf = p.buf[:0]
			break
		}

		switch {
		case bytes.HasPrefix(p.buf, []byte("<!--")):
			err = p.scanComment(eof)
		case p.isCData():
			err = p.scanCData()
		case p.buf[1] == '!' || p.buf[1] == '?':
			err = p.handleDeclaration()
		case p.buf[1] == '/':
			err = p.handleEndTag()
		default:
			err = p.handleStartTag()
		}
		if err != nil {
			return err
		}
		p.buf = p.buf[:0]
	}

	p.closeAll()
	return nil
}

// scanText emits the run up to the next '<' as a text tag and seeds buf with that '<'.
func (p *looseParser) scanText() error {
	run, err := p.src.ReadUntil('<')
	if err != nil && err != io.EOF {
		return p.readError(err)
	}
	p.buf = append(p.buf, run...)
	found := err == nil
	if found {
		p.buf = p.buf[:len(p.buf)-1]
	}

	p.addChild(newText(TextKind, string(p.buf), p.tokPos))
	p.buf = p.buf[:0]

	if found {
		p.buf = append(p.buf, '<')
		p.tokPos = p.src.Pos()
	}
	return nil
}

func (p *looseParser) scanComment(eof bool) error {
	if !eof && !bytes.HasSuffix(p.buf, []byte("-->")) {
		run, err := p.src.ReadUntilString("-->", false, false)
		if err != nil && err != io.EOF {
			return p.readError(err)
		}
		p.buf = append(p.buf, run...)
		eof = err == io.EOF
	}
	if eof {
		p.warn(p.tokPos, "", "unterminated comment runs to the end of stream")
	}

	p.log.Debug("HTML comment", "pos", p.tokPos.String())
	p.addChild(newText(CommentKind, string(p.buf), p.tokPos))
	return nil
}

func (p *looseParser) isCData() bool {
	for _, m := range cdataMarkers {
		if bytes.HasPrefix(p.buf, []byte(m)) {
			return true
		}
	}
	return false
}

func (p *looseParser) scanCData() error {
	if !bytes.HasSuffix(p.buf, []byte("]]>")) || len(p.buf) < len(cdataMarkers[0])+3 {
		run, err := p.src.ReadUntilString("]]>", false, true)
		p.buf = append(p.buf, run...)
		if err != nil {
			return p.tokenError(err, "")
		}
	}

	p.log.Debug("SGML CDATA", "pos", p.tokPos.String())
	p.addChild(newText(CDataKind, string(p.buf), p.tokPos))
	return nil
}

// handleDeclaration attaches DOCTYPE, "<!...>" and "<?...>" tokens to the page itself. In "<!"
// declarations quoted literals and "[...]" internal subsets may contain '>'.
func (p *looseParser) handleDeclaration() error {
	if p.buf[1] == '?' {
		p.pos.End = bytes.IndexByte(p.buf, '>')
	} else if err := p.scanTagEnd(true); err != nil && err != io.EOF {
		return p.readError(err)
	}
	if !p.pos.ValidEnd() {
		return p.tokenError(ErrMissingTagEnd, "")
	}

	token := string(p.buf[:p.pos.End+1])
	nameEnd := indexAny(p.buf, whitespace+">", 1, p.pos.End)
	t := &Tag{
		Kind:        DeclarationKind,
		Name:        string(p.buf[1:nameEnd]),
		Content:     token,
		SelfClosing: true,
		Pos:         p.tokPos,
	}
	if strings.EqualFold(t.Name, "!DOCTYPE") {
		parseDoctype(t, token[nameEnd:p.pos.End])
	}

	p.log.Debug("Declaration", "name", t.Name, "pos", p.tokPos.String())
	p.page.AddTag(t)
	p.last = t
	return nil
}

func (p *looseParser) handleEndTag() error {
	p.pos.End = indexAny(p.buf, ">", p.pos.Start, len(p.buf)-1)
	if !p.pos.ValidEnd() {
		return p.tokenError(ErrMissingTagEnd, "")
	}
	token := string(p.buf[p.pos.Start : p.pos.End+1])
	name := strings.TrimSpace(string(p.buf[p.pos.Start+2 : p.pos.End]))
	if i := strings.IndexAny(name, whitespace); i != -1 {
		name = name[:i] // junk after the name
	}
	p.log.Debug("End tag", "name", name, "pos", p.tokPos.String())

	if name == "" {
		p.warn(p.tokPos, "", "empty end tag "+token+" ignored")
		return nil
	}

	if p.oe.top() == nil {
		p.warn(p.tokPos, name, "missing opening tag for closing tag "+token+" (at document root)")
		return nil
	}

	// end the tags whose end tags are optional
	for top := p.oe.top(); top != nil && !p.g.Equal(top.Name, name) && p.g.IsOptionalEnder(top.Name); top = p.oe.top() {
		p.log.Debug("Optional ender", "ended", top.Name)
		p.oe.pop()
	}

	if top := p.oe.top(); top != nil && p.g.Equal(top.Name, name) {
		p.oe.pop()
		return nil
	}

	// A higher element matches: the open elements above it had no end tags of their own.
	for i := len(p.oe) - 2; i >= 0; i-- {
		if !p.g.Equal(p.oe[i].Name, name) {
			continue
		}
		p.promote(i)
		p.oe = p.oe[:i]
		return nil
	}

	p.warn(p.tokPos, name, "missing opening tag for closing tag "+token)
	return nil
}

// promote marks the open elements above p.oe[i] as self-closing and moves their children up to
// p.oe[i], keeping document order. Each p.oe[j+1] is the last child of p.oe[j], so the subtree
// above p.oe[i] is flattened in one pass.
func (p *looseParser) promote(i int) {
	anc := p.oe[i]

	var moved []*Tag
	for j := i + 1; j < len(p.oe); j++ {
		t := p.oe[j]
		p.warn(t.Pos, t.Name, "lazy self-closing tag <"+t.Name+">")
		t.SelfClosing = true

		moved = append(moved, t)
		children := t.Children
		if j+1 < len(p.oe) {
			children = children[:len(children)-1] // p.oe[j+1], moved by the next iteration
		}
		moved = append(moved, children...)
		t.Children = nil
	}

	for _, c := range moved {
		c.Parent = anc
	}
	anc.Children = append(anc.Children[:len(anc.Children)-1], moved...)
}

// scanTagEnd sets p.pos.End to the '>' ending the token that starts at p.pos.Start. Quoted text
// and, with brackets set, "[...]" sections are skipped. More of the stream is read as needed; at
// end of stream the read error is returned and p.pos.End is left unset.
func (p *looseParser) scanTagEnd(brackets bool) error {
	var quote byte
	depth := 0
	for i := p.pos.Start; ; i++ {
		if i == len(p.buf) {
			run, err := p.src.ReadUntil('>')
			if run == "" && err != nil {
				p.pos.End = unset
				return err
			}
			p.buf = append(p.buf, run...)
		}

		switch c := p.buf[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case brackets && c == '[':
			depth++
		case brackets && c == ']' && depth > 0:
			depth--
		case c == '>' && depth == 0:
			p.pos.End = i
			return nil
		}
	}
}

func (p *looseParser) handleStartTag() error {
	// attribute values may contain '>'
	if err := p.scanTagEnd(false); err == io.EOF {
		return p.tokenError(err, "")
	} else if err != nil {
		return p.readError(err)
	}

	tag, err := p.createTag(p.pos)
	if err != nil {
		return err
	}
	if tag.Name == "" {
		p.warn(p.tokPos, "", "tag without a name kept as text")
		p.addChild(newText(TextKind, string(p.buf[p.pos.Start:p.pos.End+1]), p.tokPos))
		return nil
	}
	p.log.Debug("Start tag", "name", tag.Name, "pos", p.tokPos.String())

	if top := p.oe.top(); top != nil && p.g.IsOptionalEnder(top.Name) && p.g.IsOptionalEnderClosedBy(top.Name, tag.Name) {
		p.log.Debug("Optional ender", "ended", top.Name, "by", tag.Name)
		p.oe.pop()
	}
	p.addChild(tag)

	switch {
	case tag.SelfClosing:
	case p.g.IsRawText(tag.Name):
		return p.scanRawText(tag)
	case p.g.IsSelfCloser(tag.Name):
		p.log.Debug("Pre-defined self closer", "name", tag.Name)
		tag.SelfClosing = true
	default:
		p.oe = append(p.oe, tag)
	}
	return nil
}

// scanRawText captures the body of tag verbatim up to its end tag. The tag is not pushed.
func (p *looseParser) scanRawText(tag *Tag) error {
	closer := "</" + tag.Name
	start := p.src.Pos()
	start.Offset++
	start.Column++

	var body strings.Builder
	for {
		run, err := p.src.ReadUntilString(closer, true, true)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return p.fail(tag.Pos, tag.Name, "", ErrUnterminatedRawText)
			}
			return p.readError(err)
		}
		body.WriteString(run[:len(run)-len(closer)])

		// "</scripts" is part of the body of <script>
		c, err := p.src.ReadChar()
		if err == io.EOF {
			break
		}
		if err != nil {
			return p.readError(err)
		}
		if c == ">" {
			break
		}
		if c == "/" || (len(c) == 1 && isSpace(c[0])) {
			if _, err := p.src.ReadUntil('>'); err != nil && err != io.EOF {
				return p.readError(err)
			}
			break
		}
		body.WriteString(run[len(run)-len(closer):])
		body.WriteString(c)
	}

	p.log.Debug("PCDATA tag", "name", tag.Name)
	if body.Len() > 0 {
		tag.AppendChild(newText(TextKind, body.String(), start))
	}
	return nil
}

// closeAll auto-closes the tags still open at the end of the stream.
func (p *looseParser) closeAll() {
	for len(p.oe) > 0 {
		t := p.oe.pop()
		p.warn(t.Pos, t.Name, "missing end tag for <"+t.Name+">")
	}
}

func (p *looseParser) addChild(t *Tag) {
	if top := p.oe.top(); top != nil {
		top.AppendChild(t)
	} else {
		p.page.AddTag(t)
	}
	p.last = t
}

func (p *looseParser) warn(pos Span, tag, msg string) {
	p.page.Diagnostics = append(p.page.Diagnostics, Diagnostic{
		Level: slog.LevelWarn,
		Pos:   pos,
		Tag:   tag,
		Msg:   msg,
	})
	p.log.Warn(msg, "tag", tag, "pos", pos.String())
}

func (p *looseParser) fail(pos Span, tag, token string, err error) *ParseError {
	return newParseError(pos, tag, token, err, p.last, p.page)
}

// tokenError reports a failure of the token in buf. End of stream becomes ErrUnexpectedEOF.
func (p *looseParser) tokenError(err error, tag string) *ParseError {
	if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
		err = ErrUnexpectedEOF
	}
	return p.fail(p.tokPos, tag, string(p.buf), err)
}

func (p *looseParser) readError(err error) *ParseError {
	return p.fail(p.src.Pos(), "", string(p.buf), fmt.Errorf("read: %w", err))
}
