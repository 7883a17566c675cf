package ml

import (
	"slices"
	"strings"

	a "golang.org/x/net/html/atom"
)

// GrammarConfig is the serializable form of a Grammar.
type GrammarConfig struct {
	// CaseSensitive makes tag name comparisons exact. HTML grammars fold case.
	CaseSensitive bool `yaml:"case_sensitive" toml:"case_sensitive"`

	// OptionalEnd maps a tag whose end tag may be omitted to the start tags that implicitly
	// close it.
	OptionalEnd map[string][]string `yaml:"optional_end" toml:"optional_end"`

	// SelfClosing lists tags that never have a body.
	SelfClosing []string `yaml:"self_closing" toml:"self_closing"`

	// RawText lists tags whose body is captured verbatim up to the closing tag.
	RawText []string `yaml:"raw_text" toml:"raw_text"`
}

// Grammar answers the per-tag-name policy questions of the parser. It is immutable once built
// and can be shared between parsers.
//
// A name absent from every table has a required end tag, is not self-closing and has a parsed
// body.
type Grammar struct {
	caseSensitive bool
	optionalEnd   map[string]map[string]struct{}
	selfClosing   map[string]struct{}
	rawText       map[string]struct{}
}

// NewGrammar builds a Grammar from cfg.
func NewGrammar(cfg GrammarConfig) *Grammar {
	g := &Grammar{
		caseSensitive: cfg.CaseSensitive,
		optionalEnd:   make(map[string]map[string]struct{}, len(cfg.OptionalEnd)),
		selfClosing:   make(map[string]struct{}, len(cfg.SelfClosing)),
		rawText:       make(map[string]struct{}, len(cfg.RawText)),
	}
	for name, closers := range cfg.OptionalEnd {
		set := make(map[string]struct{}, len(closers))
		for _, c := range closers {
			set[g.Normalize(c)] = struct{}{}
		}
		g.optionalEnd[g.Normalize(name)] = set
	}
	for _, name := range cfg.SelfClosing {
		g.selfClosing[g.Normalize(name)] = struct{}{}
	}
	for _, name := range cfg.RawText {
		g.rawText[g.Normalize(name)] = struct{}{}
	}
	return g
}

// Config returns the configuration g was built from, with normalized names.
func (g *Grammar) Config() GrammarConfig {
	cfg := GrammarConfig{
		CaseSensitive: g.caseSensitive,
		OptionalEnd:   make(map[string][]string, len(g.optionalEnd)),
	}
	for name, set := range g.optionalEnd {
		cfg.OptionalEnd[name] = setKeys(set)
	}
	cfg.SelfClosing = setKeys(g.selfClosing)
	cfg.RawText = setKeys(g.rawText)
	return cfg
}

func (g *Grammar) CaseSensitive() bool {
	return g.caseSensitive
}

// Normalize returns the key name is looked up by.
func (g *Grammar) Normalize(name string) string {
	if g.caseSensitive {
		return name
	}
	return strings.ToLower(name)
}

// Equal compares two tag names.
func (g *Grammar) Equal(x, y string) bool {
	if g.caseSensitive {
		return x == y
	}
	return strings.EqualFold(x, y)
}

// IsOptionalEnder reports whether the end tag of name may be omitted.
func (g *Grammar) IsOptionalEnder(name string) bool {
	_, ok := g.optionalEnd[g.Normalize(name)]
	return ok
}

// IsOptionalEnderClosedBy reports whether a start tag named incoming implicitly closes an open
// tag named open.
func (g *Grammar) IsOptionalEnderClosedBy(open, incoming string) bool {
	set, ok := g.optionalEnd[g.Normalize(open)]
	if !ok {
		return false
	}
	_, ok = set[g.Normalize(incoming)]
	return ok
}

// IsSelfCloser reports whether name never has a body.
func (g *Grammar) IsSelfCloser(name string) bool {
	_, ok := g.selfClosing[g.Normalize(name)]
	return ok
}

// IsRawText reports whether the body of name is raw text.
func (g *Grammar) IsRawText(name string) bool {
	_, ok := g.rawText[g.Normalize(name)]
	return ok
}

// XMLGrammar returns a case-sensitive grammar with empty tables: every tag needs an end tag
// or an explicit "/>".
func XMLGrammar() *Grammar {
	return NewGrammar(GrammarConfig{CaseSensitive: true})
}

// HTMLGrammar returns the grammar for HTML documents: void elements, the optional end tag
// rules and the raw text elements.
func HTMLGrammar() *Grammar {
	return NewGrammar(HTMLGrammarConfig())
}

// HTMLGrammarConfig returns the configuration behind HTMLGrammar, for callers that want to
// extend it.
func HTMLGrammarConfig() GrammarConfig {
	paragraphClosers := atoms(a.Address, a.Article, a.Aside, a.Blockquote, a.Details, a.Div, a.Dl,
		a.Fieldset, a.Figcaption, a.Figure, a.Footer, a.Form, a.H1, a.H2, a.H3, a.H4, a.H5, a.H6,
		a.Header, a.Hgroup, a.Hr, a.Main, a.Menu, a.Nav, a.Ol, a.P, a.Pre, a.Section, a.Table, a.Ul)

	return GrammarConfig{
		OptionalEnd: map[string][]string{
			a.Li.String():       atoms(a.Li),
			a.Dt.String():       atoms(a.Dt, a.Dd),
			a.Dd.String():       atoms(a.Dt, a.Dd),
			a.P.String():        paragraphClosers,
			a.Rt.String():       atoms(a.Rt, a.Rp),
			a.Rp.String():       atoms(a.Rt, a.Rp),
			a.Optgroup.String(): atoms(a.Optgroup),
			a.Option.String():   atoms(a.Option, a.Optgroup),
			a.Thead.String():    atoms(a.Tbody, a.Tfoot),
			a.Tbody.String():    atoms(a.Tbody, a.Tfoot),
			a.Tfoot.String():    atoms(a.Tbody),
			a.Tr.String():       atoms(a.Tr, a.Tbody, a.Tfoot),
			a.Td.String():       atoms(a.Td, a.Th, a.Tr, a.Tbody, a.Tfoot),
			a.Th.String():       atoms(a.Td, a.Th, a.Tr, a.Tbody, a.Tfoot),
			a.Colgroup.String(): atoms(a.Thead, a.Tbody, a.Tfoot, a.Tr),
			a.Caption.String():  atoms(a.Colgroup, a.Thead, a.Tbody, a.Tfoot, a.Tr),
		},
		SelfClosing: atoms(a.Area, a.Base, a.Basefont, a.Bgsound, a.Br, a.Col, a.Embed, a.Frame,
			a.Hr, a.Img, a.Input, a.Keygen, a.Link, a.Meta, a.Param, a.Source, a.Track, a.Wbr),
		RawText: atoms(a.Script, a.Style, a.Textarea, a.Title, a.Xmp, a.Iframe, a.Noembed,
			a.Noframes),
	}
}

func atoms(as ...a.Atom) []string {
	names := make([]string, len(as))
	for i, x := range as {
		names[i] = x.String()
	}
	return names
}

func setKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
