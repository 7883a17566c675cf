package ml

import "log/slog"

// Page is the parsed document. It owns the top-level tags; markup with several top-level
// siblings is legal, so there is no synthetic root element.
type Page struct {
	Tags []*Tag

	// Diagnostics lists the recoverable anomalies met while parsing.
	Diagnostics []Diagnostic

	grammar *Grammar
	byName  map[string][]*Tag
	byID    map[string]*Tag
}

// Diagnostic is a recoverable anomaly. The parser logs it and carries on.
type Diagnostic struct {
	Level slog.Level
	Pos   Span
	Tag   string
	Msg   string
}

func (d Diagnostic) String() string {
	return d.Pos.String() + ": " + d.Msg
}

func newPage(g *Grammar) *Page {
	return &Page{grammar: g}
}

// AddTag appends t to the top-level tags.
//
// It will panic if t already has a parent.
func (p *Page) AddTag(t *Tag) {
	if t.Parent != nil {
		panic("ml: AddTag called for an attached Tag")
	}
	p.Tags = append(p.Tags, t)
}

// Walk visits all tags in document order, see Tag.Walk.
func (p *Page) Walk(fn func(*Tag) bool) {
	walk(p.Tags, fn)
}

// ByName returns the elements named name in document order.
func (p *Page) ByName(name string) []*Tag {
	if p.byName == nil {
		p.rebuildIndex()
	}
	return p.byName[p.grammar.Normalize(name)]
}

// First returns the first element named name, or nil.
func (p *Page) First(name string) *Tag {
	if tags := p.ByName(name); len(tags) > 0 {
		return tags[0]
	}
	return nil
}

// ByID returns the first element whose id attribute equals id, or nil.
func (p *Page) ByID(id string) *Tag {
	if p.byName == nil {
		p.rebuildIndex()
	}
	return p.byID[id]
}

// Warnings returns the diagnostics at warning level or above.
func (p *Page) Warnings() []Diagnostic {
	var ws []Diagnostic
	for _, d := range p.Diagnostics {
		if d.Level >= slog.LevelWarn {
			ws = append(ws, d)
		}
	}
	return ws
}

// rebuildIndex recomputes the lookup caches in one pass over the tree.
func (p *Page) rebuildIndex() {
	if p.grammar == nil {
		p.grammar = HTMLGrammar()
	}
	p.byName = make(map[string][]*Tag)
	p.byID = make(map[string]*Tag)
	p.Walk(func(t *Tag) bool {
		if t.Kind != ElementKind {
			return true
		}
		key := p.grammar.Normalize(t.Name)
		p.byName[key] = append(p.byName[key], t)
		if id, ok := t.GetAttr("id"); ok {
			if _, dup := p.byID[id]; !dup {
				p.byID[id] = t
			}
		}
		return true
	})
}
