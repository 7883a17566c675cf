package ml

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// grammarFile is the on-disk form of a grammar. Base names a built-in grammar ("html" or
// "xml") the tables are added to.
type grammarFile struct {
	Base          string `yaml:"base" toml:"base"`
	GrammarConfig `yaml:",inline"`
}

// DecodeGrammarYAML reads a YAML grammar file:
//
//	base: html
//	case_sensitive: false
//	optional_end:
//	  li: [li]
//	self_closing: [br, img]
//	raw_text: [script, style]
func DecodeGrammarYAML(r io.Reader) (*Grammar, error) {
	var gf grammarFile
	if err := yaml.NewDecoder(r).Decode(&gf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode yaml grammar: %w", err)
	}
	return gf.grammar()
}

// DecodeGrammarTOML reads a TOML grammar file with the same keys as DecodeGrammarYAML.
func DecodeGrammarTOML(r io.Reader) (*Grammar, error) {
	var gf grammarFile
	if _, err := toml.NewDecoder(r).Decode(&gf); err != nil {
		return nil, fmt.Errorf("decode toml grammar: %w", err)
	}
	return gf.grammar()
}

// LoadGrammarFile reads the grammar file name from fsys. The format is chosen by the
// extension: .yaml, .yml or .toml.
func LoadGrammarFile(fsys fs.FS, name string) (*Grammar, error) {
	var decode func(io.Reader) (*Grammar, error)
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".yaml", ".yml":
		decode = DecodeGrammarYAML
	case ".toml":
		decode = DecodeGrammarTOML
	default:
		return nil, fmt.Errorf("grammar %s: unsupported format %q", name, ext)
	}

	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open grammar: %w", err)
	}
	defer f.Close()

	g, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("grammar %s: %w", name, err)
	}
	return g, nil
}

func (gf grammarFile) grammar() (*Grammar, error) {
	cfg := gf.GrammarConfig
	switch strings.ToLower(gf.Base) {
	case "":
	case "xml":
		cfg.CaseSensitive = true
	case "html":
		base := HTMLGrammarConfig()
		for name, closers := range cfg.OptionalEnd {
			base.OptionalEnd[name] = append(base.OptionalEnd[name], closers...)
		}
		cfg.OptionalEnd = base.OptionalEnd
		cfg.SelfClosing = append(base.SelfClosing, cfg.SelfClosing...)
		cfg.RawText = append(base.RawText, cfg.RawText...)
	default:
		return nil, fmt.Errorf("unknown base grammar %q", gf.Base)
	}
	return NewGrammar(cfg), nil
}
