package ml

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"
)

// Source is the character stream the parser pulls from. End of stream is reported as io.EOF.
//
// Characters are returned as their source bytes: an invalid UTF-8 byte comes back as itself,
// so text passes through the parser verbatim.
type Source interface {
	// ReadChar reads the next character.
	ReadChar() (string, error)

	// ReadUntil reads up to and including delim. If the stream ends first, the consumed run is
	// returned together with io.EOF.
	ReadUntil(delim byte) (string, error)

	// ReadUntilString reads up to and including delim, comparing case-insensitively when fold
	// is set. If the stream ends first, the consumed run is returned with io.EOF, or with
	// io.ErrUnexpectedEOF when required is set.
	ReadUntilString(delim string, fold, required bool) (string, error)

	// SkipWhitespace discards ASCII whitespace and returns the first other character.
	// No-break spaces and other Unicode spaces are content.
	SkipWhitespace() (string, error)

	// Pos returns the position of the last character read.
	Pos() Span
}

type reader struct {
	r *bufio.Reader
	// next is the position of the next rune, last of the most recently read one.
	next, last Span
}

var _ Source = (*reader)(nil)

// NewReader returns a Source reading UTF-8 text from r.
func NewReader(r io.Reader) Source {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &reader{r: br, next: Span{Line: 1, Column: 1}}
}

// read returns the next rune and its source bytes. An invalid byte is returned as
// utf8.RuneError with the byte itself as text.
func (r *reader) read() (rune, string, error) {
	c, size, err := r.r.ReadRune()
	if err != nil {
		return 0, "", err
	}

	text := string(c)
	if c == utf8.RuneError && size == 1 {
		_ = r.r.UnreadRune()
		b, _ := r.r.ReadByte()
		text = string([]byte{b})
	}

	r.last = r.next
	r.next.Offset += size
	if c == '\n' {
		r.next.Line++
		r.next.Column = 1
	} else {
		r.next.Column++
	}
	return c, text, nil
}

func (r *reader) ReadChar() (string, error) {
	_, text, err := r.read()
	return text, err
}

func (r *reader) ReadUntil(delim byte) (string, error) {
	var sb strings.Builder
	for {
		c, text, err := r.read()
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(text)
		if c == rune(delim) {
			return sb.String(), nil
		}
	}
}

func (r *reader) ReadUntilString(delim string, fold, required bool) (string, error) {
	var sb strings.Builder
	for {
		_, text, err := r.read()
		if err != nil {
			if err == io.EOF && required {
				err = io.ErrUnexpectedEOF
			}
			return sb.String(), err
		}
		sb.WriteString(text)
		if s := sb.String(); hasSuffix(s, delim, fold) {
			return s, nil
		}
	}
}

func (r *reader) SkipWhitespace() (string, error) {
	for {
		c, text, err := r.read()
		if err != nil {
			return "", err
		}
		if c >= utf8.RuneSelf || !isSpace(byte(c)) {
			return text, nil
		}
	}
}

func (r *reader) Pos() Span {
	return r.last
}

func hasSuffix(s, suffix string, fold bool) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	if fold {
		return strings.EqualFold(tail, suffix)
	}
	return tail == suffix
}
