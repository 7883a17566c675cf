package looseml

import (
	"bytes"

	"github.com/dpotapov/go-looseml/ml"
)

// sourceContextLines is the number of lines shown before and after an error line.
const sourceContextLines = 3

// SourceContext is an excerpt of the parsed input around an error.
type SourceContext struct {
	Lines       []SourceLine `json:"lines"`
	ErrorLine   int          `json:"errorLine"`
	ErrorColumn int          `json:"errorColumn"`
}

type SourceLine struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// NewSourceContext cuts the lines around pos out of src, n lines on each side. It returns nil
// if pos is not inside src.
func NewSourceContext(src []byte, pos ml.Span, n int) *SourceContext {
	if pos.Line < 1 {
		return nil
	}

	lines := bytes.Split(src, []byte("\n"))
	if pos.Line > len(lines) {
		return nil
	}

	first := max(pos.Line-n, 1)
	last := min(pos.Line+n, len(lines))

	ctx := &SourceContext{
		ErrorLine:   pos.Line,
		ErrorColumn: pos.Column,
	}
	for i := first; i <= last; i++ {
		ctx.Lines = append(ctx.Lines, SourceLine{
			Number: i,
			Text:   string(bytes.TrimSuffix(lines[i-1], []byte("\r"))),
		})
	}
	return ctx
}
