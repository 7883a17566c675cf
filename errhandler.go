package looseml

import (
	"errors"

	"github.com/dpotapov/go-looseml/ml"
)

// ErrorView is the JSON form of a fatal parse error.
type ErrorView struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Token   string `json:"token,omitempty"`

	// Context is the HTML rendering of the tree built around the failure point.
	Context string `json:"context,omitempty"`

	// Source holds the input lines around the failure point.
	Source *SourceContext `json:"source,omitempty"`
}

// NewErrorView describes err. Errors other than *ml.ParseError only carry a message.
func NewErrorView(err error, src []byte) *ErrorView {
	ev := &ErrorView{Message: err.Error()}

	var pe *ml.ParseError
	if !errors.As(err, &pe) {
		return ev
	}

	ev.Line = pe.Pos.Line
	ev.Column = pe.Pos.Column
	ev.Tag = pe.Tag
	ev.Token = pe.Token
	ev.Context = pe.HTMLContext()
	if src != nil {
		ev.Source = NewSourceContext(src, pe.Pos, sourceContextLines)
	}
	return ev
}
