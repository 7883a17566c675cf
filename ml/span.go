package ml

import "fmt"

// Span represents a source location in the parsed stream
type Span struct {
	Offset int // Byte offset in the stream
	Line   int // 1-based line number
	Column int // 1-based column number (in runes, not bytes)
}

// IsZero returns true if the span is uninitialized
func (s Span) IsZero() bool {
	return s.Offset == 0 && s.Line == 0 && s.Column == 0
}

func (s Span) String() string {
	if s.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}
