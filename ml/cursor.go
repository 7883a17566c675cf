package ml

// unset marks a Cursor bound that does not point at anything.
const unset = -1

// Cursor delimits the token currently being matched inside the token buffer. Start is the index
// of the opening '<' (or the first text character), End the index of the located delimiter.
type Cursor struct {
	Start, End int
}

// Reset clears both bounds.
func (c *Cursor) Reset() {
	c.Start, c.End = unset, unset
}

// ValidEnd reports whether End points at a located delimiter.
func (c Cursor) ValidEnd() bool {
	return c.End != unset
}

// Clone returns an independent copy, used for sub-scanning inside an already located token.
func (c Cursor) Clone() Cursor {
	return Cursor{Start: c.Start, End: c.End}
}

// Len returns the number of bytes between Start and End inclusive, or 0 if either bound is unset.
func (c Cursor) Len() int {
	if c.Start == unset || c.End == unset || c.End < c.Start {
		return 0
	}
	return c.End - c.Start + 1
}

// indexAny returns the index of the first byte of buf[from:to+1] that is in chars, or unset.
func indexAny(buf []byte, chars string, from, to int) int {
	if from < 0 {
		from = 0
	}
	if to >= len(buf) {
		to = len(buf) - 1
	}
	for i := from; i <= to; i++ {
		for j := 0; j < len(chars); j++ {
			if buf[i] == chars[j] {
				return i
			}
		}
	}
	return unset
}

// indexUnescaped returns the index of the first q in buf[from:to+1] not preceded by a backslash.
func indexUnescaped(buf []byte, q byte, from, to int) int {
	for i := from; i <= to && i < len(buf); i++ {
		if buf[i] == '\\' {
			i++
			continue
		}
		if buf[i] == q {
			return i
		}
	}
	return unset
}

// skipSpace returns the index of the first non-whitespace byte at or after from, limited by to.
func skipSpace(buf []byte, from, to int) int {
	for from <= to && from < len(buf) && isSpace(buf[from]) {
		from++
	}
	return from
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

const whitespace = " \t\r\n\f"
