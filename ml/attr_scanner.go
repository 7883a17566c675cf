package ml

import "fmt"

// createTag builds an element from the start tag buf[limits.Start:limits.End+1], where
// buf[limits.End] is the closing '>'. It fills in the name, the attributes and the
// self-closing flag. A tag without a name is returned with an empty Name.
func (p *looseParser) createTag(limits Cursor) (*Tag, error) {
	buf := p.buf
	if limits.Start < 0 || limits.End >= len(buf) || limits.End <= limits.Start ||
		buf[limits.Start] != '<' || buf[limits.End] != '>' {
		return nil, p.fail(p.tokPos, "", string(buf), ErrMalformedToken)
	}
	tag := &Tag{Kind: ElementKind, Pos: p.tokPos}

	// closer is the index of "/>" or ">"
	closer := limits.End
	if closer-1 > limits.Start && buf[closer-1] == '/' {
		tag.SelfClosing = true
		closer--
	}

	pos := limits.Clone()
	pos.Start = limits.Start + 1
	pos.End = indexAny(buf, whitespace, pos.Start, closer-1)
	if !pos.ValidEnd() {
		// no whitespace so no attributes
		tag.Name = string(buf[pos.Start:closer])
		return tag, nil
	}
	tag.Name = string(buf[pos.Start:pos.End])
	if tag.Name == "" {
		return tag, nil
	}

	for {
		pos.Start = skipSpace(buf, pos.End+1, closer-1)
		if pos.Start >= closer {
			break
		}

		// Find attribute name end
		pos.End = indexAny(buf, "="+whitespace, pos.Start, closer-1)
		if !pos.ValidEnd() {
			pos.End = closer
		}
		key := string(buf[pos.Start:pos.End])

		// Skip any whitespace before '='
		eq := skipSpace(buf, pos.End, closer-1)
		if eq >= closer || buf[eq] != '=' {
			// Attribute without value
			if key != "" {
				tag.SetAttr(key, key)
			}
			continue
		}

		// Skip any whitespace after '='
		pos.Start = skipSpace(buf, eq+1, closer-1)
		if pos.Start >= closer {
			pos.End = closer
			if key != "" {
				tag.SetAttr(key, "")
			}
			continue
		}

		switch q := buf[pos.Start]; q {
		case '"', '\'':
			pos.Start++ // skip opening quote
			pos.End = indexUnescaped(buf, q, pos.Start, limits.End-1)
			if !pos.ValidEnd() {
				return nil, p.fail(p.tokPos, tag.Name, string(buf[limits.Start:limits.End+1]),
					fmt.Errorf("%w for attribute %q", ErrMissingQuote, key))
			}
		default:
			// Unquoted value
			pos.End = indexAny(buf, whitespace, pos.Start, closer-1)
			if !pos.ValidEnd() {
				pos.End = closer
			}
		}
		if key != "" {
			tag.SetAttr(key, string(buf[pos.Start:pos.End]))
		}
	}

	return tag, nil
}
