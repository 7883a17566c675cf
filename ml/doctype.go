// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Modifications:
// Copyright 2024 Daniel Potapov
//  - Fill the attributes of a declaration Tag instead of building an html.Node.

package ml

import "strings"

// parseDoctype parses the text between "<!DOCTYPE" and ">" into the name, public identifier,
// and system identifier attributes of the declaration tag t. Absent parts are not set.
func parseDoctype(t *Tag, s string) {
	s = strings.TrimLeft(s, whitespace)

	// Find the name.
	space := strings.IndexAny(s, whitespace)
	if space == -1 {
		space = len(s)
	}
	if name := strings.ToLower(s[:space]); name != "" {
		t.SetAttr("name", name)
	}
	s = strings.TrimLeft(s[space:], whitespace)

	if len(s) < 6 {
		// It can't start with "PUBLIC" or "SYSTEM".
		// Ignore the rest of the string.
		return
	}

	key := strings.ToLower(s[:6])
	s = s[6:]
	for key == "public" || key == "system" {
		s = strings.TrimLeft(s, whitespace)
		if s == "" {
			break
		}
		quote := s[0]
		if quote != '"' && quote != '\'' {
			break
		}
		s = s[1:]
		q := strings.IndexRune(s, rune(quote))
		var id string
		if q == -1 {
			id = s
			s = ""
		} else {
			id = s[:q]
			s = s[q+1:]
		}
		t.SetAttr(key, id)
		if key == "public" {
			key = "system"
		} else {
			key = ""
		}
	}
}
