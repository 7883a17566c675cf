package ml

import (
	"bufio"
	"io"
	"strings"
)

// Dump writes an indented outline of the page, one line per tag and attribute:
//
//	| <ul>
//	|   class="menu"
//	|   <li>
//	|     "Home"
//	|   <br/>
//
// Text is quoted, comments, CDATA sections and declarations are written verbatim.
func Dump(w io.Writer, page *Page) error {
	bw := bufio.NewWriter(w)

	type frame struct {
		t     *Tag
		level int
	}
	stack := make([]frame, 0, len(page.Tags))
	for i := len(page.Tags) - 1; i >= 0; i-- {
		stack = append(stack, frame{page.Tags[i], 0})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dumpIndent(bw, f.level)
		switch t := f.t; t.Kind {
		case ElementKind:
			_, _ = bw.WriteString("<" + t.Name)
			if t.SelfClosing {
				_, _ = bw.WriteString("/")
			}
			_, _ = bw.WriteString(">")
			for _, a := range t.Attr {
				_, _ = bw.WriteString("\n")
				dumpIndent(bw, f.level+1)
				_, _ = bw.WriteString(a.Key + `="` + a.Val + `"`)
			}
		case TextKind:
			_, _ = bw.WriteString(`"` + t.Content + `"`)
		default:
			_, _ = bw.WriteString(t.Content)
		}
		_, _ = bw.WriteString("\n")

		for i := len(f.t.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.t.Children[i], f.level + 1})
		}
	}

	return bw.Flush()
}

// DumpString returns the outline written by Dump.
func DumpString(page *Page) string {
	var sb strings.Builder
	_ = Dump(&sb, page)
	return sb.String()
}

func dumpIndent(w *bufio.Writer, level int) {
	_, _ = w.WriteString("| ")
	for i := 0; i < level; i++ {
		_, _ = w.WriteString("  ")
	}
}
