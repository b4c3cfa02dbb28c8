package diff

import (
	"bytes"
	"fmt"
	"sort"
)

// Format renders the changes of one file, one change per line:
// "+ N: text", "- N: text" or "~ N: old -> new".
func (c *ChangedLines) Format(path string) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "--- %s (+%d -%d ~%d)\n",
		path, len(c.Additions), len(c.Deletions), len(c.Modifications))

	for _, m := range c.Modifications {
		fmt.Fprintf(&buf, "~ %d: %s -> %s\n", m.LineNumber, deref(m.OldContent), deref(m.NewContent))
	}
	for _, d := range c.Deletions {
		fmt.Fprintf(&buf, "- %d: %s\n", d.LineNumber, deref(d.OldContent))
	}
	for _, a := range c.Additions {
		fmt.Fprintf(&buf, "+ %d: %s\n", a.LineNumber, deref(a.NewContent))
	}

	return buf.String()
}

// Format renders every file in path order.
func (r *Result) Format() string {
	var buf bytes.Buffer

	paths := make([]string, 0, len(r.Changes))
	for p := range r.Changes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	fmt.Fprintf(&buf, "diff %s..%s\n", r.FromLabel, r.ToLabel)
	for _, p := range paths {
		buf.WriteString(r.Changes[p].Format(p))
	}
	return buf.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
