package diff

import (
	"fmt"

	vcserrors "vcs/internal/errors"
)

// Patch applies changes produced by Diff(oldLines, x) to oldLines and
// returns x.
func Patch(oldLines []string, changes ChangedLines) ([]string, error) {
	deleted := make(map[int]bool, len(changes.Deletions))
	for _, c := range changes.Deletions {
		if c.LineNumber < 1 || c.LineNumber > len(oldLines) {
			return nil, vcserrors.InvalidInput(fmt.Sprintf("deletion at line %d out of range", c.LineNumber))
		}
		deleted[c.LineNumber] = true
	}

	replaced := make(map[int]string, len(changes.Modifications))
	for _, c := range changes.Modifications {
		if c.LineNumber < 1 || c.LineNumber > len(oldLines) || c.NewContent == nil {
			return nil, vcserrors.InvalidInput(fmt.Sprintf("invalid modification at line %d", c.LineNumber))
		}
		replaced[c.LineNumber] = *c.NewContent
	}

	survivors := make([]string, 0, len(oldLines))
	for i, line := range oldLines {
		n := i + 1
		if deleted[n] {
			continue
		}
		if r, ok := replaced[n]; ok {
			line = r
		}
		survivors = append(survivors, line)
	}

	total := len(survivors) + len(changes.Additions)
	out := make([]string, total)
	placed := make([]bool, total)
	for _, c := range changes.Additions {
		idx := c.LineNumber - 1
		if idx < 0 || idx >= total || placed[idx] || c.NewContent == nil {
			return nil, vcserrors.InvalidInput(fmt.Sprintf("invalid addition at line %d", c.LineNumber))
		}
		out[idx] = *c.NewContent
		placed[idx] = true
	}

	k := 0
	for i := range out {
		if placed[i] {
			continue
		}
		out[i] = survivors[k]
		k++
	}

	return out, nil
}
