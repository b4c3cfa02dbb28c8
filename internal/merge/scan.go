package merge

import (
	"unicode/utf8"

	"vcs/internal/object"

	"github.com/agnivade/levenshtein"
)

// candidateBlocks returns the inclusive ranges where the two sequences
// differ position by position. Lines past the end of the shorter sequence
// always belong to a trailing block.
func candidateBlocks(source, target []string) [][2]int {
	var blocks [][2]int
	start := -1
	end := -1

	shorter := min(len(source), len(target))
	longer := max(len(source), len(target))

	for i := 0; i < shorter; i++ {
		if source[i] != target[i] {
			if start == -1 {
				start = i
			}
			end = i
			continue
		}
		if start != -1 {
			blocks = append(blocks, [2]int{start, end})
			start, end = -1, -1
		}
	}

	if longer > shorter {
		if start == -1 {
			start = shorter
		}
		end = longer - 1
	}
	if start != -1 {
		blocks = append(blocks, [2]int{start, end})
	}

	return blocks
}

// slice joins lines[start..end] clamped to the sequence length.
func slice(lines []string, start, end int) string {
	if start >= len(lines) {
		return ""
	}
	if end < start {
		end = start
	}
	return object.JoinLines(lines[start:min(end+1, len(lines))])
}

// similarity is 1 - distance/maxLen measured in runes; two empty strings are
// identical.
func similarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// scanFile splits the candidate blocks of one file into conflicts and
// accepted near-matches.
func scanFile(source, target []string, threshold float64) (conflicts, accepted []ConflictBlock) {
	for _, r := range candidateBlocks(source, target) {
		block := ConflictBlock{
			StartLine:     r[0],
			EndLine:       r[1],
			SourceContent: slice(source, r[0], r[1]),
			TargetContent: slice(target, r[0], r[1]),
		}
		block.Similarity = similarity(block.SourceContent, block.TargetContent)

		if block.Similarity < threshold {
			conflicts = append(conflicts, block)
		} else {
			accepted = append(accepted, block)
		}
	}
	return conflicts, accepted
}

// applyResolution rebuilds the file from source lines, substituting each
// conflict block according to the strategy.
func applyResolution(blocks []ConflictBlock, source, target []string, res Resolution) []string {
	resolved := make([]string, 0, len(source))
	current := 0

	for _, block := range blocks {
		for ; current < block.StartLine && current < len(source); current++ {
			resolved = append(resolved, source[current])
		}

		switch res.Strategy {
		case KeepSource:
			for i := block.StartLine; i <= block.EndLine && i < len(source); i++ {
				resolved = append(resolved, source[i])
			}
		case KeepTarget:
			for i := block.StartLine; i <= block.EndLine && i < len(target); i++ {
				resolved = append(resolved, target[i])
			}
		case Custom:
			for i := block.StartLine; i <= block.EndLine; i++ {
				if line, ok := res.CustomLines[i]; ok {
					resolved = append(resolved, line)
				} else if i < len(source) {
					resolved = append(resolved, source[i])
				}
			}
		}
		current = block.EndLine + 1
	}

	for ; current < len(source); current++ {
		resolved = append(resolved, source[current])
	}

	return resolved
}
