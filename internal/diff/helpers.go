package diff

type opKind int

const (
	opMatch opKind = iota
	opDelete
	opAdd
)

type editOp struct {
	kind    opKind
	text    string
	oldLine int
	newLine int
}

// buildLCSMatrix fills dp[i][j] with the LCS length of old[i:] and new[j:].
func buildLCSMatrix(oldLines, newLines []string) [][]int {
	m, n := len(oldLines), len(newLines)
	matrix := make([][]int, m+1)
	for i := range matrix {
		matrix[i] = make([]int, n+1)
	}

	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				matrix[i][j] = matrix[i+1][j+1] + 1
			} else {
				matrix[i][j] = max(matrix[i+1][j], matrix[i][j+1])
			}
		}
	}

	return matrix
}

// walkOps emits the edit script from the top-left corner, preferring
// deletions on ties.
func walkOps(oldLines, newLines []string, dp [][]int) []editOp {
	m, n := len(oldLines), len(newLines)
	ops := make([]editOp, 0, m+n)

	i, j := 0, 0
	for i < m && j < n {
		switch {
		case oldLines[i] == newLines[j]:
			ops = append(ops, editOp{kind: opMatch, text: oldLines[i], oldLine: i + 1, newLine: j + 1})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			ops = append(ops, editOp{kind: opDelete, text: oldLines[i], oldLine: i + 1})
			i++
		default:
			ops = append(ops, editOp{kind: opAdd, text: newLines[j], newLine: j + 1})
			j++
		}
	}
	for ; i < m; i++ {
		ops = append(ops, editOp{kind: opDelete, text: oldLines[i], oldLine: i + 1})
	}
	for ; j < n; j++ {
		ops = append(ops, editOp{kind: opAdd, text: newLines[j], newLine: j + 1})
	}

	return ops
}

// editBlocks groups maximal runs of non-matching ops.
func editBlocks(ops []editOp) [][]editOp {
	var blocks [][]editOp
	var current []editOp

	for _, op := range ops {
		if op.kind == opMatch {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, op)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}

	return blocks
}

func classifyBlock(block []editOp, out *ChangedLines) {
	var adds, dels []editOp
	for _, op := range block {
		if op.kind == opAdd {
			adds = append(adds, op)
		} else {
			dels = append(dels, op)
		}
	}

	if len(adds) == 0 || len(dels) == 0 {
		for _, op := range block {
			if op.kind == opAdd {
				out.Additions = append(out.Additions, addition(op))
			} else {
				out.Deletions = append(out.Deletions, deletion(op))
			}
		}
		return
	}

	paired := min(len(adds), len(dels))
	for k := 0; k < paired; k++ {
		oldText, newText := dels[k].text, adds[k].text
		out.Modifications = append(out.Modifications, LineChange{
			LineNumber: dels[k].oldLine,
			OldContent: &oldText,
			NewContent: &newText,
			Kind:       Modification,
		})
	}

	leftoverAdds := adds[paired:]
	leftoverDels := dels[paired:]

	// An empty leftover list on one side is padded with the first paired op
	// when that side outnumbered the pairing. With pairing by min count the
	// side that outnumbers the pairing always has leftovers, so neither
	// branch fires and every op is accounted for exactly once.
	if len(leftoverDels) == 0 && len(dels) > paired && len(adds) > len(dels) {
		leftoverDels = dels[:1]
	}
	if len(leftoverAdds) == 0 && len(adds) > paired && len(dels) > len(adds) {
		leftoverAdds = adds[:1]
	}

	for _, op := range leftoverAdds {
		out.Additions = append(out.Additions, addition(op))
	}
	for _, op := range leftoverDels {
		out.Deletions = append(out.Deletions, deletion(op))
	}
}

func addition(op editOp) LineChange {
	text := op.text
	return LineChange{LineNumber: op.newLine, NewContent: &text, Kind: Addition}
}

func deletion(op editOp) LineChange {
	text := op.text
	return LineChange{LineNumber: op.oldLine, OldContent: &text, Kind: Deletion}
}
