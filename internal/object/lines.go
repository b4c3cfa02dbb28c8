package object

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DecodeLines splits content into lines. A single trailing newline does not
// produce an empty final line and a trailing '\r' is dropped from each line.
// Content that is not valid UTF-8 becomes one line holding its uppercase hex
// dump, so line-based comparison treats the whole blob as one unit.
func DecodeLines(content []byte) []string {
	if !utf8.Valid(content) {
		return []string{fmt.Sprintf("%X", content)}
	}
	return SplitLines(string(content))
}

func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// JoinLines is the inverse used when writing merged content back.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
