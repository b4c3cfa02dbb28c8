package merge

import (
	"fmt"
	"strings"

	vcserrors "vcs/internal/errors"
)

type Status string

const (
	StatusUnresolved         Status = "UNRESOLVED"
	StatusResolvedKeepSource Status = "RESOLVED_KEEP_SOURCE"
	StatusResolvedKeepTarget Status = "RESOLVED_KEEP_TARGET"
	StatusResolvedCustom     Status = "RESOLVED_CUSTOM"
)

// Strategy selects how a conflict block is filled during resolution.
type Strategy string

const (
	KeepSource Strategy = "KEEP_SOURCE"
	KeepTarget Strategy = "KEEP_TARGET"
	Custom     Strategy = "CUSTOM"
)

// ParseStrategy accepts the canonical names as well as lower-case,
// dash-separated forms such as "keep-target".
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !st.Valid() {
		return "", vcserrors.InvalidInput(fmt.Sprintf("invalid resolution strategy: %q", s))
	}
	return st, nil
}

func (s Strategy) Valid() bool {
	switch s {
	case KeepSource, KeepTarget, Custom:
		return true
	}
	return false
}

func (s Strategy) resolvedStatus() Status {
	switch s {
	case KeepSource:
		return StatusResolvedKeepSource
	case KeepTarget:
		return StatusResolvedKeepTarget
	default:
		return StatusResolvedCustom
	}
}

// ConflictBlock covers the inclusive 0-based line range [StartLine, EndLine].
type ConflictBlock struct {
	StartLine     int     `json:"start_line"`
	EndLine       int     `json:"end_line"`
	SourceContent string  `json:"source_content"`
	TargetContent string  `json:"target_content"`
	Similarity    float64 `json:"similarity"`
}

type ConflictInfo struct {
	FilePath          string          `json:"file_path"`
	SourceVersionHash string          `json:"source_version_hash"`
	TargetVersionHash string          `json:"target_version_hash"`
	Blocks            []ConflictBlock `json:"blocks"`
	Status            Status          `json:"status"`
}

func (c *ConflictInfo) clone() *ConflictInfo {
	out := *c
	out.Blocks = append([]ConflictBlock(nil), c.Blocks...)
	return &out
}

// Resolution tells ResolveConflict how to fill each block of a file.
// CustomLines maps absolute 0-based line indexes to replacement text and is
// only read for the Custom strategy.
type Resolution struct {
	FilePath    string         `json:"file_path"`
	Strategy    Strategy       `json:"strategy"`
	CustomLines map[int]string `json:"custom_lines,omitempty"`
}

// AcceptedBlock is a differing block whose similarity met the threshold.
// Nothing is written for it.
type AcceptedBlock struct {
	FilePath string        `json:"file_path"`
	Block    ConflictBlock `json:"block"`
}

// Report is the outcome of scanning two versions.
type Report struct {
	Source    string          `json:"source"`
	Target    string          `json:"target"`
	Conflicts []*ConflictInfo `json:"conflicts"`
	Accepted  []AcceptedBlock `json:"accepted"`
}

func (r *Report) Clean() bool {
	return len(r.Conflicts) == 0
}
