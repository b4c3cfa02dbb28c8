// internal/diff/diff.go
package diff

import (
	"vcs/internal/logging"

	"go.uber.org/zap"
)

// Kind classifies a changed line.
type Kind string

const (
	Addition     Kind = "ADDITION"
	Deletion     Kind = "DELETION"
	Modification Kind = "MODIFICATION"
)

// LineChange is a single classified change. LineNumber is 1-based and refers
// to the new side for additions and to the old side otherwise.
type LineChange struct {
	LineNumber int     `json:"line_number"`
	OldContent *string `json:"old_content,omitempty"`
	NewContent *string `json:"new_content,omitempty"`
	Kind       Kind    `json:"kind"`
}

// ChangedLines holds the changes for one file, each list in processing order.
type ChangedLines struct {
	Additions     []LineChange `json:"additions"`
	Deletions     []LineChange `json:"deletions"`
	Modifications []LineChange `json:"modifications"`
}

func (c *ChangedLines) IsEmpty() bool {
	return len(c.Additions) == 0 && len(c.Deletions) == 0 && len(c.Modifications) == 0
}

func (c *ChangedLines) Total() int {
	return len(c.Additions) + len(c.Deletions) + len(c.Modifications)
}

// Result maps file paths to their changes. Paths without changes are absent.
type Result struct {
	FromLabel string                   `json:"from"`
	ToLabel   string                   `json:"to"`
	Changes   map[string]*ChangedLines `json:"changes"`
}

func newResult(from, to string) *Result {
	return &Result{
		FromLabel: from,
		ToLabel:   to,
		Changes:   make(map[string]*ChangedLines),
	}
}

func (r *Result) HasChanges() bool {
	return len(r.Changes) > 0
}

func (r *Result) TotalChanges() int {
	total := 0
	for _, c := range r.Changes {
		total += c.Total()
	}
	return total
}

type Options struct {
	Versions VersionSource
	Blobs    BlobSource
	Tree     WorkingTree
	Logger   *zap.Logger
}

// Engine computes line-level diffs. Diff needs no collaborators; the
// version and working-file operations need the ones in Options.
type Engine struct {
	versions VersionSource
	blobs    BlobSource
	tree     WorkingTree
	logger   *zap.Logger
}

func NewEngine(opts Options) *Engine {
	return &Engine{
		versions: opts.Versions,
		blobs:    opts.Blobs,
		tree:     opts.Tree,
		logger:   logging.OrNop(opts.Logger),
	}
}

// Diff classifies the differences between two line sequences.
func (e *Engine) Diff(oldLines, newLines []string) ChangedLines {
	dp := buildLCSMatrix(oldLines, newLines)
	ops := walkOps(oldLines, newLines, dp)

	result := ChangedLines{
		Additions:     []LineChange{},
		Deletions:     []LineChange{},
		Modifications: []LineChange{},
	}
	for _, block := range editBlocks(ops) {
		classifyBlock(block, &result)
	}
	return result
}
