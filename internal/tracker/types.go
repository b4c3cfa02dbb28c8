// internal/tracker/types.go
package tracker

import "time"

type Status string

const (
	StatusUntracked  Status = "UNTRACKED"
	StatusTracked    Status = "TRACKED"
	StatusModified   Status = "MODIFIED"
	StatusDeleted    Status = "DELETED"
	StatusConflicted Status = "CONFLICTED"
)

// FileState is the last stored state of a tracked file. Hash, Size and
// ModTime describe the stored blob; Status compares it with the disk.
type FileState struct {
	Path    string    `json:"path"`
	Hash    string    `json:"hash"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Status  Status    `json:"status"`
}

func (f *FileState) GetID() string {
	return f.Path
}

// BlobWriter stores file content and returns its hash.
type BlobWriter interface {
	Put(content []byte) (string, error)
}

// Listener is notified after a file state changes.
type Listener func(path string, state FileState)
