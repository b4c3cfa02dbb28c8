// internal/version/types.go
package version

import (
	"maps"
	"time"
)

// Version is an immutable snapshot mapping file paths to blob hashes.
type Version struct {
	ID         string            `json:"id"`
	Message    string            `json:"message"`
	Author     string            `json:"author"`
	Timestamp  time.Time         `json:"timestamp"`
	FileHashes map[string]string `json:"file_hashes"`
}

// FileHash returns the blob hash recorded for path.
func (v *Version) FileHash(path string) (string, bool) {
	h, ok := v.FileHashes[path]
	return h, ok
}

func (v *Version) clone() *Version {
	c := *v
	c.FileHashes = maps.Clone(v.FileHashes)
	if c.FileHashes == nil {
		c.FileHashes = map[string]string{}
	}
	return &c
}
