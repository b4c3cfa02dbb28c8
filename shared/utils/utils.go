package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path"
	"path/filepath"
	"strings"

	vcserrors "vcs/internal/errors"
)

func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// HashFile returns the content hash of the file at path.
func HashFile(path string) (string, []byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return HashContent(content), content, nil
}

// IsHash reports whether s looks like a lowercase hex SHA-256 digest.
func IsHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}

// CleanRepoPath validates a slash-separated path recorded in a version and
// returns it cleaned. Empty, absolute and root-escaping paths are rejected.
func CleanRepoPath(p string) (string, error) {
	if p == "" {
		return "", vcserrors.InvalidInput("file path cannot be empty")
	}
	slashed := filepath.ToSlash(p)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", vcserrors.InvalidInput("absolute path not allowed: " + p)
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", vcserrors.InvalidInput("path outside repository: " + p)
	}
	return cleaned, nil
}

// JoinRepoPath maps a repository path to its location under root.
func JoinRepoPath(root, p string) (string, error) {
	rel, err := CleanRepoPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}
