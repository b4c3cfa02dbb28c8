package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"vcs/internal/errors"
	"vcs/internal/merge"
	"vcs/shared/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCreateVersion(t *testing.T) {
	hash := utils.HashContent([]byte("x"))

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"message":"m","file_hashes":{"a.txt":"` + hash + `"}}`, false},
		{"empty message allowed by decoder", `{"message":"","file_hashes":{}}`, false},
		{"missing message", `{"file_hashes":{}}`, true},
		{"bad hash", `{"message":"m","file_hashes":{"a.txt":"nope"}}`, true},
		{"parent path", `{"message":"m","file_hashes":{"../x.txt":"` + hash + `"}}`, true},
		{"absolute path", `{"message":"m","file_hashes":{"/tmp/x.txt":"` + hash + `"}}`, true},
		{"unclean path", `{"message":"m","file_hashes":{"a/../x.txt":"` + hash + `"}}`, true},
		{"empty path", `{"message":"m","file_hashes":{"":"` + hash + `"}}`, true},
		{"unknown field", `{"message":"m","extra":1}`, true},
		{"malformed", `{`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/versions", strings.NewReader(tt.body))
			var v CreateVersionRequest
			err := DecodeJSON(req, &v)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestResolveRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/conflicts/resolve",
		strings.NewReader(`{"path":"f.txt","strategy":"custom","custom_lines":{"0":"resolved"}}`))

	var r ResolveRequest
	require.NoError(t, DecodeJSON(req, &r))

	res := r.Resolution()
	assert.Equal(t, merge.Custom, res.Strategy)
	assert.Equal(t, "resolved", res.CustomLines[0])

	bad := &ResolveRequest{Path: "f.txt", Strategy: "both"}
	assert.True(t, errors.IsType(bad.Validate(), errors.ErrorTypeInvalidInput))

	escaping := &ResolveRequest{Path: "../f.txt", Strategy: "keep-source"}
	assert.True(t, errors.IsType(escaping.Validate(), errors.ErrorTypeInvalidInput))

	missing := &MergeRequest{Source: "a"}
	assert.True(t, errors.IsType(missing.Validate(), errors.ErrorTypeInvalidInput))
}
