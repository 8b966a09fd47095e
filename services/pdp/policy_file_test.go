package pdp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/arp-template-pdp/services"
)

func writePolicy(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPolicyFile(t *testing.T) {
	tests := []struct {
		name            string
		file            string
		content         string
		wantDeny        []string
		wantApproval    []string
		wantErr         error
		wantErrTypeOnly services.ErrorType
	}{
		{
			name:         "both lists",
			file:         "policy.json",
			content:      `{"deny_actions":["rm"],"require_approval_actions":["deploy","rm"]}`,
			wantDeny:     []string{"rm"},
			wantApproval: []string{"deploy", "rm"},
		},
		{
			name:    "empty object",
			file:    "policy.json",
			content: `{}`,
		},
		{
			name:    "null lists",
			file:    "policy.json",
			content: `{"deny_actions":null,"require_approval_actions":null}`,
		},
		{
			name:     "unknown keys ignored",
			file:     "policy.json",
			content:  `{"deny_actions":["x"],"owner":"ops"}`,
			wantDeny: []string{"x"},
		},
		{
			name:         "yaml document",
			file:         "policy.yaml",
			content:      "deny_actions:\n  - drop.db\nrequire_approval_actions:\n  - deploy\n",
			wantDeny:     []string{"drop.db"},
			wantApproval: []string{"deploy"},
		},
		{
			name:     "yml extension",
			file:     "policy.YML",
			content:  "deny_actions: [a]\n",
			wantDeny: []string{"a"},
		},
		{
			name:    "array top level",
			file:    "policy.json",
			content: `["x"]`,
			wantErr: services.ErrPolicyFileNotObject,
		},
		{
			name:    "string top level",
			file:    "policy.json",
			content: `"deny"`,
			wantErr: services.ErrPolicyFileNotObject,
		},
		{
			name:    "null top level",
			file:    "policy.json",
			content: `null`,
			wantErr: services.ErrPolicyFileNotObject,
		},
		{
			name:    "yaml scalar top level",
			file:    "policy.yaml",
			content: "just a string\n",
			wantErr: services.ErrPolicyFileNotObject,
		},
		{
			name:    "invalid json",
			file:    "policy.json",
			content: `{"deny_actions":`,
			wantErr: services.ErrPolicyFileMalformed,
		},
		{
			name:    "empty file",
			file:    "policy.json",
			content: ``,
			wantErr: services.ErrPolicyFileMalformed,
		},
		{
			name:    "trailing document",
			file:    "policy.json",
			content: `{} {}`,
			wantErr: services.ErrPolicyFileMalformed,
		},
		{
			name:    "non string member",
			file:    "policy.json",
			content: `{"deny_actions":["x", 3]}`,
			wantErr: services.ErrPolicyFileInvalid,
		},
		{
			name:    "list is a string",
			file:    "policy.json",
			content: `{"require_approval_actions":"deploy"}`,
			wantErr: services.ErrPolicyFileInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePolicy(t, tt.file, tt.content)

			policy, err := LoadPolicyFile(path)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, services.IsDataFormatError(err))
				assert.Nil(t, policy)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, policy)
			assert.ElementsMatch(t, tt.wantDeny, policy.DenyActions)
			assert.ElementsMatch(t, tt.wantApproval, policy.RequireApprovalActions)
		})
	}
}

func TestLoadPolicyFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")

	policy, err := LoadPolicyFile(path)
	require.Error(t, err)
	assert.Nil(t, policy)
	assert.ErrorIs(t, err, services.ErrPolicyFileUnreadable)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, services.IsInternalError(err))
	assert.Equal(t, path, services.GetErrorDetails(err)["path"])
}

func TestLoadPolicyFile_ReadsFreshEachCall(t *testing.T) {
	path := writePolicy(t, "policy.json", `{"deny_actions":["a"]}`)

	first, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.True(t, first.DenySet().Contains("a"))

	require.NoError(t, os.WriteFile(path, []byte(`{"deny_actions":["b"]}`), 0o600))

	second, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.False(t, second.DenySet().Contains("a"))
	assert.True(t, second.DenySet().Contains("b"))
}

func TestNotObjectErrorCarriesType(t *testing.T) {
	_, err := ParsePolicyFile([]byte(`[1,2]`), false)
	require.Error(t, err)
	assert.Equal(t, "array", services.GetErrorDetails(err)["type"])
}

func TestSchemaErrorReferencesStableSchemaID(t *testing.T) {
	_, err := ParsePolicyFile([]byte(`{"deny_actions":[1,"x"]}`), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrPolicyFileInvalid)
	assert.Contains(t, err.Error(), policySchemaURL)
	assert.NotContains(t, err.Error(), "file://")
}
