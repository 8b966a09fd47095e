package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	Action string `json:"action" validate:"required,notblank,max=8"`
	Mode   string `json:"mode,omitempty" validate:"omitempty,oneof=allow_all file"`
	Note   string `validate:"omitempty,min=2"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      testRequest
		wantFields map[string]string
	}{
		{
			name:  "valid",
			input: testRequest{Action: "run", Mode: "file"},
		},
		{
			name:       "missing action",
			input:      testRequest{},
			wantFields: map[string]string{"action": "action is required"},
		},
		{
			name:       "blank action",
			input:      testRequest{Action: "   "},
			wantFields: map[string]string{"action": "action is required"},
		},
		{
			name:       "too long",
			input:      testRequest{Action: "123456789"},
			wantFields: map[string]string{"action": "action must be at most 8"},
		},
		{
			name:       "oneof and min use field names",
			input:      testRequest{Action: "a", Mode: "bogus", Note: "x"},
			wantFields: map[string]string{"mode": "mode must be one of: allow_all file", "Note": "Note must be at least 2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, "Validation failed", err.Error())
			assert.Equal(t, tt.wantFields, GetValidationFields(err))
		})
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	err := ValidateStruct("not a struct")
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
}

func TestGetValidationFields(t *testing.T) {
	assert.Nil(t, GetValidationFields(errors.New("plain")))
	assert.False(t, IsValidationError(nil))
}

func TestValidateOneOf(t *testing.T) {
	assert.NoError(t, ValidateOneOf("json", "format", []string{"json", "text"}))

	err := ValidateOneOf("xml", "format", []string{"json", "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format must be one of")
}
