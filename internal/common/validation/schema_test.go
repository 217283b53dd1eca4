package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "roommate-match-workers/internal/common/errors"
)

var testSchema = MustCompile("respond", `{
  "type": "object",
  "required": ["suggestionId", "userId", "action"],
  "properties": {
    "suggestionId": {"type": "string", "minLength": 1},
    "userId": {"type": "string", "minLength": 1},
    "action": {"type": "string", "enum": ["accept", "decline"]}
  }
}`)

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "valid", doc: `{"suggestionId":"s1","userId":"u1","action":"accept"}`},
		{name: "missing field", doc: `{"suggestionId":"s1","action":"accept"}`, wantErr: "userId"},
		{name: "bad enum", doc: `{"suggestionId":"s1","userId":"u1","action":"maybe"}`, wantErr: "action"},
		{name: "not json", doc: `{`, wantErr: "malformed input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testSchema.Validate(tt.doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
			stdErr, _ := apperrors.As(err)
			assert.Contains(t, stdErr.Details, tt.wantErr)
		})
	}
}

func TestMustCompile_PanicsOnBadSchema(t *testing.T) {
	assert.Panics(t, func() { MustCompile("bad", `{"type": 12}`) })
}

type respondRequest struct {
	SuggestionID string `validate:"required,uuid"`
	Action       string `validate:"required,oneof=accept decline"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(respondRequest{SuggestionID: "0b6c1f8e-5f54-4b8e-9b1e-3f3d2f9f4a10", Action: "decline"}))

	err := Struct(respondRequest{SuggestionID: "nope", Action: "later"})
	require.Error(t, err)
	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Contains(t, stdErr.Details, "SuggestionID failed on 'uuid'")
	assert.Contains(t, stdErr.Details, "Action failed on 'oneof'")
}
