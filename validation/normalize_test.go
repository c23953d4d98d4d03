package validation

import (
	"testing"

	"github.com/liamcoop/watches/watches"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_AppliesDefaults(t *testing.T) {
	fields := watches.Fields{"name": "w"}

	out, err := Normalize(fields)
	require.NoError(t, err)

	assert.Equal(t, false, out["include_record"])
	assert.Equal(t, []any{}, out["record_fields"])
	assert.NotContains(t, fields, "include_record")
	assert.NotContains(t, fields, "record_fields")
}

func TestNormalize_KeepsSuppliedValues(t *testing.T) {
	fields := watches.Fields{"include_record": true, "record_fields": []any{"ip"}}

	out, err := Normalize(fields)
	require.NoError(t, err)

	assert.Equal(t, true, out["include_record"])
	assert.Equal(t, []any{"ip"}, out["record_fields"])
}

func TestNormalize_DeepCopies(t *testing.T) {
	actions := []any{map[string]any{"action_type": "email"}}
	fields := watches.Fields{"actions": actions}

	out, err := Normalize(fields)
	require.NoError(t, err)

	out["actions"].([]any)[0].(map[string]any)["action_type"] = "webhook"
	assert.Equal(t, "email", actions[0].(map[string]any)["action_type"])
}

func TestNormalize_Nil(t *testing.T) {
	out, err := Normalize(nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
