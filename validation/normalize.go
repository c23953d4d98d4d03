package validation

import (
	"fmt"

	"github.com/liamcoop/watches/watches"
	"github.com/mitchellh/copystructure"
)

// Normalize returns a deep copy of fields with defaults applied:
// include_record becomes false and record_fields an empty list when unset.
// The input is left untouched.
func Normalize(fields watches.Fields) (watches.Fields, error) {
	if fields == nil {
		fields = watches.Fields{}
	}
	copied, err := copystructure.Copy(map[string]any(fields))
	if err != nil {
		return nil, fmt.Errorf("failed to copy fields: %w", err)
	}
	out := watches.Fields(copied.(map[string]any))

	if out[watches.FieldIncludeRecord] == nil {
		out[watches.FieldIncludeRecord] = false
	}
	if out[watches.FieldRecordFields] == nil {
		out[watches.FieldRecordFields] = []any{}
	}
	return out, nil
}
