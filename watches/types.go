// Package watches defines the alert-definition documents ("watches") managed
// by the API and the notification actions attached to them.
package watches

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Field names of a watch document.
const (
	FieldID            = "id"
	FieldUUID          = "uuid"
	FieldName          = "name"
	FieldSpaces        = "spaces"
	FieldWatchType     = "watch_type"
	FieldCriteria      = "criteria"
	FieldAlertMessage  = "alert_message"
	FieldIncludeRecord = "include_record"
	FieldRecordFields  = "record_fields"
	FieldResetCriteria = "reset_criteria"
	FieldActions       = "actions"
	FieldUserID        = "user_id"
	FieldActionType    = "action_type"
)

// ResetCriteriaKeys lists the keys a reset_criteria object must carry.
var ResetCriteriaKeys = []string{"alert_count", "reset_count", "reset_units"}

// Fields is a raw, untyped watch field set as received from a client or
// read back from the store.
type Fields map[string]any

// Clone returns a shallow copy of the field set.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// WatchType enumerates the supported watch kinds.
type WatchType string

const (
	WatchTypeExpression WatchType = "EXPRESSION"
	WatchTypeGeo        WatchType = "GEO"
	WatchTypeFieldMatch WatchType = "FIELDMATCH"
)

// WatchTypes lists every valid watch type.
var WatchTypes = []WatchType{WatchTypeFieldMatch, WatchTypeGeo, WatchTypeExpression}

// ParseWatchType case-normalizes s into a WatchType.
func ParseWatchType(s string) (WatchType, bool) {
	wt := WatchType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range WatchTypes {
		if wt == known {
			return wt, true
		}
	}
	return "", false
}

// ResetCriteria controls when a firing watch resets.
type ResetCriteria struct {
	AlertCount any    `json:"alert_count" mapstructure:"alert_count"`
	ResetCount any    `json:"reset_count" mapstructure:"reset_count"`
	ResetUnits string `json:"reset_units" mapstructure:"reset_units"`
}

// Watch is the typed view of a stored watch document.
type Watch struct {
	ID            string         `json:"id" mapstructure:"id"`
	UUID          string         `json:"uuid,omitempty" mapstructure:"uuid"`
	Name          string         `json:"name" mapstructure:"name"`
	Spaces        []string       `json:"spaces" mapstructure:"spaces"`
	WatchType     WatchType      `json:"watch_type" mapstructure:"watch_type"`
	Criteria      string         `json:"criteria" mapstructure:"criteria"`
	AlertMessage  string         `json:"alert_message,omitempty" mapstructure:"alert_message"`
	IncludeRecord bool           `json:"include_record" mapstructure:"include_record"`
	RecordFields  []string       `json:"record_fields" mapstructure:"record_fields"`
	ResetCriteria *ResetCriteria `json:"reset_criteria,omitempty" mapstructure:"reset_criteria"`
	Actions       []Action       `json:"actions" mapstructure:"-"`
	UserID        string         `json:"user_id" mapstructure:"user_id"`
}

// Decode converts a raw field set into a Watch. Fields are expected to have
// passed validation; decoding fails on shapes validation would reject.
func Decode(fields Fields) (*Watch, error) {
	raw := fields.Clone()
	// spaces may be stored as a single tag
	if s, ok := raw[FieldSpaces].(string); ok {
		raw[FieldSpaces] = []string{s}
	}

	var w Watch
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &w,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(raw)); err != nil {
		return nil, fmt.Errorf("failed to decode watch: %w", err)
	}
	if wt, ok := ParseWatchType(string(w.WatchType)); ok {
		w.WatchType = wt
	}

	rawActions, _ := raw[FieldActions].([]any)
	for i, ra := range rawActions {
		m, ok := ra.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("action %d is not an object", i)
		}
		action, err := DecodeAction(m)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		w.Actions = append(w.Actions, action)
	}

	return &w, nil
}
