package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/liamcoop/watches/internal/logger"
	"github.com/liamcoop/watches/query"
	"github.com/liamcoop/watches/store"
	"github.com/liamcoop/watches/watches"
)

const (
	reasonNameMissing   = "Rule name is missing"
	reasonSpaceMissing  = "Please assign a space to the rule"
	reasonNameTaken     = "New rule name has already been used"
	reasonCriteria      = "criteria must exist and be a string"
	reasonIncludeRecord = "include_record should be true or false"
	reasonRecordFields  = "record_fields should be an array of fields"
	reasonResetCriteria = "alert reset should have alert_count, reset_count, reset_units"
	reasonNoActions     = "Rule must have actions"
)

var reasonWatchType = fmt.Sprintf("watch_type must be %s", watchTypeList())

// Searcher is the store lookup used by the uniqueness check.
type Searcher interface {
	Search(ctx context.Context, q string) (*store.SearchResult, error)
}

// Result is the verdict of a validation run.
type Result struct {
	IsValid        bool     `json:"isValid"`
	InvalidReasons []string `json:"invalidReasons"`
}

// Validator checks watch field sets. It holds no per-call state and is
// safe for concurrent use.
type Validator struct {
	searcher Searcher
}

// NewValidator creates a Validator that looks up existing names through
// searcher.
func NewValidator(searcher Searcher) *Validator {
	return &Validator{searcher: searcher}
}

// Validate runs every check against fields in a fixed order and collects
// all failures. isNew enables the name uniqueness lookup. fields is not
// modified.
func (v *Validator) Validate(ctx context.Context, fields watches.Fields, isNew bool) Result {
	var r reasons

	name := fields[watches.FieldName]
	hasName := truthy(name)
	if !hasName {
		r.add(reasonNameMissing)
	}

	if !truthy(fields[watches.FieldSpaces]) {
		r.add(reasonSpaceMissing)
	}

	// a missing name is already reported; looking it up would match every
	// watch of the owner
	if isNew && hasName {
		if reason := v.checkUniqueName(ctx, fields); reason != "" {
			r.add(reason)
		}
	}

	if wt, ok := fields[watches.FieldWatchType].(string); !ok {
		r.add(reasonWatchType)
	} else if _, ok := watches.ParseWatchType(wt); !ok {
		r.add(reasonWatchType)
	}

	if s, ok := fields[watches.FieldCriteria].(string); !ok || s == "" {
		r.add(reasonCriteria)
	}

	if ir, ok := present(fields, watches.FieldIncludeRecord); ok && !isBool(ir) {
		r.add(reasonIncludeRecord)
	}

	if rf, ok := present(fields, watches.FieldRecordFields); ok && !isSlice(rf) {
		r.add(reasonRecordFields)
	}

	if rc, ok := present(fields, watches.FieldResetCriteria); ok && !hasResetKeys(rc) {
		r.add(reasonResetCriteria)
	}

	actions := fields[watches.FieldActions]
	if length(actions) == 0 {
		r.add(reasonNoActions)
	}
	for _, action := range elements(actions) {
		r.addAll(ValidateAction(action))
	}

	return Result{
		IsValid:        len(r) == 0,
		InvalidReasons: r,
	}
}

// checkUniqueName returns a reason when the owner already has a watch with
// the same name. A failed lookup is reported as a reason carrying the store
// error text.
func (v *Validator) checkUniqueName(ctx context.Context, fields watches.Fields) string {
	nameFilter := query.Filter{Field: watches.FieldName, Value: fields[watches.FieldName]}

	var q string
	if userID, ok := fields[watches.FieldUserID].(string); ok && userID != "" {
		q = query.BuildFilterQuery(query.Identity(userID), query.Filters{nameFilter})
	} else {
		q = query.BuildFilterQuery(nameFilter, nil)
	}

	result, err := v.searcher.Search(ctx, q)
	if err != nil {
		logger.Error("name uniqueness lookup failed", "query", q, "error", err)
		return err.Error()
	}
	if result != nil && result.Total > 0 {
		return reasonNameTaken
	}
	return ""
}

func hasResetKeys(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, key := range watches.ResetCriteriaKeys {
		if _, ok := m[key]; !ok {
			return false
		}
	}
	return true
}

func watchTypeList() string {
	names := make([]string, len(watches.WatchTypes))
	for i, wt := range watches.WatchTypes {
		names[i] = strings.ToLower(string(wt))
	}
	return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
}
