// Package validation checks watch field sets before they are persisted.
//
// Validation never stops at the first defect: every check runs and each
// failure appends a human-readable reason, so a client can fix all problems
// in one round trip. Checking is free of side effects; defaults are applied
// separately by Normalize.
package validation
