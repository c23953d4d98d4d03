package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/liamcoop/watches/watches"
)

const (
	reasonMissingActionType = "Each action must specify an action_type"
	reasonEmailMissing      = "the email action's subject, to, or from field is missing"
	reasonEmailNotString    = "the email action's subject and from must be a string"
	reasonEmailBody         = "email body must be a string"
	reasonEmailMessage      = "email message must be a string"
	reasonEmailAddress      = "email from and to addresses must have a valid format"
	reasonWebhook           = "webhook url, token, and message must be defined"
)

var emailPattern = regexp.MustCompile(`(?i)^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)

// ValidateAction returns the reasons a single raw action is invalid. An
// action without a recognizable action_type yields exactly one reason and
// no field checks.
func ValidateAction(raw any) []string {
	action, ok := raw.(map[string]any)
	if !ok {
		return []string{reasonMissingActionType}
	}

	at, err := watches.ParseActionType(action[watches.FieldActionType])
	if err != nil {
		var unknown *watches.UnknownActionTypeError
		if errors.As(err, &unknown) {
			return []string{fmt.Sprintf("unknown action_type %q, must be email or webhook", unknown.ActionType)}
		}
		return []string{reasonMissingActionType}
	}

	switch at {
	case watches.ActionTypeEmail:
		return ValidateEmail(action)
	case watches.ActionTypeWebhook:
		return ValidateWebhook(action)
	}
	return []string{reasonMissingActionType}
}

// ValidateEmail checks an email action. Every failing rule contributes its
// own reason; all malformed addresses share one.
func ValidateEmail(action map[string]any) []string {
	var r reasons

	subject, hasSubject := present(action, "subject")
	to, hasTo := present(action, "to")
	from, hasFrom := present(action, "from")

	if !hasSubject || !hasTo || !hasFrom {
		r.add(reasonEmailMissing)
	}
	if !isString(subject) || !isString(from) {
		r.add(reasonEmailNotString)
	}
	if body := action["body"]; truthy(body) && !isString(body) {
		r.add(reasonEmailBody)
	}
	if message := action["message"]; truthy(message) && !isString(message) {
		r.add(reasonEmailMessage)
	}

	var addresses []any
	if truthy(from) {
		addresses = append(addresses, from)
	}
	switch t := to.(type) {
	case []any:
		addresses = append(addresses, t...)
	case []string:
		for _, a := range t {
			addresses = append(addresses, a)
		}
	default:
		if truthy(t) {
			addresses = append(addresses, t)
		}
	}
	for _, a := range addresses {
		if !validAddress(a) {
			r.add(reasonEmailAddress)
			break
		}
	}

	return r
}

// ValidateWebhook checks a webhook action. url, token and message are
// checked together and produce at most one reason.
func ValidateWebhook(action map[string]any) []string {
	for _, key := range []string{"url", "token", "message"} {
		if s, ok := action[key].(string); !ok || s == "" {
			return []string{reasonWebhook}
		}
	}
	return nil
}

func validAddress(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return emailPattern.MatchString(strings.TrimSpace(s))
}
