package watches

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ActionType tags the Action variants.
type ActionType string

const (
	ActionTypeEmail   ActionType = "email"
	ActionTypeWebhook ActionType = "webhook"
)

// ErrMissingActionType is returned for an action without an action_type.
var ErrMissingActionType = errors.New("action_type is missing")

// UnknownActionTypeError is returned for an action_type that names no
// known variant.
type UnknownActionTypeError struct {
	ActionType string
}

func (e *UnknownActionTypeError) Error() string {
	return fmt.Sprintf("unknown action_type %q", e.ActionType)
}

// ParseActionType resolves the action_type tag of a raw action. Matching is
// case-insensitive.
func ParseActionType(raw any) (ActionType, error) {
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", ErrMissingActionType
	}
	switch at := ActionType(strings.ToLower(s)); at {
	case ActionTypeEmail, ActionTypeWebhook:
		return at, nil
	}
	return "", &UnknownActionTypeError{ActionType: s}
}

// Action is a notification directive attached to a watch. It is a closed
// sum type: EmailAction and WebhookAction are its only variants.
type Action interface {
	Type() ActionType
}

// EmailAction sends an email when the watch fires.
type EmailAction struct {
	ActionType ActionType `json:"action_type" mapstructure:"-"`
	To         []string   `json:"to" mapstructure:"to"`
	Bcc        []string   `json:"bcc,omitempty" mapstructure:"bcc"`
	From       string     `json:"from" mapstructure:"from"`
	Subject    string     `json:"subject" mapstructure:"subject"`
	Body       string     `json:"body,omitempty" mapstructure:"body"`
	Message    string     `json:"message,omitempty" mapstructure:"message"`
}

func (EmailAction) Type() ActionType { return ActionTypeEmail }

// WebhookAction posts a message to a URL when the watch fires.
type WebhookAction struct {
	ActionType ActionType `json:"action_type" mapstructure:"-"`
	URL        string     `json:"url" mapstructure:"url"`
	Token      string     `json:"token" mapstructure:"token"`
	Message    string     `json:"message" mapstructure:"message"`
}

func (WebhookAction) Type() ActionType { return ActionTypeWebhook }

// DecodeAction converts a raw action into its typed variant.
func DecodeAction(raw map[string]any) (Action, error) {
	at, err := ParseActionType(raw[FieldActionType])
	if err != nil {
		return nil, err
	}

	src := make(map[string]any, len(raw))
	for k, v := range raw {
		src[k] = v
	}
	// to may be a single address
	if s, ok := src["to"].(string); ok {
		src["to"] = []string{s}
	}

	switch at {
	case ActionTypeEmail:
		a := &EmailAction{ActionType: at}
		if err := mapstructure.Decode(src, a); err != nil {
			return nil, fmt.Errorf("failed to decode email action: %w", err)
		}
		return a, nil
	case ActionTypeWebhook:
		a := &WebhookAction{ActionType: at}
		if err := mapstructure.Decode(src, a); err != nil {
			return nil, fmt.Errorf("failed to decode webhook action: %w", err)
		}
		return a, nil
	}
	return nil, &UnknownActionTypeError{ActionType: string(at)}
}
