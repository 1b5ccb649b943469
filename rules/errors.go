package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when no rule is stored under a name.
	ErrNotFound = errors.New("rule not found")

	// ErrValidation marks errors caused by invalid caller input.
	ErrValidation = errors.New("validation failed")
)

// Validation error codes.
const (
	CodeMissingName      = "MISSING_NAME"
	CodeDuplicateAlias   = "DUPLICATE_ALIAS"
	CodeInvalidAlias     = "INVALID_ALIAS"
	CodeInvalidMapping   = "INVALID_MAPPING"
	CodeUnknownAlias     = "UNKNOWN_ALIAS"
	CodeUnknownOutput    = "UNKNOWN_OUTPUT"
	CodeUnknownInput     = "UNKNOWN_INPUT"
	CodeUnknownRuleInput = "UNKNOWN_RULE_INPUT"
	CodeUnknownTask      = "UNKNOWN_TASK"
	CodeInvalidValue     = "INVALID_VALUE"
)

// ValidationError is a single problem found in caller input.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Mapping string `json:"mapping,omitempty"`
	Field   string `json:"field,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Mapping != "" {
		return fmt.Sprintf("%s: %s (in %q)", e.Code, e.Message, e.Mapping)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationErrors is the complete list of problems found in one request.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(v), strings.Join(msgs, "; "))
}

// Is lets callers match any ValidationErrors with errors.Is(err, ErrValidation).
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Messages flattens the errors for response bodies.
func (v ValidationErrors) Messages() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Message
	}
	return out
}

// NotFoundError identifies the rule that could not be found.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("rule %s not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UpstreamError wraps a failure of the catalog or the store. Operations that
// hit one abort without writing.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err was caused by a catalog or store failure.
func IsUpstream(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}

// DegradedResult records a non-fatal enrichment failure. The write that
// produced it still happened.
type DegradedResult struct {
	Component string `json:"component"`
	Reason    string `json:"reason"`
}
