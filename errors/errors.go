package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound covers both a missing resource and an unauthorized one,
	// so a non-owner cannot distinguish "absent" from "not yours".
	ErrNotFound = fmt.Errorf("not found")

	// ErrCannotRemoveCreator guards the room invariant: the creator stays
	// a member for as long as the room exists.
	ErrCannotRemoveCreator = fmt.Errorf("trying to remove creator from members")

	ErrInvalidDirection   = fmt.Errorf("invalid range direction")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrDeliveryBufferFull = fmt.Errorf("delivery buffer full")
)

// ValidationError carries one message per offending field. It is returned
// to the caller as-is and never logged as a server failure.
type ValidationError struct {
	Fields map[string]string
}

func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps err into a *ValidationError when possible.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	ok := errors.As(err, &v)
	return v, ok
}
