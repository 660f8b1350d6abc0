package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ValidationError_Accumulates_Fields(t *testing.T) {
	req := require.New(t)

	v := &ValidationError{}
	req.True(v.Empty())

	v.Add("caption", "this field is required")
	v.Add("avatar", "this extension is not allowed")
	req.False(v.Empty())
	req.Equal("this field is required", v.Fields["caption"])

	// Error output is deterministic regardless of insertion order.
	req.Equal("validation failed: avatar: this extension is not allowed; caption: this field is required", v.Error())
}

func Test_AsValidation_Unwraps(t *testing.T) {
	req := require.New(t)

	base := NewValidation("text", "this field is required")
	wrapped := fmt.Errorf("append failed: %w", base)

	v, ok := AsValidation(wrapped)
	req.True(ok)
	req.Equal("this field is required", v.Fields["text"])

	_, ok = AsValidation(ErrNotFound)
	req.False(ok)
}
