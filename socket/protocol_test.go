package socket

import (
	"fmt"
	"log/slog"
	"testing"

	"chat-server/errors"

	"github.com/stretchr/testify/require"
)

func Test_ErrorResponse_Mapping(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	resp := errorResponse(log, 7, errors.NewValidation("caption", "this field is required"))
	req.Equal(int64(7), resp.Seq)
	req.False(resp.Success)
	req.Equal("this field is required", resp.Errors["caption"])
	req.Empty(resp.Msg)

	resp = errorResponse(log, 8, errors.ErrNotFound)
	req.Equal("chat not found", resp.Msg)

	resp = errorResponse(log, 9, errors.ErrCannotRemoveCreator)
	req.Equal("creator cannot leave chat", resp.Msg)

	resp = errorResponse(log, 10, fmt.Errorf("wrapped: %w", errors.ErrInvalidDirection))
	req.Equal("direction must be lower or greater", resp.Msg)

	// Unexpected failures are reported without internal detail.
	resp = errorResponse(log, 11, fmt.Errorf("badger exploded"))
	req.Equal("internal server error", resp.Msg)
	req.Empty(resp.Errors)
}
