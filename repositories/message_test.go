package repositories

import (
	"fmt"
	"log/slog"
	"testing"

	"chat-server/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *MessageLog {
	t.Helper()
	log := NewMessageLog(openTestDB(t), slog.Default())
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func appendN(t *testing.T, log *MessageLog, roomID string, n int) []DiskMessage {
	t.Helper()
	records := make([]DiskMessage, 0, n)
	for i := 1; i <= n; i++ {
		record, err := log.Append(roomID, fmt.Sprintf("user_%d", i), fmt.Sprintf("Message %d", i))
		require.NoError(t, err)
		records = append(records, record)
	}
	return records
}

func Test_Append_Assigns_Increasing_Ids(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)
	roomID := uuid.NewString()

	records := appendN(t, log, roomID, 5)
	for i := 1; i < len(records); i++ {
		// String comparison is enough: ids are fixed-width decimals.
		req.Greater(records[i].ID, records[i-1].ID)
	}
}

func Test_Append_Rejects_Empty_Content(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)

	_, err := log.Append(uuid.NewString(), "someone", "")
	v, ok := errors.AsValidation(err)
	req.True(ok)
	req.Equal("this field is required", v.Fields["text"])
}

func Test_Range_Recent_Tail_Is_Ascending(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)
	roomID := uuid.NewString()
	appendN(t, log, roomID, 10)

	fetched, err := log.Range(roomID, nil, nil, lo.ToPtr(4))
	req.NoError(err)
	req.Len(fetched, 4)
	req.Equal("Message 7", fetched[0].Content)
	req.Equal("Message 10", fetched[3].Content)
}

func Test_Range_Unbounded_Returns_Everything(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)
	roomID := uuid.NewString()
	appendN(t, log, roomID, 6)

	fetched, err := log.Range(roomID, nil, nil, nil)
	req.NoError(err)
	req.Len(fetched, 6)
	req.Equal("Message 1", fetched[0].Content)
	req.Equal("Message 6", fetched[5].Content)
}

func Test_Range_Anchored_Pagination(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)
	roomID := uuid.NewString()
	records := appendN(t, log, roomID, 5)
	anchor := records[3].ID // message 4

	// Older than the anchor, newest first, anchor excluded.
	older, err := log.Range(roomID, lo.ToPtr(DirectionOlder), &anchor, lo.ToPtr(2))
	req.NoError(err)
	req.Len(older, 2)
	req.Equal("Message 3", older[0].Content)
	req.Equal("Message 2", older[1].Content)

	// Newer than the anchor, oldest first, anchor excluded.
	newer, err := log.Range(roomID, lo.ToPtr(DirectionNewer), &anchor, lo.ToPtr(2))
	req.NoError(err)
	req.Len(newer, 1)
	req.Equal("Message 5", newer[0].Content)
}

func Test_Range_Anchor_At_Boundaries(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)
	roomID := uuid.NewString()
	records := appendN(t, log, roomID, 3)

	older, err := log.Range(roomID, lo.ToPtr(DirectionOlder), &records[0].ID, lo.ToPtr(10))
	req.NoError(err)
	req.Empty(older)

	newer, err := log.Range(roomID, lo.ToPtr(DirectionNewer), &records[2].ID, lo.ToPtr(10))
	req.NoError(err)
	req.Empty(newer)
}

func Test_Range_Invalid_Direction(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)

	_, err := log.Range(uuid.NewString(), lo.ToPtr("sideways"), lo.ToPtr("0"), nil)
	req.ErrorIs(err, errors.ErrInvalidDirection)
}

func Test_Range_Directed_Without_Anchor(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)
	roomID := uuid.NewString()
	appendN(t, log, roomID, 3)

	for _, direction := range []string{DirectionOlder, DirectionNewer} {
		_, err := log.Range(roomID, lo.ToPtr(direction), nil, lo.ToPtr(2))
		v, ok := errors.AsValidation(err)
		req.True(ok)
		req.Equal("this field is required", v.Fields["anchor"])
	}
}

func Test_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)
	roomA := uuid.NewString()
	roomB := uuid.NewString()
	appendN(t, log, roomA, 3)
	appendN(t, log, roomB, 2)

	fetched, err := log.Range(roomA, nil, nil, nil)
	req.NoError(err)
	req.Len(fetched, 3)
	for _, record := range fetched {
		req.Equal(roomA, record.Room)
	}
}

func Test_Purge_Removes_The_Whole_Log(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)
	roomID := uuid.NewString()
	appendN(t, log, roomID, 4)

	req.NoError(log.Purge(roomID))

	fetched, err := log.Range(roomID, nil, nil, nil)
	req.NoError(err)
	req.Empty(fetched)

	// The log stays writable after a purge.
	_, err = log.Append(roomID, "someone", "back again")
	req.NoError(err)
}

func Test_Purge_Handles_A_Large_Log(t *testing.T) {
	req := require.New(t)
	log := newTestLog(t)
	roomID := uuid.NewString()
	appendN(t, log, roomID, 500)

	req.NoError(log.Purge(roomID))

	fetched, err := log.Range(roomID, nil, nil, nil)
	req.NoError(err)
	req.Empty(fetched)
}
