//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_log.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-server/errors"

	"github.com/dgraph-io/badger/v4"
)

// Range directions, as exposed by the wire protocol. DirectionOlder selects
// messages strictly below the anchor, DirectionNewer strictly above.
const (
	DirectionOlder = "lower"
	DirectionNewer = "greater"
)

// sequenceBandwidth is the number of ids a room sequence leases per fetch.
const sequenceBandwidth = 64

type IMessageLog interface {
	Append(roomID, senderID, content string) (DiskMessage, error)
	Range(roomID string, direction, anchor *string, limit *int) ([]DiskMessage, error)
	Purge(roomID string) error
}

// DiskMessage is the stored representation of a message. ID is a 19-digit
// zero-padded decimal assigned from the room's sequence, so lexicographic
// order of ids equals creation order.
type DiskMessage struct {
	ID      string    `json:"id"`
	Room    string    `json:"room"`
	Sender  string    `json:"sender"`
	Content string    `json:"text"`
	At      time.Time `json:"created"`
}

type MessageLog struct {
	db  *badger.DB
	log *slog.Logger

	mu        sync.Mutex
	sequences map[string]*badger.Sequence
}

func NewMessageLog(db *badger.DB, log *slog.Logger) *MessageLog {
	return &MessageLog{db: db, log: log, sequences: make(map[string]*badger.Sequence)}
}

func messagePrefix(roomID string) []byte {
	return []byte("msg:" + roomID + ":")
}

func messageKey(roomID, messageID string) []byte {
	return append(messagePrefix(roomID), []byte(messageID)...)
}

func sequenceKey(roomID string) []byte {
	return []byte("seq:msg:" + roomID)
}

// Append stores a message with a store-assigned strictly-increasing id and
// creation timestamp. The sequence is the single id allocator per room, so
// concurrent appenders can never produce duplicate or out-of-order ids.
func (m *MessageLog) Append(roomID, senderID, content string) (DiskMessage, error) {
	if content == "" {
		return DiskMessage{}, errors.NewValidation("text", "this field is required")
	}

	seq, err := m.sequence(roomID)
	if err != nil {
		return DiskMessage{}, err
	}
	n, err := seq.Next()
	if err != nil {
		return DiskMessage{}, fmt.Errorf("id allocation failed: %w", err)
	}

	record := DiskMessage{
		ID:      fmt.Sprintf("%019d", n),
		Room:    roomID,
		Sender:  senderID,
		Content: content,
		At:      time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return DiskMessage{}, fmt.Errorf("marshal failed: %w", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(roomID, record.ID), data)
	})
	if err != nil {
		return DiskMessage{}, err
	}
	return record, nil
}

// Range serves the three pagination modes over a room's log:
//   - direction nil: the `limit` most recent messages, returned ascending;
//   - DirectionOlder: up to `limit` messages with id < anchor, descending;
//   - DirectionNewer: up to `limit` messages with id > anchor, ascending.
//
// A nil limit means unbounded.
func (m *MessageLog) Range(roomID string, direction, anchor *string, limit *int) ([]DiskMessage, error) {
	if direction != nil && *direction != DirectionOlder && *direction != DirectionNewer {
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidDirection, *direction)
	}
	// A directed request is meaningless without its boundary.
	if direction != nil && anchor == nil {
		return nil, errors.NewValidation("anchor", "this field is required")
	}

	prefix := messagePrefix(roomID)
	var records []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = direction == nil || *direction == DirectionOlder
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch {
		case direction == nil:
			// Position past the newest key, then walk backwards.
			seekKey = append(append([]byte{}, prefix...), 0xff)
		default:
			seekKey = messageKey(roomID, *anchor)
		}
		it.Seek(seekKey)

		// The anchor itself is excluded in both directed modes.
		if direction != nil && it.ValidForPrefix(prefix) &&
			string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit != nil && len(records) == *limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var record DiskMessage
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if direction == nil {
		// Tail was collected newest-first; re-ascend so the caller always
		// receives chronological order in this mode.
		reverse(records)
	}
	return records, nil
}

// Purge removes every message of a room along with its id sequence.
// Called only as part of whole-room deletion. Deletes go through a write
// batch so a large log never exceeds a single transaction's size limit.
func (m *MessageLog) Purge(roomID string) error {
	m.mu.Lock()
	if seq, ok := m.sequences[roomID]; ok {
		if err := seq.Release(); err != nil {
			m.log.Warn("sequence release failed", "room_id", roomID, "error", err)
		}
		delete(m.sequences, roomID)
	}
	m.mu.Unlock()

	wb := m.db.NewWriteBatch()
	defer wb.Cancel()

	prefix := messagePrefix(roomID)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := wb.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := wb.Delete(sequenceKey(roomID)); err != nil {
		return err
	}
	return wb.Flush()
}

// Close releases all leased sequences so unused ids are returned to the
// store. Must be called before closing the database.
func (m *MessageLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for roomID, seq := range m.sequences {
		if err := seq.Release(); err != nil {
			m.log.Warn("sequence release failed", "room_id", roomID, "error", err)
		}
	}
	m.sequences = make(map[string]*badger.Sequence)
	return nil
}

func (m *MessageLog) sequence(roomID string) (*badger.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq, ok := m.sequences[roomID]; ok {
		return seq, nil
	}
	seq, err := m.db.GetSequence(sequenceKey(roomID), sequenceBandwidth)
	if err != nil {
		return nil, err
	}
	m.sequences[roomID] = seq
	return seq, nil
}

func reverse(records []DiskMessage) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
