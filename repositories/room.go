//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"unicode/utf8"

	"chat-server/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	captionMinLength = 3
	captionMaxLength = 40
)

type IRoomRepository interface {
	Create(caption, creatorID, avatar string) (DiskRoom, error)
	Get(roomID string) (DiskRoom, error)
	Delete(roomID, requesterID string) (DiskRoom, error)
	AddMember(roomID, userID string) error
	RemoveMember(roomID, userID string) error
	ListByMembership(userID string, member bool) ([]DiskRoom, error)
}

// DiskRoom is the stored representation of a room. Members holds user ids;
// uniqueness is enforced on every mutation, insertion order is irrelevant.
type DiskRoom struct {
	ID      string   `json:"id"`
	Caption string   `json:"caption"`
	Creator string   `json:"creator"`
	Avatar  string   `json:"avatar,omitempty"`
	Members []string `json:"members"`
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func roomKey(roomID string) []byte {
	return []byte("room:" + roomID)
}

// Create persists a new room seeded with the creator as its only member.
// Seeding at construction time is what keeps the "creator is always a
// member" invariant true without a separate join step.
func (r *RoomRepository) Create(caption, creatorID, avatar string) (DiskRoom, error) {
	if caption == "" {
		return DiskRoom{}, errors.NewValidation("caption", "this field is required")
	}
	if n := utf8.RuneCountInString(caption); n < captionMinLength || n > captionMaxLength {
		return DiskRoom{}, errors.NewValidation("caption", "3 to 40 characters is required")
	}

	record := DiskRoom{
		ID:      uuid.NewString(),
		Caption: caption,
		Creator: creatorID,
		Avatar:  avatar,
		Members: []string{creatorID},
	}
	data, err := json.Marshal(record)
	if err != nil {
		return DiskRoom{}, fmt.Errorf("marshal failed: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(record.ID), data)
	})
	if err != nil {
		return DiskRoom{}, err
	}
	return record, nil
}

func (r *RoomRepository) Get(roomID string) (DiskRoom, error) {
	var record DiskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		record, err = getRoom(txn, roomID)
		return err
	})
	return record, err
}

// Delete removes a room owned by requesterID and returns the deleted record
// so the caller can release the avatar. Ownership and existence are checked
// together: a non-owner observes the same ErrNotFound as a missing room.
func (r *RoomRepository) Delete(roomID, requesterID string) (DiskRoom, error) {
	var record DiskRoom
	err := update(r.db, func(txn *badger.Txn) error {
		var err error
		record, err = getRoom(txn, roomID)
		if err != nil {
			return err
		}
		if record.Creator != requesterID {
			return errors.ErrNotFound
		}
		return txn.Delete(roomKey(roomID))
	})
	if err != nil {
		return DiskRoom{}, err
	}
	return record, nil
}

// AddMember is idempotent: adding a user already present is a no-op.
// The membership check runs inside the same transaction as the write, so
// concurrent joins of the same user collapse into a single entry.
func (r *RoomRepository) AddMember(roomID, userID string) error {
	return update(r.db, func(txn *badger.Txn) error {
		record, err := getRoom(txn, roomID)
		if err != nil {
			return err
		}
		if lo.Contains(record.Members, userID) {
			return nil
		}
		record.Members = append(record.Members, userID)
		return putRoom(txn, record)
	})
}

// RemoveMember rejects removal of the creator and is otherwise idempotent.
func (r *RoomRepository) RemoveMember(roomID, userID string) error {
	return update(r.db, func(txn *badger.Txn) error {
		record, err := getRoom(txn, roomID)
		if err != nil {
			return err
		}
		if record.Creator == userID {
			return errors.ErrCannotRemoveCreator
		}
		if !lo.Contains(record.Members, userID) {
			return nil
		}
		record.Members = lo.Without(record.Members, userID)
		return putRoom(txn, record)
	})
}

// ListByMembership returns rooms where userID is (member=true) or is not
// (member=false) part of the member set. Used for the opened/available
// split of the subscription snapshot.
func (r *RoomRepository) ListByMembership(userID string, member bool) ([]DiskRoom, error) {
	var records []DiskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		prefix := []byte("room:")
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record DiskRoom
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				if lo.Contains(record.Members, userID) == member {
					records = append(records, record)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}

func getRoom(txn *badger.Txn, roomID string) (DiskRoom, error) {
	item, err := txn.Get(roomKey(roomID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return DiskRoom{}, errors.ErrNotFound
	}
	if err != nil {
		return DiskRoom{}, err
	}
	var record DiskRoom
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	})
	return record, err
}

func putRoom(txn *badger.Txn, record DiskRoom) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(roomKey(record.ID), data)
}
