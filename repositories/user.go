//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"chat-server/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	Create(name, handle, passwordHash string) (User, error)
	GetByID(userID string) (User, error)
	GetByHandle(handle string) (User, error)
}

// User is the stored account record. PasswordHash never leaves the
// repository/auth layers.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Handle       string    `json:"handle"`
	Avatar       string    `json:"avatar,omitempty"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

func userKey(userID string) []byte {
	return []byte("user:" + userID)
}

func handleKey(handle string) []byte {
	return []byte("handle:" + handle)
}

// Create persists a new user and the unique-handle index entry in one
// transaction. A taken handle surfaces as ErrUserAlreadyExists.
func (u *UserRepository) Create(name, handle, passwordHash string) (User, error) {
	record := User{
		ID:           uuid.NewString(),
		Name:         name,
		Handle:       handle,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = update(u.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(handleKey(handle)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(handleKey(handle), []byte(record.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(record.ID), data)
	})
	if err != nil {
		return User{}, err
	}
	return record, nil
}

func (u *UserRepository) GetByID(userID string) (User, error) {
	var record User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		record, err = getUser(txn, userID)
		return err
	})
	return record, err
}

func (u *UserRepository) GetByHandle(handle string) (User, error) {
	var record User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(handleKey(handle))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrNotFound
		}
		if err != nil {
			return err
		}
		var userID string
		if err = item.Value(func(val []byte) error {
			userID = string(val)
			return nil
		}); err != nil {
			return err
		}
		record, err = getUser(txn, userID)
		return err
	})
	return record, err
}

func getUser(txn *badger.Txn, userID string) (User, error) {
	item, err := txn.Get(userKey(userID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, errors.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	var record User
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	})
	return record, err
}
