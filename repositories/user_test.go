package repositories

import (
	"testing"

	"chat-server/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Create_And_Lookup_User(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	record, err := repo.Create("Alice", "alice42", "$argon2id$fake")
	req.NoError(err)
	req.NotEmpty(record.ID)
	req.False(record.CreatedAt.IsZero())

	byID, err := repo.GetByID(record.ID)
	req.NoError(err)
	req.Equal(record, byID)

	byHandle, err := repo.GetByHandle("alice42")
	req.NoError(err)
	req.Equal(record.ID, byHandle.ID)
}

func Test_Create_Rejects_Taken_Handle(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	_, err := repo.Create("Alice", "shared", "hash-a")
	req.NoError(err)

	_, err = repo.Create("Bob", "shared", "hash-b")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	// The original owner keeps the handle.
	record, err := repo.GetByHandle("shared")
	req.NoError(err)
	req.Equal("Alice", record.Name)
}

func Test_Lookup_Missing_User(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(openTestDB(t))

	_, err := repo.GetByID(uuid.NewString())
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = repo.GetByHandle("nobody")
	req.ErrorIs(err, errors.ErrNotFound)
}
