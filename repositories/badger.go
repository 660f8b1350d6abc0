package repositories

import (
	stderrors "errors"

	"github.com/dgraph-io/badger/v4"
)

// maxTxnRetries bounds optimistic-concurrency retries on conflicting
// read-modify-write transactions (concurrent joins on the same room).
const maxTxnRetries = 10

// update runs fn inside a read-write transaction and retries it when Badger
// reports a serialization conflict. fn must be idempotent.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}
