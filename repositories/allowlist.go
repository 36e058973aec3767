package repositories

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const allowedPrefix = "allowed:"

// AllowlistRepository keeps the set of chat users allowed to drive the
// bot's privileged commands. One key per user, empty value; the set is
// small and read far more often than written.
type AllowlistRepository struct {
	db *badger.DB
}

var _ contract.IAllowlistRepository = AllowlistRepository{}

func NewAllowlistRepository(db *badger.DB) AllowlistRepository {
	return AllowlistRepository{db: db}
}

func (a AllowlistRepository) Add(user string) error {
	user = normalize(user)
	return a.db.Update(func(txn *badger.Txn) error {
		key := []byte(allowedPrefix + user)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyAllowed
		}
		return txn.Set(key, nil)
	})
}

func (a AllowlistRepository) Remove(user string) error {
	user = normalize(user)
	return a.db.Update(func(txn *badger.Txn) error {
		key := []byte(allowedPrefix + user)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return errors.ErrUserNotAllowed
		}
		return txn.Delete(key)
	})
}

func (a AllowlistRepository) List() ([]string, error) {
	var users []string
	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(allowedPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			users = append(users, strings.TrimPrefix(string(it.Item().Key()), allowedPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(users)
	return users, nil
}

func (a AllowlistRepository) Contains(user string) (bool, error) {
	user = normalize(user)
	var found bool
	err := a.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(allowedPrefix + user))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// normalize strips the "@" chat handles are usually pasted with.
func normalize(user string) string {
	return strings.TrimPrefix(strings.TrimSpace(user), "@")
}
