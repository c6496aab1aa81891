// Package history keeps an append-only log of provisioning runs. It is an
// audit trail only: reconciliation always re-reads live provider state and
// never consults past runs.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
)

const entryPrefix = "run:"

type Entry struct {
	Time            time.Time `json:"time"`
	Domain          string    `json:"domain"`
	ZoneID          string    `json:"zoneId"`
	Created         int       `json:"created"`
	Updated         int       `json:"updated"`
	NoOps           int       `json:"noops"`
	Failures        int       `json:"failures"`
	SettingsChanged int       `json:"settingsChanged"`
	DryRun          bool      `json:"dryRun"`
	Success         bool      `json:"success"`
	DurationMillis  int64     `json:"durationMs"`
}

type Manager interface {
	Append(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

type badgerManager struct {
	db *badger.DB
}

func New(path string) (Manager, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &badgerManager{db: db}, nil
}

func (m *badgerManager) Append(ctx context.Context, entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// RFC3339Nano keys sort chronologically, so recency is a reverse scan.
	key := entryPrefix + entry.Time.UTC().Format(time.RFC3339Nano)
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (m *badgerManager) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry

	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryPrefix)
		// Reverse iteration starts just past the prefix range.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(entries) >= limit {
				return nil
			}
			err := it.Item().Value(func(val []byte) error {
				var entry Entry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

func (m *badgerManager) Close() error {
	return m.db.Close()
}
