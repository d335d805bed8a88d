// Package badger provides an embedded Store on top of BadgerDB for single-node deployments.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/dgraph-io/badger/v3"
)

type Persistence struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewPersistence opens (or creates) a database directory; "badger://" prefixes are accepted.
// An empty path opens an in-memory database.
func NewPersistence(logger *slog.Logger, path string) (*Persistence, error) {
	path = strings.TrimPrefix(path, "badger://")

	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}

	return &Persistence{db: db, logger: logger.With("module", "badger")}, nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if p.db.IsClosed() {
		return errors.New("badger database is closed")
	}

	return nil
}

func (p *Persistence) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte

	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)

		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, persistence.NewKeyError("get", key, persistence.ErrNotFound)
		}

		return nil, persistence.NewKeyError("get", key, err)
	}

	return value, nil
}

func (p *Persistence) Put(_ context.Context, key string, value []byte) error {
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return persistence.NewKeyError("put", key, err)
	}

	return nil
}

func (p *Persistence) Delete(_ context.Context, key string) error {
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return persistence.NewKeyError("delete", key, err)
	}

	return nil
}

// List iterates keys only; badger orders them bytewise.
func (p *Persistence) List(_ context.Context, prefix string) ([]string, error) {
	keys := []string{}

	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewKeyError("list", prefix, err)
	}

	return keys, nil
}
