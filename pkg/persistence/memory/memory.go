// Package memory provides an in-process Store backed by go-memdb. State is lost on restart;
// it serves tests and single-shot CLI runs.
package memory

import (
	"context"
	"fmt"

	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/hashicorp/go-memdb"
)

const table = "records"

type record struct {
	Key   string
	Value []byte
}

type Persistence struct {
	db *memdb.MemDB
}

func NewPersistence() (*Persistence, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			table: {
				Name: table,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Key"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}

	return &Persistence{db: db}, nil
}

func (p *Persistence) Close(_ context.Context) error       { return nil }
func (p *Persistence) HealthCheck(_ context.Context) error { return nil }

func (p *Persistence) Get(_ context.Context, key string) ([]byte, error) {
	txn := p.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(table, "id", key)
	if err != nil {
		return nil, persistence.NewKeyError("get", key, err)
	}

	if raw == nil {
		return nil, persistence.NewKeyError("get", key, persistence.ErrNotFound)
	}

	value := raw.(*record).Value

	return append([]byte(nil), value...), nil
}

func (p *Persistence) Put(_ context.Context, key string, value []byte) error {
	txn := p.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(table, &record{Key: key, Value: append([]byte(nil), value...)}); err != nil {
		return persistence.NewKeyError("put", key, err)
	}

	txn.Commit()

	return nil
}

func (p *Persistence) Delete(_ context.Context, key string) error {
	txn := p.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(table, "id", key); err != nil {
		return persistence.NewKeyError("delete", key, err)
	}

	txn.Commit()

	return nil
}

// List uses the radix-tree prefix index, which already yields keys in order.
func (p *Persistence) List(_ context.Context, prefix string) ([]string, error) {
	txn := p.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(table, "id_prefix", prefix)
	if err != nil {
		return nil, persistence.NewKeyError("list", prefix, err)
	}

	keys := []string{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		keys = append(keys, obj.(*record).Key)
	}

	return keys, nil
}
