// Package persistence provides the durable key-value store used for workflow executions,
// signals, session state and error logs.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
)

// Store is a narrow key-value persistence interface. Keys are "<collection>/<id>" paths.
type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error
	// List returns the keys starting with prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// Key joins path segments into a store key.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// Prefix returns the listing prefix for a collection path.
func Prefix(parts ...string) string {
	return Key(parts...) + "/"
}

// GetJSON loads key and decodes it into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := xjson.Unmarshal(data, v); err != nil {
		return &KeyError{Op: "decode", Key: key, Err: errors.Join(ErrCorrupt, err)}
	}

	return nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := xjson.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	return s.Put(ctx, key, data)
}

// ListJSON decodes every record under prefix, skipping ones that vanished between List and Get.
func ListJSON[T any](ctx context.Context, s Store, prefix string) ([]*T, error) {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(keys))

	for _, key := range keys {
		var v T
		if err := GetJSON(ctx, s, key, &v); err != nil {
			if IsNotFound(err) {
				continue
			}

			return nil, err
		}

		out = append(out, &v)
	}

	return out, nil
}
