package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no value is stored under the key.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidKey indicates a key that the backend cannot address safely.
	ErrInvalidKey = errors.New("invalid key")

	// ErrCorrupt indicates a stored value that cannot be decoded.
	ErrCorrupt = errors.New("corrupt record")
)

// KeyError wraps a backend failure with the operation and key involved.
type KeyError struct {
	Op  string
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

func (e *KeyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewKeyError(op, key string, err error) *KeyError {
	return &KeyError{Op: op, Key: key, Err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
