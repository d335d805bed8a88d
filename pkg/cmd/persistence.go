// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/badger"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/file"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/memory"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence/postgresql"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "badger", "memory"}

// NewStore picks the store backend from the scheme of databaseURL. A URL without a known
// scheme is a directory for the file store.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Store, error) {
	provider, location := parsePersistenceProvider(databaseURL)

	switch provider {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return store, nil
	case "badger":
		store, err := badger.NewPersistence(logger, location)
		if err != nil {
			return nil, err
		}

		return store, nil
	case "memory":
		store, err := memory.NewPersistence()
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		if location == "" {
			return nil, fmt.Errorf("database url %q has no path", databaseURL)
		}

		return file.NewPersistence(location), nil
	}
}

func parsePersistenceProvider(databaseURL string) (string, string) {
	provider, location, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", databaseURL
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider, location
		}
	}

	return "file", databaseURL
}
