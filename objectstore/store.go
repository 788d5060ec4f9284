package objectstore

import (
	"context"
	"fmt"
)

// New constructs the Client backend selected by a connection string.
func New(ctx context.Context, connectionString string) (Client, *KeyBuilder, error) {
	cfg, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Scheme {
	case SchemeS3:
		store, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, NewKeyBuilder(cfg.Prefix), nil
	case SchemeFile:
		store, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, NewKeyBuilder(cfg.Prefix), nil
	case SchemeMemory:
		return NewMemoryStore(), NewKeyBuilder(cfg.Prefix), nil
	default:
		return nil, nil, fmt.Errorf("objectstore: unsupported scheme %q", cfg.Scheme)
	}
}
