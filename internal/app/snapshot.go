package app

import (
	"context"

	"gap-screener/internal/screener"
	"gap-screener/internal/state"

	"github.com/vmihailenco/msgpack/v5"
)

const snapshotKey = "snapshot:latest"

// saveSnapshot persists the latest bundle so a restart can serve data before
// the first scan completes. msgpack keeps the stored blob compact; a typical
// bundle carries a few hundred symbol results.
func saveSnapshot(ctx context.Context, store state.Store, bundle screener.Bundle) error {
	blob, err := msgpack.Marshal(bundle)
	if err != nil {
		return err
	}
	return store.Set(ctx, snapshotKey, blob)
}

func loadSnapshot(ctx context.Context, store state.Store) (screener.Bundle, bool, error) {
	blob, ok, err := store.Get(ctx, snapshotKey)
	if err != nil || !ok {
		return screener.Bundle{}, false, err
	}
	var bundle screener.Bundle
	if err := msgpack.Unmarshal(blob, &bundle); err != nil {
		return screener.Bundle{}, false, err
	}
	return bundle, true, nil
}
