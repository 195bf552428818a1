package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Resolve returns the stage stored under name, computing and saving it when
// it is absent or force is set. cached reports whether the value came from
// the store. compute is not called when a snapshot is used, and nothing is
// saved when compute fails.
func Resolve[T any](ctx context.Context, store Store, name string, force bool, compute func(context.Context) (T, error)) (value T, cached bool, err error) {
	if !force {
		value, err = Load[T](ctx, store, name)
		if err == nil {
			return value, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return value, false, err
		}
	}

	value, err = compute(ctx)
	if err != nil {
		return value, false, err
	}
	if err := Save(ctx, store, name, value); err != nil {
		return value, false, err
	}
	return value, false, nil
}

// Load decodes the snapshot stored under name into a T.
func Load[T any](ctx context.Context, store Store, name string) (T, error) {
	var value T
	data, err := store.Load(ctx, name)
	if err != nil {
		return value, err
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("%w: %s: %w", ErrCorrupt, store.Location(name), err)
	}
	return value, nil
}

// Save encodes value and stores it under name.
func Save(ctx context.Context, store Store, name string, value any) error {
	data, err := Encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode stage %s: %w", name, err)
	}
	if err := store.Save(ctx, name, data); err != nil {
		return fmt.Errorf("failed to save stage %s: %w", name, err)
	}
	return nil
}
