package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies one persisted selection snapshot: a form identifier,
// optionally pinned to a user.
type Ref struct {
	Form   string
	UserID string
}

// Identifier returns the canonical storage key for the reference.
func (r Ref) Identifier() (string, error) {
	if r.Form == "" {
		return "", fmt.Errorf("state: form is required")
	}
	if r.UserID != "" {
		return fmt.Sprintf("user/%s/%s", r.UserID, r.Form), nil
	}
	return fmt.Sprintf("form/%s", r.Form), nil
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Mutator applies an in-place change to a loaded snapshot.
type Mutator[T any] func(*T) error

// Keeper wraps a Store with read-modify-write semantics. Every successful
// save stamps a fresh snapshot id and etag; a caller-supplied etag that does
// not match the stored one aborts the write.
type Keeper[T any] struct {
	Store Store[T]
	Clock func() time.Time
}

// Load fetches the snapshot for ref, if any.
func (k Keeper[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if k.Store == nil {
		return zero, Meta{}, false, fmt.Errorf("state: store is required")
	}
	return k.Store.Load(ctx, ref)
}

// Save persists the snapshot for ref, stamping fresh identity metadata.
func (k Keeper[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if k.Store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	return k.Store.Save(ctx, ref, snapshot, k.stamp(meta))
}

// Mutate loads the snapshot for ref, applies fn, and saves the result. When
// meta carries an ETag it must match the stored one or the write is rejected
// with ErrETagMismatch. A missing snapshot mutates the zero value.
func (k Keeper[T]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if k.Store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := k.Store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q: %w", ref.Form, err)
	}
	if !ok {
		snapshot = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return zero, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return zero, loadedMeta, err
	}

	savedMeta, err := k.Store.Save(ctx, ref, snapshot, k.stamp(mergeMeta(loadedMeta, meta)))
	if err != nil {
		return zero, loadedMeta, fmt.Errorf("state: save %q: %w", ref.Form, err)
	}
	return snapshot, savedMeta, nil
}

func (k Keeper[T]) stamp(meta Meta) Meta {
	meta.SnapshotID = uuid.NewString()
	meta.ETag = uuid.NewString()
	now := time.Now
	if k.Clock != nil {
		now = k.Clock
	}
	meta.UpdatedAt = now()
	return meta
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
