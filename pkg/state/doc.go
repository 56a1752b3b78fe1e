// Package state defines persistence-facing contracts for loading and saving
// chain selection snapshots, plus a small keeper that adds optimistic
// concurrency on top of any Store implementation.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - Keeper[T] wraps a Store with read-modify-write semantics guarded by
//     ETag comparison, stamping fresh snapshot ids on every save.
//   - The core cascade package remains persistence-agnostic; all persistence
//     logic stays behind Store implementations supplied by consumers.
//
// Deterministic keys:
//
//	Ref.Identifier() provides a canonical storage key: "user/<uid>/<form>" when
//	the snapshot is pinned to a user, "form/<form>" otherwise.
package state
