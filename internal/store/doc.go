// Package store is the in-memory savings synchronization store: the single
// source of truth for challenge, contribution, notification, yield and UI
// state on the client side.
//
// # Invariants
//
// Dual write:
//   - ApplyContribution prepends the contribution AND increments the
//     matching challenge's current amount
//   - The returned Undo reverses both exactly (restores the prior amount,
//     removes the record)
//
// Notification retention:
//   - Notifications are kept most-recent-first
//   - The list is capped (50 by default); eviction drops from the tail
//
// Derived reads:
//   - FilteredChallenges, ActiveChallenges, CompletedChallenges,
//     UnreadNotifications and StatusOf are projections; they never mutate
//   - Status is recomputed from stored fields and the clock on every call
//
// The store is constructed explicitly and injected; there is no package
// level instance. All methods are safe for concurrent use.
package store
