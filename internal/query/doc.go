// Package query is the read cache and mutation runner that sits between the
// engine and the contract gateway.
//
// Reads go through Fetch: a fresh entry is returned as is, a stale entry is
// returned and refreshed in the background, and a missing entry blocks on a
// single shared fetch. Concurrent reads of the same key never issue
// duplicate gateway calls.
//
// Keys are segment lists. Invalidate, Cancel, Snapshot and Remove take key
// prefixes, so ("challenges", "list", user) addresses every list query for
// that user whatever filter segment follows it.
//
// Writes go through RunMutation, which serializes mutations per entity,
// cancels in-flight reads for the affected keys, snapshots them, applies an
// optimistic patch, calls the gateway, and then either invalidates the
// affected keys or restores the snapshot. The primary entity is invalidated
// again once the mutation settles, whatever the outcome.
//
// Fetch results are written only if no Cancel, SetData, Restore or Remove
// touched the entry while the fetch was in flight. Each of those bumps the
// entry generation, so a background refetch can never overwrite an
// optimistic patch with pre-mutation data.
package query
