// Package engine orchestrates the savings client: it owns the store, the
// query cache and the typed contract client, and exposes the reads and
// mutation intents the API and CLI dispatch.
//
// Reads go through the query cache and write what they load into the
// store, so the store always holds the latest known state. Mutations run
// through query.RunMutation:
//
//  1. Validate the request. Nothing is touched on failure.
//  2. Wait for earlier mutations on the same entity.
//  3. Cancel in-flight reads for the affected keys and snapshot them.
//  4. Apply the optimistic patch to the store and cache.
//  5. Call the gateway.
//  6. On success, invalidate every key the write affects and emit
//     notifications. On failure, restore the snapshot, undo the store
//     patch and record an error notification.
//  7. Invalidate the primary entity and its progress in either case.
//
// Concurrency: every method is safe for concurrent use. Mutations on the
// same challenge or pool are serialized in arrival order; reads are never
// blocked by mutations.
package engine
