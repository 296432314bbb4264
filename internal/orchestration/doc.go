// Package orchestration converges a deployment graph against a provider.
//
// A [Reconciler] runs one pass at a time per stack:
//  1. Validate the graph and order it topologically.
//  2. Take the stack lease (in-process and in the state store).
//  3. Load the persisted snapshot.
//  4. Realize ready nodes on a bounded worker pool, skipping nodes whose
//     fingerprint matches the stored one.
//  5. Mark every transitive dependent of a failed node as blocked.
//  6. Prune records that are no longer declared, in reverse dependency order.
//
// Cancellation is observed only between dispatches. A realization that has
// started runs to completion or to its own timeout, so the persisted state
// never misses a resource that exists.
//
// # Usage
//
//	r := orchestration.NewReconciler(stack, provider, store,
//		orchestration.WithConcurrency(4),
//		orchestration.WithObserver(observer),
//	)
//	report, err := r.Reconcile(ctx, g)
//
// [Reconciler.Plan] computes the same decisions without calling the
// provider, and [Reconciler.Destroy] tears the stack down.
package orchestration
