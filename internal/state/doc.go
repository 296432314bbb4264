// Package state persists what the reconciler realized so that the next pass
// can skip unchanged nodes, prune orphans and tear a stack down.
//
// Records are keyed by (stack, node id). Every backend also provides a
// per-stack lease so two processes never reconcile the same stack at once.
package state
