// Package graph models a deployment as a set of resource nodes with
// dependency edges.
//
// Nodes are kept in declaration order. TopoSort yields apply order using
// Kahn's algorithm with declaration order as the tie-breaker, and reports
// cycles as *CycleError. Properties may carry Ref placeholders that Resolve
// fills from dependency outputs; Fingerprint hashes the resolved shape so a
// reconciler can skip unchanged nodes.
package graph
