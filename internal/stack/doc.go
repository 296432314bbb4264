// Package stack declares the resource graph of one node deployment.
//
// Build turns a validated config.Config into a graph.Graph in declaration
// order: network boundary, identity, assets, compute, observability, edge
// and DNS. Every node ID is stable across runs so the reconciler can match
// nodes with their persisted records. The stack Identity is passed in
// explicitly and every resource name derives from it.
//
// Nodes reference each other only through graph.Ref outputs of direct
// dependencies. The output names each kind reports are listed with the
// node ID constants in ids.go.
package stack
