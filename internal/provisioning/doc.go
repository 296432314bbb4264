// Package provisioning provides the contract between the reconciler and the
// platform packages that create real resources.
//
// # Subpackages
//
//   - fakes/ - In-memory Provider and Observer for tests
//
// # Core Types
//
// Request carries one node's identity, resolved properties and prior outputs.
// Realizer creates or converges one resource kind and deletes it again.
// Registry maps kinds to realizers and is the Provider the CLI hands to the
// reconciler. Observer receives progress events; LogrObserver forwards them
// to a logr.Logger.
package provisioning
