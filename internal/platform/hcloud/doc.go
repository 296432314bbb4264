// Package hcloud converges Hetzner Cloud resources for a node stack.
//
// Every resource is looked up by name and created only when missing, so
// realization is idempotent and a crashed pass can simply be re-run.
//
// # Generic Operations
//
// [EnsureOperation] implements get-or-create with optional validation and
// update of an existing resource. [DeleteOperation] implements idempotent
// deletion; locked resources are retried with exponential backoff and a
// missing resource is success.
//
// # Realizers
//
// [Register] binds one provisioning.Realizer per kind: network, subnet,
// firewall, identity (an SSH key whose labels carry the capability
// grants), image (lookup only), volume, instance-group (a single server),
// certificate (managed, waited on until issued), load-balancer and
// listener (an HTTPS service plus a label-selector target).
//
// Errors that no retry can fix are wrapped with retry.Fatal so the
// reconciler reports them instead of burning retries.
package hcloud
