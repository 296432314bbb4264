// Package acme obtains certificates from an ACME CA with dns-01
// challenges, so a zone hosted outside Hetzner can still back the load
// balancer's TLS listener.
//
// The issuer publishes each challenge as a TXT record through a
// DNSSolver, waits until the record resolves, and returns the chain and a
// fresh ECDSA P-256 key in PEM form. The account key is kept on disk so
// repeated runs reuse one ACME account.
package acme
