// Package keygen provides the SSH key that stands in for the execution
// role's remote-session grant.
//
// Keys are Ed25519. The private key is written in OpenSSH PEM format with
// mode 0600 next to a ".pub" file in authorized_keys format.
package keygen
