// Package config defines the desired state of a single-node deployment.
//
// A [Config] is loaded from YAML, defaulted and validated in one pass by
// [LoadFile]. Everything the stack builder needs is explicit here: the
// stack name every resource is named after, the region, the certificate
// region, and the public [DomainSpec]. Provider credentials come from the
// environment first and the OS keyring second, see [LookupCredential].
// Timeouts are tuned through NODEFORGE_* environment variables, see
// [LoadTimeouts].
package config
