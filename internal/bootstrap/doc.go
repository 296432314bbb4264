// Package bootstrap builds the startup script that turns a bare instance
// into a running node.
//
// The script is an ordered list of directives: a run-once guard, the
// object-storage key pair, the install script, signed artifact downloads,
// the log and metrics agent, the shared engine secret, the execution
// client, a bounded readiness check and finally the consensus client. [Sequence.Validate] rejects any
// ordering in which a directive reads a file nobody wrote yet or the
// consensus client could start before the execution client answers.
package bootstrap
