// Package labels provides consistent labeling for Hetzner Cloud resources.
//
// All labels use the nodeforge.io domain prefix. The load balancer finds
// its target through the stack and role labels, so servers must carry both.
package labels
