// Package naming derives provider resource names from the stack name.
//
// Infrastructure follows {stack}-{type}. Log groups follow the
// {stack}-{network}-{client}--{stream}-log convention the on-instance agent
// and the log-group nodes agree on without a graph edge.
package naming
