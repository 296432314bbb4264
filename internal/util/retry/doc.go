// Package retry provides exponential backoff and bounded polling for
// provider calls.
//
// [WithExponentialBackoff] retries transient failures; errors wrapped with
// [Fatal] stop it immediately. [Poll] waits for an asynchronous provider
// state, such as certificate issuance, until a context deadline.
package retry
