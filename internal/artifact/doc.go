// Package artifact models the immutable files an instance downloads while
// it bootstraps.
//
// Artifacts are content addressed: the store key is derived from the
// sha256 digest of the content, so uploading the same bytes twice lands on
// the same key and a content change always produces a new key.
package artifact
