// Package s3 talks to Hetzner Object Storage through the AWS S3 SDK.
//
// The Client addresses buckets path-style and doubles as the object store
// behind the S3 state backend. Register binds the realizers for the
// content-store buckets, the uploaded assets, the bucket policy statement
// that lets the node read them, and the per-stream log retention rules.
package s3
