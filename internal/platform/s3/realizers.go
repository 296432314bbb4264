package s3

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/opencontainers/go-digest"

	"github.com/imamik/nodeforge/internal/artifact"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/util/retry"
)

// Register binds the bucket, asset, asset-grant and log-group realizers.
func Register(reg *provisioning.Registry, c *Client) {
	reg.Register(provisioning.KindBucket, &bucketRealizer{c})
	reg.Register(provisioning.KindAsset, &assetRealizer{c})
	reg.Register(provisioning.KindAssetGrant, &grantRealizer{c})
	reg.Register(provisioning.KindLogGroup, &logGroupRealizer{c})
}

func requireString(req provisioning.Request, key string) (string, error) {
	v, err := req.RequireString(key)
	if err != nil {
		return "", retry.Fatal(err)
	}
	return v, nil
}

type bucketRealizer struct{ c *Client }

func (r *bucketRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	name, err := requireString(req, "name")
	if err != nil {
		return nil, err
	}
	if err := r.c.EnsureBucket(ctx, name); err != nil {
		return nil, err
	}
	endpoint := req.String("endpoint")
	if endpoint == "" {
		endpoint = r.c.Endpoint()
	}
	return provisioning.Outputs{"id": name, "name": name, "endpoint": endpoint}, nil
}

// Delete keeps buckets that still hold objects; their content outlives the
// stack.
func (r *bucketRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	name, err := requireString(req, "name")
	if err != nil {
		return err
	}
	retained, err := r.c.DeleteBucket(ctx, name)
	if err != nil {
		return err
	}
	if retained {
		logr.FromContextOrDiscard(ctx).Info("Bucket is not empty, retaining it", "bucket", name)
	}
	return nil
}

// assetRealizer uploads content-addressed objects. An existing key already
// holds the right bytes, so it is never rewritten.
type assetRealizer struct{ c *Client }

func (r *assetRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	bucket, err := requireString(req, "bucket")
	if err != nil {
		return nil, err
	}
	key, err := requireString(req, "key")
	if err != nil {
		return nil, err
	}
	raw, err := requireString(req, "digest")
	if err != nil {
		return nil, err
	}
	d, err := digest.Parse(raw)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("asset %s: %w", req.ID, err))
	}

	outputs := provisioning.Outputs{
		"key":    key,
		"digest": d.String(),
		"url":    artifact.Locator{Endpoint: r.c.Endpoint(), Bucket: bucket, Key: key}.URL(),
	}

	exists, err := r.c.ObjectExists(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return outputs, nil
	}

	content, err := base64.StdEncoding.DecodeString(req.String("content"))
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("asset %s: content is not base64: %w", req.ID, err))
	}
	if d.Algorithm().FromBytes(content) != d {
		return nil, retry.Fatal(fmt.Errorf("asset %s: content does not match digest %s", req.ID, d))
	}
	if err := r.c.PutObject(ctx, bucket, key, content); err != nil {
		return nil, err
	}
	return outputs, nil
}

// Delete is a no-op: objects are content-addressed and may be shared with
// other stacks.
func (r *assetRealizer) Delete(context.Context, provisioning.Request) error {
	return nil
}

// grantRealizer allows the node's storage principal the listed actions on
// keys of one bucket, such as reading the assets or writing log objects,
// through a bucket policy statement it owns by Sid.
type grantRealizer struct{ c *Client }

func (r *grantRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	bucket, err := requireString(req, "bucket")
	if err != nil {
		return nil, err
	}
	sid, err := requireString(req, "sid")
	if err != nil {
		return nil, err
	}
	principal, err := requireString(req, "principal")
	if err != nil {
		return nil, err
	}
	actions := req.Strings("actions")
	if len(actions) == 0 {
		return nil, retry.Fatal(fmt.Errorf("grant %s: actions are required", req.ID))
	}

	keys := req.Strings("keys")
	if len(keys) == 0 {
		if err := r.c.RemovePolicyStatement(ctx, bucket, sid); err != nil {
			return nil, err
		}
		return provisioning.Outputs{"id": sid, "keys": "0"}, nil
	}

	resources := make([]string, 0, len(keys))
	for _, k := range keys {
		resources = append(resources, ObjectARN(bucket, k))
	}
	stmt := PolicyStatement{
		Sid:       sid,
		Effect:    "Allow",
		Principal: UserPrincipal(principal),
		Action:    actions,
		Resource:  resources,
	}
	if err := r.c.UpsertPolicyStatement(ctx, bucket, stmt); err != nil {
		return nil, err
	}
	return provisioning.Outputs{"id": sid, "keys": strconv.Itoa(len(keys))}, nil
}

func (r *grantRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	bucket, err := requireString(req, "bucket")
	if err != nil {
		return err
	}
	sid, err := requireString(req, "sid")
	if err != nil {
		return err
	}
	return r.c.RemovePolicyStatement(ctx, bucket, sid)
}

// logGroupRealizer gives one log stream its prefix and retention in the
// log bucket.
type logGroupRealizer struct{ c *Client }

func (r *logGroupRealizer) rule(req provisioning.Request) (string, ExpirationRule, error) {
	name, err := requireString(req, "name")
	if err != nil {
		return "", ExpirationRule{}, err
	}
	bucket, err := requireString(req, "bucket")
	if err != nil {
		return "", ExpirationRule{}, err
	}
	prefix := req.String("prefix")
	if prefix == "" {
		prefix = name + "/"
	}
	return bucket, ExpirationRule{ID: name, Prefix: prefix, Days: int32(req.Int("retention_days"))}, nil
}

func (r *logGroupRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	bucket, rule, err := r.rule(req)
	if err != nil {
		return nil, err
	}
	if rule.Days < 1 {
		return nil, retry.Fatal(fmt.Errorf("log group %s: retention_days must be at least 1", req.ID))
	}
	if err := r.c.UpsertExpirationRule(ctx, bucket, rule); err != nil {
		return nil, err
	}
	return provisioning.Outputs{
		"id":             rule.ID,
		"name":           rule.ID,
		"prefix":         rule.Prefix,
		"retention_days": strconv.Itoa(int(rule.Days)),
	}, nil
}

func (r *logGroupRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	bucket, rule, err := r.rule(req)
	if err != nil {
		return err
	}
	return r.c.RemoveLifecycleRule(ctx, bucket, rule.ID)
}
