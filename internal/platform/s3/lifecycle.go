package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ExpirationRule expires objects under Prefix after Days.
type ExpirationRule struct {
	ID     string
	Prefix string
	Days   int32
}

func (r ExpirationRule) lifecycleRule() types.LifecycleRule {
	return types.LifecycleRule{
		ID:         aws.String(r.ID),
		Status:     types.ExpirationStatusEnabled,
		Filter:     &types.LifecycleRuleFilter{Prefix: aws.String(r.Prefix)},
		Expiration: &types.LifecycleExpiration{Days: aws.Int32(r.Days)},
	}
}

func (r ExpirationRule) matches(rule types.LifecycleRule) bool {
	if rule.Status != types.ExpirationStatusEnabled || rule.Filter == nil || rule.Expiration == nil {
		return false
	}
	return aws.ToString(rule.Filter.Prefix) == r.Prefix && aws.ToInt32(rule.Expiration.Days) == r.Days
}

// UpsertExpirationRule installs rule in the bucket lifecycle configuration,
// replacing a rule with the same ID. An identical rule is left untouched.
func (c *Client) UpsertExpirationRule(ctx context.Context, bucket string, rule ExpirationRule) error {
	if rule.ID == "" {
		return fmt.Errorf("lifecycle rule for bucket %s has no ID", bucket)
	}
	if rule.Days < 1 {
		return fmt.Errorf("lifecycle rule %s: retention must be at least one day", rule.ID)
	}

	c.policyMu.Lock()
	defer c.policyMu.Unlock()

	rules, err := c.getLifecycle(ctx, bucket)
	if err != nil {
		return err
	}
	for _, existing := range rules {
		if aws.ToString(existing.ID) == rule.ID && rule.matches(existing) {
			return nil
		}
	}
	return c.putLifecycle(ctx, bucket, append(withoutRule(rules, rule.ID), rule.lifecycleRule()))
}

// RemoveLifecycleRule drops the rule with id. The configuration is deleted
// once no rule remains.
func (c *Client) RemoveLifecycleRule(ctx context.Context, bucket, id string) error {
	c.policyMu.Lock()
	defer c.policyMu.Unlock()

	rules, err := c.getLifecycle(ctx, bucket)
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return err
	}
	remaining := withoutRule(rules, id)
	if len(remaining) == len(rules) {
		return nil
	}
	if len(remaining) == 0 {
		_, err := c.s3.DeleteBucketLifecycle(ctx, &s3.DeleteBucketLifecycleInput{Bucket: aws.String(bucket)})
		if err != nil && !isNotFoundError(err) {
			return fmt.Errorf("failed to delete lifecycle of bucket %s: %w", bucket, err)
		}
		return nil
	}
	return c.putLifecycle(ctx, bucket, remaining)
}

func (c *Client) getLifecycle(ctx context.Context, bucket string) ([]types.LifecycleRule, error) {
	out, err := c.s3.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if hasErrorCode(err, "NoSuchLifecycleConfiguration") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lifecycle of bucket %s: %w", bucket, err)
	}
	return out.Rules, nil
}

func (c *Client) putLifecycle(ctx context.Context, bucket string, rules []types.LifecycleRule) error {
	_, err := c.s3.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket:                 aws.String(bucket),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{Rules: rules},
	})
	if err != nil {
		return fmt.Errorf("failed to put lifecycle of bucket %s: %w", bucket, err)
	}
	return nil
}

func withoutRule(rules []types.LifecycleRule, id string) []types.LifecycleRule {
	out := make([]types.LifecycleRule, 0, len(rules))
	for _, r := range rules {
		if aws.ToString(r.ID) != id {
			out = append(out, r)
		}
	}
	return out
}
