package s3

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const policyVersion = "2012-10-17"

// PolicyStatement is one statement of a bucket policy. Sid identifies the
// statement so it can be replaced or removed without touching others.
type PolicyStatement struct {
	Sid       string              `json:"Sid"`
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

// policyDocument keeps statements raw so foreign statements survive a
// rewrite unchanged.
type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []json.RawMessage `json:"Statement"`
}

// ObjectARN returns the resource name of key in bucket.
func ObjectARN(bucket, key string) string {
	return "arn:aws:s3:::" + bucket + "/" + key
}

// UserPrincipal returns the policy principal for a named user.
func UserPrincipal(name string) map[string][]string {
	return map[string][]string{"AWS": {"arn:aws:iam:::user/" + name}}
}

// UpsertPolicyStatement adds stmt to the bucket policy, replacing any
// statement with the same Sid.
func (c *Client) UpsertPolicyStatement(ctx context.Context, bucket string, stmt PolicyStatement) error {
	if stmt.Sid == "" {
		return fmt.Errorf("policy statement for bucket %s has no Sid", bucket)
	}
	raw, err := json.Marshal(stmt)
	if err != nil {
		return fmt.Errorf("failed to encode policy statement: %w", err)
	}

	c.policyMu.Lock()
	defer c.policyMu.Unlock()

	doc, err := c.getPolicy(ctx, bucket)
	if err != nil {
		return err
	}
	doc.Statement = append(withoutSid(doc.Statement, stmt.Sid), raw)
	return c.putPolicy(ctx, bucket, doc)
}

// RemovePolicyStatement drops the statement with sid. The policy is
// deleted once no statement remains.
func (c *Client) RemovePolicyStatement(ctx context.Context, bucket, sid string) error {
	c.policyMu.Lock()
	defer c.policyMu.Unlock()

	doc, err := c.getPolicy(ctx, bucket)
	if err != nil {
		if isNotFoundError(err) {
			return nil
		}
		return err
	}
	remaining := withoutSid(doc.Statement, sid)
	if len(remaining) == len(doc.Statement) {
		return nil
	}
	if len(remaining) == 0 {
		_, err := c.s3.DeleteBucketPolicy(ctx, &s3.DeleteBucketPolicyInput{Bucket: aws.String(bucket)})
		if err != nil && !isNotFoundError(err) {
			return fmt.Errorf("failed to delete policy of bucket %s: %w", bucket, err)
		}
		return nil
	}
	doc.Statement = remaining
	return c.putPolicy(ctx, bucket, doc)
}

// PolicyStatements returns the Sids of the statements in the bucket policy.
func (c *Client) PolicyStatements(ctx context.Context, bucket string) ([]string, error) {
	c.policyMu.Lock()
	defer c.policyMu.Unlock()

	doc, err := c.getPolicy(ctx, bucket)
	if err != nil {
		return nil, err
	}
	sids := make([]string, 0, len(doc.Statement))
	for _, raw := range doc.Statement {
		sids = append(sids, statementSid(raw))
	}
	return sids, nil
}

func (c *Client) getPolicy(ctx context.Context, bucket string) (*policyDocument, error) {
	out, err := c.s3.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: aws.String(bucket)})
	if err != nil {
		if hasErrorCode(err, "NoSuchBucketPolicy") {
			return &policyDocument{Version: policyVersion}, nil
		}
		return nil, fmt.Errorf("failed to get policy of bucket %s: %w", bucket, err)
	}

	doc := &policyDocument{}
	if err := json.Unmarshal([]byte(aws.ToString(out.Policy)), doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy of bucket %s: %w", bucket, err)
	}
	if doc.Version == "" {
		doc.Version = policyVersion
	}
	return doc, nil
}

func (c *Client) putPolicy(ctx context.Context, bucket string, doc *policyDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	_, err = c.s3.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(string(data)),
	})
	if err != nil {
		return fmt.Errorf("failed to put policy of bucket %s: %w", bucket, err)
	}
	return nil
}

func withoutSid(statements []json.RawMessage, sid string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(statements))
	for _, raw := range statements {
		if statementSid(raw) != sid {
			out = append(out, raw)
		}
	}
	return out
}

func statementSid(raw json.RawMessage) string {
	var s struct {
		Sid string `json:"Sid"`
	}
	_ = json.Unmarshal(raw, &s)
	return s.Sid
}
