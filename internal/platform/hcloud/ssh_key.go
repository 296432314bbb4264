package hcloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// EnsureSSHKey ensures that a key named name holds publicKey. Keys cannot
// be edited in place, so a key with other material is replaced.
func (c *RealClient) EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (*hcloud.SSHKey, error) {
	existing, _, err := c.client.SSHKey.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get ssh key: %w", err)
	}
	if existing != nil && keyMaterial(existing.PublicKey) != keyMaterial(publicKey) {
		if err := c.DeleteSSHKey(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to replace ssh key: %w", err)
		}
	}

	return (&EnsureOperation[*hcloud.SSHKey, hcloud.SSHKeyCreateOpts, hcloud.SSHKeyUpdateOpts]{
		Name:         name,
		ResourceType: "ssh key",
		Get:          c.client.SSHKey.Get,
		Create:       simpleCreate(c.client.SSHKey.Create),
		Update:       updateOnly(c.client.SSHKey.Update),
		CreateOptsMapper: func() hcloud.SSHKeyCreateOpts {
			return hcloud.SSHKeyCreateOpts{
				Name:      name,
				PublicKey: publicKey,
				Labels:    labels,
			}
		},
		UpdateOptsMapper: func(*hcloud.SSHKey) hcloud.SSHKeyUpdateOpts {
			return hcloud.SSHKeyUpdateOpts{Labels: labels}
		},
	}).Execute(ctx, c)
}

// keyMaterial drops the comment from an authorized_keys line.
func keyMaterial(key string) string {
	fields := strings.Fields(key)
	if len(fields) < 2 {
		return strings.TrimSpace(key)
	}
	return fields[0] + " " + fields[1]
}

// DeleteSSHKey deletes the SSH key with the given name.
func (c *RealClient) DeleteSSHKey(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.SSHKey]{
		Name:         name,
		ResourceType: "ssh key",
		Get:          c.client.SSHKey.Get,
		Delete:       c.client.SSHKey.Delete,
	}).Execute(ctx, c)
}
