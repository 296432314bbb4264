package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeforge/internal/util/retry"
)

type volumeResize struct {
	size int
}

// EnsureVolume ensures that a volume of at least sizeGB exists in
// location. Volumes only grow; a larger existing volume is kept.
func (c *RealClient) EnsureVolume(ctx context.Context, name, location string, sizeGB int, format string, labels map[string]string) (*hcloud.Volume, error) {
	return (&EnsureOperation[*hcloud.Volume, hcloud.VolumeCreateOpts, volumeResize]{
		Name:         name,
		ResourceType: "volume",
		Get:          c.client.Volume.Get,
		Create:       c.createVolume,
		Validate: func(v *hcloud.Volume) error {
			if v.Location != nil && location != "" && v.Location.Name != location {
				return retry.Fatal(fmt.Errorf("volume %s exists in %s (expected %s)", name, v.Location.Name, location))
			}
			return nil
		},
		Update: func(ctx context.Context, v *hcloud.Volume, opts volumeResize) ([]*hcloud.Action, *hcloud.Response, error) {
			if v.Size >= opts.size {
				return nil, nil, nil
			}
			action, resp, err := c.client.Volume.Resize(ctx, v, opts.size)
			if err != nil {
				return nil, resp, err
			}
			return []*hcloud.Action{action}, resp, nil
		},
		CreateOptsMapper: func() hcloud.VolumeCreateOpts {
			opts := hcloud.VolumeCreateOpts{
				Name:     name,
				Size:     sizeGB,
				Labels:   labels,
				Location: &hcloud.Location{Name: location},
			}
			if format != "" {
				opts.Format = hcloud.Ptr(format)
			}
			return opts
		},
		UpdateOptsMapper: func(*hcloud.Volume) volumeResize {
			return volumeResize{size: sizeGB}
		},
	}).Execute(ctx, c)
}

func (c *RealClient) createVolume(ctx context.Context, opts hcloud.VolumeCreateOpts) (*CreateResult[*hcloud.Volume], *hcloud.Response, error) {
	res, resp, err := c.client.Volume.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	actions := append([]*hcloud.Action{}, res.NextActions...)
	if res.Action != nil {
		actions = append(actions, res.Action)
	}
	return &CreateResult[*hcloud.Volume]{
		Resource: res.Volume,
		Actions:  actions,
	}, resp, nil
}

// AttachVolume attaches the volume to server with automount. A volume
// attached elsewhere is detached first.
func (c *RealClient) AttachVolume(ctx context.Context, volumeID int64, server *hcloud.Server) error {
	volume, _, err := c.client.Volume.GetByID(ctx, volumeID)
	if err != nil {
		return fmt.Errorf("failed to get volume: %w", err)
	}
	if volume == nil {
		return fmt.Errorf("volume %d not found", volumeID)
	}
	if volume.Server != nil {
		if volume.Server.ID == server.ID {
			return nil
		}
		action, _, err := c.client.Volume.Detach(ctx, volume)
		if err != nil {
			return fmt.Errorf("failed to detach volume: %w", err)
		}
		if err := c.client.Action.WaitFor(ctx, action); err != nil {
			return fmt.Errorf("failed to wait for volume detach: %w", err)
		}
	}

	return retry.WithExponentialBackoff(ctx, func() error {
		action, _, err := c.client.Volume.AttachWithOpts(ctx, volume, hcloud.VolumeAttachOpts{
			Server:    server,
			Automount: hcloud.Ptr(true),
		})
		if err != nil {
			if isResourceLocked(err) {
				return err
			}
			return retry.Fatal(fmt.Errorf("failed to attach volume: %w", err))
		}
		return c.client.Action.WaitFor(ctx, action)
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}

// DeleteVolume detaches and deletes the volume with the given name.
func (c *RealClient) DeleteVolume(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Volume]{
		Name:         name,
		ResourceType: "volume",
		Get:          c.client.Volume.Get,
		Delete: func(ctx context.Context, v *hcloud.Volume) (*hcloud.Response, error) {
			if v.Server != nil {
				action, resp, err := c.client.Volume.Detach(ctx, v)
				if err != nil {
					return resp, err
				}
				if err := c.client.Action.WaitFor(ctx, action); err != nil {
					return resp, err
				}
			}
			return c.client.Volume.Delete(ctx, v)
		},
	}).Execute(ctx, c)
}
