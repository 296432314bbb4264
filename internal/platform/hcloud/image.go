package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeforge/internal/util/retry"
)

// FindImage returns the system image named name for arch. Images are
// provider-owned, so a missing image is fatal.
func (c *RealClient) FindImage(ctx context.Context, name string, arch hcloud.Architecture) (*hcloud.Image, error) {
	image, _, err := c.client.Image.GetForArchitecture(ctx, name, arch)
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return nil, retry.Fatal(fmt.Errorf("image %q not found for %s", name, arch))
	}
	if image.Status != hcloud.ImageStatusAvailable {
		return nil, fmt.Errorf("image %q is %s", name, image.Status)
	}
	return image, nil
}
