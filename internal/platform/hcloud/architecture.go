package hcloud

import (
	"fmt"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ParseArchitecture maps the configured architecture name to the API value.
// Both the short form (arm, x86) and the Go form (arm64, amd64) are accepted.
func ParseArchitecture(name string) (hcloud.Architecture, error) {
	switch strings.ToLower(name) {
	case "arm", "arm64":
		return hcloud.ArchitectureARM, nil
	case "x86", "amd64", "x86_64":
		return hcloud.ArchitectureX86, nil
	default:
		return "", fmt.Errorf("unknown architecture %q", name)
	}
}
