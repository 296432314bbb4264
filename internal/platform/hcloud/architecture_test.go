package hcloud

import (
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

func TestParseArchitecture(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    hcloud.Architecture
		wantErr bool
	}{
		{"arm", hcloud.ArchitectureARM, false},
		{"ARM64", hcloud.ArchitectureARM, false},
		{"x86", hcloud.ArchitectureX86, false},
		{"amd64", hcloud.ArchitectureX86, false},
		{"riscv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseArchitecture(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseArchitecture(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseArchitecture(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
