package hcloud

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

func TestErrorClassification(t *testing.T) {
	locked := hcloud.Error{Code: hcloud.ErrorCodeLocked, Message: "locked"}
	notFound := hcloud.Error{Code: hcloud.ErrorCodeNotFound, Message: "not found"}

	tests := []struct {
		name        string
		err         error
		wantLocked  bool
		wantInvalid bool
		wantMissing bool
	}{
		{name: "nil error"},
		{name: "generic error", err: errors.New("boom")},
		{name: "locked", err: locked, wantLocked: true},
		{name: "wrapped locked", err: fmt.Errorf("delete: %w", locked), wantLocked: true},
		{name: "conflict", err: hcloud.Error{Code: hcloud.ErrorCodeConflict}, wantLocked: true},
		{name: "resource unavailable", err: hcloud.Error{Code: hcloud.ErrorCodeResourceUnavailable}, wantLocked: true},
		{name: "not found", err: notFound, wantInvalid: true, wantMissing: true},
		{name: "invalid input", err: hcloud.Error{Code: hcloud.ErrorCodeInvalidInput}, wantInvalid: true},
		{name: "uniqueness", err: hcloud.Error{Code: hcloud.ErrorCodeUniquenessError}, wantInvalid: true},
		{name: "rate limited", err: hcloud.Error{Code: hcloud.ErrorCodeRateLimitExceeded}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isResourceLocked(tt.err); got != tt.wantLocked {
				t.Errorf("isResourceLocked(%v) = %v, want %v", tt.err, got, tt.wantLocked)
			}
			if got := isInvalidParameter(tt.err); got != tt.wantInvalid {
				t.Errorf("isInvalidParameter(%v) = %v, want %v", tt.err, got, tt.wantInvalid)
			}
			if got := IsNotFound(tt.err); got != tt.wantMissing {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.wantMissing)
			}
		})
	}
}
