package provisioning

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/util/retry"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"zone not found", &ZoneNotFoundError{Zone: "example.com"}, false},
		{"wrapped zone not found", &RealizationError{Node: "zone", Kind: KindDNSZone, Err: &ZoneNotFoundError{Zone: "example.com"}}, false},
		{"cycle", &graph.CycleError{Nodes: []string{"a", "b"}}, false},
		{"timeout", &TimeoutError{Node: "certificate", Timeout: time.Minute}, true},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), true},
		{"fatal", retry.Fatal(errors.New("invalid input")), false},
		{"plain", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRealizationError_Unwrap(t *testing.T) {
	t.Parallel()

	root := &ZoneNotFoundError{Zone: "example.com"}
	err := &RealizationError{Node: "zone", Kind: KindDNSZone, Err: root}

	var zoneErr *ZoneNotFoundError
	assert.True(t, errors.As(err, &zoneErr))
	assert.Equal(t, "example.com", zoneErr.Zone)
	assert.Equal(t, `failed to realize dns-zone "zone": dns zone "example.com" not found`, err.Error())
}

func TestTimeoutError_Message(t *testing.T) {
	t.Parallel()

	err := &TimeoutError{Node: "certificate", Operation: "certificate issuance", Timeout: 30 * time.Minute}
	assert.Equal(t, `node "certificate": certificate issuance did not complete within 30m0s`, err.Error())

	bare := &TimeoutError{Node: "x", Timeout: time.Second}
	assert.Contains(t, bare.Error(), "realization did not complete")
}

func TestBlockedError_Message(t *testing.T) {
	t.Parallel()

	err := &BlockedError{Node: "record-a", Cause: "zone"}
	assert.Equal(t, `node "record-a" blocked by failed dependency "zone"`, err.Error())
}
