package provisioning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodeforge/internal/graph"
)

type noopRealizer struct{}

func (noopRealizer) Realize(context.Context, Request) (Outputs, error) { return Outputs{}, nil }
func (noopRealizer) Delete(context.Context, Request) error             { return nil }

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(KindNetwork, noopRealizer{})
	r.Register(KindFirewall, noopRealizer{})

	got, err := r.Realizer(KindNetwork)
	require.NoError(t, err)
	assert.NotNil(t, got)

	_, err = r.Realizer(KindCertificate)
	assert.ErrorContains(t, err, `no realizer registered for kind "certificate"`)

	assert.Equal(t, []graph.Kind{KindFirewall, KindNetwork}, r.Kinds())
}

func TestRegistry_Missing(t *testing.T) {
	t.Parallel()

	g := graph.New()
	require.NoError(t, g.Add(&graph.Node{ID: "network", Kind: KindNetwork}))
	require.NoError(t, g.Add(&graph.Node{ID: "zone", Kind: KindDNSZone}))
	require.NoError(t, g.Add(&graph.Node{ID: "record-a", Kind: KindDNSRecord}))
	require.NoError(t, g.Add(&graph.Node{ID: "record-aaaa", Kind: KindDNSRecord}))

	r := NewRegistry()
	r.Register(KindNetwork, noopRealizer{})

	assert.Equal(t, []graph.Kind{KindDNSZone, KindDNSRecord}, r.Missing(g))
}

func TestStateOnly(t *testing.T) {
	t.Parallel()

	assert.True(t, StateOnly(KindAsset))
	assert.True(t, StateOnly(KindDNSZone))
	assert.False(t, StateOnly(KindInstanceGroup))
}
