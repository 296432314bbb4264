package stack

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodeforge/internal/artifact"
	"github.com/imamik/nodeforge/internal/bootstrap"
	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/orchestration"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/provisioning/fakes"
	"github.com/imamik/nodeforge/internal/state"
)

const testNodeKey = "NODEKEY"

const testPublicKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIOMqqnkVzrm0SdG6UOoqKLsabgH5C9okWi0dh2l9GKJl eth"

func testConfig(t *testing.T, mutate ...func(*config.Config)) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Stack:  "eth",
		Region: "fsn1",
		Domain: config.NewSubdomain("node", "example.com"),
	}
	for _, m := range mutate {
		m(cfg)
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func testInput(t *testing.T, cfg *config.Config) Input {
	t.Helper()
	id := IdentityFrom(cfg)
	set, err := Artifacts(id, cfg)
	require.NoError(t, err)
	return Input{
		Identity:      id,
		Config:        cfg,
		Artifacts:     set,
		SSHPublicKey:  []byte(testPublicKey),
		NodeAccessKey: testNodeKey,
		Now:           testNow,
	}
}

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func nodeIDs(g *graph.Graph) []string {
	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	return ids
}

func mustNode(t *testing.T, g *graph.Graph, id string) *graph.Node {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok, "node %s not declared", id)
	return n
}

func TestBuild_DeclaresFullStack(t *testing.T) {
	t.Parallel()

	in := testInput(t, testConfig(t))
	g, err := Build(in)
	require.NoError(t, err)

	var assets []string
	for _, a := range in.Artifacts.Unique() {
		assets = append(assets, AssetNode(a))
	}
	want := []string{NodeNetwork, NodeSubnet, NodeFirewall, NodeIdentity, NodeAssetBucket}
	want = append(want, assets...)
	want = append(want,
		NodeAssetGrant, NodeImage, NodeVolume, NodeGroup, NodeLogBucket,
		LogGroupNode("geth", "stdout"), LogGroupNode("geth", "stderr"),
		LogGroupNode("lighthouse", "stdout"), LogGroupNode("lighthouse", "stderr"),
		NodeLogGrant,
		NodeZone, NodeCertificate, NodeBalancer, NodeListener, NodeRecordA, NodeRecordAAAA,
	)
	if diff := cmp.Diff(want, nodeIDs(g)); diff != "" {
		t.Errorf("declared nodes mismatch (-want +got):\n%s", diff)
	}

	for _, n := range g.Nodes() {
		assert.NotEmpty(t, n.Region, "node %s has no region", n.ID)
	}
}

func TestBuild_EdgeAndDNSOrdering(t *testing.T) {
	t.Parallel()

	g, err := Build(testInput(t, testConfig(t)))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{NodeCertificate, NodeBalancer, NodeGroup}, mustNode(t, g, NodeListener).DependsOn)
	assert.Equal(t, []string{NodeZone}, mustNode(t, g, NodeCertificate).DependsOn)
	assert.Contains(t, mustNode(t, g, NodeBalancer).DependsOn, NodeGroup)

	for _, id := range []string{NodeRecordA, NodeRecordAAAA} {
		rec := mustNode(t, g, id)
		assert.ElementsMatch(t, []string{NodeZone, NodeBalancer, NodeListener}, rec.DependsOn)
		assert.Equal(t, "node.example.com", rec.Properties["name"])
		assert.Equal(t, RecordTTL, rec.Properties["ttl"])
	}
	assert.Equal(t, "A", mustNode(t, g, NodeRecordA).Properties["type"])
	assert.Equal(t, graph.Ref{Node: NodeBalancer, Output: OutIPv6}, mustNode(t, g, NodeRecordAAAA).Properties["content"])
	assert.Equal(t, "example.com", mustNode(t, g, NodeZone).Properties["name"])
}

func TestBuild_CertificateRenewal(t *testing.T) {
	t.Parallel()

	certificate := func(now time.Time) *graph.Node {
		in := testInput(t, testConfig(t))
		in.Now = now
		g, err := Build(in)
		require.NoError(t, err)
		return mustNode(t, g, NodeCertificate)
	}

	cert := certificate(testNow)
	assert.Equal(t, graph.Ref{Node: NodeZone, Output: OutID}, cert.Properties["zone"], "challenges are answered in the zone by id")

	tests := []struct {
		name     string
		at       time.Time
		sameSlot bool
	}{
		{name: "same instant", at: testNow, sameSlot: true},
		{name: "next renewal period", at: testNow.Add(config.CertificateRenewal), sameSlot: false},
		{name: "two periods later", at: testNow.Add(2 * config.CertificateRenewal), sameSlot: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := certificate(tt.at).Properties["renewal_window"]
			if tt.sameSlot {
				assert.Equal(t, cert.Properties["renewal_window"], got)
			} else {
				assert.NotEqual(t, cert.Properties["renewal_window"], got)
			}
		})
	}
}

func TestBuild_CertificateRegion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		region string
		want   string
	}{
		{"defaults to stack region", "", "fsn1"},
		{"separately configured", "hel1", "hel1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t, func(c *config.Config) { c.CertificateRegion = tt.region })
			g, err := Build(testInput(t, cfg))
			require.NoError(t, err)
			assert.Equal(t, tt.want, mustNode(t, g, NodeCertificate).Region)
			assert.Equal(t, "fsn1", mustNode(t, g, NodeBalancer).Region)
		})
	}
}

func TestBuild_FirewallRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		admin     []string
		wantPorts []string
	}{
		{"no ssh by default", nil, []string{"30303", "9000"}},
		{"ssh from admin ranges", []string{"203.0.113.0/24"}, []string{"30303", "9000", "22"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t, func(c *config.Config) { c.Access.AdminCIDRs = tt.admin })
			g, err := Build(testInput(t, cfg))
			require.NoError(t, err)

			req := provisioning.Request{Properties: mustNode(t, g, NodeFirewall).Properties}
			var ports []string
			for _, r := range req.Maps("rules") {
				ports = append(ports, r["port"])
				assert.Equal(t, "in", r["direction"])
				if r["port"] == "22" {
					assert.Equal(t, "203.0.113.0/24", r["source_ips"])
				}
			}
			assert.Equal(t, tt.wantPorts, ports)
		})
	}
}

func TestBuild_InstanceGroup(t *testing.T) {
	t.Parallel()

	in := testInput(t, testConfig(t))
	g, err := Build(in)
	require.NoError(t, err)

	group := mustNode(t, g, NodeGroup)
	assert.Equal(t, GroupSize, group.Properties["min_size"])
	assert.Equal(t, GroupSize, group.Properties["max_size"])
	assert.Equal(t, "cax21", group.Properties["server_type"])
	for _, dep := range []string{NodeNetwork, NodeFirewall, NodeIdentity, NodeAssetGrant} {
		assert.Contains(t, group.DependsOn, dep)
	}

	script, _ := group.Properties["user_data"].(string)
	require.NotEmpty(t, script)
	for _, a := range in.Artifacts.Items() {
		loc := artifact.LocatorFor(in.Config.ContentStore.Endpoint, in.Config.ContentStore.Bucket, a)
		assert.Contains(t, script, loc.URL(), "startup script downloads %s", a.Name)
	}
}

func TestBuild_GrantsNameTheNodeCredential(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		principal string
		want      string
	}{
		{"defaults to the node access key", "", testNodeKey},
		{"configured policy user", "p1a2b3c", "p1a2b3c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t, func(c *config.Config) { c.Access.StoragePrincipal = tt.principal })
			g, err := Build(testInput(t, cfg))
			require.NoError(t, err)

			assert.Equal(t, tt.want, mustNode(t, g, NodeIdentity).Properties["principal"])
			ref := graph.Ref{Node: NodeIdentity, Output: OutPrincipal}
			assert.Equal(t, ref, mustNode(t, g, NodeAssetGrant).Properties["principal"])

			logs := mustNode(t, g, NodeLogGrant)
			assert.Equal(t, ref, logs.Properties["principal"])
			assert.Equal(t, []string{"s3:PutObject"}, logs.Properties["actions"])
			assert.Contains(t, logs.Properties["keys"], "eth-sepolia-geth--stdout-log/*")
			assert.ElementsMatch(t, []string{NodeLogBucket, NodeIdentity}, logs.DependsOn)
		})
	}
}

func TestBuild_StartupScriptSignsWithNodeKey(t *testing.T) {
	t.Parallel()

	in := testInput(t, testConfig(t))
	g, err := Build(in)
	require.NoError(t, err)

	script, _ := mustNode(t, g, NodeGroup).Properties["user_data"].(string)
	require.NotEmpty(t, script)
	assert.Contains(t, script, "NODEFORGE_STORAGE_ACCESS_KEY NODEKEY NODEFORGE_STORAGE_SECRET_KEY "+bootstrap.SecretKeyPlaceholder)
	for _, a := range in.Artifacts.Items() {
		loc := artifact.LocatorFor(in.Config.ContentStore.Endpoint, in.Config.ContentStore.Bucket, a)
		assert.Contains(t, script, "--aws-sigv4 aws:amz:fsn1:s3 --user \"${NODEFORGE_STORAGE_ACCESS_KEY}:${NODEFORGE_STORAGE_SECRET_KEY}\" -o "+a.LocalPath+" "+loc.URL())
	}
}

func TestBuild_IdenticalContentSharesAssetNode(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	set := artifact.NewSet()
	same := []byte("shared = true\n")
	for _, spec := range []struct {
		name, path string
		content    []byte
	}{
		{artifact.InstallScript, artifact.InstallScriptPath, []byte("#!/bin/bash\necho install\n")},
		{artifact.NodeConfig, "/home/node/sepolia.ini", same},
		{artifact.AgentConfig, artifact.AgentConfigPath, same},
	} {
		a, err := artifact.New(spec.name, spec.path, spec.content)
		require.NoError(t, err)
		require.NoError(t, set.Add(a))
	}

	in := Input{Identity: IdentityFrom(cfg), Config: cfg, Artifacts: set, SSHPublicKey: []byte(testPublicKey), NodeAccessKey: testNodeKey}
	g, err := Build(in)
	require.NoError(t, err)

	assetCount := 0
	for _, n := range g.Nodes() {
		if n.Kind == provisioning.KindAsset {
			assetCount++
		}
	}
	assert.Equal(t, 2, assetCount)

	seq, err := bootstrapSequence(in)
	require.NoError(t, err)
	downloads := seq.Downloads()
	require.Len(t, downloads, 3)
	assert.Equal(t, downloads[1].Produces, []string{"/home/node/sepolia.ini"})
	assert.Equal(t, downloads[2].Produces, []string{artifact.AgentConfigPath})

	grant := provisioning.Request{Properties: mustNode(t, g, NodeAssetGrant).Properties}
	assert.Len(t, grant.Strings("keys"), 2)
}

func TestBuild_LogGroupsFollowNamingConvention(t *testing.T) {
	t.Parallel()

	in := testInput(t, testConfig(t))
	g, err := Build(in)
	require.NoError(t, err)

	stdout := mustNode(t, g, LogGroupNode("geth", "stdout"))
	assert.Equal(t, "eth-sepolia-geth--stdout-log", stdout.Properties["name"])
	assert.Equal(t, 14, stdout.Properties["retention_days"])
	assert.Equal(t, 30, mustNode(t, g, LogGroupNode("lighthouse", "stderr")).Properties["retention_days"])

	for _, n := range g.Nodes() {
		if n.Kind == provisioning.KindInstanceGroup {
			for _, dep := range n.DependsOn {
				assert.False(t, strings.HasPrefix(dep, "observability."), "compute must not depend on log groups")
			}
		}
	}

	agent, ok := in.Artifacts.Get(artifact.AgentConfig)
	require.True(t, ok)
	assert.Contains(t, string(agent.Content), "eth-sepolia-geth--stdout-log")
	assert.Contains(t, string(agent.Content), "/home/node/geth.stdout.log")
}

func TestBuild_InvalidInput(t *testing.T) {
	t.Parallel()

	valid := testInput(t, testConfig(t))
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"no config", func(in *Input) { in.Config = nil }},
		{"no identity", func(in *Input) { in.Identity = Identity{} }},
		{"no artifacts", func(in *Input) { in.Artifacts = artifact.NewSet() }},
		{"no ssh key", func(in *Input) { in.SSHPublicKey = nil }},
		{"no node access key", func(in *Input) { in.NodeAccessKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := valid
			tt.mutate(&in)
			_, err := Build(in)
			assert.Error(t, err)
		})
	}
}

func TestValidate_Invariants(t *testing.T) {
	t.Parallel()

	domain := config.NewSubdomain("node", "example.com")
	base := func() []*graph.Node {
		return []*graph.Node{
			{ID: "net", Kind: provisioning.KindNetwork},
			{ID: "group", Kind: provisioning.KindInstanceGroup},
			{ID: "lb", Kind: provisioning.KindLoadBalancer},
			{ID: "listener", Kind: provisioning.KindListener, DependsOn: []string{"lb"}},
			{ID: "zone", Kind: provisioning.KindDNSZone, Properties: graph.Properties{"name": "example.com"}},
			{ID: "rec", Kind: provisioning.KindDNSRecord, DependsOn: []string{"zone", "lb", "listener"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func([]*graph.Node) []*graph.Node
		wantErr string
	}{
		{"valid", func(n []*graph.Node) []*graph.Node { return n }, ""},
		{"two networks", func(n []*graph.Node) []*graph.Node {
			return append(n, &graph.Node{ID: "net2", Kind: provisioning.KindNetwork})
		}, "exactly one network"},
		{"no load balancer", func(n []*graph.Node) []*graph.Node {
			n[2].Kind = "test"
			return n
		}, "exactly one load-balancer"},
		{"zone mismatch", func(n []*graph.Node) []*graph.Node {
			n[4].Properties["name"] = "other.org"
			return n
		}, "does not match domain zone"},
		{"record before listener", func(n []*graph.Node) []*graph.Node {
			n[5].DependsOn = []string{"zone", "lb"}
			return n
		}, `must depend on "listener"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := graph.New()
			for _, n := range tt.mutate(base()) {
				require.NoError(t, g.Add(n))
			}
			err := Validate(g, domain)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var invariantErr *InvariantError
			require.ErrorAs(t, err, &invariantErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// edgeProvider reports the addresses records alias.
func edgeProvider() *fakes.Provider {
	p := fakes.NewProvider()
	p.SetOutputs(NodeBalancer, provisioning.Outputs{"id": "42", "ipv4": "192.0.2.10", "ipv6": "2001:db8::10"})
	return p
}

func TestReconcile_RecordsFollowEdge(t *testing.T) {
	t.Parallel()

	g, err := Build(testInput(t, testConfig(t)))
	require.NoError(t, err)

	p := edgeProvider()
	r := orchestration.NewReconciler("stack-order", p, state.NewMemoryStore(), orchestration.WithConcurrency(4))
	_, err = r.Reconcile(context.Background(), g)
	require.NoError(t, err)

	realized := p.Realized()
	pos := make(map[string]int, len(realized))
	for i, id := range realized {
		pos[id] = i
	}
	require.Len(t, pos, g.Len())
	for _, rec := range []string{NodeRecordA, NodeRecordAAAA} {
		assert.Greater(t, pos[rec], pos[NodeBalancer])
		assert.Greater(t, pos[rec], pos[NodeListener])
	}
	assert.Greater(t, pos[NodeListener], pos[NodeCertificate])
	assert.Greater(t, pos[NodeGroup], pos[NodeAssetGrant])

	for _, c := range p.Calls() {
		switch c.ID {
		case NodeRecordAAAA:
			assert.Equal(t, "2001:db8::10", c.Properties["content"])
		case NodeAssetGrant, NodeLogGrant:
			assert.Equal(t, testNodeKey, c.Properties["principal"], c.ID)
		}
	}
}

func TestReconcile_SecondPassRealizesNothing(t *testing.T) {
	t.Parallel()

	in := testInput(t, testConfig(t))
	p := edgeProvider()
	store := state.NewMemoryStore()
	r := orchestration.NewReconciler("stack-idempotent", p, store)

	g, err := Build(in)
	require.NoError(t, err)
	_, err = r.Reconcile(context.Background(), g)
	require.NoError(t, err)
	p.Reset()

	g, err = Build(in)
	require.NoError(t, err)
	report, err := r.Reconcile(context.Background(), g)
	require.NoError(t, err)
	assert.Empty(t, p.Realized())
	assert.False(t, report.Changed())
}

func TestReconcile_MissingZoneBlocksEdge(t *testing.T) {
	t.Parallel()

	g, err := Build(testInput(t, testConfig(t)))
	require.NoError(t, err)

	p := edgeProvider()
	p.FailOn(NodeZone, &provisioning.ZoneNotFoundError{Zone: "example.com"})
	r := orchestration.NewReconciler("stack-zone", p, state.NewMemoryStore())

	report, err := r.Reconcile(context.Background(), g)
	var zoneErr *provisioning.ZoneNotFoundError
	require.ErrorAs(t, err, &zoneErr)

	for _, id := range []string{NodeCertificate, NodeListener, NodeRecordA, NodeRecordAAAA} {
		res, ok := report.Result(id)
		require.True(t, ok)
		assert.Equal(t, orchestration.StatusBlocked, res.Status, id)
		assert.Equal(t, NodeZone, res.Cause)
	}
	res, _ := report.Result(NodeGroup)
	assert.Equal(t, orchestration.StatusCreated, res.Status)
}

func TestIdentity_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "eth@fsn1", Identity{Name: "eth", Region: "fsn1"}.String())
	assert.Equal(t, "eth@acme/fsn1", Identity{Name: "eth", Account: "acme", Region: "fsn1"}.String())
}
