package stack

import (
	"github.com/imamik/nodeforge/internal/artifact"
	"github.com/imamik/nodeforge/internal/bootstrap"
	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/util/naming"
)

// Client output streams.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

type logGroup struct {
	client, stream string
	retentionDays  int
}

func logGroups(cfg *config.Config) []logGroup {
	var out []logGroup
	for _, client := range []string{bootstrap.ExecutionClient, bootstrap.ConsensusClient} {
		out = append(out,
			logGroup{client: client, stream: StreamStdout, retentionDays: cfg.Logs.StdoutRetentionDays},
			logGroup{client: client, stream: StreamStderr, retentionDays: cfg.Logs.StderrRetentionDays},
		)
	}
	return out
}

// logStreams tells the on-instance agent which file feeds which log group.
// The groups are matched by name only; compute has no edge to them.
func logStreams(id Identity, cfg *config.Config) []artifact.LogStream {
	var out []artifact.LogStream
	for _, lg := range logGroups(cfg) {
		out = append(out, artifact.LogStream{
			Name:   naming.LogGroup(id.Name, cfg.Network, lg.client, lg.stream),
			Source: lg.client + "_" + lg.stream,
			Path:   bootstrap.LogPath(Home(cfg), lg.client, lg.stream),
		})
	}
	return out
}

func (b *builder) observability() {
	store := b.cfg.ContentStore
	b.add(&graph.Node{
		ID:     NodeLogBucket,
		Kind:   provisioning.KindBucket,
		Region: store.Region,
		Properties: graph.Properties{
			"name":     b.cfg.Logs.Bucket,
			"endpoint": store.Endpoint,
		},
	})

	var prefixes []string
	for _, lg := range logGroups(b.cfg) {
		name := naming.LogGroup(b.id.Name, b.cfg.Network, lg.client, lg.stream)
		prefixes = append(prefixes, name+"/*")
		b.add(&graph.Node{
			ID:     LogGroupNode(lg.client, lg.stream),
			Kind:   provisioning.KindLogGroup,
			Region: store.Region,
			Properties: graph.Properties{
				"name":           name,
				"bucket":         graph.Ref{Node: NodeLogBucket, Output: OutName},
				"prefix":         name + "/",
				"retention_days": lg.retentionDays,
			},
			DependsOn: []string{NodeLogBucket},
		})
	}

	// The agent uploads under the group prefixes with the node's key.
	b.add(&graph.Node{
		ID:     NodeLogGrant,
		Kind:   provisioning.KindAssetGrant,
		Region: store.Region,
		Properties: graph.Properties{
			"bucket":    graph.Ref{Node: NodeLogBucket, Output: OutName},
			"sid":       naming.LogPolicySid(b.id.Name),
			"principal": graph.Ref{Node: NodeIdentity, Output: OutPrincipal},
			"actions":   []string{"s3:PutObject"},
			"keys":      prefixes,
		},
		DependsOn: []string{NodeLogBucket, NodeIdentity},
	})
}
