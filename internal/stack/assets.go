package stack

import (
	"encoding/base64"

	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/util/naming"
)

// assetNodes returns the IDs of the asset nodes, one per distinct content.
func (b *builder) assetNodes() []string {
	var ids []string
	for _, a := range b.in.Artifacts.Unique() {
		ids = append(ids, AssetNode(a))
	}
	return ids
}

func (b *builder) assets() {
	store := b.cfg.ContentStore
	b.add(&graph.Node{
		ID:     NodeAssetBucket,
		Kind:   provisioning.KindBucket,
		Region: store.Region,
		Properties: graph.Properties{
			"name":     store.Bucket,
			"endpoint": store.Endpoint,
		},
	})

	var keys []string
	for _, a := range b.in.Artifacts.Unique() {
		keys = append(keys, a.Key())
		b.add(&graph.Node{
			ID:     AssetNode(a),
			Kind:   provisioning.KindAsset,
			Region: store.Region,
			Properties: graph.Properties{
				"bucket":  graph.Ref{Node: NodeAssetBucket, Output: OutName},
				"key":     a.Key(),
				"digest":  a.Digest.String(),
				"content": base64.StdEncoding.EncodeToString(a.Content),
			},
			DependsOn: []string{NodeAssetBucket},
		})
	}

	deps := append([]string{NodeAssetBucket, NodeIdentity}, b.assetNodes()...)
	b.add(&graph.Node{
		ID:     NodeAssetGrant,
		Kind:   provisioning.KindAssetGrant,
		Region: store.Region,
		Properties: graph.Properties{
			"bucket":    graph.Ref{Node: NodeAssetBucket, Output: OutName},
			"sid":       naming.AssetPolicySid(b.id.Name),
			"principal": graph.Ref{Node: NodeIdentity, Output: OutPrincipal},
			"actions":   []string{"s3:GetObject"},
			"keys":      keys,
		},
		DependsOn: deps,
	})
}
