package handlers

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/nodeforge/internal/orchestration"
)

func TestRenderReport(t *testing.T) {
	report := &orchestration.Report{
		Stack:    "eth",
		RunID:    "run-1",
		Phase:    "apply",
		Duration: 1500 * time.Millisecond,
		Nodes: []orchestration.NodeResult{
			{ID: "network", Kind: "network", Status: orchestration.StatusCreated, Duration: 2 * time.Second},
			{ID: "edge.load-balancer", Kind: "load-balancer", Status: orchestration.StatusFailed, Err: errors.New("quota exceeded\nrequest id abc")},
			{ID: "dns.record-a", Kind: "dns-record", Status: orchestration.StatusBlocked, Cause: "edge.load-balancer"},
			{ID: "observability.lighthouse-stderr", Kind: "log-group", Status: orchestration.StatusUnchanged},
		},
		Pruned: []orchestration.NodeResult{
			{ID: "compute.old", Kind: "volume", Status: orchestration.StatusDeleted},
		},
	}

	out := renderReport(report)

	assert.Contains(t, out, "nodeforge apply: eth")
	assert.Contains(t, out, "run run-1, 1.5s")
	assert.Contains(t, out, "Nodes")
	assert.Contains(t, out, "Pruned")
	assert.Contains(t, out, "quota exceeded")
	assert.NotContains(t, out, "request id abc")
	assert.Contains(t, out, "by edge.load-balancer")
	assert.Contains(t, out, "observability.lighthouse-stderr")
	assert.Contains(t, out, "1 created")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "1 blocked")
	assert.Contains(t, out, "1 deleted")
}

func TestRenderReport_Empty(t *testing.T) {
	out := renderReport(&orchestration.Report{Stack: "eth", Phase: "destroy"})
	assert.Contains(t, out, "nothing to do")
	assert.NotContains(t, out, "Nodes")
}

func TestRenderPlan(t *testing.T) {
	tests := []struct {
		name    string
		actions []orchestration.PlannedAction
		want    string
	}{
		{
			name: "no changes",
			actions: []orchestration.PlannedAction{
				{ID: "network", Kind: "network", Action: orchestration.ActionNoop},
			},
			want: "No changes.",
		},
		{
			name: "mixed",
			actions: []orchestration.PlannedAction{
				{ID: "network", Kind: "network", Action: orchestration.ActionCreate},
				{ID: "compute.group", Kind: "instance-group", Action: orchestration.ActionUpdate, Note: "user data changed"},
				{ID: "compute.old", Kind: "volume", Action: orchestration.ActionDelete},
			},
			want: "1 to create, 1 to update, 1 to delete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderPlan(&orchestration.Plan{Stack: "eth", Actions: tt.actions})
			assert.Contains(t, out, "nodeforge plan: eth")
			assert.Contains(t, out, tt.want)
			for _, a := range tt.actions {
				assert.Contains(t, out, a.ID)
				if a.Note != "" {
					assert.Contains(t, out, "("+a.Note+")")
				}
			}
		})
	}
}
