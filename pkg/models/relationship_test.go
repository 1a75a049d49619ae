package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageNode(id string) *Node {
	return &Node{
		ID:        id,
		Type:      NodeTypeStage,
		Name:      "Stage " + id,
		Status:    NodeStatusDraft,
		StageData: &StageData{ActionIDs: []string{}},
	}
}

func ioNode(id string) *Node {
	return &Node{
		ID:     id,
		Type:   NodeTypeIO,
		Name:   "IO " + id,
		Status: NodeStatusDraft,
		IOData: &IOData{Mode: IOModeInput, ActionIDs: []string{}},
	}
}

func tetherNode(id string) *Node {
	return &Node{
		ID:     id,
		Type:   NodeTypeTether,
		Name:   "Tether " + id,
		Status: NodeStatusDraft,
		TetherData: &TetherData{
			SpindleReference: "spindle-" + id,
			Retry:            RetryPolicy{MaxAttempts: 3, Strategy: BackoffExponential, BaseDelaySecond: 1},
		},
	}
}

func kbNode(id string) *Node {
	return &Node{
		ID:     id,
		Type:   NodeTypeKB,
		Name:   "KB " + id,
		Status: NodeStatusDraft,
		KBData: &KBData{KBReference: "kb-" + id},
	}
}

func containerActionNode(id string) *Node {
	return &Node{
		ID:            id,
		Type:          NodeTypeContainer,
		Name:          "Container " + id,
		Status:        NodeStatusDraft,
		ContainerData: &ContainerData{NestedModelID: "nested-" + id},
	}
}

func TestClassifyHandles(t *testing.T) {
	assert.Equal(t, RelationshipParentChild, ClassifyHandles(HandleHeaderSource, HandleBottomTarget))
	assert.Equal(t, RelationshipSibling, ClassifyHandles(HandleRightSource, HandleLeftTarget))
	assert.Equal(t, RelationshipInvalid, ClassifyHandles(HandleRightSource, HandleBottomTarget))
	assert.Equal(t, RelationshipInvalid, ClassifyHandles(HandleHeaderSource, HandleLeftTarget))
	assert.Equal(t, RelationshipInvalid, ClassifyHandles(HandleBottomTarget, HandleHeaderSource))
	assert.Equal(t, RelationshipInvalid, ClassifyHandles("", ""))
}

func TestValidateConnection_ParentChild(t *testing.T) {
	tests := []struct {
		name   string
		source *Node
		target *Node
		want   bool
	}{
		{"tether to stage", tetherNode("a"), stageNode("b"), true},
		{"stage to tether", stageNode("a"), tetherNode("b"), true},
		{"kb to io", kbNode("a"), ioNode("b"), true},
		{"container action to stage", containerActionNode("a"), stageNode("b"), true},
		{"stage to stage", stageNode("a"), stageNode("b"), false},
		{"io to stage", ioNode("a"), stageNode("b"), false},
		{"tether to tether", tetherNode("a"), tetherNode("b"), false},
		{"tether to kb", tetherNode("a"), kbNode("b"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateConnection(tt.source, tt.target, HandleHeaderSource, HandleBottomTarget)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateConnection_Sibling(t *testing.T) {
	tests := []struct {
		name   string
		source *Node
		target *Node
		want   bool
	}{
		{"stage to stage", stageNode("a"), stageNode("b"), true},
		{"stage to io", stageNode("a"), ioNode("b"), true},
		{"io to io", ioNode("a"), ioNode("b"), true},
		{"tether source rejected", tetherNode("a"), stageNode("b"), false},
		{"tether target rejected", stageNode("a"), tetherNode("b"), false},
		{"two tethers rejected", tetherNode("a"), tetherNode("b"), false},
		{"kb rejected", kbNode("a"), stageNode("b"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateConnection(tt.source, tt.target, HandleRightSource, HandleLeftTarget)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateConnection_RejectsSelfAndNil(t *testing.T) {
	stage := stageNode("a")

	assert.False(t, ValidateConnection(stage, stage, HandleRightSource, HandleLeftTarget))
	assert.False(t, ValidateConnection(nil, stage, HandleRightSource, HandleLeftTarget))
	assert.False(t, ValidateConnection(stage, nil, HandleRightSource, HandleLeftTarget))
}

func TestBuildConnection_ParentChildProducesInversePair(t *testing.T) {
	action := tetherNode("action-1")
	stage := stageNode("stage-1")

	records, err := BuildConnection(action, stage, HandleHeaderSource, HandleBottomTarget)
	require.NoError(t, err)
	require.Len(t, records, 2)

	forward, inverse := records[0], records[1]

	assert.Equal(t, RelationshipParentChild, forward.Type)
	assert.Equal(t, RelationshipParentChild, inverse.Type)

	// Inverse record mirrors the forward one for bidirectional lookup.
	assert.Equal(t, forward.SourceNodeID, inverse.TargetNodeID)
	assert.Equal(t, forward.TargetNodeID, inverse.SourceNodeID)
	assert.Equal(t, forward.SourceHandle, inverse.TargetHandle)
	assert.Equal(t, forward.TargetHandle, inverse.SourceHandle)
	assert.NotEqual(t, forward.ID, inverse.ID)
	assert.Equal(t, forward.CreatedAt, inverse.CreatedAt)
}

func TestBuildConnection_SiblingProducesSingleRecord(t *testing.T) {
	a := stageNode("stage-a")
	b := stageNode("stage-b")

	records, err := BuildConnection(a, b, HandleRightSource, HandleLeftTarget)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, RelationshipSibling, records[0].Type)
	assert.Equal(t, "stage-a", records[0].SourceNodeID)
	assert.Equal(t, "stage-b", records[0].TargetNodeID)
	assert.Equal(t, NodeTypeStage, records[0].SourceNodeType)
	assert.Equal(t, NodeTypeStage, records[0].TargetNodeType)
}

func TestBuildConnection_InvalidYieldsNoRecords(t *testing.T) {
	records, err := BuildConnection(tetherNode("a"), tetherNode("b"), HandleRightSource, HandleLeftTarget)
	require.ErrorIs(t, err, ErrInvalidConnection)
	assert.Empty(t, records)

	records, err = BuildConnection(stageNode("a"), stageNode("b"), HandleHeaderSource, HandleBottomTarget)
	require.ErrorIs(t, err, ErrInvalidConnection)
	assert.Empty(t, records)
}
