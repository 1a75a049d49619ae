package models

import "time"

// Snapshot is the state captured by a version record. Metadata is always
// present; Nodes and Relationships make the snapshot full-state, which is the
// contract here — restores rewrite structure as well as metadata.
type Snapshot struct {
	Name          ModelName        `json:"name"`
	Description   string           `json:"description"`
	Status        ModelStatus      `json:"status"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
	Nodes         map[string]*Node `json:"nodes,omitempty"`
	Relationships []*Relationship  `json:"relationships,omitempty"`
}

// VersionRecord is an immutable saved version of a model.
type VersionRecord struct {
	ID            string    `json:"id"`
	ModelID       string    `json:"model_id"      validate:"required"`
	VersionNumber int       `json:"version_number"`
	Version       Version   `json:"version"`
	ChangeSummary string    `json:"change_summary"`
	AuthorID      string    `json:"author_id"`
	Snapshot      Snapshot  `json:"snapshot"`
	CreatedAt     time.Time `json:"created_at"`
}

// CaptureSnapshot copies the model's current state into a snapshot. Node and
// relationship collections are copied shallowly; version records are treated
// as immutable once written.
func CaptureSnapshot(model *FunctionModel) Snapshot {
	nodes := make(map[string]*Node, len(model.Nodes))
	for id, node := range model.Nodes {
		copied := *node
		nodes[id] = &copied
	}

	relationships := make([]*Relationship, 0, len(model.Relationships))
	for _, rel := range model.Relationships {
		copied := *rel
		relationships = append(relationships, &copied)
	}

	return Snapshot{
		Name:          model.Name,
		Description:   model.Description,
		Status:        model.Status,
		Metadata:      model.Metadata,
		Nodes:         nodes,
		Relationships: relationships,
	}
}
