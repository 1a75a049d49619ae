// Package file provides file-based persistence for function models, used by
// tests and local development.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file system.
type Persistence struct {
	root      string
	modelRepo *ModelRepository
}

// NewPersistence creates a file persistence layer rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:      cleanRoot,
		modelRepo: NewModelRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. Nothing to release for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) ModelRepository() persistence.ModelRepository {
	return fp.modelRepo
}

func (fp *Persistence) NodeRepository() persistence.NodeRepository {
	return &nodeRepository{persistence: fp}
}

func (fp *Persistence) RelationshipRepository() persistence.RelationshipRepository {
	return &relationshipRepository{persistence: fp}
}

func (fp *Persistence) VersionRepository() persistence.VersionRepository {
	return &versionRepository{root: fp.root}
}

func (fp *Persistence) AuditRepository() persistence.AuditRepository {
	return &auditRepository{root: fp.root}
}

// Node repository for file persistence. Nodes live inside the model file, so
// every operation loads the aggregate, mutates it and writes it back.

type nodeRepository struct {
	persistence *Persistence
}

func (nr *nodeRepository) loadModel(ctx context.Context, modelID string) (*models.FunctionModel, error) {
	model, err := nr.persistence.modelRepo.GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model %s: %w", modelID, err)
	}

	if model == nil {
		return nil, persistence.NewModelError("loadModel", modelID, persistence.ErrModelNotFound)
	}

	return model, nil
}

func (nr *nodeRepository) GetNodesByModel(ctx context.Context, modelID string) ([]*models.Node, error) {
	model, err := nr.loadModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	nodes := make([]*models.Node, 0, len(model.Nodes))
	for _, node := range model.Nodes {
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	return nodes, nil
}

func (nr *nodeRepository) GetNodeByModel(ctx context.Context, modelID, nodeID string) (*models.Node, error) {
	model, err := nr.loadModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	node := model.Node(nodeID)
	if node == nil {
		return nil, persistence.NewNodeError("GetNodeByModel", modelID, nodeID, persistence.ErrNodeNotFound)
	}

	return node, nil
}

func (nr *nodeRepository) SaveNode(ctx context.Context, modelID string, node *models.Node) error {
	model, err := nr.loadModel(ctx, modelID)
	if err != nil {
		return err
	}

	if existing := model.Node(node.ID); existing != nil {
		*existing = *node
	} else if err := model.AddNode(node); err != nil {
		return err
	}

	return nr.persistence.modelRepo.Save(ctx, model)
}

func (nr *nodeRepository) DeleteNodeWithRelationships(ctx context.Context, modelID, nodeID string) error {
	model, err := nr.loadModel(ctx, modelID)
	if err != nil {
		return err
	}

	if err := model.RemoveNode(nodeID); err != nil {
		return err
	}

	return nr.persistence.modelRepo.Save(ctx, model)
}

// Relationship repository for file persistence, also backed by the model file.

type relationshipRepository struct {
	persistence *Persistence
}

func (rr *relationshipRepository) loadModel(ctx context.Context, modelID string) (*models.FunctionModel, error) {
	model, err := rr.persistence.modelRepo.GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model %s: %w", modelID, err)
	}

	if model == nil {
		return nil, persistence.NewModelError("loadModel", modelID, persistence.ErrModelNotFound)
	}

	return model, nil
}

func (rr *relationshipRepository) GetRelationshipsByModel(ctx context.Context, modelID string) ([]*models.Relationship, error) {
	model, err := rr.loadModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	return model.Relationships, nil
}

func (rr *relationshipRepository) SaveRelationships(ctx context.Context, modelID string, relationships []*models.Relationship) error {
	model, err := rr.loadModel(ctx, modelID)
	if err != nil {
		return err
	}

	// Writing the whole aggregate keeps the batch atomic: either the new
	// file carries every record or the old file stays in place.
	for _, rel := range relationships {
		if model.Relationship(rel.ID) == nil {
			if err := model.AddRelationship(rel); err != nil {
				return err
			}
		}
	}

	return rr.persistence.modelRepo.Save(ctx, model)
}

func (rr *relationshipRepository) DeleteRelationship(ctx context.Context, modelID, relationshipID string) error {
	model, err := rr.loadModel(ctx, modelID)
	if err != nil {
		return err
	}

	if err := model.RemoveRelationship(relationshipID); err != nil {
		return err
	}

	return rr.persistence.modelRepo.Save(ctx, model)
}

func (rr *relationshipRepository) DeleteBetween(ctx context.Context, modelID, nodeA, nodeB string) error {
	model, err := rr.loadModel(ctx, modelID)
	if err != nil {
		return err
	}

	if err := model.Disconnect(nodeA, nodeB); err != nil {
		return err
	}

	return rr.persistence.modelRepo.Save(ctx, model)
}

// Version repository: one JSON file per version under versions/<model-id>/.

type versionRepository struct {
	root string
}

func (vr *versionRepository) versionDir(modelID string) string {
	return filepath.Join(vr.root, "versions", modelID)
}

func (vr *versionRepository) SaveVersion(_ context.Context, record *models.VersionRecord) error {
	if record.ID == "" {
		record.ID = models.NewID()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	dir := vr.versionDir(record.ModelID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create versions directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode version %s: %w", record.ID, err)
	}

	if err := os.WriteFile(filepath.Join(dir, record.ID+".json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write version file: %w", err)
	}

	return nil
}

func (vr *versionRepository) GetVersion(_ context.Context, modelID, versionID string) (*models.VersionRecord, error) {
	data, err := os.ReadFile(filepath.Join(vr.versionDir(modelID), versionID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &persistence.VersionError{
				Op: "GetVersion", ModelID: modelID, VersionID: versionID,
				Err: persistence.ErrVersionNotFound,
			}
		}

		return nil, fmt.Errorf("failed to read version file: %w", err)
	}

	var record models.VersionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode version %s: %w", versionID, err)
	}

	return &record, nil
}

func (vr *versionRepository) ListVersions(ctx context.Context, modelID string) ([]*models.VersionRecord, error) {
	dir := vr.versionDir(modelID)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*models.VersionRecord{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list version files: %w", err)
	}

	records := make([]*models.VersionRecord, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		record, err := vr.GetVersion(ctx, modelID, file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].VersionNumber > records[j].VersionNumber
	})

	return records, nil
}

// Audit repository: one JSON file per entry under audits/.

type auditRepository struct {
	root string
}

func (ar *auditRepository) SaveEntry(_ context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = models.NewID()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	dir := filepath.Join(ar.root, "audits")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audits directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode audit entry %s: %w", entry.ID, err)
	}

	if err := os.WriteFile(filepath.Join(dir, entry.ID+".json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write audit file: %w", err)
	}

	return nil
}

func (ar *auditRepository) ListByEntity(_ context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	dir := filepath.Join(ar.root, "audits")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*models.AuditEntry{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list audit files: %w", err)
	}

	entries := make([]*models.AuditEntry, 0)

	for _, file := range jsonFiles {
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("failed to read audit file: %w", err)
		}

		var entry models.AuditEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode audit file %s: %w", file, err)
		}

		if entry.EntityType == entityType && entry.EntityID == entityID {
			entries = append(entries, &entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	return entries, nil
}
