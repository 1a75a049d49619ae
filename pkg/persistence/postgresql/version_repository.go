package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/latticehq/lattice/pkg/models"
	"github.com/latticehq/lattice/pkg/persistence"
)

// VersionRepository handles version-record database operations. Records are
// written once and never updated.
type VersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *sql.DB, logger *slog.Logger) *VersionRepository {
	return &VersionRepository{db: db, logger: logger}
}

// SaveVersion inserts an immutable version record.
func (r *VersionRepository) SaveVersion(ctx context.Context, record *models.VersionRecord) error {
	if record.ID == "" {
		record.ID = models.NewID()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	snapshotJSON, err := json.Marshal(record.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO model_versions (version_id, model_id, version_number, version,
			change_summary, author_id, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.ModelID,
		record.VersionNumber,
		record.Version.String(),
		record.ChangeSummary,
		record.AuthorID,
		snapshotJSON,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save version record: %w", err)
	}

	return nil
}

// GetVersion returns one version record of a model.
func (r *VersionRepository) GetVersion(ctx context.Context, modelID, versionID string) (*models.VersionRecord, error) {
	query := `
		SELECT version_id, model_id, version_number, version,
			change_summary, author_id, snapshot, created_at
		FROM model_versions
		WHERE model_id = $1 AND version_id = $2
	`

	record, err := r.scanVersion(r.db.QueryRowContext(ctx, query, modelID, versionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.VersionError{
				Op: "GetVersion", ModelID: modelID, VersionID: versionID,
				Err: persistence.ErrVersionNotFound,
			}
		}

		return nil, fmt.Errorf("failed to scan version record: %w", err)
	}

	return record, nil
}

// ListVersions returns all version records of a model, newest first.
func (r *VersionRepository) ListVersions(ctx context.Context, modelID string) ([]*models.VersionRecord, error) {
	query := `
		SELECT version_id, model_id, version_number, version,
			change_summary, author_id, snapshot, created_at
		FROM model_versions
		WHERE model_id = $1
		ORDER BY version_number DESC
	`

	rows, err := r.db.QueryContext(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query version records: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.VersionRecord, 0)

	for rows.Next() {
		record, err := r.scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version record: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version records: %w", err)
	}

	return records, nil
}

func (r *VersionRepository) scanVersion(scanner interface {
	Scan(dest ...any) error
}) (*models.VersionRecord, error) {
	var (
		record       models.VersionRecord
		version      string
		snapshotJSON []byte
	)

	err := scanner.Scan(
		&record.ID,
		&record.ModelID,
		&record.VersionNumber,
		&version,
		&record.ChangeSummary,
		&record.AuthorID,
		&snapshotJSON,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Version, err = models.ParseVersion(version)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored version: %w", err)
	}

	if err := json.Unmarshal(snapshotJSON, &record.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &record, nil
}
