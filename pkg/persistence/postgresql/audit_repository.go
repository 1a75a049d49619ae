package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/latticehq/lattice/pkg/models"
)

// AuditRepository handles audit-trail database operations.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// SaveEntry appends one audit entry.
func (r *AuditRepository) SaveEntry(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = models.NewID()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	oldJSON, err := json.Marshal(entry.OldData)
	if err != nil {
		return fmt.Errorf("failed to marshal old data: %w", err)
	}

	newJSON, err := json.Marshal(entry.NewData)
	if err != nil {
		return fmt.Errorf("failed to marshal new data: %w", err)
	}

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO audit_entries (audit_id, entity_type, entity_id, action,
			user_id, old_data, new_data, timestamp, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		entry.UserID,
		oldJSON,
		newJSON,
		entry.Timestamp,
		detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}

	return nil
}

// ListByEntity returns the audit trail of one entity, oldest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	query := `
		SELECT audit_id, entity_type, entity_id, action,
			user_id, old_data, new_data, timestamp, details
		FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.AuditEntry, 0)

	for rows.Next() {
		var (
			entry                         models.AuditEntry
			oldJSON, newJSON, detailsJSON []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.EntityType,
			&entry.EntityID,
			&entry.Action,
			&entry.UserID,
			&oldJSON,
			&newJSON,
			&entry.Timestamp,
			&detailsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		for _, field := range []struct {
			data   []byte
			target *map[string]any
		}{
			{oldJSON, &entry.OldData},
			{newJSON, &entry.NewData},
			{detailsJSON, &entry.Details},
		} {
			if field.data == nil {
				continue
			}

			if err := json.Unmarshal(field.data, field.target); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
