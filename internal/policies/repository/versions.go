package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertVersionTx records a pre-amendment snapshot.
func (r *Repository) InsertVersionTx(ctx context.Context, tx pgx.Tx, v *Version) error {
	query := `
		INSERT INTO policy_versions (id, policy_id, snapshot, artifact_key, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, query, v.ID, v.PolicyID, v.Snapshot, v.ArtifactKey, v.Reason, v.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert policy version: %w", err)
	}
	return nil
}

// PruneVersionsTx deletes versions beyond the newest `keep` and returns the
// artifact keys of the deleted rows so the caller can clean up object storage
// after commit.
func (r *Repository) PruneVersionsTx(ctx context.Context, tx pgx.Tx, policyID uuid.UUID, keep int) ([]string, error) {
	rows, err := tx.Query(ctx, `
		DELETE FROM policy_versions
		WHERE id IN (
			SELECT id FROM policy_versions
			WHERE policy_id = $1
			ORDER BY created_at DESC
			OFFSET $2
		)
		RETURNING artifact_key`, policyID, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to prune policy versions: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan pruned artifact key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pruned versions: %w", err)
	}
	return keys, nil
}

// ListVersions returns a policy's versions, newest first. Snapshots are not
// loaded; they are only needed for audit retrieval.
func (r *Repository) ListVersions(ctx context.Context, policyID uuid.UUID) ([]Version, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, policy_id, artifact_key, reason, created_at
		FROM policy_versions
		WHERE policy_id = $1
		ORDER BY created_at DESC`, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policy versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.PolicyID, &v.ArtifactKey, &v.Reason, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policy versions: %w", err)
	}
	return versions, nil
}
