package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
)

// 审计记录只追加不读取，核心逻辑从不依赖其内容

func (r *Repository) InsertAuditEntry(entry *domain.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO audit_entries (actor_id, entity_type, entity_id, action, before, after, reason, shift_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	args := []any{entry.ActorID, entry.EntityType, entry.EntityID, entry.Action, entry.Before, entry.After, entry.Reason, entry.ShiftID}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return err
	}

	return nil
}

func (r *Repository) insertAuditEntryTx(ctx context.Context, tx *sql.Tx, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (actor_id, entity_type, entity_id, action, before, after, reason, shift_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	args := []any{entry.ActorID, entry.EntityType, entry.EntityID, entry.Action, entry.Before, entry.After, entry.Reason, entry.ShiftID}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return err
	}

	return nil
}
