package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"wallet-ledger/internal/core/domain"
)

const auditColumns = `id, actor_id, actor_role, action, target_type, target_id, reason,
	before_state, after_state, metadata, ip_address, user_agent, created_at, digest`

// AuditRepo implements ports.AuditStore.
type AuditRepo struct {
	db DBTX
}

// NewAuditRepo creates a PostgreSQL-backed audit store.
func NewAuditRepo(db DBTX) *AuditRepo {
	return &AuditRepo{db: db}
}

// Append inserts a sealed audit event.
func (r *AuditRepo) Append(ctx context.Context, ev *domain.AuditEvent) error {
	var metadata []byte
	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadata = b
	}

	query := `INSERT INTO audit_events (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		ev.ID, ev.ActorID, string(ev.ActorRole), string(ev.Action), ev.TargetType, ev.TargetID, ev.Reason,
		nullableJSON(ev.Before), nullableJSON(ev.After), metadata, ev.IPAddress, ev.UserAgent, ev.CreatedAt, ev.Digest,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns events matching the filter, newest first.
func (r *AuditRepo) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.TargetType != "" {
		add("target_type = $%d", f.TargetType)
	}
	if f.TargetID != "" {
		add("target_id = $%d", f.TargetID)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, clampLimit(f.Limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			ev                          domain.AuditEvent
			role, action                string
			before, after, metadataJSON []byte
		)
		if err := rows.Scan(
			&ev.ID, &ev.ActorID, &role, &action, &ev.TargetType, &ev.TargetID, &ev.Reason,
			&before, &after, &metadataJSON, &ev.IPAddress, &ev.UserAgent, &ev.CreatedAt, &ev.Digest,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.ActorRole = domain.Role(role)
		ev.Action = domain.AuditAction(action)
		if len(before) > 0 {
			ev.Before = before
		}
		if len(after) > 0 {
			ev.After = after
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
