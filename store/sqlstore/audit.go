package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/fittrack-server/audit"
	"github.com/jrsteele09/fittrack-server/internal/utils"
)

const selectAudit = `SELECT id, actor_id, target_id, target_deleted, action, detail, created_at FROM audit_log`

type auditRepo struct {
	db DBTX
	d  dialect
}

func (r *auditRepo) Append(ctx context.Context, e *audit.Entry) error {
	var detail sql.NullString
	if len(e.Detail) > 0 {
		b, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("[sqlstore.audit.Append] marshal detail: %w", err)
		}
		detail = sql.NullString{String: string(b), Valid: true}
	}

	var target sql.NullString
	if e.TargetID != nil {
		target = sql.NullString{String: *e.TargetID, Valid: true}
	}

	query := `INSERT INTO audit_log (id, actor_id, target_id, target_deleted, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, r.d.bind(query),
		e.ID, e.ActorID, target, e.TargetDeleted, string(e.Action), detail, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("[sqlstore.audit.Append] db error: %w", err)
	}
	return nil
}

func (r *auditRepo) ListByTarget(ctx context.Context, targetID string) ([]*audit.Entry, error) {
	return r.list(ctx, selectAudit+` WHERE target_id = $1 ORDER BY seq`, targetID)
}

func (r *auditRepo) ListRecent(ctx context.Context, limit int) ([]*audit.Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return r.list(ctx, selectAudit+` ORDER BY seq DESC LIMIT $1`, limit)
}

func (r *auditRepo) TombstoneTarget(ctx context.Context, targetID string) (int64, error) {
	query := `UPDATE audit_log SET target_id = NULL, target_deleted = TRUE WHERE target_id = $1`
	res, err := r.db.ExecContext(ctx, r.d.bind(query), targetID)
	if err != nil {
		return 0, fmt.Errorf("[sqlstore.audit.TombstoneTarget] db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("[sqlstore.audit.TombstoneTarget] rows affected: %w", err)
	}
	return n, nil
}

func (r *auditRepo) list(ctx context.Context, query string, args ...any) ([]*audit.Entry, error) {
	rows, err := r.db.QueryContext(ctx, r.d.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("[sqlstore.audit] db error: %w", err)
	}
	defer rows.Close()

	list := []*audit.Entry{}
	for rows.Next() {
		var (
			e      audit.Entry
			action string
			target sql.NullString
			detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &target, &e.TargetDeleted, &action, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("[sqlstore.audit] scan: %w", err)
		}
		e.Action = audit.Action(action)
		e.CreatedAt = e.CreatedAt.UTC()
		if target.Valid {
			e.TargetID = utils.Ptr(target.String)
		}
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("[sqlstore.audit] unmarshal detail: %w", err)
			}
		}
		list = append(list, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[sqlstore.audit] rows: %w", err)
	}
	return list, nil
}
