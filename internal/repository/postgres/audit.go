package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medisync/clinic-api/internal/model"
	"github.com/medisync/clinic-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, user_id, organization_id, action, entity_type, entity_id,
			metadata, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	return r.WithTx(ctx, "audit.create", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			log.ID,
			log.UserID,
			log.OrganizationID,
			log.Action,
			log.EntityType,
			log.EntityID,
			log.Metadata,
			log.IPAddress,
			log.UserAgent,
			log.CreatedAt,
		)
		return err
	})
}

func (r *auditRepository) ListWithPagination(ctx context.Context, filters map[string]interface{}) ([]*model.AuditLog, int64, error) {
	baseQuery := `FROM audit_logs WHERE 1=1`
	var args []interface{}

	if v, ok := filters["user_id"]; ok {
		args = append(args, v)
		baseQuery += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if v, ok := filters["organization_id"]; ok {
		args = append(args, v)
		baseQuery += fmt.Sprintf(" AND organization_id = $%d", len(args))
	}
	if v, ok := filters["action"]; ok {
		args = append(args, v)
		baseQuery += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if v, ok := filters["start_date"]; ok {
		args = append(args, v)
		baseQuery += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if v, ok := filters["end_date"]; ok {
		args = append(args, v)
		baseQuery += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int64
	if err := r.get(ctx, "audit.count", &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count: %w", err)
	}

	limit, _ := filters["limit"].(int)
	if limit <= 0 {
		limit = 50
	}
	offset, _ := filters["offset"].(int)

	args = append(args, limit, offset)
	query := "SELECT * " + baseQuery + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var logs []*model.AuditLog
	if err := r.selectMany(ctx, "audit.list", &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, total, nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM audit_logs
		WHERE created_at < $1
	`

	result, err := r.exec(ctx, "audit.cleanup", query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	return result.RowsAffected()
}
