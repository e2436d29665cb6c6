package core

import (
	"context"
	"encoding/json"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditService records activity for the audit trail. Writes are
// fire-and-forget: a failed audit insert is logged and swallowed,
// never propagated to the triggering transaction.
type AuditService interface {
	Record(ctx context.Context, tenantID, actorID, action, details string, metadata map[string]any)
}

type auditService struct {
	pool *pgxpool.Pool
}

func NewAuditService(pool *pgxpool.Pool) AuditService {
	return &auditService{pool: pool}
}

func (s *auditService) Record(ctx context.Context, tenantID, actorID, action, details string, metadata map[string]any) {
	var meta []byte
	if metadata != nil {
		var err error
		meta, err = json.Marshal(metadata)
		if err != nil {
			log.Printf("audit: marshal metadata for %s: %v", action, err)
			meta = nil
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (tenant_id, actor_id, action, details, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, tenantID, actorID, action, details, meta)
	if err != nil {
		log.Printf("audit: record %s failed: %v", action, err)
	}
}
