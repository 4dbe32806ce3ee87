package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"camps-pdf/internal/domain"
)

// AuditLogRepository define el contrato de persistencia para la auditoría.
type AuditLogRepository interface {
	Create(ctx context.Context, log domain.AuditLog) error
	RecentForDocument(ctx context.Context, documentID string, limit int) ([]domain.AuditLog, error)
	ListRecent(ctx context.Context, limit int, ownerID string) ([]domain.AuditLog, error)
}

// PgAuditLogRepository implementa AuditLogRepository usando pgxpool.
type PgAuditLogRepository struct {
	pool *pgxpool.Pool
}

func NewPgAuditLogRepository(pool *pgxpool.Pool) *PgAuditLogRepository {
	return &PgAuditLogRepository{pool: pool}
}

const auditColumns = `id, document_id, user_id, action, description, ip_address, user_agent, timestamp`

func scanAuditLog(row pgx.Row) (domain.AuditLog, error) {
	var l domain.AuditLog
	err := row.Scan(
		&l.ID,
		&l.DocumentID,
		&l.UserID,
		&l.Action,
		&l.Description,
		&l.IPAddress,
		&l.UserAgent,
		&l.Timestamp,
	)
	return l, err
}

func (r *PgAuditLogRepository) Create(ctx context.Context, log domain.AuditLog) error {
	const query = `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		log.ID,
		log.DocumentID,
		log.UserID,
		log.Action,
		log.Description,
		log.IPAddress,
		log.UserAgent,
		log.Timestamp,
	)
	return err
}

func (r *PgAuditLogRepository) RecentForDocument(ctx context.Context, documentID string, limit int) ([]domain.AuditLog, error) {
	const query = `
		SELECT ` + auditColumns + ` FROM audit_logs
		WHERE document_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAuditLogs(rows)
}

// ListRecent devuelve las últimas entradas de auditoría. Con ownerID se
// restringe a documentos creados por ese usuario (exportes no-admin).
func (r *PgAuditLogRepository) ListRecent(ctx context.Context, limit int, ownerID string) ([]domain.AuditLog, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	args := []any{}
	if ownerID != "" {
		query += ` WHERE document_id IN (SELECT id FROM documents WHERE created_by = $1)`
		args = append(args, ownerID)
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAuditLogs(rows)
}

func collectAuditLogs(rows pgx.Rows) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	for rows.Next() {
		l, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
