package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"camps-pdf/internal/domain"
)

// DocumentFilter describe los filtros de listado del panel de documentos.
type DocumentFilter struct {
	Search    string
	DocType   string
	Status    string
	CreatedBy string
	Page      int
	PerPage   int
}

type TimelinePoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

type TypeCount struct {
	DocType string `json:"type"`
	Count   int    `json:"count"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// DocumentRepository define el contrato de persistencia para documentos,
// incluidas las agregaciones que alimentan el dashboard.
type DocumentRepository interface {
	Create(ctx context.Context, doc domain.Document) error
	GetByID(ctx context.Context, id string) (domain.Document, error)
	GetByHash(ctx context.Context, hash string) (domain.Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]domain.Document, int, error)
	Update(ctx context.Context, doc domain.Document) error
	Delete(ctx context.Context, id string) error

	CountAll(ctx context.Context) (int, error)
	CountSigned(ctx context.Context) (int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	CountByType(ctx context.Context) ([]TypeCount, error)
	Timeline(ctx context.Context, since time.Time) ([]TimelinePoint, error)
	Recent(ctx context.Context, limit int, createdBy string) ([]domain.Document, error)
	ListAll(ctx context.Context, createdBy string) ([]domain.Document, error)
}

// PgDocumentRepository implementa DocumentRepository usando pgxpool.
type PgDocumentRepository struct {
	pool *pgxpool.Pool
}

func NewPgDocumentRepository(pool *pgxpool.Pool) *PgDocumentRepository {
	return &PgDocumentRepository{pool: pool}
}

const documentColumns = `id, identifier, title, author, subject, doc_type, responsible,
	digitalization_date, digitalization_location, digitizer_name, digitizer_cpf_cnpj,
	resolution_dpi, equipment_info, company_name, company_cnpj,
	original_filename, storage_key, processed_key, hash_sha256, file_size, page_count,
	is_signed, signed_at, status, created_by, created_at, updated_at`

func scanDocument(row pgx.Row) (domain.Document, error) {
	var d domain.Document
	err := row.Scan(
		&d.ID,
		&d.Identifier,
		&d.Title,
		&d.Author,
		&d.Subject,
		&d.DocType,
		&d.Responsible,
		&d.DigitalizationDate,
		&d.DigitalizationLocation,
		&d.DigitizerName,
		&d.DigitizerCPFCNPJ,
		&d.ResolutionDPI,
		&d.EquipmentInfo,
		&d.CompanyName,
		&d.CompanyCNPJ,
		&d.OriginalFilename,
		&d.StorageKey,
		&d.ProcessedKey,
		&d.HashSHA256,
		&d.FileSize,
		&d.PageCount,
		&d.IsSigned,
		&d.SignedAt,
		&d.Status,
		&d.CreatedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}

func (r *PgDocumentRepository) Create(ctx context.Context, doc domain.Document) error {
	const query = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`
	_, err := r.pool.Exec(ctx, query,
		doc.ID, doc.Identifier, doc.Title, doc.Author, doc.Subject, doc.DocType, doc.Responsible,
		doc.DigitalizationDate, doc.DigitalizationLocation, doc.DigitizerName, doc.DigitizerCPFCNPJ,
		doc.ResolutionDPI, doc.EquipmentInfo, doc.CompanyName, doc.CompanyCNPJ,
		doc.OriginalFilename, doc.StorageKey, doc.ProcessedKey, doc.HashSHA256, doc.FileSize, doc.PageCount,
		doc.IsSigned, doc.SignedAt, doc.Status, doc.CreatedBy, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

func (r *PgDocumentRepository) GetByID(ctx context.Context, id string) (domain.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, err
	}
	return d, err
}

func (r *PgDocumentRepository) GetByHash(ctx context.Context, hash string) (domain.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE hash_sha256 = $1`
	d, err := scanDocument(r.pool.QueryRow(ctx, query, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, err
	}
	return d, err
}

// List aplica filtros opcionales y pagina ordenando por fecha de creación
// descendente. Devuelve también el total sin paginar.
func (r *PgDocumentRepository) List(ctx context.Context, filter DocumentFilter) ([]domain.Document, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where += ` AND (title ILIKE ` + p + ` OR author ILIKE ` + p + ` OR identifier ILIKE ` + p + `)`
	}
	if filter.DocType != "" {
		where += ` AND doc_type = ` + arg(filter.DocType)
	}
	if filter.Status != "" {
		where += ` AND status = ` + arg(filter.Status)
	}
	if filter.CreatedBy != "" {
		where += ` AND created_by = ` + arg(filter.CreatedBy)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}
	query := `SELECT ` + documentColumns + ` FROM documents` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(perPage) + ` OFFSET ` + arg((page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

func (r *PgDocumentRepository) Update(ctx context.Context, doc domain.Document) error {
	const query = `
		UPDATE documents
		SET title = $2, author = $3, subject = $4, doc_type = $5, responsible = $6,
		    digitizer_name = $7, digitizer_cpf_cnpj = $8, resolution_dpi = $9,
		    equipment_info = $10, company_name = $11, company_cnpj = $12,
		    processed_key = $13, is_signed = $14, signed_at = $15, status = $16, updated_at = $17
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query,
		doc.ID, doc.Title, doc.Author, doc.Subject, doc.DocType, doc.Responsible,
		doc.DigitizerName, doc.DigitizerCPFCNPJ, doc.ResolutionDPI,
		doc.EquipmentInfo, doc.CompanyName, doc.CompanyCNPJ,
		doc.ProcessedKey, doc.IsSigned, doc.SignedAt, doc.Status, doc.UpdatedAt,
	)
	return err
}

func (r *PgDocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *PgDocumentRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func (r *PgDocumentRepository) CountSigned(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE is_signed`).Scan(&n)
	return n, err
}

func (r *PgDocumentRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE created_at >= $1`, since).Scan(&n)
	return n, err
}

func (r *PgDocumentRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	const query = `SELECT status, COUNT(*) FROM documents GROUP BY status ORDER BY COUNT(*) DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var s StatusCount
		if err := rows.Scan(&s.Status, &s.Count); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PgDocumentRepository) CountByType(ctx context.Context) ([]TypeCount, error) {
	const query = `
		SELECT doc_type, COUNT(*) FROM documents
		WHERE doc_type <> ''
		GROUP BY doc_type
		ORDER BY COUNT(*) DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TypeCount
	for rows.Next() {
		var t TypeCount
		if err := rows.Scan(&t.DocType, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PgDocumentRepository) Timeline(ctx context.Context, since time.Time) ([]TimelinePoint, error) {
	const query = `
		SELECT date_trunc('day', created_at) AS day, COUNT(*)
		FROM documents
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelinePoint
	for rows.Next() {
		var p TimelinePoint
		if err := rows.Scan(&p.Date, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgDocumentRepository) Recent(ctx context.Context, limit int, createdBy string) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []any{}
	if createdBy != "" {
		query += ` WHERE created_by = $1`
		args = append(args, createdBy)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PgDocumentRepository) ListAll(ctx context.Context, createdBy string) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	args := []any{}
	if createdBy != "" {
		query += ` WHERE created_by = $1`
		args = append(args, createdBy)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
