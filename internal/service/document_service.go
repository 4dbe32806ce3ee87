package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"camps-pdf/internal/domain"
	"camps-pdf/internal/repository"
	"camps-pdf/internal/storage"
)

var (
	ErrDocumentNotFound  = errors.New("documento no encontrado")
	ErrDuplicateDocument = errors.New("ya existe un documento con el mismo contenido")
	ErrFileMissing       = errors.New("archivo no encontrado en el almacenamiento")
	ErrInvalidMetadata   = errors.New("metadatos invalidos")
)

// RequestMeta lleva los datos del request necesarios para la auditoria.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// UploadFile es un archivo ya recibido y escrito en el directorio temporal.
type UploadFile struct {
	Filename string
	TempPath string
}

// UploadResult describe el resultado por archivo de un upload multiple.
type UploadResult struct {
	Filename   string `json:"filename"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Hash       string `json:"hash,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Pages      int    `json:"pages,omitempty"`
}

// Pagination acompaña los listados de documentos.
type Pagination struct {
	Total       int `json:"total"`
	Pages       int `json:"pages"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
}

// DocumentStats son las estadisticas rapidas del panel de documentos.
type DocumentStats struct {
	TotalDocuments  int    `json:"total_documents"`
	SignedDocuments int    `json:"signed_documents"`
	DocumentsToday  int    `json:"documents_today"`
	SigningRate     string `json:"signing_rate"`
}

// DocumentService orquesta upload, metadatos, descarga y borrado de PDFs,
// dejando rastro de auditoria en cada operacion.
type DocumentService struct {
	logger    *zap.Logger
	docs      repository.DocumentRepository
	audits    repository.AuditLogRepository
	store     storage.Backend
	pdf       *PDFService
	validator *MetadataValidator

	tempDir         string
	idPrefix        string
	defaultLocation string
}

// NewDocumentService crea una instancia de DocumentService con dependencias necesarias.
func NewDocumentService(
	logger *zap.Logger,
	docs repository.DocumentRepository,
	audits repository.AuditLogRepository,
	store storage.Backend,
	pdf *PDFService,
	validator *MetadataValidator,
	tempDir, idPrefix, defaultLocation string,
) *DocumentService {
	return &DocumentService{
		logger:    logger,
		docs:      docs,
		audits:    audits,
		store:     store,
		pdf:       pdf,
		validator: validator,

		tempDir:         tempDir,
		idPrefix:        idPrefix,
		defaultLocation: defaultLocation,
	}
}

// ProcessUploads procesa cada archivo por separado: un PDF invalido o
// duplicado no frena al resto del lote.
func (s *DocumentService) ProcessUploads(ctx context.Context, files []UploadFile, actor domain.User, meta RequestMeta) []UploadResult {
	results := make([]UploadResult, 0, len(files))
	for _, f := range files {
		res := s.processUpload(ctx, f, actor, meta)
		results = append(results, res)
	}
	return results
}

func (s *DocumentService) processUpload(ctx context.Context, f UploadFile, actor domain.User, meta RequestMeta) UploadResult {
	fail := func(msg string) UploadResult {
		os.Remove(f.TempPath)
		return UploadResult{Filename: f.Filename, Success: false, Error: msg}
	}

	if !strings.EqualFold(path.Ext(f.Filename), ".pdf") {
		return fail("solo se permiten archivos PDF")
	}
	if err := s.pdf.Validate(f.TempPath); err != nil {
		return fail("el archivo no es un PDF valido")
	}

	hash, err := s.pdf.HashSHA256(f.TempPath)
	if err != nil {
		s.logger.Error("calculando hash de upload", zap.Error(err))
		return fail("error interno al procesar el archivo")
	}
	if _, err := s.docs.GetByHash(ctx, hash); err == nil {
		return fail(ErrDuplicateDocument.Error())
	} else if !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error("consultando hash duplicado", zap.Error(err))
		return fail("error interno al procesar el archivo")
	}

	pages, err := s.pdf.PageCount(f.TempPath)
	if err != nil {
		return fail("no se pudo leer la cantidad de paginas")
	}
	info, err := os.Stat(f.TempPath)
	if err != nil {
		return fail("error interno al procesar el archivo")
	}

	now := time.Now().UTC()
	identifier := s.GenerateIdentifier(now)
	doc := domain.Document{
		ID:                     uuid.NewString(),
		Identifier:             identifier,
		Title:                  strings.TrimSuffix(f.Filename, filepath.Ext(f.Filename)),
		DigitalizationDate:     now,
		DigitalizationLocation: s.defaultLocation,
		OriginalFilename:       f.Filename,
		StorageKey:             "originals/" + identifier + ".pdf",
		HashSHA256:             hash,
		FileSize:               info.Size(),
		PageCount:              pages,
		Status:                 domain.DocumentStatusUploaded,
		CreatedBy:              actor.ID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.store.Save(ctx, doc.StorageKey, f.TempPath); err != nil {
		s.logger.Error("guardando upload en storage", zap.Error(err))
		return fail("error interno al guardar el archivo")
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.logger.Error("registrando documento", zap.Error(err))
		if delErr := s.store.Delete(ctx, doc.StorageKey); delErr != nil {
			s.logger.Warn("limpiando blob huerfano", zap.Error(delErr))
		}
		return fail("error interno al registrar el documento")
	}

	s.audit(ctx, &doc.ID, actor.ID, "upload",
		fmt.Sprintf("Documento %s enviado (%d paginas)", f.Filename, pages), meta)

	return UploadResult{
		Filename:   f.Filename,
		Success:    true,
		DocumentID: doc.ID,
		Identifier: identifier,
		Hash:       hash,
		Size:       info.Size(),
		Pages:      pages,
	}
}

// GenerateIdentifier produce un identificador del estilo CAMPS-20260829-1A2B3C4D.
func (s *DocumentService) GenerateIdentifier(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", s.idPrefix, now.Format("20060102"), suffix)
}

// List devuelve los documentos filtrados junto con los datos de paginacion.
func (s *DocumentService) List(ctx context.Context, filter repository.DocumentFilter) ([]domain.Document, Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	docs, total, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, Pagination{}, err
	}
	pages := (total + filter.PerPage - 1) / filter.PerPage
	return docs, Pagination{
		Total:       total,
		Pages:       pages,
		CurrentPage: filter.Page,
		PerPage:     filter.PerPage,
	}, nil
}

// Get devuelve un documento con sus ultimas entradas de auditoria.
func (s *DocumentService) Get(ctx context.Context, id string) (domain.Document, []domain.AuditLog, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, nil, ErrDocumentNotFound
	}
	if err != nil {
		return domain.Document{}, nil, err
	}
	logs, err := s.audits.RecentForDocument(ctx, doc.ID, 10)
	if err != nil {
		return domain.Document{}, nil, err
	}
	return doc, logs, nil
}

// AddMetadata valida y aplica los metadatos, y genera la copia procesada con
// el diccionario de informacion sellado.
func (s *DocumentService) AddMetadata(ctx context.Context, id string, md DocumentMetadata, actor domain.User, meta RequestMeta) (domain.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return domain.Document{}, err
	}

	if result := s.validator.Validate(md, false); !result.Valid {
		return domain.Document{}, fmt.Errorf("%w: %s", ErrInvalidMetadata, strings.Join(result.Errors, "; "))
	}

	doc.Title = strings.TrimSpace(md.Title)
	doc.Author = strings.TrimSpace(md.Author)
	doc.Subject = strings.TrimSpace(md.Subject)
	doc.DocType = md.DocType
	doc.Responsible = strings.TrimSpace(md.Responsible)
	doc.DigitizerName = strings.TrimSpace(md.DigitizerName)
	doc.DigitizerCPFCNPJ = strings.TrimSpace(md.DigitizerCPFCNPJ)
	doc.ResolutionDPI = md.ResolutionDPI
	doc.EquipmentInfo = strings.TrimSpace(md.EquipmentInfo)
	doc.CompanyName = strings.TrimSpace(md.CompanyName)
	doc.CompanyCNPJ = strings.TrimSpace(md.CompanyCNPJ)
	doc.Status = domain.DocumentStatusMetadataAdded
	doc.UpdatedAt = time.Now().UTC()

	processedKey := "processed/" + doc.Identifier + ".pdf"
	if err := s.stampProcessedCopy(ctx, &doc, processedKey); err != nil {
		s.logger.Error("generando copia procesada", zap.Error(err))
		return domain.Document{}, fmt.Errorf("procesando PDF: %w", err)
	}
	doc.ProcessedKey = processedKey

	if err := s.docs.Update(ctx, doc); err != nil {
		return domain.Document{}, err
	}

	s.audit(ctx, &doc.ID, actor.ID, "metadata_added",
		fmt.Sprintf("Metadatos agregados: %s", doc.Title), meta)

	return doc, nil
}

func (s *DocumentService) stampProcessedCopy(ctx context.Context, doc *domain.Document, processedKey string) error {
	src, err := s.store.Open(ctx, doc.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrFileMissing
	}
	if err != nil {
		return err
	}
	defer src.Close()

	tmpOriginal, err := os.CreateTemp(s.tempDir, "stamp-src-*.pdf")
	if err != nil {
		return err
	}
	defer os.Remove(tmpOriginal.Name())
	if _, err := io.Copy(tmpOriginal, src); err != nil {
		tmpOriginal.Close()
		return err
	}
	if err := tmpOriginal.Close(); err != nil {
		return err
	}

	tmpProcessed := filepath.Join(s.tempDir, fmt.Sprintf("stamp-out-%s.pdf", uuid.NewString()))
	if err := s.pdf.StampMetadata(tmpOriginal.Name(), tmpProcessed, doc); err != nil {
		os.Remove(tmpProcessed)
		return err
	}
	return s.store.Save(ctx, processedKey, tmpProcessed)
}

// DownloadInfo acompaña el stream devuelto por Download.
type DownloadInfo struct {
	Filename string
	FileType string
}

// Download entrega el PDF, priorizando la copia procesada si existe.
func (s *DocumentService) Download(ctx context.Context, id string, actor domain.User, meta RequestMeta) (io.ReadCloser, DownloadInfo, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, DownloadInfo{}, ErrDocumentNotFound
	}
	if err != nil {
		return nil, DownloadInfo{}, err
	}

	key, fileType := doc.StorageKey, "original"
	if doc.ProcessedKey != "" {
		if ok, err := s.store.Exists(ctx, doc.ProcessedKey); err == nil && ok {
			key, fileType = doc.ProcessedKey, "processed"
		}
	}

	rc, err := s.store.Open(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, DownloadInfo{}, ErrFileMissing
	}
	if err != nil {
		return nil, DownloadInfo{}, err
	}

	s.audit(ctx, &doc.ID, actor.ID, "download",
		fmt.Sprintf("Descarga del archivo %s", fileType), meta)

	return rc, DownloadInfo{Filename: doc.Identifier + ".pdf", FileType: fileType}, nil
}

// DeleteResult resume lo eliminado junto con los blobs removidos.
type DeleteResult struct {
	DocumentID   string   `json:"document_id"`
	Identifier   string   `json:"identifier"`
	FilesRemoved []string `json:"files_removed"`
}

// Delete elimina el registro y los archivos, dejando una entrada de auditoria
// que sobrevive al borrado (sin referencia al documento eliminado).
func (s *DocumentService) Delete(ctx context.Context, id string, actor domain.User, meta RequestMeta) (DeleteResult, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return DeleteResult{}, ErrDocumentNotFound
	}
	if err != nil {
		return DeleteResult{}, err
	}

	var removed []string
	if doc.StorageKey != "" {
		if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
			s.logger.Warn("eliminando blob original", zap.Error(err))
		} else {
			removed = append(removed, "original")
		}
	}
	if doc.ProcessedKey != "" {
		if err := s.store.Delete(ctx, doc.ProcessedKey); err != nil {
			s.logger.Warn("eliminando blob procesado", zap.Error(err))
		} else {
			removed = append(removed, "processed")
		}
	}

	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		return DeleteResult{}, err
	}

	// El FK en cascada borra los logs del documento; esta entrada queda sin
	// document_id para conservar el rastro.
	s.audit(ctx, nil, actor.ID, "document_deleted",
		fmt.Sprintf("Documento %q (%s) eliminado", doc.DisplayTitle(), doc.Identifier), meta)

	return DeleteResult{DocumentID: doc.ID, Identifier: doc.Identifier, FilesRemoved: removed}, nil
}

// Stats devuelve los contadores rapidos del panel.
func (s *DocumentService) Stats(ctx context.Context) (DocumentStats, error) {
	total, err := s.docs.CountAll(ctx)
	if err != nil {
		return DocumentStats{}, err
	}
	signed, err := s.docs.CountSigned(ctx)
	if err != nil {
		return DocumentStats{}, err
	}
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	today, err := s.docs.CountCreatedSince(ctx, midnight)
	if err != nil {
		return DocumentStats{}, err
	}

	rate := "0.0%"
	if total > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(signed)/float64(total)*100)
	}
	return DocumentStats{
		TotalDocuments:  total,
		SignedDocuments: signed,
		DocumentsToday:  today,
		SigningRate:     rate,
	}, nil
}

func (s *DocumentService) audit(ctx context.Context, documentID *string, userID, action, description string, meta RequestMeta) {
	ua := meta.UserAgent
	if len(ua) > 500 {
		ua = ua[:500]
	}
	entry := domain.AuditLog{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		UserID:      &userID,
		Action:      action,
		Description: description,
		IPAddress:   meta.IP,
		UserAgent:   ua,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Warn("registrando auditoria", zap.String("action", action), zap.Error(err))
	}
}
