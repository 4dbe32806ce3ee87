package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"camps-pdf/internal/domain"
	"camps-pdf/internal/repository"
)

var (
	ErrTaskNotFound = errors.New("tarea no encontrada")
	ErrQueueFull    = errors.New("cola de lotes llena")
)

type batchJob struct {
	taskID      string
	documentIDs []string
	metadata    DocumentMetadata
	userID      string
	ip          string
}

// BatchProcessor aplica metadatos a varios documentos en segundo plano.
// Las tareas se encolan en un canal y las atiende un grupo fijo de workers;
// el estado vive en memoria y se pierde al reiniciar el proceso.
type BatchProcessor struct {
	logger    *zap.Logger
	docs      repository.DocumentRepository
	audits    repository.AuditLogRepository
	validator *MetadataValidator

	jobs  chan batchJob
	wg    sync.WaitGroup
	mu    sync.Mutex
	tasks map[string]*domain.BatchTask
}

// NewBatchProcessor crea una instancia de BatchProcessor con dependencias necesarias.
func NewBatchProcessor(
	logger *zap.Logger,
	docs repository.DocumentRepository,
	audits repository.AuditLogRepository,
	validator *MetadataValidator,
	workers int,
) *BatchProcessor {
	if workers < 1 {
		workers = 3
	}
	p := &BatchProcessor{
		logger:    logger,
		docs:      docs,
		audits:    audits,
		validator: validator,
		jobs:      make(chan batchJob, 64),
		tasks:     make(map[string]*domain.BatchTask),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit encola una tarea y devuelve su identificador.
func (p *BatchProcessor) Submit(documentIDs []string, md DocumentMetadata, userID, ip string) (string, error) {
	if len(documentIDs) == 0 {
		return "", errors.New("se requiere al menos un documento")
	}

	taskID := uuid.NewString()
	p.mu.Lock()
	p.tasks[taskID] = &domain.BatchTask{
		ID:          taskID,
		Status:      domain.BatchStatusQueued,
		SubmittedAt: time.Now().UTC(),
	}
	p.mu.Unlock()

	// Nunca bloquea al handler: si la cola esta llena la tarea se rechaza.
	select {
	case p.jobs <- batchJob{
		taskID:      taskID,
		documentIDs: documentIDs,
		metadata:    md,
		userID:      userID,
		ip:          ip,
	}:
	default:
		p.mu.Lock()
		delete(p.tasks, taskID)
		p.mu.Unlock()
		p.logger.Warn("cola de lotes llena, tarea rechazada",
			zap.Int("documents", len(documentIDs)))
		return "", ErrQueueFull
	}
	p.logger.Info("tarea de lote encolada",
		zap.String("task_id", taskID),
		zap.Int("documents", len(documentIDs)))
	return taskID, nil
}

// Status devuelve una copia del estado de la tarea.
func (p *BatchProcessor) Status(taskID string) (domain.BatchTask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	task, ok := p.tasks[taskID]
	if !ok {
		return domain.BatchTask{}, ErrTaskNotFound
	}
	return *task, nil
}

// Close cierra la cola y espera a que los workers terminen las tareas pendientes.
func (p *BatchProcessor) Close() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *BatchProcessor) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.runJob(id, job)
	}
}

// runJob aisla cada tarea: un panic marca la tarea como fallida sin tumbar
// al worker ni al proceso.
func (p *BatchProcessor) runJob(id int, job batchJob) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic procesando tarea de lote",
				zap.Int("worker", id),
				zap.String("task_id", job.taskID),
				zap.Any("panic", r))
			p.setResult(job.taskID, &domain.BatchResult{
				Total:  len(job.documentIDs),
				Failed: len(job.documentIDs),
			})
			p.setStatus(job.taskID, domain.BatchStatusFailed)
		}
	}()

	p.setStatus(job.taskID, domain.BatchStatusProcessing)
	result := p.process(context.Background(), job)
	p.setResult(job.taskID, result)
	p.setStatus(job.taskID, domain.BatchStatusCompleted)
	p.logger.Info("tarea de lote terminada",
		zap.Int("worker", id),
		zap.String("task_id", job.taskID),
		zap.Int("success", result.Success),
		zap.Int("total", result.Total))
}

func (p *BatchProcessor) process(ctx context.Context, job batchJob) *domain.BatchResult {
	results := make([]domain.BatchItemResult, 0, len(job.documentIDs))

	for _, docID := range job.documentIDs {
		results = append(results, p.processDocument(ctx, docID, job))
	}

	success := 0
	for _, r := range results {
		if r.Success {
			success++
		}
	}
	return &domain.BatchResult{
		Total:   len(job.documentIDs),
		Success: success,
		Failed:  len(job.documentIDs) - success,
		Results: results,
	}
}

func (p *BatchProcessor) processDocument(ctx context.Context, docID string, job batchJob) domain.BatchItemResult {
	doc, err := p.docs.GetByID(ctx, docID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BatchItemResult{DocumentID: docID, Success: false, Error: "documento no encontrado"}
	}
	if err != nil {
		p.logger.Error("buscando documento del lote", zap.String("document_id", docID), zap.Error(err))
		return domain.BatchItemResult{DocumentID: docID, Success: false, Error: "error interno"}
	}

	if validation := p.validator.Validate(job.metadata, true); !validation.Valid {
		return domain.BatchItemResult{
			DocumentID:    docID,
			DocumentTitle: doc.DisplayTitle(),
			Success:       false,
			Error:         fmt.Sprintf("validacion fallida: %s", strings.Join(validation.Errors, ", ")),
		}
	}

	changes := applyPartialMetadata(&doc, job.metadata)
	doc.UpdatedAt = time.Now().UTC()

	if err := p.docs.Update(ctx, doc); err != nil {
		p.logger.Error("actualizando documento del lote", zap.String("document_id", docID), zap.Error(err))
		return domain.BatchItemResult{
			DocumentID:    docID,
			DocumentTitle: doc.DisplayTitle(),
			Success:       false,
			Error:         "error interno al actualizar",
		}
	}

	entry := domain.AuditLog{
		ID:          uuid.NewString(),
		DocumentID:  &doc.ID,
		UserID:      &job.userID,
		Action:      "metadata_batch_update",
		Description: fmt.Sprintf("Metadatos actualizados en lote: %s", strings.Join(changes, ", ")),
		IPAddress:   job.ip,
		Timestamp:   time.Now().UTC(),
	}
	if err := p.audits.Create(ctx, entry); err != nil {
		p.logger.Warn("registrando auditoria de lote", zap.Error(err))
	}

	return domain.BatchItemResult{
		DocumentID:    docID,
		DocumentTitle: doc.DisplayTitle(),
		Success:       true,
	}
}

// applyPartialMetadata copia solo los campos con valor y devuelve la lista de
// cambios para la descripcion de auditoria.
func applyPartialMetadata(doc *domain.Document, md DocumentMetadata) []string {
	var changes []string
	set := func(field, value string, dst *string) {
		if value == "" {
			return
		}
		*dst = value
		changes = append(changes, fmt.Sprintf("%s: %q", field, value))
	}

	set("title", strings.TrimSpace(md.Title), &doc.Title)
	set("author", strings.TrimSpace(md.Author), &doc.Author)
	set("subject", strings.TrimSpace(md.Subject), &doc.Subject)
	set("doc_type", strings.ToLower(strings.TrimSpace(md.DocType)), &doc.DocType)
	set("responsible", strings.TrimSpace(md.Responsible), &doc.Responsible)
	set("digitizer_name", strings.TrimSpace(md.DigitizerName), &doc.DigitizerName)
	set("digitizer_cpf_cnpj", strings.TrimSpace(md.DigitizerCPFCNPJ), &doc.DigitizerCPFCNPJ)
	set("equipment_info", strings.TrimSpace(md.EquipmentInfo), &doc.EquipmentInfo)
	set("company_name", strings.TrimSpace(md.CompanyName), &doc.CompanyName)
	set("company_cnpj", strings.TrimSpace(md.CompanyCNPJ), &doc.CompanyCNPJ)
	if md.ResolutionDPI > 0 {
		doc.ResolutionDPI = md.ResolutionDPI
		changes = append(changes, fmt.Sprintf("resolution_dpi: %d", md.ResolutionDPI))
	}
	return changes
}

func (p *BatchProcessor) setStatus(taskID, status string) {
	now := time.Now().UTC()
	p.mu.Lock()
	defer p.mu.Unlock()
	if task, ok := p.tasks[taskID]; ok {
		task.Status = status
		task.UpdatedAt = &now
	}
}

func (p *BatchProcessor) setResult(taskID string, result *domain.BatchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if task, ok := p.tasks[taskID]; ok {
		task.Result = result
	}
}
