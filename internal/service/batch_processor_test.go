package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"camps-pdf/internal/domain"
	"camps-pdf/internal/repository"
)

type mockDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]domain.Document
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{docs: make(map[string]domain.Document)}
}

func (m *mockDocumentRepo) Create(_ context.Context, doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *mockDocumentRepo) GetByID(_ context.Context, id string) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.Document{}, pgx.ErrNoRows
	}
	return doc, nil
}

func (m *mockDocumentRepo) GetByHash(_ context.Context, hash string) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.HashSHA256 == hash {
			return doc, nil
		}
	}
	return domain.Document{}, pgx.ErrNoRows
}

func (m *mockDocumentRepo) List(_ context.Context, _ repository.DocumentFilter) ([]domain.Document, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, d)
	}
	return docs, len(docs), nil
}

func (m *mockDocumentRepo) Update(_ context.Context, doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *mockDocumentRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocumentRepo) CountAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs), nil
}

func (m *mockDocumentRepo) CountSigned(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.docs {
		if d.IsSigned {
			n++
		}
	}
	return n, nil
}

func (m *mockDocumentRepo) CountCreatedSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.docs {
		if d.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockDocumentRepo) CountByStatus(_ context.Context) ([]repository.StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, d := range m.docs {
		counts[d.Status]++
	}
	out := make([]repository.StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, repository.StatusCount{Status: status, Count: n})
	}
	return out, nil
}

func (m *mockDocumentRepo) CountByType(_ context.Context) ([]repository.TypeCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, d := range m.docs {
		counts[d.DocType]++
	}
	out := make([]repository.TypeCount, 0, len(counts))
	for docType, n := range counts {
		out = append(out, repository.TypeCount{DocType: docType, Count: n})
	}
	return out, nil
}

func (m *mockDocumentRepo) Timeline(_ context.Context, _ time.Time) ([]repository.TimelinePoint, error) {
	return nil, nil
}

func (m *mockDocumentRepo) Recent(_ context.Context, limit int, createdBy string) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Document, 0, limit)
	for _, d := range m.docs {
		if createdBy != "" && d.CreatedBy != createdBy {
			continue
		}
		if len(out) < limit {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDocumentRepo) ListAll(_ context.Context, createdBy string) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		if createdBy != "" && d.CreatedBy != createdBy {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type mockAuditRepo struct {
	mu   sync.Mutex
	logs []domain.AuditLog
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{}
}

func (m *mockAuditRepo) Create(_ context.Context, log domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAuditRepo) RecentForDocument(_ context.Context, documentID string, limit int) ([]domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditLog, 0, limit)
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.logs[i].DocumentID != nil && *m.logs[i].DocumentID == documentID {
			out = append(out, m.logs[i])
		}
	}
	return out, nil
}

func (m *mockAuditRepo) ListRecent(_ context.Context, limit int, _ string) ([]domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditLog, 0, limit)
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.logs[i])
	}
	return out, nil
}

func (m *mockAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

func seedDocument(repo *mockDocumentRepo, id, title string) domain.Document {
	doc := domain.Document{
		ID:               id,
		Identifier:       "CAMPS-20260101-" + id,
		Title:            title,
		DocType:          "contrato",
		OriginalFilename: id + ".pdf",
		Status:           domain.DocumentStatusUploaded,
		CreatedBy:        "user-1",
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	_ = repo.Create(context.Background(), doc)
	return doc
}

func waitForCompletion(t *testing.T, p *BatchProcessor, taskID string) domain.BatchTask {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := p.Status(taskID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if task.Status == domain.BatchStatusCompleted {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not complete in time", taskID)
	return domain.BatchTask{}
}

func TestBatchProcessor_AppliesMetadataToAllDocuments(t *testing.T) {
	docs := newMockDocumentRepo()
	audits := newMockAuditRepo()
	seedDocument(docs, "d1", "Primero")
	seedDocument(docs, "d2", "Segundo")

	p := NewBatchProcessor(zap.NewNop(), docs, audits, NewMetadataValidator(), 2)
	defer p.Close()

	taskID, err := p.Submit([]string{"d1", "d2"}, DocumentMetadata{
		Author:        "Maria Silva",
		DocType:       "ATA",
		ResolutionDPI: 300,
	}, "user-1", "10.0.0.1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	task := waitForCompletion(t, p, taskID)
	if task.Result == nil {
		t.Fatalf("expected result on completed task")
	}
	if task.Result.Total != 2 || task.Result.Success != 2 || task.Result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", task.Result)
	}

	doc, err := docs.GetByID(context.Background(), "d1")
	if err != nil {
		t.Fatalf("get d1: %v", err)
	}
	if doc.Author != "Maria Silva" {
		t.Fatalf("author not applied: %+v", doc)
	}
	if doc.DocType != "ata" {
		t.Fatalf("doc_type should be lowercased, got %q", doc.DocType)
	}
	if doc.ResolutionDPI != 300 {
		t.Fatalf("resolution not applied: %d", doc.ResolutionDPI)
	}
	if doc.Title != "Primero" {
		t.Fatalf("empty fields must not overwrite, got title %q", doc.Title)
	}

	for _, action := range audits.actions() {
		if action != "metadata_batch_update" {
			t.Fatalf("unexpected audit action %q", action)
		}
	}
	if len(audits.actions()) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(audits.actions()))
	}
}

func TestBatchProcessor_ReportsPerDocumentFailures(t *testing.T) {
	docs := newMockDocumentRepo()
	audits := newMockAuditRepo()
	seedDocument(docs, "d1", "Existe")

	p := NewBatchProcessor(zap.NewNop(), docs, audits, NewMetadataValidator(), 1)
	defer p.Close()

	taskID, err := p.Submit([]string{"d1", "missing"}, DocumentMetadata{Author: "Maria Silva"}, "user-1", "10.0.0.1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	task := waitForCompletion(t, p, taskID)
	if task.Result.Success != 1 || task.Result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", task.Result)
	}
	var missingResult domain.BatchItemResult
	for _, r := range task.Result.Results {
		if r.DocumentID == "missing" {
			missingResult = r
		}
	}
	if missingResult.Success || missingResult.Error != "documento no encontrado" {
		t.Fatalf("unexpected item result: %+v", missingResult)
	}
}

func TestBatchProcessor_InvalidMetadataFailsItems(t *testing.T) {
	docs := newMockDocumentRepo()
	seedDocument(docs, "d1", "Existe")

	p := NewBatchProcessor(zap.NewNop(), docs, newMockAuditRepo(), NewMetadataValidator(), 1)
	defer p.Close()

	taskID, err := p.Submit([]string{"d1"}, DocumentMetadata{DocType: "tipo_inexistente"}, "user-1", "10.0.0.1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	task := waitForCompletion(t, p, taskID)
	if task.Result.Failed != 1 {
		t.Fatalf("expected validation failure, got %+v", task.Result)
	}
	if !strings.Contains(task.Result.Results[0].Error, "validacion fallida") {
		t.Fatalf("unexpected error: %q", task.Result.Results[0].Error)
	}

	doc, _ := docs.GetByID(context.Background(), "d1")
	if doc.DocType != "contrato" {
		t.Fatalf("document must stay untouched on validation failure, got %q", doc.DocType)
	}
}

// panicDocumentRepo simula un bug en el repositorio que revienta al worker.
type panicDocumentRepo struct {
	*mockDocumentRepo
}

func (p *panicDocumentRepo) GetByID(context.Context, string) (domain.Document, error) {
	panic("repositorio roto")
}

// gatedDocumentRepo retiene cada GetByID hasta que se abra la compuerta,
// para mantener al worker ocupado mientras se llena la cola.
type gatedDocumentRepo struct {
	*mockDocumentRepo
	started chan struct{}
	gate    chan struct{}
}

func (g *gatedDocumentRepo) GetByID(ctx context.Context, id string) (domain.Document, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.gate
	return g.mockDocumentRepo.GetByID(ctx, id)
}

func TestBatchProcessor_PanicMarksTaskFailed(t *testing.T) {
	docs := newMockDocumentRepo()
	seedDocument(docs, "d1", "Existe")

	p := NewBatchProcessor(zap.NewNop(), &panicDocumentRepo{docs}, newMockAuditRepo(), NewMetadataValidator(), 1)
	defer p.Close()

	taskID, err := p.Submit([]string{"d1"}, DocumentMetadata{Author: "Maria Silva"}, "user-1", "10.0.0.1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var task domain.BatchTask
	for time.Now().Before(deadline) {
		task, err = p.Status(taskID)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if task.Status == domain.BatchStatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if task.Status != domain.BatchStatusFailed {
		t.Fatalf("expected failed task, got %q", task.Status)
	}
	if task.Result == nil || task.Result.Failed != 1 || task.Result.Success != 0 {
		t.Fatalf("unexpected result: %+v", task.Result)
	}

	// El worker sobrevive al panic y sigue atendiendo tareas.
	if _, err := p.Submit([]string{"d1"}, DocumentMetadata{Author: "Maria Silva"}, "user-1", "10.0.0.1"); err != nil {
		t.Fatalf("submit after panic: %v", err)
	}
}

func TestBatchProcessor_FullQueueRejectsSubmission(t *testing.T) {
	docs := newMockDocumentRepo()
	seedDocument(docs, "d1", "Existe")
	gated := &gatedDocumentRepo{
		mockDocumentRepo: docs,
		started:          make(chan struct{}, 1),
		gate:             make(chan struct{}),
	}

	p := NewBatchProcessor(zap.NewNop(), gated, newMockAuditRepo(), NewMetadataValidator(), 1)
	defer p.Close()
	defer close(gated.gate)

	// La primera tarea ocupa al unico worker.
	if _, err := p.Submit([]string{"d1"}, DocumentMetadata{Author: "Maria Silva"}, "user-1", ""); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	select {
	case <-gated.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker never picked up the first task")
	}

	// El resto llena el buffer de la cola.
	for i := 0; i < cap(p.jobs); i++ {
		if _, err := p.Submit([]string{"d1"}, DocumentMetadata{Author: "Maria Silva"}, "user-1", ""); err != nil {
			t.Fatalf("fill submit %d: %v", i, err)
		}
	}

	taskID, err := p.Submit([]string{"d1"}, DocumentMetadata{Author: "Maria Silva"}, "user-1", "")
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if taskID != "" {
		t.Fatalf("rejected submission must not return a task id, got %q", taskID)
	}
	// La tarea rechazada no queda registrada.
	p.mu.Lock()
	n := len(p.tasks)
	p.mu.Unlock()
	if n != cap(p.jobs)+1 {
		t.Fatalf("expected %d tracked tasks, got %d", cap(p.jobs)+1, n)
	}
}

func TestBatchProcessor_UnknownTask(t *testing.T) {
	p := NewBatchProcessor(zap.NewNop(), newMockDocumentRepo(), newMockAuditRepo(), NewMetadataValidator(), 1)
	defer p.Close()

	if _, err := p.Status("no-such-task"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestBatchProcessor_RejectsEmptySubmission(t *testing.T) {
	p := NewBatchProcessor(zap.NewNop(), newMockDocumentRepo(), newMockAuditRepo(), NewMetadataValidator(), 1)
	defer p.Close()

	if _, err := p.Submit(nil, DocumentMetadata{}, "user-1", ""); err == nil {
		t.Fatalf("expected error for empty document list")
	}
}
