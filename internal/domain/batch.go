package domain

import "time"

// Estados de una tarea de lote.
const (
	BatchStatusQueued     = "queued"
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
)

// BatchTask es el estado observable de una actualización de metadatos en lote.
// Vive solo en memoria: no sobrevive a un reinicio del proceso.
type BatchTask struct {
	ID          string       `json:"task_id"`
	Status      string       `json:"status"`
	SubmittedAt time.Time    `json:"submitted_at"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
	Result      *BatchResult `json:"result,omitempty"`
}

type BatchResult struct {
	Total   int               `json:"total"`
	Success int               `json:"success"`
	Failed  int               `json:"failed"`
	Results []BatchItemResult `json:"results"`
}

type BatchItemResult struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title,omitempty"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}
