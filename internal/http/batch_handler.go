package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"camps-pdf/internal/service"
)

// BatchHandler mantiene dependencias para endpoints de procesamiento en lote.
type BatchHandler struct {
	logger    *zap.Logger
	processor *service.BatchProcessor
}

// NewBatchHandler crea una instancia de BatchHandler con dependencias necesarias.
func NewBatchHandler(logger *zap.Logger, processor *service.BatchProcessor) *BatchHandler {
	return &BatchHandler{logger: logger, processor: processor}
}

// SubmitMetadata maneja POST /api/batch/metadata. Encola la tarea y
// responde 202 con el task_id para consultar el avance.
func (h *BatchHandler) SubmitMetadata(c *gin.Context) {
	actor, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var req struct {
		DocumentIDs []string                 `json:"document_ids" binding:"required"`
		Metadata    service.DocumentMetadata `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	taskID, err := h.processor.Submit(req.DocumentIDs, req.Metadata, actor.ID, c.ClientIP())
	if err != nil {
		if errors.Is(err, service.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cola de lotes llena, reintente en unos minutos"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "tarea encolada",
		"task_id": taskID,
	})
}

// TaskStatus maneja GET /api/batch/tasks/:id.
func (h *BatchHandler) TaskStatus(c *gin.Context) {
	task, err := h.processor.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "tarea no encontrada"})
			return
		}
		h.logger.Error("task status failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": task})
}
