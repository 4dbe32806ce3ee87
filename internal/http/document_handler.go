package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"camps-pdf/internal/repository"
	"camps-pdf/internal/service"
)

// DocumentHandler mantiene dependencias para endpoints de documentos.
type DocumentHandler struct {
	logger  *zap.Logger
	docServ *service.DocumentService
	tempDir string
	maxSize int64
}

// NewDocumentHandler crea una instancia de DocumentHandler con dependencias necesarias.
func NewDocumentHandler(logger *zap.Logger, docServ *service.DocumentService, tempDir string, maxSizeMB int) *DocumentHandler {
	return &DocumentHandler{
		logger:  logger,
		docServ: docServ,
		tempDir: tempDir,
		maxSize: int64(maxSizeMB) << 20,
	}
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

// Upload maneja POST /api/documents/upload. Acepta los campos multipart
// file, files y files[]; cada archivo se procesa por separado.
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "ningun archivo enviado"})
		return
	}

	var headers []*multipart.FileHeader
	headers = append(headers, form.File["files[]"]...)
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["file"]...)
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "ningun archivo enviado"})
		return
	}

	var files []service.UploadFile
	for _, fh := range headers {
		if fh.Filename == "" {
			continue
		}
		if fh.Size > h.maxSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "archivo demasiado grande"})
			return
		}
		tmpPath, err := h.saveToTemp(fh)
		if err != nil {
			h.logger.Error("saving upload to temp dir", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "error interno"})
			return
		}
		files = append(files, service.UploadFile{
			Filename: filepath.Base(fh.Filename),
			TempPath: tmpPath,
		})
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "ningun archivo seleccionado"})
		return
	}

	results := h.docServ.ProcessUploads(c.Request.Context(), files, actor, requestMeta(c))

	successCount := 0
	for _, r := range results {
		if r.Success {
			successCount++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": successCount > 0,
		"message": fmt.Sprintf("%d de %d archivos procesados", successCount, len(results)),
		"data":    results,
	})
}

func (h *DocumentHandler) saveToTemp(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(h.tempDir, "upload-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// List maneja GET /api/documents.
func (h *DocumentHandler) List(c *gin.Context) {
	var query struct {
		Search  string `form:"search"`
		DocType string `form:"doc_type"`
		Status  string `form:"status"`
		Page    int    `form:"page,default=1"`
		PerPage int    `form:"per_page,default=20"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	docs, pagination, err := h.docServ.List(c.Request.Context(), repository.DocumentFilter{
		Search:  query.Search,
		DocType: query.DocType,
		Status:  query.Status,
		Page:    query.Page,
		PerPage: query.PerPage,
	})
	if err != nil {
		h.logger.Error("list documents failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudieron listar documentos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"documents":  docs,
			"pagination": pagination,
		},
	})
}

// Get maneja GET /api/documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, logs, err := h.docServ.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "documento no encontrado"})
			return
		}
		h.logger.Error("get document failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"document":   doc,
			"audit_logs": logs,
		},
	})
}

// AddMetadata maneja POST /api/documents/:id/metadata.
func (h *DocumentHandler) AddMetadata(c *gin.Context) {
	actor, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var md service.DocumentMetadata
	if err := c.ShouldBindJSON(&md); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if md.Title == "" || md.Author == "" || md.DocType == "" || md.Responsible == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "campos obligatorios: title, author, doc_type, responsible"})
		return
	}

	doc, err := h.docServ.AddMetadata(c.Request.Context(), c.Param("id"), md, actor, requestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "documento no encontrado"})
		case errors.Is(err, service.ErrInvalidMetadata):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrFileMissing):
			c.JSON(http.StatusNotFound, gin.H{"error": "archivo no encontrado"})
		default:
			h.logger.Error("add metadata failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudo procesar el PDF"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "metadatos agregados con exito",
		"data":    doc,
	})
}

// Download maneja GET /api/documents/:id/download. Prioriza la copia
// procesada y registra en auditoria cual se entrego.
func (h *DocumentHandler) Download(c *gin.Context) {
	actor, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	rc, info, err := h.docServ.Download(c.Request.Context(), c.Param("id"), actor, requestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "documento no encontrado"})
		case errors.Is(err, service.ErrFileMissing):
			c.JSON(http.StatusNotFound, gin.H{"error": "archivo no encontrado"})
		default:
			h.logger.Error("download failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		}
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Filename))
	c.Header("X-File-Type", info.FileType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.Warn("streaming download interrupted", zap.Error(err))
	}
}

// Delete maneja DELETE /api/documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	result, err := h.docServ.Delete(c.Request.Context(), c.Param("id"), actor, requestMeta(c))
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "documento no encontrado"})
			return
		}
		h.logger.Error("delete document failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no se pudo eliminar el documento"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "documento eliminado con exito",
		"data":    result,
	})
}

// Stats maneja GET /api/documents/stats.
func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.docServ.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("document stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}
