package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"camps-pdf/internal/service"
)

// AnalyticsHandler mantiene dependencias para endpoints del dashboard.
type AnalyticsHandler struct {
	logger        *zap.Logger
	analyticsServ *service.AnalyticsService
}

// NewAnalyticsHandler crea una instancia de AnalyticsHandler con dependencias necesarias.
func NewAnalyticsHandler(logger *zap.Logger, analyticsServ *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{logger: logger, analyticsServ: analyticsServ}
}

// Summary maneja GET /api/analytics/dashboard/summary.
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	viewer, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	summary, err := h.analyticsServ.Summary(c.Request.Context(), viewer)
	if err != nil {
		h.logger.Error("dashboard summary failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

// Timeline maneja GET /api/analytics/charts/documents-timeline.
func (h *AnalyticsHandler) Timeline(c *gin.Context) {
	var query struct {
		Days int `form:"days,default=30"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	chart, err := h.analyticsServ.Timeline(c.Request.Context(), query.Days)
	if err != nil {
		h.logger.Error("timeline chart failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": chart})
}

// ByType maneja GET /api/analytics/charts/documents-by-type.
func (h *AnalyticsHandler) ByType(c *gin.Context) {
	counts, err := h.analyticsServ.ByType(c.Request.Context())
	if err != nil {
		h.logger.Error("by-type chart failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": counts})
}

// SignatureStatus maneja GET /api/analytics/charts/signature-status.
func (h *AnalyticsHandler) SignatureStatus(c *gin.Context) {
	chart, err := h.analyticsServ.SignatureStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("signature chart failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": chart})
}

// Export maneja GET /api/analytics/reports/export.
func (h *AnalyticsHandler) Export(c *gin.Context) {
	viewer, ok := GetAuthUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	reportType := c.DefaultQuery("type", "documents")
	format := c.DefaultQuery("format", "json")

	report, err := h.analyticsServ.Export(c.Request.Context(), reportType, format, viewer)
	if err != nil {
		if errors.Is(err, service.ErrInvalidReportType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tipo de reporte invalido"})
			return
		}
		h.logger.Error("export report failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}
