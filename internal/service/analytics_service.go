package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"camps-pdf/internal/domain"
	"camps-pdf/internal/repository"
)

var ErrInvalidReportType = errors.New("tipo de reporte invalido")

// DashboardSummary es la respuesta del resumen general del dashboard.
type DashboardSummary struct {
	Totals          SummaryTotals     `json:"totals"`
	StatusSummary   map[string]int    `json:"status_summary"`
	RecentDocuments []RecentDocument  `json:"recent_documents"`
	SigningRate     float64           `json:"signing_rate"`
}

type SummaryTotals struct {
	Documents       int  `json:"documents"`
	SignedDocuments int  `json:"signed_documents"`
	DocumentsToday  int  `json:"documents_today"`
	DocumentsWeek   int  `json:"documents_week"`
	DocumentsMonth  int  `json:"documents_month"`
	ActiveUsers     *int `json:"active_users"`
	TotalUsers      *int `json:"total_users"`
}

type RecentDocument struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// TimelineChart agrupa los puntos del grafico temporal.
type TimelineChart struct {
	PeriodDays  int             `json:"period_days"`
	TotalPoints int             `json:"total_points"`
	Timeline    []TimelineEntry `json:"timeline"`
}

type TimelineEntry struct {
	Date    string `json:"date"`
	Count   int    `json:"count"`
	DayName string `json:"day_name"`
}

// SignatureChart separa documentos firmados de no firmados.
type SignatureChart struct {
	Basic []repository.StatusCount `json:"basic"`
}

// ExportReport envuelve los registros exportados con su contexto.
type ExportReport struct {
	ReportType   string    `json:"report_type"`
	Format       string    `json:"format"`
	GeneratedAt  time.Time `json:"generated_at"`
	RecordsCount int       `json:"records_count"`
	ExportedBy   string    `json:"exported_by"`
	Data         any       `json:"data"`
}

// AnalyticsService arma los agregados del dashboard y los reportes
// exportables, acotando la vista segun los permisos del usuario.
type AnalyticsService struct {
	logger *zap.Logger
	docs   repository.DocumentRepository
	audits repository.AuditLogRepository
	users  repository.UserRepository
}

// NewAnalyticsService crea una instancia de AnalyticsService con dependencias necesarias.
func NewAnalyticsService(
	logger *zap.Logger,
	docs repository.DocumentRepository,
	audits repository.AuditLogRepository,
	users repository.UserRepository,
) *AnalyticsService {
	return &AnalyticsService{logger: logger, docs: docs, audits: audits, users: users}
}

// Summary construye el resumen del dashboard. Los usuarios sin permiso de
// administracion solo ven sus propios documentos recientes y no ven
// contadores de usuarios.
func (s *AnalyticsService) Summary(ctx context.Context, viewer domain.User) (DashboardSummary, error) {
	now := time.Now().UTC()

	total, err := s.docs.CountAll(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	signed, err := s.docs.CountSigned(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	today, err := s.docs.CountCreatedSince(ctx, now.Truncate(24*time.Hour))
	if err != nil {
		return DashboardSummary{}, err
	}
	week, err := s.docs.CountCreatedSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return DashboardSummary{}, err
	}
	month, err := s.docs.CountCreatedSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		return DashboardSummary{}, err
	}

	statusCounts, err := s.docs.CountByStatus(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	statusSummary := make(map[string]int, len(statusCounts))
	for _, sc := range statusCounts {
		statusSummary[sc.Status] = sc.Count
	}

	manageUsers := viewer.HasPermission(domain.PermissionManageUsers)

	recentOwner := viewer.ID
	if manageUsers {
		recentOwner = ""
	}
	recentDocs, err := s.docs.Recent(ctx, 5, recentOwner)
	if err != nil {
		return DashboardSummary{}, err
	}
	recent := make([]RecentDocument, 0, len(recentDocs))
	for _, d := range recentDocs {
		recent = append(recent, RecentDocument{
			ID:         d.ID,
			Identifier: d.Identifier,
			Title:      d.DisplayTitle(),
			Status:     d.Status,
			CreatedAt:  d.CreatedAt,
		})
	}

	totals := SummaryTotals{
		Documents:       total,
		SignedDocuments: signed,
		DocumentsToday:  today,
		DocumentsWeek:   week,
		DocumentsMonth:  month,
	}
	if manageUsers {
		active, err := s.users.CountActive(ctx)
		if err != nil {
			return DashboardSummary{}, err
		}
		all, err := s.users.CountAll(ctx)
		if err != nil {
			return DashboardSummary{}, err
		}
		totals.ActiveUsers = &active
		totals.TotalUsers = &all
	}

	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(signed)/float64(total)*1000) / 10
	}

	return DashboardSummary{
		Totals:          totals,
		StatusSummary:   statusSummary,
		RecentDocuments: recent,
		SigningRate:     rate,
	}, nil
}

// Timeline devuelve la serie diaria de documentos creados. El periodo se
// acota a un año.
func (s *AnalyticsService) Timeline(ctx context.Context, days int) (TimelineChart, error) {
	if days < 1 {
		days = 30
	}
	if days > 365 {
		days = 365
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	points, err := s.docs.Timeline(ctx, since)
	if err != nil {
		return TimelineChart{}, err
	}

	entries := make([]TimelineEntry, 0, len(points))
	for _, p := range points {
		entries = append(entries, TimelineEntry{
			Date:    p.Date.Format("2006-01-02"),
			Count:   p.Count,
			DayName: p.Date.Format("Mon"),
		})
	}
	return TimelineChart{
		PeriodDays:  days,
		TotalPoints: len(entries),
		Timeline:    entries,
	}, nil
}

// ByType devuelve los conteos por tipo de documento, ignorando documentos sin tipo.
func (s *AnalyticsService) ByType(ctx context.Context) ([]repository.TypeCount, error) {
	return s.docs.CountByType(ctx)
}

// SignatureStatus devuelve los conteos de firmados y no firmados.
func (s *AnalyticsService) SignatureStatus(ctx context.Context) (SignatureChart, error) {
	signed, err := s.docs.CountSigned(ctx)
	if err != nil {
		return SignatureChart{}, err
	}
	total, err := s.docs.CountAll(ctx)
	if err != nil {
		return SignatureChart{}, err
	}
	return SignatureChart{Basic: []repository.StatusCount{
		{Status: "Firmados", Count: signed},
		{Status: "No firmados", Count: total - signed},
	}}, nil
}

const exportAuditLimit = 1000

// Export genera un reporte de documentos o de auditoria. Sin permiso de
// administracion el reporte queda acotado a los documentos del solicitante.
func (s *AnalyticsService) Export(ctx context.Context, reportType, format string, viewer domain.User) (ExportReport, error) {
	if format == "" {
		format = "json"
	}

	owner := viewer.ID
	if viewer.HasPermission(domain.PermissionManageUsers) {
		owner = ""
	}

	var (
		data  any
		count int
	)
	switch reportType {
	case "documents":
		docs, err := s.docs.ListAll(ctx, owner)
		if err != nil {
			return ExportReport{}, err
		}
		data, count = docs, len(docs)
	case "audit_log":
		logs, err := s.audits.ListRecent(ctx, exportAuditLimit, owner)
		if err != nil {
			return ExportReport{}, err
		}
		data, count = logs, len(logs)
	default:
		return ExportReport{}, ErrInvalidReportType
	}

	return ExportReport{
		ReportType:   reportType,
		Format:       format,
		GeneratedAt:  time.Now().UTC(),
		RecordsCount: count,
		ExportedBy:   viewer.Email,
		Data:         data,
	}, nil
}
