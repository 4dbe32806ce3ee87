package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"camps-pdf/internal/domain"
)

func newTestAnalyticsService(docs *mockDocumentRepo, audits *mockAuditRepo, users *mockUserRepo) *AnalyticsService {
	return NewAnalyticsService(zap.NewNop(), docs, audits, users)
}

func analyticsAdmin() domain.User {
	return domain.User{ID: "admin-1", Email: "admin@camps.com", Role: domain.RoleAdmin, IsActive: true}
}

func analyticsViewer() domain.User {
	return domain.User{ID: "viewer-1", Email: "viewer@camps.com", Role: domain.RoleViewer, IsActive: true}
}

func TestAnalyticsSummary_AdminSeesUserCounts(t *testing.T) {
	docs := newMockDocumentRepo()
	users := newMockUserRepo()
	seedDocument(docs, "d1", "Uno")
	d2 := seedDocument(docs, "d2", "Dos")
	d2.IsSigned = true
	_ = docs.Update(context.Background(), d2)
	seedUser(t, users, "a@b.com", "secret123", domain.RoleUser, true)
	seedUser(t, users, "c@d.com", "secret123", domain.RoleUser, false)

	svc := newTestAnalyticsService(docs, newMockAuditRepo(), users)
	summary, err := svc.Summary(context.Background(), analyticsAdmin())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if summary.Totals.Documents != 2 || summary.Totals.SignedDocuments != 1 {
		t.Fatalf("unexpected totals: %+v", summary.Totals)
	}
	if summary.Totals.TotalUsers == nil || *summary.Totals.TotalUsers != 2 {
		t.Fatalf("admin should see total users, got %+v", summary.Totals.TotalUsers)
	}
	if summary.Totals.ActiveUsers == nil || *summary.Totals.ActiveUsers != 1 {
		t.Fatalf("admin should see active users, got %+v", summary.Totals.ActiveUsers)
	}
	if summary.SigningRate != 50.0 {
		t.Fatalf("unexpected signing rate %v", summary.SigningRate)
	}
}

func TestAnalyticsSummary_RegularUserScoped(t *testing.T) {
	docs := newMockDocumentRepo()
	own := seedDocument(docs, "d1", "Mio")
	own.CreatedBy = "viewer-1"
	_ = docs.Update(context.Background(), own)
	seedDocument(docs, "d2", "Ajeno")

	svc := newTestAnalyticsService(docs, newMockAuditRepo(), newMockUserRepo())
	summary, err := svc.Summary(context.Background(), analyticsViewer())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if summary.Totals.TotalUsers != nil || summary.Totals.ActiveUsers != nil {
		t.Fatalf("non-admin must not see user counts: %+v", summary.Totals)
	}
	for _, r := range summary.RecentDocuments {
		if r.ID != "d1" {
			t.Fatalf("recent documents must be scoped to the viewer, got %v", summary.RecentDocuments)
		}
	}
}

func TestAnalyticsTimeline_ClampsPeriod(t *testing.T) {
	svc := newTestAnalyticsService(newMockDocumentRepo(), newMockAuditRepo(), newMockUserRepo())

	chart, err := svc.Timeline(context.Background(), 0)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if chart.PeriodDays != 30 {
		t.Fatalf("expected default 30 days, got %d", chart.PeriodDays)
	}

	chart, err = svc.Timeline(context.Background(), 5000)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if chart.PeriodDays != 365 {
		t.Fatalf("expected cap at 365 days, got %d", chart.PeriodDays)
	}
}

func TestAnalyticsSignatureStatus(t *testing.T) {
	docs := newMockDocumentRepo()
	d1 := seedDocument(docs, "d1", "Uno")
	d1.IsSigned = true
	_ = docs.Update(context.Background(), d1)
	seedDocument(docs, "d2", "Dos")
	seedDocument(docs, "d3", "Tres")

	svc := newTestAnalyticsService(docs, newMockAuditRepo(), newMockUserRepo())
	chart, err := svc.SignatureStatus(context.Background())
	if err != nil {
		t.Fatalf("signature status: %v", err)
	}
	if len(chart.Basic) != 2 {
		t.Fatalf("expected 2 buckets, got %v", chart.Basic)
	}
	if chart.Basic[0].Status != "Firmados" || chart.Basic[0].Count != 1 {
		t.Fatalf("unexpected signed bucket: %+v", chart.Basic[0])
	}
	if chart.Basic[1].Status != "No firmados" || chart.Basic[1].Count != 2 {
		t.Fatalf("unexpected unsigned bucket: %+v", chart.Basic[1])
	}
}

func TestAnalyticsExport(t *testing.T) {
	docs := newMockDocumentRepo()
	seedDocument(docs, "d1", "Uno")
	audits := newMockAuditRepo()
	_ = audits.Create(context.Background(), domain.AuditLog{ID: "l1", Action: "upload", Timestamp: time.Now().UTC()})

	svc := newTestAnalyticsService(docs, audits, newMockUserRepo())

	report, err := svc.Export(context.Background(), "documents", "", analyticsAdmin())
	if err != nil {
		t.Fatalf("export documents: %v", err)
	}
	if report.ReportType != "documents" || report.Format != "json" || report.RecordsCount != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.ExportedBy != "admin@camps.com" {
		t.Fatalf("unexpected exporter %q", report.ExportedBy)
	}

	report, err = svc.Export(context.Background(), "audit_log", "json", analyticsAdmin())
	if err != nil {
		t.Fatalf("export audit_log: %v", err)
	}
	if report.RecordsCount != 1 {
		t.Fatalf("expected 1 audit record, got %d", report.RecordsCount)
	}

	if _, err := svc.Export(context.Background(), "ventas", "json", analyticsAdmin()); !errors.Is(err, ErrInvalidReportType) {
		t.Fatalf("expected ErrInvalidReportType, got %v", err)
	}
}
