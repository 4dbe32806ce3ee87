package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"camps-pdf/internal/domain"
	"camps-pdf/internal/repository"
	"camps-pdf/internal/service"
)

// APIError es un rechazo del backend distinto de 401: se entrega tal cual,
// sin reintentos.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

// APIClient es la capa tipada sobre el Transport: un método por endpoint,
// sin lógica propia de autenticación.
type APIClient struct {
	transport *Transport
}

func NewAPIClient(t *Transport) *APIClient {
	return &APIClient{transport: t}
}

// Transport expone el transport subyacente (login, logout, permisos).
func (c *APIClient) Transport() *Transport {
	return c.transport
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req := Request{Method: method, Path: path, Query: query}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req.Body = data
		req.ContentType = "application/json"
	}

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiErrorFrom(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiErrorFrom(resp *http.Response) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	msg := payload.Error
	if msg == "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// Me devuelve el principal vigente según el backend y sus permisos.
func (c *APIClient) Me(ctx context.Context) (Principal, []string, error) {
	var out struct {
		User        Principal `json:"user"`
		Permissions []string  `json:"permissions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, nil, &out); err != nil {
		return Principal{}, nil, err
	}
	return out.User, out.Permissions, nil
}

func (c *APIClient) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}
	return c.doJSON(ctx, http.MethodPost, "/api/auth/change-password", nil, body, nil)
}

func (c *APIClient) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out struct {
		Users []domain.User `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// CreateUserInput replica el contrato del alta de usuarios.
type CreateUserInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

func (c *APIClient) CreateUser(ctx context.Context, input CreateUserInput) (domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/users", nil, input, &out); err != nil {
		return domain.User{}, err
	}
	return out.User, nil
}

// UpdateUserInput lleva solo los campos a modificar.
type UpdateUserInput struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (c *APIClient) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPut, "/api/auth/users/"+id, nil, input, &out); err != nil {
		return domain.User{}, err
	}
	return out.User, nil
}

func (c *APIClient) DeleteUser(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/auth/users/"+id, nil, nil, nil)
}

// UploadInput es un archivo a subir, con su contenido en memoria.
type UploadInput struct {
	Filename string
	Content  []byte
}

// UploadDocuments arma el multipart a mano para que el body sea replayable
// por el transport tras un refresh.
func (c *APIClient) UploadDocuments(ctx context.Context, files []UploadInput) (string, []service.UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Filename)
		if err != nil {
			return "", nil, err
		}
		if _, err := part.Write(f.Content); err != nil {
			return "", nil, err
		}
	}
	if err := w.Close(); err != nil {
		return "", nil, err
	}

	resp, err := c.transport.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/api/documents/upload",
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
	})
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", nil, apiErrorFrom(resp)
	}

	var out struct {
		Message string                 `json:"message"`
		Data    []service.UploadResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, err
	}
	return out.Message, out.Data, nil
}

// DocumentListOptions son los filtros del listado de documentos.
type DocumentListOptions struct {
	Search  string
	DocType string
	Status  string
	Page    int
	PerPage int
}

func (c *APIClient) ListDocuments(ctx context.Context, opts DocumentListOptions) ([]domain.Document, service.Pagination, error) {
	query := url.Values{}
	if opts.Search != "" {
		query.Set("search", opts.Search)
	}
	if opts.DocType != "" {
		query.Set("doc_type", opts.DocType)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(opts.PerPage))
	}

	var out struct {
		Data struct {
			Documents  []domain.Document  `json:"documents"`
			Pagination service.Pagination `json:"pagination"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents", query, nil, &out); err != nil {
		return nil, service.Pagination{}, err
	}
	return out.Data.Documents, out.Data.Pagination, nil
}

func (c *APIClient) GetDocument(ctx context.Context, id string) (domain.Document, []domain.AuditLog, error) {
	var out struct {
		Data struct {
			Document  domain.Document   `json:"document"`
			AuditLogs []domain.AuditLog `json:"audit_logs"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents/"+id, nil, nil, &out); err != nil {
		return domain.Document{}, nil, err
	}
	return out.Data.Document, out.Data.AuditLogs, nil
}

func (c *APIClient) AddMetadata(ctx context.Context, id string, md service.DocumentMetadata) (domain.Document, error) {
	var out struct {
		Data domain.Document `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/documents/"+id+"/metadata", nil, md, &out); err != nil {
		return domain.Document{}, err
	}
	return out.Data, nil
}

// DownloadDocument entrega el stream del PDF y el nombre sugerido. El
// caller debe cerrar el reader.
func (c *APIClient) DownloadDocument(ctx context.Context, id string) (io.ReadCloser, string, error) {
	resp, err := c.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/documents/" + id + "/download",
	})
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, "", apiErrorFrom(resp)
	}

	filename := id + ".pdf"
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			filename = params["filename"]
		}
	}
	return resp.Body, filename, nil
}

func (c *APIClient) DeleteDocument(ctx context.Context, id string) (service.DeleteResult, error) {
	var out struct {
		Data service.DeleteResult `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, "/api/documents/"+id, nil, nil, &out); err != nil {
		return service.DeleteResult{}, err
	}
	return out.Data, nil
}

func (c *APIClient) DocumentStats(ctx context.Context) (service.DocumentStats, error) {
	var out struct {
		Data service.DocumentStats `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents/stats", nil, nil, &out); err != nil {
		return service.DocumentStats{}, err
	}
	return out.Data, nil
}

func (c *APIClient) DashboardSummary(ctx context.Context) (service.DashboardSummary, error) {
	var out struct {
		Data service.DashboardSummary `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/analytics/dashboard/summary", nil, nil, &out); err != nil {
		return service.DashboardSummary{}, err
	}
	return out.Data, nil
}

func (c *APIClient) DocumentsTimeline(ctx context.Context, days int) (service.TimelineChart, error) {
	query := url.Values{}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}
	var out struct {
		Data service.TimelineChart `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/analytics/charts/documents-timeline", query, nil, &out); err != nil {
		return service.TimelineChart{}, err
	}
	return out.Data, nil
}

func (c *APIClient) DocumentsByType(ctx context.Context) ([]repository.TypeCount, error) {
	var out struct {
		Data []repository.TypeCount `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/analytics/charts/documents-by-type", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *APIClient) SignatureStatus(ctx context.Context) (service.SignatureChart, error) {
	var out struct {
		Data service.SignatureChart `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/analytics/charts/signature-status", nil, nil, &out); err != nil {
		return service.SignatureChart{}, err
	}
	return out.Data, nil
}

func (c *APIClient) ExportReport(ctx context.Context, reportType string) (service.ExportReport, error) {
	query := url.Values{}
	if reportType != "" {
		query.Set("type", reportType)
	}
	var out struct {
		Data service.ExportReport `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/analytics/reports/export", query, nil, &out); err != nil {
		return service.ExportReport{}, err
	}
	return out.Data, nil
}

func (c *APIClient) SubmitBatchMetadata(ctx context.Context, documentIDs []string, md service.DocumentMetadata) (string, error) {
	body := map[string]any{
		"document_ids": documentIDs,
		"metadata":     md,
	}
	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/batch/metadata", nil, body, &out); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

func (c *APIClient) BatchTaskStatus(ctx context.Context, taskID string) (domain.BatchTask, error) {
	var out struct {
		Data domain.BatchTask `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/batch/tasks/"+taskID, nil, nil, &out); err != nil {
		return domain.BatchTask{}, err
	}
	return out.Data, nil
}
