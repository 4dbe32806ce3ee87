package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"camps-pdf/internal/client"
	"camps-pdf/internal/domain"
	"camps-pdf/internal/service"
)

// Consola de administración del gestor de PDFs: misma API que el panel web,
// operada desde la terminal.
func main() {
	baseURL := flag.String("server", envOr("CAMPS_SERVER", "http://localhost:8080"), "URL base del backend")
	sessionPath := flag.String("session", defaultSessionPath(), "archivo de sesion")
	flag.Parse()

	store, err := client.NewFileSessionStore(*sessionPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	transport, err := client.NewTransport(*baseURL, store, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	transport.OnSessionEnd(func() {
		fmt.Println("\nsesion terminada; vuelva a iniciar sesion")
	})
	api := client.NewAPIClient(transport)

	app := &App{api: api, in: bufio.NewReader(os.Stdin)}
	app.Run(context.Background())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".camps-session.json"
	}
	return filepath.Join(home, ".camps-pdf", "session.json")
}

// App mantiene el estado de la consola interactiva.
type App struct {
	api *client.APIClient
	in  *bufio.Reader
}

func (a *App) Run(ctx context.Context) {
	fmt.Println("CAMPS PDF - consola de administracion")
	if p, ok := a.api.Transport().Principal(); ok {
		fmt.Printf("sesion activa: %s (%s)\n", p.Email, p.Role)
	}

	for {
		fmt.Print("\n[1] login  [2] documentos  [3] subir  [4] metadatos  [5] descargar\n" +
			"[6] eliminar  [7] dashboard  [8] usuarios  [9] lote  [0] logout  [q] salir\n> ")
		choice, err := a.readLine()
		if err != nil {
			return
		}

		switch choice {
		case "1":
			a.login(ctx)
		case "2":
			a.listDocuments(ctx)
		case "3":
			a.upload(ctx)
		case "4":
			a.addMetadata(ctx)
		case "5":
			a.download(ctx)
		case "6":
			a.deleteDocument(ctx)
		case "7":
			a.dashboard(ctx)
		case "8":
			a.users(ctx)
		case "9":
			a.batch(ctx)
		case "0":
			a.api.Transport().Logout(ctx)
		case "q", "quit", "exit":
			return
		default:
			fmt.Println("opcion desconocida")
		}
	}
}

func (a *App) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && !(err == io.EOF && len(line) > 0) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) prompt(label string) string {
	fmt.Print(label + ": ")
	line, _ := a.readLine()
	return line
}

func (a *App) login(ctx context.Context) {
	email := a.prompt("email")
	fmt.Print("password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	principal, err := a.api.Transport().Login(ctx, email, string(pw))
	if err != nil {
		fmt.Println("login fallido:", err)
		return
	}
	fmt.Printf("bienvenido %s (%s)\n", principal.Name, principal.Role)
}

func (a *App) requireSession() bool {
	if !a.api.Transport().IsAuthenticated() {
		fmt.Println("inicie sesion primero")
		return false
	}
	return true
}

func (a *App) listDocuments(ctx context.Context) {
	if !a.requireSession() {
		return
	}
	search := a.prompt("buscar (enter para todos)")

	docs, pagination, err := a.api.ListDocuments(ctx, client.DocumentListOptions{Search: search, PerPage: 20})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("%-38s %-24s %-30s %-15s %s\n", "ID", "IDENTIFICADOR", "TITULO", "ESTADO", "PAGS")
	for _, d := range docs {
		fmt.Printf("%-38s %-24s %-30.30s %-15s %d\n", d.ID, d.Identifier, d.DisplayTitle(), d.Status, d.PageCount)
	}
	fmt.Printf("total: %d (pagina %d de %d)\n", pagination.Total, pagination.CurrentPage, pagination.Pages)
}

func (a *App) upload(ctx context.Context) {
	if !a.requireSession() {
		return
	}
	path := a.prompt("ruta del PDF")
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	msg, results, err := a.api.UploadDocuments(ctx, []client.UploadInput{{
		Filename: filepath.Base(path),
		Content:  content,
	}})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(msg)
	for _, r := range results {
		if r.Success {
			fmt.Printf("  %s -> %s (%d paginas, hash %.16s)\n", r.Filename, r.Identifier, r.Pages, r.Hash)
		} else {
			fmt.Printf("  %s -> fallo: %s\n", r.Filename, r.Error)
		}
	}
}

func (a *App) addMetadata(ctx context.Context) {
	if !a.requireSession() {
		return
	}
	id := a.prompt("id del documento")
	md := service.DocumentMetadata{
		Title:       a.prompt("titulo"),
		Author:      a.prompt("autor"),
		Subject:     a.prompt("asunto"),
		DocType:     a.prompt("tipo (contrato, ata, relatorio, ...)"),
		Responsible: a.prompt("responsable"),
	}

	doc, err := a.api.AddMetadata(ctx, id, md)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("metadatos aplicados; estado: %s\n", doc.Status)
}

func (a *App) download(ctx context.Context) {
	if !a.requireSession() {
		return
	}
	id := a.prompt("id del documento")

	rc, filename, err := a.api.DownloadDocument(ctx, id)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer rc.Close()

	out, err := os.Create(filename)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	n, err := io.Copy(out, rc)
	closeErr := out.Close()
	if err != nil || closeErr != nil {
		fmt.Println("error guardando el archivo")
		return
	}
	fmt.Printf("guardado %s (%d bytes)\n", filename, n)
}

func (a *App) deleteDocument(ctx context.Context) {
	if !a.requireSession() {
		return
	}
	id := a.prompt("id del documento")
	if a.prompt("confirma eliminar? (si/no)") != "si" {
		return
	}

	result, err := a.api.DeleteDocument(ctx, id)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("eliminado %s (archivos: %s)\n", result.Identifier, strings.Join(result.FilesRemoved, ", "))
}

func (a *App) dashboard(ctx context.Context) {
	if !a.requireSession() {
		return
	}
	summary, err := a.api.DashboardSummary(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	t := summary.Totals
	fmt.Printf("documentos: %d (firmados %d, hoy %d, semana %d, mes %d)\n",
		t.Documents, t.SignedDocuments, t.DocumentsToday, t.DocumentsWeek, t.DocumentsMonth)
	fmt.Printf("tasa de firma: %.1f%%\n", summary.SigningRate)
	if t.TotalUsers != nil && t.ActiveUsers != nil {
		fmt.Printf("usuarios: %d (%d activos)\n", *t.TotalUsers, *t.ActiveUsers)
	}
	for status, count := range summary.StatusSummary {
		fmt.Printf("  %s: %d\n", status, count)
	}
	if len(summary.RecentDocuments) > 0 {
		fmt.Println("recientes:")
		for _, d := range summary.RecentDocuments {
			fmt.Printf("  %s  %s (%s)\n", d.Identifier, d.Title, d.Status)
		}
	}
}

func (a *App) users(ctx context.Context) {
	if !a.requireSession() {
		return
	}
	if !a.api.Transport().HasPermission(domain.PermissionManageUsers) {
		fmt.Println("requiere permiso de administracion")
		return
	}

	users, err := a.api.ListUsers(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("%-38s %-30s %-10s %s\n", "ID", "EMAIL", "ROL", "ACTIVO")
	for _, u := range users {
		fmt.Printf("%-38s %-30s %-10s %t\n", u.ID, u.Email, u.Role, u.IsActive)
	}
}

func (a *App) batch(ctx context.Context) {
	if !a.requireSession() {
		return
	}
	idsLine := a.prompt("ids de documentos (separados por coma)")
	var ids []string
	for _, id := range strings.Split(idsLine, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		fmt.Println("ningun documento")
		return
	}

	md := service.DocumentMetadata{
		Author:  a.prompt("autor (enter para omitir)"),
		DocType: a.prompt("tipo (enter para omitir)"),
	}
	if dpi := a.prompt("resolucion DPI (enter para omitir)"); dpi != "" {
		if n, err := strconv.Atoi(dpi); err == nil {
			md.ResolutionDPI = n
		}
	}

	taskID, err := a.api.SubmitBatchMetadata(ctx, ids, md)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("tarea encolada:", taskID)

	if a.prompt("consultar estado? (si/no)") != "si" {
		return
	}
	task, err := a.api.BatchTaskStatus(ctx, taskID)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("estado: %s\n", task.Status)
	if task.Result != nil {
		fmt.Printf("resultado: %d ok, %d fallidos de %d\n", task.Result.Success, task.Result.Failed, task.Result.Total)
	}
}
