package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUnauthenticated indica que no hay sesión: la llamada ni siquiera
	// toca la red.
	ErrUnauthenticated = errors.New("no active session")

	// ErrSessionExpired indica que el refresh falló y la sesión fue
	// destruida; hay que volver a iniciar sesión.
	ErrSessionExpired = errors.New("session expired")
)

// AuthError es el rechazo de un login, con el mensaje del servidor tal cual.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login rejected (%d): %s", e.Status, e.Message)
}

// Request es un request replayable: el body se guarda en memoria para poder
// reenviarlo tras un refresh.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

// Transport emite requests autenticados con el access token vigente.
// Ante un 401 refresca el token una única vez y reintenta el request
// original; si el refresh falla, la sesión se destruye por completo.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	store      SessionStore
	logger     *zap.Logger

	onSessionEnd func()

	// mu protege la sesión; el refresh se hace con el lock tomado, de modo
	// que requests concurrentes con 401 comparten un único refresh.
	mu      sync.Mutex
	session *Session
}

// NewTransport construye el transport y carga la sesión persistida, si hay.
func NewTransport(baseURL string, store SessionStore, logger *zap.Logger) (*Transport, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	session, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	return &Transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		store:      store,
		logger:     logger,
		session:    session,
	}, nil
}

// SetHTTPClient reemplaza el cliente HTTP (tests, timeouts a medida).
func (t *Transport) SetHTTPClient(c *http.Client) {
	if c != nil {
		t.httpClient = c
	}
}

// OnSessionEnd registra el callback que se dispara cuando la sesión
// termina (logout o refresh fallido). El transport no conoce la UI.
func (t *Transport) OnSessionEnd(fn func()) {
	t.onSessionEnd = fn
}

// Do ejecuta un request autenticado. Sin sesión falla de inmediato con
// ErrUnauthenticated, sin tocar la red. Un 401 dispara exactamente un ciclo
// refresh+retry; la segunda respuesta se devuelve tal cual, sea cual sea
// su status.
func (t *Transport) Do(ctx context.Context, req Request) (*http.Response, error) {
	t.mu.Lock()
	if !t.session.Valid() {
		t.mu.Unlock()
		return nil, ErrUnauthenticated
	}
	token := t.session.AccessToken
	t.mu.Unlock()

	resp, err := t.dispatch(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	newToken, err := t.refreshAccess(ctx, token)
	if err != nil {
		return nil, err
	}
	return t.dispatch(ctx, req, newToken)
}

func (t *Transport) dispatch(ctx context.Context, req Request, token string) (*http.Response, error) {
	u := t.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	switch {
	case req.ContentType != "":
		httpReq.Header.Set("Content-Type", req.ContentType)
	case len(req.Body) > 0:
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		// Falla de red o timeout: no es un 401, no dispara refresh.
		return nil, fmt.Errorf("transport failure: %w", err)
	}
	return resp, nil
}

// refreshAccess refresca el access token una sola vez por token vencido.
// Con el lock tomado: si otro request ya refrescó mientras esperábamos,
// reutiliza ese token sin otra llamada de red. Cualquier falla del refresh
// destruye la sesión entera, atómicamente.
func (t *Transport) refreshAccess(ctx context.Context, stale string) (string, error) {
	t.mu.Lock()
	var ended func()
	defer func() {
		t.mu.Unlock()
		// El callback corre sin el lock: puede consultar el transport.
		if ended != nil {
			ended()
		}
	}()

	if !t.session.Valid() {
		return "", ErrSessionExpired
	}
	if t.session.AccessToken != stale {
		return t.session.AccessToken, nil
	}
	if t.session.RefreshToken == "" {
		ended = t.teardownLocked()
		return "", ErrSessionExpired
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/auth/refresh", nil)
	if err != nil {
		ended = t.teardownLocked()
		return "", ErrSessionExpired
	}
	httpReq.Header.Set("Authorization", "Bearer "+t.session.RefreshToken)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		ended = t.teardownLocked()
		return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ended = t.teardownLocked()
		return "", ErrSessionExpired
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.AccessToken == "" {
		ended = t.teardownLocked()
		return "", ErrSessionExpired
	}

	t.session.AccessToken = payload.AccessToken
	if err := t.store.Save(t.session); err != nil {
		t.logger.Warn("persisting refreshed session failed", zap.Error(err))
	}
	return payload.AccessToken, nil
}

// Login normaliza el email, autentica contra el backend y establece la
// sesión completa de un solo golpe. Un rechazo deja la sesión como estaba.
func (t *Transport) Login(ctx context.Context, email, password string) (Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return Principal{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return Principal{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return Principal{}, fmt.Errorf("transport failure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errPayload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errPayload)
		msg := errPayload.Error
		if msg == "" {
			msg = errPayload.Message
		}
		if msg == "" {
			msg = resp.Status
		}
		return Principal{}, &AuthError{Status: resp.StatusCode, Message: msg}
	}

	var payload struct {
		User         Principal `json:"user"`
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Principal{}, fmt.Errorf("malformed login response: %w", err)
	}
	if payload.AccessToken == "" || payload.RefreshToken == "" || payload.User.ID == "" {
		return Principal{}, errors.New("malformed login response: incomplete session")
	}

	principal := payload.User
	session := &Session{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Principal:    &principal,
	}

	t.mu.Lock()
	t.session = session
	if err := t.store.Save(session); err != nil {
		t.logger.Warn("persisting session failed", zap.Error(err))
	}
	t.mu.Unlock()

	return principal, nil
}

// Logout destruye la sesión incondicionalmente. Intenta revocar el refresh
// token en el backend, pero no depende de que eso funcione. Idempotente.
func (t *Transport) Logout(ctx context.Context) {
	t.mu.Lock()
	refreshToken := ""
	if t.session != nil {
		refreshToken = t.session.RefreshToken
	}
	ended := t.teardownLocked()
	t.mu.Unlock()
	if ended != nil {
		ended()
	}

	if refreshToken == "" {
		return
	}
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/auth/logout", bytes.NewReader(body))
	if err != nil {
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if resp, err := t.httpClient.Do(httpReq); err == nil {
		resp.Body.Close()
	}
}

// teardownLocked borra la sesión de memoria y del store. Requiere mu tomado.
// Devuelve el callback de fin de sesión para que el llamador lo dispare ya
// sin el lock; un suscriptor puede consultar el transport sin bloquearse.
func (t *Transport) teardownLocked() func() {
	t.session = nil
	if err := t.store.Clear(); err != nil {
		t.logger.Warn("clearing persisted session failed", zap.Error(err))
	}
	return t.onSessionEnd
}

// IsAuthenticated indica si hay una sesión activa. No toca la red.
func (t *Transport) IsAuthenticated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Valid()
}

// Principal devuelve una copia del principal actual, si hay sesión.
func (t *Transport) Principal() (Principal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.session.Valid() {
		return Principal{}, false
	}
	return *t.session.Principal, true
}

// HasRole compara el rol de la sesión actual. Sin sesión, siempre false.
func (t *Transport) HasRole(role string) bool {
	p, ok := t.Principal()
	return ok && string(p.Role) == role
}

// HasPermission consulta la tabla estática rol -> acciones. Rol desconocido
// o sesión ausente: false para cualquier acción.
func (t *Transport) HasPermission(action string) bool {
	p, ok := t.Principal()
	if !ok || !p.IsActive {
		return false
	}
	return p.Role.HasPermission(action)
}
