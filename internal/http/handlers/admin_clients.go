package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/app"
	httpx "github.com/dropDatabas3/gatejohn/internal/http"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/security/password"
	tokens "github.com/dropDatabas3/gatejohn/internal/security/token"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
	"github.com/dropDatabas3/gatejohn/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type adminClientsHandler struct {
	c      *app.Container
	apiKey string
	log    *zap.Logger
}

// NewAdminClientsHandler maneja el CRUD de clients para operadores.
// Toda la superficie exige X-Admin-API-Key.
func NewAdminClientsHandler(c *app.Container, apiKey string) *adminClientsHandler {
	return &adminClientsHandler{c: c, apiKey: apiKey, log: logger.Named("handlers.admin")}
}

func (h *adminClientsHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAPIKey)
		r.Get("/admin/clients", h.List)
		r.Post("/admin/clients", h.Create)
		r.Delete("/admin/clients/{clientID}", h.Delete)
	})
}

func (h *adminClientsHandler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey == "" {
			httpx.WriteError(w, http.StatusServiceUnavailable, "admin_disabled", "API admin deshabilitada", 2401)
			return
		}
		got := r.Header.Get("X-Admin-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.apiKey)) != 1 {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "API key inválida", 2402)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createClientRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	RedirectURIs   []string `json:"redirect_uris"`
	AllowedScopes  []string `json:"allowed_scopes"`
	DefaultScopes  []string `json:"default_scopes,omitempty"`
	GrantTypes     []string `json:"grant_types,omitempty"`
	AutoApprove    bool     `json:"auto_approve,omitempty"`
	IsConfidential *bool    `json:"is_confidential,omitempty"`
	OwnerUserID    string   `json:"owner_user_id,omitempty"`
}

type clientView struct {
	ClientID       string   `json:"client_id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	RedirectURIs   []string `json:"redirect_uris"`
	AllowedScopes  []string `json:"allowed_scopes"`
	DefaultScopes  []string `json:"default_scopes,omitempty"`
	GrantTypes     []string `json:"grant_types"`
	AutoApprove    bool     `json:"auto_approve"`
	IsConfidential *bool    `json:"is_confidential,omitempty"`
}

func toClientView(cl *core.Client) clientView {
	return clientView{
		ClientID:       cl.ID,
		Name:           cl.Name,
		Description:    cl.Description,
		RedirectURIs:   cl.RedirectURIs,
		AllowedScopes:  cl.AllowedScopes,
		DefaultScopes:  cl.DefaultScopes,
		GrantTypes:     cl.GrantTypes,
		AutoApprove:    cl.AutoApprove,
		IsConfidential: cl.IsConfidential,
	}
}

func (h *adminClientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "name es obligatorio", 2410)
		return
	}
	if len(req.RedirectURIs) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "se necesita al menos una redirect URI", 2411)
		return
	}
	for _, s := range append(append([]string{}, req.AllowedScopes...), req.DefaultScopes...) {
		if !validation.ValidScopeName(s) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "scope inválido: "+s, 2412)
			return
		}
	}
	for _, ds := range req.DefaultScopes {
		found := false
		for _, as := range req.AllowedScopes {
			if ds == as {
				found = true
				break
			}
		}
		if !found {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "default scope fuera de allowed: "+ds, 2413)
			return
		}
	}

	// Sin grants explícitos solo queda habilitado el code flow; refresh e
	// implicit se piden a propósito.
	grants := req.GrantTypes
	if len(grants) == 0 {
		grants = []string{"authorization_code"}
	}

	cl := &core.Client{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		RedirectURIs:   req.RedirectURIs,
		AllowedScopes:  req.AllowedScopes,
		DefaultScopes:  req.DefaultScopes,
		GrantTypes:     grants,
		AutoApprove:    req.AutoApprove,
		IsConfidential: req.IsConfidential,
		CreatedAt:      time.Now().UTC(),
	}
	if req.OwnerUserID != "" {
		cl.OwnerUserID = &req.OwnerUserID
	}

	// Solo los confidenciales llevan secret. Flag ausente => confidencial.
	secret := ""
	if req.IsConfidential == nil || *req.IsConfidential {
		raw, err := tokens.GenerateOpaqueToken(32)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo generar secret", 2414)
			return
		}
		hash, err := password.Hash(password.Default, raw)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo hashear secret", 2415)
			return
		}
		secret = raw
		cl.SecretHash = &hash
	}

	if err := h.c.Store.CreateClient(r.Context(), cl); err != nil {
		if errors.Is(err, core.ErrConflict) {
			httpx.WriteError(w, http.StatusConflict, "conflict", "ya existe un client con ese name", 2416)
			return
		}
		h.log.Error("create client failed", logger.Err(err))
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo crear el client", 2417)
		return
	}

	h.log.Info("client creado", logger.ClientID(cl.ID), zap.String("name", cl.Name))

	// El secret sale una sola vez, acá. No se puede recuperar después.
	resp := map[string]any{"client": toClientView(cl)}
	if secret != "" {
		resp["client_secret"] = secret
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *adminClientsHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.c.Store.ListClients(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo listar clients", 2420)
		return
	}
	out := make([]clientView, 0, len(clients))
	for i := range clients {
		out = append(out, toClientView(&clients[i]))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"clients": out})
}

func (h *adminClientsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if err := h.c.Store.DeleteClient(r.Context(), clientID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "client no existe", 2421)
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo borrar el client", 2422)
		return
	}
	h.log.Info("client borrado", logger.ClientID(clientID))
	w.WriteHeader(http.StatusNoContent)
}
