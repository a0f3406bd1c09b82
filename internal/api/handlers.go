package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/automaton/internal/action"
	"github.com/starford/automaton/internal/actionfile"
	"github.com/starford/automaton/internal/actionservice"
	"github.com/starford/automaton/internal/apperr"
)

const maxBody = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *actionservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *actionservice.Service) *Handler {
	return &Handler{svc: svc}
}

// actionKey extracts the {key} URL parameter. chi matches against RawPath
// when it is set, so the parameter is still escaped only in that case.
func actionKey(r *http.Request) string {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return key
	}
	decoded, err := url.PathUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}

// writeServiceError maps domain errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, op, key string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("action already exists"))
	case errors.Is(err, apperr.ErrInvalidKey):
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
	default:
		slog.Error(op+" failed", slog.String("key", key), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListActions handles GET /api/actions.
//
//	@Summary		List actions in display order
//	@Tags			actions
//	@Produce		json
//	@Success		200	{object}	ActionListResponse
//	@Security		BearerAuth
//	@Router			/actions [get]
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ActionListResponse{Actions: h.svc.ListActions(r.Context())})
}

// GetAction handles GET /api/actions/{key}.
//
//	@Summary		Get a single action
//	@Tags			actions
//	@Produce		json
//	@Param			key	path		string	true	"Action key"
//	@Success		200	{object}	ActionDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/actions/{key} [get]
func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	key := actionKey(r)
	d, err := h.svc.GetAction(r.Context(), key)
	if err != nil {
		writeServiceError(w, "get action", key, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CreateAction handles POST /api/actions.
//
//	@Summary		Create a new action
//	@Tags			actions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateActionRequest	true	"Action to create"
//	@Success		201		{object}	ActionDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/actions [post]
func (h *Handler) CreateAction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req CreateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	d, err := h.svc.CreateAction(r.Context(), req.Key, req.URL)
	if err != nil {
		writeServiceError(w, "create action", req.Key, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// UpdateAction handles PUT /api/actions/{key}.
//
//	@Summary		Change an action's URL
//	@Tags			actions
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string				true	"Action key"
//	@Param			body	body		UpdateActionRequest	true	"New URL"
//	@Success		200		{object}	ActionDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/actions/{key} [put]
func (h *Handler) UpdateAction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	key := actionKey(r)
	var req UpdateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	d, err := h.svc.UpdateAction(r.Context(), key, req.URL)
	if err != nil {
		writeServiceError(w, "update action", key, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteAction handles DELETE /api/actions/{key}.
//
//	@Summary		Delete an action
//	@Tags			actions
//	@Param			key	path	string	true	"Action key"
//	@Success		204	"Action deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/actions/{key} [delete]
func (h *Handler) DeleteAction(w http.ResponseWriter, r *http.Request) {
	key := actionKey(r)
	if err := h.svc.DeleteAction(r.Context(), key); err != nil {
		writeServiceError(w, "delete action", key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckAction handles GET /api/actions/{key}/check.
//
//	@Summary		Check whether an action's URL can be followed
//	@Tags			actions
//	@Produce		json
//	@Param			key	path		string	true	"Action key"
//	@Success		200	{object}	CheckResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/actions/{key}/check [get]
func (h *Handler) CheckAction(w http.ResponseWriter, r *http.Request) {
	key := actionKey(r)
	u, err := h.svc.CheckAction(r.Context(), key)
	if errors.Is(err, apperr.ErrNotFound) {
		writeServiceError(w, "check action", key, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse(key, u, err))
}

// FollowAction handles POST /api/actions/{key}/follow.
//
//	@Summary		Open an action's URL through the OS opener
//	@Tags			actions
//	@Produce		json
//	@Param			key	path		string	true	"Action key"
//	@Success		200	{object}	CheckResponse
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	CheckResponse
//	@Security		BearerAuth
//	@Router			/actions/{key}/follow [post]
func (h *Handler) FollowAction(w http.ResponseWriter, r *http.Request) {
	key := actionKey(r)
	u, err := h.svc.FollowAction(r.Context(), key)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeServiceError(w, "follow action", key, err)
	case err != nil:
		writeJSON(w, http.StatusUnprocessableEntity, checkResponse(key, nil, err))
	default:
		writeJSON(w, http.StatusOK, checkResponse(key, u, nil))
	}
}

func checkResponse(key string, u *url.URL, err error) CheckResponse {
	resp := CheckResponse{Key: key, OK: err == nil, Error: action.Message(err)}
	if u != nil {
		resp.URL = u.String()
	}
	return resp
}

// Reload handles POST /api/reload.
//
//	@Summary		Discard unsaved changes and re-read persisted actions
//	@Tags			actions
//	@Produce		json
//	@Success		200	{object}	ActionListResponse
//	@Security		BearerAuth
//	@Router			/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	h.svc.Reload(r.Context())
	writeJSON(w, http.StatusOK, ActionListResponse{Actions: h.svc.ListActions(r.Context())})
}

// Schemes handles GET /api/schemes.
//
//	@Summary		List whitelisted URL schemes
//	@Tags			config
//	@Produce		json
//	@Success		200	{object}	SchemesResponse
//	@Security		BearerAuth
//	@Router			/schemes [get]
func (h *Handler) Schemes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SchemesResponse{Schemes: h.svc.Schemes().List()})
}

// Export handles GET /api/export.
//
//	@Summary		Export persisted actions as YAML
//	@Tags			actions
//	@Produce		plain
//	@Success		200	{string}	string
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Export(r.Context())
	if err != nil {
		writeServiceError(w, "export", "", err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import handles POST /api/import.
//
//	@Summary		Merge actions from a YAML document
//	@Tags			actions
//	@Accept			plain
//	@Produce		json
//	@Success		200	{object}	ImportResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	res, err := h.svc.Import(r.Context(), data)
	if err != nil {
		if errors.Is(err, actionfile.ErrSyntax) {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		writeServiceError(w, "import", "", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
