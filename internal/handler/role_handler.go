package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"identity-server/internal/model"
	"identity-server/internal/service"
	"identity-server/pkg/apierror"
)

type RoleHandler struct {
	service *service.RoleService
}

func NewRoleHandler(service *service.RoleService) *RoleHandler {
	return &RoleHandler{service: service}
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.RoleList{Roles: roles})
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, apierror.BadRequest("role name is required", "name"))
		return
	}

	role, err := h.service.GetByName(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, role)
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	role, err := h.service.Create(r.Context(), payload.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, role)
}

func (h *RoleHandler) Rename(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RenameRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	if err := h.service.Rename(r.Context(), payload.OldName, payload.NewName); err != nil {
		writeError(w, err)
		return
	}

	writeNoContent(w)
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	if err := h.service.Delete(r.Context(), payload.Name); err != nil {
		writeError(w, err)
		return
	}

	writeNoContent(w)
}
