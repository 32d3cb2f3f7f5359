package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"advisory-cms/internal/model"
	"advisory-cms/internal/service"
)

type PageHandler struct {
	service *service.PageService
}

func NewPageHandler(service *service.PageService) *PageHandler {
	return &PageHandler{service: service}
}

func (h *PageHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.CreatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	page, err := h.service.Create(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, page, nil)
}

func (h *PageHandler) Get(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, page, nil)
}

func (h *PageHandler) List(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, pages, &model.Meta{Total: len(pages)})
}

func (h *PageHandler) Update(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.UpdatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	page, err := h.service.Update(r.Context(), chi.URLParam(r, "slug"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, page, nil)
}

func (h *PageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "slug")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}
