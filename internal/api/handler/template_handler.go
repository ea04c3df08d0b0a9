package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/pipeline/internal/domain"
	"github.com/notifyhub/pipeline/internal/renderer"
	"github.com/notifyhub/pipeline/internal/repository"
)

const maxTemplateUpload = 1 << 20 // 1 MB body text

// TemplateHandler is the admin CRUD surface over Template records.
// Create/Update accept multipart/form-data: name and subject as form
// fields, body as a UTF-8 text file upload.
type TemplateHandler struct {
	store  repository.TemplateStore
	logger *zap.Logger
}

func NewTemplateHandler(store repository.TemplateStore, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{store: store, logger: logger}
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, subject, body, err := parseTemplateForm(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := renderer.ValidateTemplate(body); err != nil {
		mapError(w, domain.ErrInvalidTemplateBody)
		return
	}

	now := time.Now().UTC()
	t := domain.Template{
		ID:        uuid.New().String(),
		Name:      name,
		Subject:   subject,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.Create(r.Context(), t); err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.store.Get(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parsePaginationParams(r)
	templates, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":        templates,
		"page_number": filter.PageNumber,
		"page_size":   filter.PageSize,
	})
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name, subject, body, err := parseTemplateForm(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := renderer.ValidateTemplate(body); err != nil {
		mapError(w, domain.ErrInvalidTemplateBody)
		return
	}

	t, err := h.store.Update(r.Context(), id, map[string]any{
		"name":       name,
		"subject":    subject,
		"body":       body,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.store.Delete(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	if !ok {
		mapError(w, domain.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseTemplateForm reads name/subject form fields and the body file upload.
func parseTemplateForm(r *http.Request) (name, subject, body string, err error) {
	if err = r.ParseMultipartForm(maxTemplateUpload); err != nil {
		return "", "", "", err
	}
	name = r.FormValue("name")
	subject = r.FormValue("subject")

	file, _, err := r.FormFile("body")
	if err != nil {
		return "", "", "", err
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxTemplateUpload))
	if err != nil {
		return "", "", "", err
	}
	return name, subject, string(raw), nil
}

func parsePaginationParams(r *http.Request) domain.ListFilter {
	q := r.URL.Query()
	filter := domain.ListFilter{PageNumber: 1, PageSize: 20}
	if p, err := strconv.Atoi(q.Get("page_number")); err == nil && p > 0 {
		filter.PageNumber = p
	}
	if s, err := strconv.Atoi(q.Get("page_size")); err == nil && s > 0 && s <= 100 {
		filter.PageSize = s
	}
	return filter
}
