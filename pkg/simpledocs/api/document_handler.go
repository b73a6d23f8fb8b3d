package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-docs/pkg/simpledocs"
)

const maxUploadBytes = 256 << 20 // 256 MiB multipart memory ceiling

// DocumentHandler handles HTTP requests for documents using pkg/simpledocs
type DocumentHandler struct {
	service simpledocs.Service
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(service simpledocs.Service) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Routes returns the routes for documents
func (h *DocumentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateDocument)
	r.Get("/", h.ListDocuments)
	r.Get("/duplicates", h.FindDuplicates)

	r.Get("/{id}", h.GetDocument)
	r.Get("/{id}/versions", h.GetVersionChain)
	r.Post("/{id}/versions", h.CreateVersion)

	r.Get("/{id}/download", h.DownloadDocument)
	r.Get("/{id}/download-url", h.GetDownloadURL)

	r.Delete("/{id}", h.SoftDelete)
	r.Post("/{id}/restore", h.Restore)
	r.Post("/{id}/archive", h.Archive)
	r.Delete("/{id}/permanent", h.PermanentlyDelete)

	r.Put("/{id}/extension", h.SetExtension)
	r.Get("/{id}/extension", h.GetExtension)

	return r
}

// CreateDocument creates a new document from a multipart upload
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		slog.Error("Invalid multipart form", "error", err)
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	tenantID, err := uuid.Parse(r.FormValue("tenant_id"))
	if err != nil {
		slog.Error("Invalid tenant ID", "tenant_id", r.FormValue("tenant_id"), "error", err)
		http.Error(w, "Invalid tenant ID", http.StatusBadRequest)
		return
	}

	documentTypeID, err := uuid.Parse(r.FormValue("document_type_id"))
	if err != nil {
		slog.Error("Invalid document type ID", "document_type_id", r.FormValue("document_type_id"), "error", err)
		http.Error(w, "Invalid document type ID", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var metadata map[string]interface{}
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			http.Error(w, "Invalid metadata JSON", http.StatusBadRequest)
			return
		}
	}

	var tags []string
	if raw := r.FormValue("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	doc, err := h.service.CreateDocument(r.Context(), simpledocs.CreateDocumentRequest{
		TenantID:       tenantID,
		DocumentTypeID: documentTypeID,
		Title:          r.FormValue("title"),
		Description:    r.FormValue("description"),
		Content:        file,
		FileName:       header.Filename,
		MimeType:       header.Header.Get("Content-Type"),
		Metadata:       metadata,
		Tags:           tags,
		Actor:          r.FormValue("actor"),
	})
	if err != nil {
		slog.Error("Failed to create document", "error", err)
		writeError(w, r, err)
		return
	}

	slog.Info("Document created", "document_id", doc.ID, "tenant_id", tenantID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, doc)
}

// CreateVersion appends a new version to an existing document
func (h *DocumentHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	doc, err := h.service.CreateVersion(r.Context(), simpledocs.CreateVersionRequest{
		DocumentID: id,
		Content:    file,
		FileName:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		Actor:      r.FormValue("actor"),
	})
	if err != nil {
		slog.Error("Failed to create version", "document_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	slog.Info("Version created", "document_id", doc.ID, "version", doc.Version)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, doc)
}

// GetDocument retrieves a document by ID
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, doc)
}

// GetVersionChain lists every version of a document's chain
func (h *DocumentHandler) GetVersionChain(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	chain, err := h.service.GetVersionChain(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, chain)
}

// ListDocuments lists documents within a tenant
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		http.Error(w, "Invalid tenant ID", http.StatusBadRequest)
		return
	}

	filters := simpledocs.DocumentListFilters{
		CurrentOnly:    queryBool(r, "current_only"),
		IncludeDeleted: queryBool(r, "include_deleted"),
		ArchivedOnly:   queryBool(r, "archived_only"),
	}
	if raw := r.URL.Query().Get("document_type_id"); raw != "" {
		typeID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "Invalid document type ID", http.StatusBadRequest)
			return
		}
		filters.DocumentTypeID = &typeID
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		filters.Limit = &limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		filters.Offset = &offset
	}

	docs, err := h.service.ListDocuments(r.Context(), simpledocs.ListDocumentsRequest{
		TenantID: tenantID,
		Filters:  filters,
	})
	if err != nil {
		slog.Error("Failed to list documents", "tenant_id", tenantID, "error", err)
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, docs)
}

// FindDuplicates lists every document carrying the given content hash
func (h *DocumentHandler) FindDuplicates(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get("content_hash")
	if hash == "" {
		http.Error(w, "Missing content_hash", http.StatusBadRequest)
		return
	}

	docs, err := h.service.FindDuplicates(r.Context(), hash)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, docs)
}

// DownloadDocument streams the document's blob
func (h *DocumentHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	reader, err := h.service.DownloadDocument(r.Context(), id)
	if err != nil {
		slog.Error("Failed to download document", "document_id", id, "error", err)
		writeError(w, r, err)
		return
	}
	defer reader.Close()

	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+doc.OriginalFileName+"\"")
	if doc.FileSizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSizeBytes, 10))
	}

	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream document", "document_id", id, "error", err)
	}
}

// GetDownloadURL returns a time-boxed pre-signed URL for the document's blob
func (h *DocumentHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	ttl := time.Hour
	if raw := r.URL.Query().Get("ttl_seconds"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			http.Error(w, "Invalid ttl_seconds", http.StatusBadRequest)
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	url, err := h.service.GetTemporaryAccessURL(r.Context(), id, ttl)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]string{"url": url})
}

// SoftDeleteRequest is the request body for soft-deleting a document
type SoftDeleteRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// SoftDelete marks a document deleted without touching its blob
func (h *DocumentHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	var req SoftDeleteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.service.SoftDelete(r.Context(), simpledocs.SoftDeleteRequest{
		DocumentID: id,
		Actor:      req.Actor,
		Reason:     req.Reason,
	}); err != nil {
		slog.Error("Failed to soft-delete document", "document_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Restore clears a document's deleted flag
func (h *DocumentHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	if err := h.service.Restore(r.Context(), id); err != nil {
		slog.Error("Failed to restore document", "document_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Archive marks a document archived
func (h *DocumentHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	if err := h.service.Archive(r.Context(), id); err != nil {
		slog.Error("Failed to archive document", "document_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PermanentlyDelete removes the document row and its blob
func (h *DocumentHandler) PermanentlyDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	if err := h.service.PermanentlyDelete(r.Context(), id); err != nil {
		slog.Error("Failed to permanently delete document", "document_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetExtension attaches a type-specific payload to a document
func (h *DocumentHandler) SetExtension(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SetDocumentExtension(r.Context(), simpledocs.SetExtensionRequest{
		DocumentID: id,
		Payload:    payload,
	}); err != nil {
		slog.Error("Failed to set extension", "document_id", id, "error", err)
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetExtension retrieves the type-specific payload for a document
func (h *DocumentHandler) GetExtension(w http.ResponseWriter, r *http.Request) {
	id, ok := h.documentID(w, r)
	if !ok {
		return
	}

	ext, err := h.service.GetDocumentExtension(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, ext)
}

func (h *DocumentHandler) documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		slog.Error("Invalid document ID", "document_id", idStr)
		http.Error(w, "Invalid document ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}
