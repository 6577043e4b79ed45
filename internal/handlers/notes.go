package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
	"github.com/saurabhp75/epic-web/internal/services"
	pkghttp "github.com/saurabhp75/epic-web/pkg/http"
)

// NoteServiceInterface defines the interface for note business logic
type NoteServiceInterface interface {
	Create(ctx context.Context, ownerID, title, content string) (*models.Note, error)
	Get(ctx context.Context, id string) (*models.Note, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Note, error)
	Update(ctx context.Context, id, requesterID, title, content string) (*models.Note, error)
	Delete(ctx context.Context, id, requesterID string) error
	AttachImage(ctx context.Context, noteID, requesterID, altText, contentType string, data io.Reader) (*models.NoteImage, error)
	OpenImage(ctx context.Context, imageID string) (io.ReadCloser, string, error)
	RemoveImage(ctx context.Context, imageID, requesterID string) error
}

// NoteHandler handles note CRUD and image attachments
type NoteHandler struct {
	service NoteServiceInterface
}

// NewNoteHandler creates a new NoteHandler
func NewNoteHandler(service NoteServiceInterface) *NoteHandler {
	return &NoteHandler{service: service}
}

// NoteRequest represents the request body for creating or updating a note
type NoteRequest struct {
	Title   string `json:"title" validate:"required,max=100"`
	Content string `json:"content" validate:"max=10000"`
}

// NoteResponse represents a note in the HTTP response
type NoteResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// NoteImageResponse represents an image attachment in the HTTP response
type NoteImageResponse struct {
	ID      string `json:"id"`
	NoteID  string `json:"note_id"`
	AltText string `json:"alt_text"`
	URL     string `json:"url"`
}

func noteToResponse(note *models.Note) NoteResponse {
	return NoteResponse{
		ID:        note.ID,
		OwnerID:   note.OwnerID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt.Format(time.RFC3339),
		UpdatedAt: note.UpdatedAt.Format(time.RFC3339),
	}
}

func imageToResponse(image *models.NoteImage) NoteImageResponse {
	return NoteImageResponse{
		ID:      image.ID,
		NoteID:  image.NoteID,
		AltText: image.AltText,
		URL:     "/images/" + image.ID,
	}
}

// Create handles POST /notes
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	note, err := h.service.Create(r.Context(), user.ID, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, models.ErrInternalServer) {
			pkghttp.WriteInternalError(w, "Something went wrong")
			return
		}
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, noteToResponse(note))
}

// List handles GET /notes: the caller's own notes
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	notes, err := h.service.ListByOwner(r.Context(), user.ID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}

	responses := make([]NoteResponse, 0, len(notes))
	for _, note := range notes {
		responses = append(responses, noteToResponse(note))
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"notes": responses})
}

// Get handles GET /notes/{id}
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Note not found")
			return
		}
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, noteToResponse(note))
}

// Update handles PUT /notes/{id}
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	note, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), user.ID, req.Title, req.Content)
	if err != nil {
		h.writeNoteError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, noteToResponse(note))
}

// Delete handles DELETE /notes/{id}
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		h.writeNoteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AttachImage handles POST /notes/{id}/images as a multipart upload with an
// "image" file part and an optional "alt_text" field
func (h *NoteHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := r.ParseMultipartForm(services.MaxImageSize); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		pkghttp.WriteBadRequest(w, "An image file is required")
		return
	}
	defer file.Close()

	image, err := h.service.AttachImage(r.Context(),
		chi.URLParam(r, "id"), user.ID,
		r.FormValue("alt_text"),
		header.Header.Get("Content-Type"),
		file)
	if err != nil {
		h.writeNoteError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, imageToResponse(image))
}

// ServeImage handles GET /images/{id}: streams the stored bytes
func (h *NoteHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := h.service.OpenImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Image not found")
			return
		}
		pkghttp.WriteInternalError(w, "Something went wrong")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = io.Copy(w, body)
}

// RemoveImage handles DELETE /images/{id}
func (h *NoteHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.RemoveImage(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		h.writeNoteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NoteHandler) writeNoteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Note not found")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "You don't own this note")
	case errors.Is(err, models.ErrInternalServer):
		pkghttp.WriteInternalError(w, "Something went wrong")
	default:
		pkghttp.WriteBadRequest(w, err.Error())
	}
}
