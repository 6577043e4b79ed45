package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/saurabhp75/epic-web/internal/models"
	"github.com/saurabhp75/epic-web/internal/storage"
)

// NoteRepository defines the interface for note storage
type NoteRepository interface {
	Create(ctx context.Context, note *models.Note) (*models.Note, error)
	GetByID(ctx context.Context, id string) (*models.Note, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Note, error)
	Update(ctx context.Context, id string, note *models.Note) (*models.Note, error)
	Delete(ctx context.Context, id string) error
	CreateImage(ctx context.Context, image *models.NoteImage) (*models.NoteImage, error)
	GetImage(ctx context.Context, id string) (*models.NoteImage, error)
	ListImages(ctx context.Context, noteID string) ([]*models.NoteImage, error)
	DeleteImage(ctx context.Context, id string) error
}

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// MaxImageSize caps note image uploads at 3MB
const MaxImageSize = 3 * 1024 * 1024

// NoteService handles note business logic. Note content is HTML and is
// sanitized on every write; image bytes live in object storage with only
// metadata in the database.
type NoteService struct {
	notes     NoteRepository
	images    storage.ImageStore
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewNoteService creates a new NoteService
func NewNoteService(notes NoteRepository, images storage.ImageStore, logger *slog.Logger) *NoteService {
	return &NoteService{
		notes:     notes,
		images:    images,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger,
	}
}

// Create stores a new note owned by the given user
func (s *NoteService) Create(ctx context.Context, ownerID, title, content string) (*models.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	note := &models.Note{
		OwnerID: ownerID,
		Title:   title,
		Content: s.sanitizer.Sanitize(content),
	}

	created, err := s.notes.Create(ctx, note)
	if err != nil {
		s.logger.Error("failed to create note", slog.String("owner_id", ownerID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return created, nil
}

// Get returns a note by id
func (s *NoteService) Get(ctx context.Context, id string) (*models.Note, error) {
	return s.notes.GetByID(ctx, id)
}

// ListByOwner returns all of a user's notes, newest first
func (s *NoteService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Note, error) {
	notes, err := s.notes.ListByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("failed to list notes", slog.String("owner_id", ownerID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return notes, nil
}

// Update edits a note. Only the owner may edit.
func (s *NoteService) Update(ctx context.Context, id, requesterID, title, content string) (*models.Note, error) {
	existing, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != requesterID {
		return nil, models.ErrForbidden
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is required")
	}

	updated, err := s.notes.Update(ctx, id, &models.Note{
		Title:   title,
		Content: s.sanitizer.Sanitize(content),
	})
	if err != nil {
		s.logger.Error("failed to update note", slog.String("note_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return updated, nil
}

// Delete removes a note, its image metadata, and the stored image objects.
// Only the owner may delete.
func (s *NoteService) Delete(ctx context.Context, id, requesterID string) error {
	existing, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.OwnerID != requesterID {
		return models.ErrForbidden
	}

	images, err := s.notes.ListImages(ctx, id)
	if err != nil {
		s.logger.Error("failed to list note images", slog.String("note_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.notes.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete note", slog.String("note_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if len(images) > 0 {
		keys := make([]string, len(images))
		for i, img := range images {
			keys[i] = img.ObjectKey
		}
		// The note row is gone; a failed object delete just leaves orphans
		// in the bucket, so log and move on.
		if err := s.images.Delete(ctx, keys); err != nil {
			s.logger.Warn("failed to delete image objects", slog.String("note_id", id), slog.Any("error", err))
		}
	}

	return nil
}

// AttachImage stores image bytes and records the attachment on a note. Only
// the owner may attach.
func (s *NoteService) AttachImage(ctx context.Context, noteID, requesterID, altText, contentType string, data io.Reader) (*models.NoteImage, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.OwnerID != requesterID {
		return nil, models.ErrForbidden
	}

	if !allowedImageTypes[contentType] {
		return nil, errors.New("unsupported image type")
	}

	body, err := io.ReadAll(io.LimitReader(data, MaxImageSize+1))
	if err != nil {
		s.logger.Error("failed to read image upload", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if len(body) > MaxImageSize {
		return nil, errors.New("image exceeds the 3MB limit")
	}

	key := storage.NewObjectKey(noteID)
	if err := s.images.Put(ctx, key, contentType, body); err != nil {
		s.logger.Error("failed to store image object", slog.String("note_id", noteID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	image, err := s.notes.CreateImage(ctx, &models.NoteImage{
		NoteID:      noteID,
		AltText:     altText,
		ContentType: contentType,
		ObjectKey:   key,
	})
	if err != nil {
		s.logger.Error("failed to record image", slog.String("note_id", noteID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return image, nil
}

// OpenImage returns a reader over the stored image bytes and its content type
func (s *NoteService) OpenImage(ctx context.Context, imageID string) (io.ReadCloser, string, error) {
	image, err := s.notes.GetImage(ctx, imageID)
	if err != nil {
		return nil, "", err
	}

	body, contentType, err := s.images.Get(ctx, image.ObjectKey)
	if err != nil {
		s.logger.Error("failed to fetch image object", slog.String("image_id", imageID), slog.Any("error", err))
		return nil, "", models.ErrInternalServer
	}
	if contentType == "" {
		contentType = image.ContentType
	}
	return body, contentType, nil
}

// RemoveImage deletes an attachment and its stored object. Only the note
// owner may remove.
func (s *NoteService) RemoveImage(ctx context.Context, imageID, requesterID string) error {
	image, err := s.notes.GetImage(ctx, imageID)
	if err != nil {
		return err
	}

	note, err := s.notes.GetByID(ctx, image.NoteID)
	if err != nil {
		return err
	}
	if note.OwnerID != requesterID {
		return models.ErrForbidden
	}

	if err := s.notes.DeleteImage(ctx, imageID); err != nil {
		s.logger.Error("failed to delete image record", slog.String("image_id", imageID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.images.Delete(ctx, []string{image.ObjectKey}); err != nil {
		s.logger.Warn("failed to delete image object", slog.String("image_id", imageID), slog.Any("error", err))
	}
	return nil
}
