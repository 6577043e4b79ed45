package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/saurabhp75/epic-web/internal/database"
	"github.com/saurabhp75/epic-web/internal/models"
)

type NoteRepository struct {
	db *database.DB
}

func NewNoteRepository(db *database.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

const noteColumns = `id, owner_id, title, content, created_at, updated_at`

func scanNoteRow(scanner rowScanner) (*models.Note, error) {
	var note models.Note
	err := scanner.Scan(
		&note.ID, &note.OwnerID, &note.Title, &note.Content,
		&note.CreatedAt, &note.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &note, nil
}

func (r *NoteRepository) Create(ctx context.Context, note *models.Note) (*models.Note, error) {
	note.ID = uuid.New().String()
	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now

	query := `
		INSERT INTO notes (id, owner_id, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + noteColumns

	return scanNoteRow(r.db.Pool.QueryRow(ctx, query,
		note.ID, note.OwnerID, note.Title, note.Content, note.CreatedAt, note.UpdatedAt,
	))
}

func (r *NoteRepository) GetByID(ctx context.Context, id string) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1`
	return scanNoteRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *NoteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE owner_id = $1 ORDER BY updated_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := make([]*models.Note, 0)
	for rows.Next() {
		note, err := scanNoteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return notes, nil
}

func (r *NoteRepository) Update(ctx context.Context, id string, note *models.Note) (*models.Note, error) {
	note.UpdatedAt = time.Now()

	query := `
		UPDATE notes SET title = $1, content = $2, updated_at = $3
		WHERE id = $4
		RETURNING ` + noteColumns

	return scanNoteRow(r.db.Pool.QueryRow(ctx, query,
		note.Title, note.Content, note.UpdatedAt, id,
	))
}

func (r *NoteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

const noteImageColumns = `id, note_id, alt_text, content_type, object_key, created_at`

func scanNoteImageRow(scanner rowScanner) (*models.NoteImage, error) {
	var image models.NoteImage
	err := scanner.Scan(
		&image.ID, &image.NoteID, &image.AltText,
		&image.ContentType, &image.ObjectKey, &image.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &image, nil
}

func (r *NoteRepository) CreateImage(ctx context.Context, image *models.NoteImage) (*models.NoteImage, error) {
	image.ID = uuid.New().String()
	image.CreatedAt = time.Now()

	query := `
		INSERT INTO note_images (id, note_id, alt_text, content_type, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + noteImageColumns

	return scanNoteImageRow(r.db.Pool.QueryRow(ctx, query,
		image.ID, image.NoteID, image.AltText, image.ContentType, image.ObjectKey, image.CreatedAt,
	))
}

func (r *NoteRepository) GetImage(ctx context.Context, id string) (*models.NoteImage, error) {
	query := `SELECT ` + noteImageColumns + ` FROM note_images WHERE id = $1`
	return scanNoteImageRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *NoteRepository) ListImages(ctx context.Context, noteID string) ([]*models.NoteImage, error) {
	query := `SELECT ` + noteImageColumns + ` FROM note_images WHERE note_id = $1 ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, query, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query note images: %w", err)
	}
	defer rows.Close()

	images := make([]*models.NoteImage, 0)
	for rows.Next() {
		image, err := scanNoteImageRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note image: %w", err)
		}
		images = append(images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return images, nil
}

func (r *NoteRepository) DeleteImage(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM note_images WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
