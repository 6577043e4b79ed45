package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saurabhp75/epic-web/internal/auth"
	"github.com/saurabhp75/epic-web/internal/models"
)

func usernameRequest(target, username string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("username", username)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestUserHandler_GetByUsername(t *testing.T) {
	user := newTestUser("user123", "kody", "kody@example.com")
	service := &MockUserService{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			assert.Equal(t, "kody", username)
			return user, nil
		},
	}
	handler := NewUserHandler(service, &MockAuthService{}, &MockVerificationService{}, &MockNoteService{}, auth.CookieConfig{})

	rec := httptest.NewRecorder()
	handler.GetByUsername(rec, usernameRequest("/users/kody", "kody"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "kody", resp.Username)
}

func TestUserHandler_ListNotes(t *testing.T) {
	owner := newTestUser("user123", "kody", "kody@example.com")

	t.Run("anonymous visitor can read a user's notes", func(t *testing.T) {
		now := time.Now()
		service := &MockUserService{
			GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
				return owner, nil
			},
		}
		notes := &MockNoteService{
			ListByOwnerFunc: func(ctx context.Context, ownerID string) ([]*models.Note, error) {
				assert.Equal(t, "user123", ownerID)
				return []*models.Note{
					{ID: "note2", OwnerID: ownerID, Title: "Second", CreatedAt: now, UpdatedAt: now},
					{ID: "note1", OwnerID: ownerID, Title: "First", CreatedAt: now, UpdatedAt: now},
				}, nil
			},
		}
		handler := NewUserHandler(service, &MockAuthService{}, &MockVerificationService{}, notes, auth.CookieConfig{})

		// No authenticated user on the request.
		rec := httptest.NewRecorder()
		handler.ListNotes(rec, usernameRequest("/users/kody/notes", "kody"))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Owner UserResponse   `json:"owner"`
			Notes []NoteResponse `json:"notes"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "kody", resp.Owner.Username)
		require.Len(t, resp.Notes, 2)
		assert.Equal(t, "note2", resp.Notes[0].ID)
	})

	t.Run("unknown username returns 404", func(t *testing.T) {
		handler := NewUserHandler(&MockUserService{}, &MockAuthService{}, &MockVerificationService{}, &MockNoteService{}, auth.CookieConfig{})

		rec := httptest.NewRecorder()
		handler.ListNotes(rec, usernameRequest("/users/ghost/notes", "ghost"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
