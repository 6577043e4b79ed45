package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/saurabhp75/epic-web/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc               func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc         func(ctx context.Context, username string) (*models.User, error)
	GetByEmailFunc            func(ctx context.Context, email string) (*models.User, error)
	CreateFunc                func(ctx context.Context, user *models.User) (*models.User, error)
	CreateWithCredentialsFunc func(ctx context.Context, user *models.User, passwordHash string, conn *models.Connection) (*models.User, error)
	UpdateFunc                func(ctx context.Context, id string, user *models.User) (*models.User, error)
	DeleteFunc                func(ctx context.Context, id string) error
	GetPasswordFunc           func(ctx context.Context, userID string) (*models.Password, error)
	UpsertPasswordFunc        func(ctx context.Context, userID, hash string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) CreateWithCredentials(ctx context.Context, user *models.User, passwordHash string, conn *models.Connection) (*models.User, error) {
	if m.CreateWithCredentialsFunc != nil {
		return m.CreateWithCredentialsFunc(ctx, user, passwordHash, conn)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) GetPassword(ctx context.Context, userID string) (*models.Password, error) {
	if m.GetPasswordFunc != nil {
		return m.GetPasswordFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) UpsertPassword(ctx context.Context, userID, hash string) error {
	if m.UpsertPasswordFunc != nil {
		return m.UpsertPasswordFunc(ctx, userID, hash)
	}
	return nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc              func(ctx context.Context, userID string, expirationDate time.Time) (*models.Session, error)
	GetByIDFunc             func(ctx context.Context, id string) (*models.Session, error)
	DeleteFunc              func(ctx context.Context, id string) error
	DeleteOtherSessionsFunc func(ctx context.Context, userID, keepID string) (int64, error)
	CountByUserFunc         func(ctx context.Context, userID string) (int, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, userID string, expirationDate time.Time) (*models.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, expirationDate)
	}
	return &models.Session{ID: "session_" + userID, UserID: userID, ExpirationDate: expirationDate, CreatedAt: time.Now()}, nil
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockSessionRepository) DeleteOtherSessions(ctx context.Context, userID, keepID string) (int64, error) {
	if m.DeleteOtherSessionsFunc != nil {
		return m.DeleteOtherSessionsFunc(ctx, userID, keepID)
	}
	return 0, nil
}

func (m *MockSessionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	if m.CountByUserFunc != nil {
		return m.CountByUserFunc(ctx, userID)
	}
	return 1, nil
}

// MockVerificationRepository implements VerificationRepository for testing
type MockVerificationRepository struct {
	UpsertFunc                func(ctx context.Context, v *models.Verification) (*models.Verification, error)
	GetByTargetAndTypeFunc    func(ctx context.Context, target, vtype string) (*models.Verification, error)
	DeleteByTargetAndTypeFunc func(ctx context.Context, target, vtype string) error
	PromoteFunc               func(ctx context.Context, target, fromType, toType string) error
}

func (m *MockVerificationRepository) Upsert(ctx context.Context, v *models.Verification) (*models.Verification, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, v)
	}
	out := *v
	out.ID = "verification_" + v.Target
	out.CreatedAt = time.Now()
	return &out, nil
}

func (m *MockVerificationRepository) GetByTargetAndType(ctx context.Context, target, vtype string) (*models.Verification, error) {
	if m.GetByTargetAndTypeFunc != nil {
		return m.GetByTargetAndTypeFunc(ctx, target, vtype)
	}
	return nil, models.ErrNotFound
}

func (m *MockVerificationRepository) DeleteByTargetAndType(ctx context.Context, target, vtype string) error {
	if m.DeleteByTargetAndTypeFunc != nil {
		return m.DeleteByTargetAndTypeFunc(ctx, target, vtype)
	}
	return nil
}

func (m *MockVerificationRepository) Promote(ctx context.Context, target, fromType, toType string) error {
	if m.PromoteFunc != nil {
		return m.PromoteFunc(ctx, target, fromType, toType)
	}
	return nil
}

// MockConnectionRepository implements ConnectionRepository for testing
type MockConnectionRepository struct {
	CreateFunc            func(ctx context.Context, conn *models.Connection) (*models.Connection, error)
	GetByProviderFunc     func(ctx context.Context, providerName, providerID string) (*models.Connection, error)
	ListByUserFunc        func(ctx context.Context, userID string) ([]*models.Connection, error)
	DeleteFunc            func(ctx context.Context, id, userID string) error
	UserCanDisconnectFunc func(ctx context.Context, userID string) (bool, error)
}

func (m *MockConnectionRepository) Create(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, conn)
	}
	out := *conn
	out.ID = "connection_" + conn.ProviderID
	out.CreatedAt = time.Now()
	return &out, nil
}

func (m *MockConnectionRepository) GetByProvider(ctx context.Context, providerName, providerID string) (*models.Connection, error) {
	if m.GetByProviderFunc != nil {
		return m.GetByProviderFunc(ctx, providerName, providerID)
	}
	return nil, models.ErrNotFound
}

func (m *MockConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Connection, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return []*models.Connection{}, nil
}

func (m *MockConnectionRepository) Delete(ctx context.Context, id, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, userID)
	}
	return nil
}

func (m *MockConnectionRepository) UserCanDisconnect(ctx context.Context, userID string) (bool, error) {
	if m.UserCanDisconnectFunc != nil {
		return m.UserCanDisconnectFunc(ctx, userID)
	}
	return true, nil
}

// MockNoteRepository implements NoteRepository for testing
type MockNoteRepository struct {
	CreateFunc      func(ctx context.Context, note *models.Note) (*models.Note, error)
	GetByIDFunc     func(ctx context.Context, id string) (*models.Note, error)
	ListByOwnerFunc func(ctx context.Context, ownerID string) ([]*models.Note, error)
	UpdateFunc      func(ctx context.Context, id string, note *models.Note) (*models.Note, error)
	DeleteFunc      func(ctx context.Context, id string) error
	CreateImageFunc func(ctx context.Context, image *models.NoteImage) (*models.NoteImage, error)
	GetImageFunc    func(ctx context.Context, id string) (*models.NoteImage, error)
	ListImagesFunc  func(ctx context.Context, noteID string) ([]*models.NoteImage, error)
	DeleteImageFunc func(ctx context.Context, id string) error
}

func (m *MockNoteRepository) Create(ctx context.Context, note *models.Note) (*models.Note, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, note)
	}
	out := *note
	out.ID = "note_123"
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	return &out, nil
}

func (m *MockNoteRepository) GetByID(ctx context.Context, id string) (*models.Note, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockNoteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Note, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, ownerID)
	}
	return []*models.Note{}, nil
}

func (m *MockNoteRepository) Update(ctx context.Context, id string, note *models.Note) (*models.Note, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, note)
	}
	return nil, models.ErrInternalServer
}

func (m *MockNoteRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockNoteRepository) CreateImage(ctx context.Context, image *models.NoteImage) (*models.NoteImage, error) {
	if m.CreateImageFunc != nil {
		return m.CreateImageFunc(ctx, image)
	}
	out := *image
	out.ID = "image_123"
	out.CreatedAt = time.Now()
	return &out, nil
}

func (m *MockNoteRepository) GetImage(ctx context.Context, id string) (*models.NoteImage, error) {
	if m.GetImageFunc != nil {
		return m.GetImageFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockNoteRepository) ListImages(ctx context.Context, noteID string) ([]*models.NoteImage, error) {
	if m.ListImagesFunc != nil {
		return m.ListImagesFunc(ctx, noteID)
	}
	return []*models.NoteImage{}, nil
}

func (m *MockNoteRepository) DeleteImage(ctx context.Context, id string) error {
	if m.DeleteImageFunc != nil {
		return m.DeleteImageFunc(ctx, id)
	}
	return nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendSignupCodeFunc func(ctx context.Context, email, code string, expiresAt time.Time) error
}

func (m *MockEmailService) SendSignupCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if m.SendSignupCodeFunc != nil {
		return m.SendSignupCodeFunc(ctx, email, code, expiresAt)
	}
	return nil
}

// MockImageStore implements storage.ImageStore for testing
type MockImageStore struct {
	PutFunc    func(ctx context.Context, key, contentType string, data []byte) error
	GetFunc    func(ctx context.Context, key string) (io.ReadCloser, string, error)
	DeleteFunc func(ctx context.Context, keys []string) error
}

func (m *MockImageStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, contentType, data)
	}
	return nil
}

func (m *MockImageStore) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return io.NopCloser(strings.NewReader("")), "application/octet-stream", nil
}

func (m *MockImageStore) Delete(ctx context.Context, keys []string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, keys)
	}
	return nil
}

// MockTimingDelay implements TimingDelayer without sleeping
type MockTimingDelay struct {
	WaitFunc func(success bool)
}

func (m *MockTimingDelay) Wait(success bool) {
	if m.WaitFunc != nil {
		m.WaitFunc(success)
	}
}

// NewTestUser creates a user for tests
func NewTestUser(id, username, email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Username:  username,
		Email:     email,
		Name:      "Test User",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestSession creates an unexpired session for tests
func NewTestSession(id, userID string) *models.Session {
	return &models.Session{
		ID:             id,
		UserID:         userID,
		ExpirationDate: time.Now().Add(24 * time.Hour),
		CreatedAt:      time.Now(),
	}
}
