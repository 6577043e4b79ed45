package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saurabhp75/epic-web/internal/database"
	"github.com/saurabhp75/epic-web/internal/models"
)

// setupTestDB starts a throwaway postgres container, runs the embedded
// migrations, and returns a connected database handle
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}

	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("epicweb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// goose drives a database/sql connection; lib/pq is registered by the
	// database package
	sqlDB, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(sqlDB))
	require.NoError(t, sqlDB.Close())

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return &database.DB{Pool: pool}
}

func createTestUser(t *testing.T, users *UserRepository, username, email string) *models.User {
	t.Helper()
	user, err := users.CreateWithCredentials(context.Background(), &models.User{
		Username: username,
		Email:    email,
		Name:     "Test User",
	}, "$2a$10$testhashtesthashtesthashtesthashtesthashtesthashtest12", nil)
	require.NoError(t, err)
	return user
}

func TestUserRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	t.Run("create with credentials and connection", func(t *testing.T) {
		conn := &models.Connection{ProviderName: "github", ProviderID: "12345"}
		user, err := users.CreateWithCredentials(ctx, &models.User{
			Username: "kody",
			Email:    "kody@example.com",
			Name:     "Kody Koala",
		}, "$2a$10$testhashtesthashtesthashtesthashtesthashtesthashtest12", conn)
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)

		got, err := users.GetByEmail(ctx, "kody@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, "kody", got.Username)

		password, err := users.GetPassword(ctx, user.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, password.Hash)

		connections := NewConnectionRepository(db)
		found, err := connections.GetByProvider(ctx, "github", "12345")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.UserID)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		_, err := users.CreateWithCredentials(ctx, &models.User{
			Username: "kody",
			Email:    "other@example.com",
		}, "", nil)
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		_, err := users.GetByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("delete removes credentials", func(t *testing.T) {
		user := createTestUser(t, users, "doomed", "doomed@example.com")
		require.NoError(t, users.Delete(ctx, user.ID))

		_, err := users.GetByID(ctx, user.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = users.GetPassword(ctx, user.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestSessionRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)

	user := createTestUser(t, users, "sessionuser", "sessions@example.com")

	session, err := sessions.Create(ctx, user.ID, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)

	got, err := sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.False(t, got.IsExpired())

	t.Run("other sessions are deleted, current survives", func(t *testing.T) {
		second, err := sessions.Create(ctx, user.ID, time.Now().Add(24*time.Hour))
		require.NoError(t, err)
		third, err := sessions.Create(ctx, user.ID, time.Now().Add(24*time.Hour))
		require.NoError(t, err)

		deleted, err := sessions.DeleteOtherSessions(ctx, user.ID, session.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		_, err = sessions.GetByID(ctx, session.ID)
		assert.NoError(t, err)
		_, err = sessions.GetByID(ctx, second.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = sessions.GetByID(ctx, third.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("cleanup removes only expired sessions", func(t *testing.T) {
		expired, err := sessions.Create(ctx, user.ID, time.Now().Add(-time.Minute))
		require.NoError(t, err)

		removed, err := sessions.CleanupExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		_, err = sessions.GetByID(ctx, expired.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = sessions.GetByID(ctx, session.ID)
		assert.NoError(t, err)
	})

	t.Run("sessions die with their user", func(t *testing.T) {
		require.NoError(t, users.Delete(ctx, user.ID))
		_, err := sessions.GetByID(ctx, session.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestVerificationRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	verifications := NewVerificationRepository(db)

	record := &models.Verification{
		Type:      models.VerificationTypeTwoFAVerify,
		Target:    "user123",
		Secret:    "JBSWY3DPEHPK3PXP",
		Algorithm: "SHA1",
		Digits:    6,
		Period:    30,
	}

	t.Run("upsert replaces the pending secret", func(t *testing.T) {
		first, err := verifications.Upsert(ctx, record)
		require.NoError(t, err)

		replacement := *record
		replacement.Secret = "NBSWY3DPEHPK3PXQ"
		second, err := verifications.Upsert(ctx, &replacement)
		require.NoError(t, err)
		assert.Equal(t, first.Target, second.Target)

		got, err := verifications.GetByTargetAndType(ctx, "user123", models.VerificationTypeTwoFAVerify)
		require.NoError(t, err)
		assert.Equal(t, "NBSWY3DPEHPK3PXQ", got.Secret)
	})

	t.Run("promote moves pending to active", func(t *testing.T) {
		err := verifications.Promote(ctx, "user123", models.VerificationTypeTwoFAVerify, models.VerificationTypeTwoFA)
		require.NoError(t, err)

		_, err = verifications.GetByTargetAndType(ctx, "user123", models.VerificationTypeTwoFAVerify)
		assert.ErrorIs(t, err, models.ErrNotFound)

		active, err := verifications.GetByTargetAndType(ctx, "user123", models.VerificationTypeTwoFA)
		require.NoError(t, err)
		assert.Nil(t, active.ExpiresAt)
	})

	t.Run("cleanup removes expired codes", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		_, err := verifications.Upsert(ctx, &models.Verification{
			Type:      models.VerificationTypeOnboarding,
			Target:    "new@example.com",
			Secret:    "JBSWY3DPEHPK3PXP",
			Algorithm: "SHA1",
			Digits:    6,
			Period:    600,
			ExpiresAt: &past,
		})
		require.NoError(t, err)

		removed, err := verifications.CleanupExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		// The active 2fa record has no expiry and survives every sweep
		_, err = verifications.GetByTargetAndType(ctx, "user123", models.VerificationTypeTwoFA)
		assert.NoError(t, err)
	})
}

func TestNoteRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	notes := NewNoteRepository(db)

	owner := createTestUser(t, users, "noteowner", "notes@example.com")

	note, err := notes.Create(ctx, &models.Note{
		OwnerID: owner.ID,
		Title:   "Basic Koala Facts",
		Content: "<p>Koalas are adorable</p>",
	})
	require.NoError(t, err)

	t.Run("list is newest first", func(t *testing.T) {
		_, err := notes.Create(ctx, &models.Note{
			OwnerID: owner.ID,
			Title:   "Second Note",
		})
		require.NoError(t, err)

		list, err := notes.ListByOwner(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Second Note", list[0].Title)
	})

	t.Run("images cascade with the note", func(t *testing.T) {
		image, err := notes.CreateImage(ctx, &models.NoteImage{
			NoteID:      note.ID,
			AltText:     "a cute koala",
			ContentType: "image/png",
			ObjectKey:   "notes/" + note.ID + "/test.png",
		})
		require.NoError(t, err)

		require.NoError(t, notes.Delete(ctx, note.ID))

		_, err = notes.GetByID(ctx, note.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = notes.GetImage(ctx, image.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestConnectionRepository_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	connections := NewConnectionRepository(db)

	user := createTestUser(t, users, "connuser", "conn@example.com")

	conn, err := connections.Create(ctx, &models.Connection{
		ProviderName: "github",
		ProviderID:   "99999",
		UserID:       user.ID,
	})
	require.NoError(t, err)

	t.Run("provider identity is unique", func(t *testing.T) {
		other := createTestUser(t, users, "otherconn", "otherconn@example.com")
		_, err := connections.Create(ctx, &models.Connection{
			ProviderName: "github",
			ProviderID:   "99999",
			UserID:       other.ID,
		})
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("password holder can disconnect the only connection", func(t *testing.T) {
		ok, err := connections.UserCanDisconnect(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("connection-only account cannot disconnect", func(t *testing.T) {
		soloUser, err := users.CreateWithCredentials(ctx, &models.User{
			Username: "solooauth",
			Email:    "solo@example.com",
		}, "", &models.Connection{ProviderName: "github", ProviderID: "55555"})
		require.NoError(t, err)

		ok, err := connections.UserCanDisconnect(ctx, soloUser.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete is scoped to the owner", func(t *testing.T) {
		err := connections.Delete(ctx, conn.ID, "someone-else")
		assert.ErrorIs(t, err, models.ErrNotFound)

		require.NoError(t, connections.Delete(ctx, conn.ID, user.ID))
		list, err := connections.ListByUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
