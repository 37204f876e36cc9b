package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/identity"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/domain/submission"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func mustSubmission(t *testing.T, db *gorm.DB, f *form.Form, respondent *identity.User, name string, at time.Time) *submission.Submission {
	t.Helper()
	s := submission.New(f.ID, respondent.ID)
	s.SubmittedAt = at
	require.NoError(t, s.AddValue(f, f.Fields[0].ID, name))
	fieldID := f.Fields[1].ID
	s.AttachFile(submission.File{
		ID:               uuid.New(),
		FieldID:          &fieldID,
		OriginalFilename: "scan.pdf",
		BlobName:         submission.BlobKey(s.ID, fieldID, "scan.pdf"),
		BlobURL:          "https://blob.example.com/scan.pdf",
		FileSize:         1024,
		ContentType:      "application/pdf",
		UploadedAt:       at,
	})
	require.NoError(t, NewGormSubmissionRepository(db).Create(context.Background(), s))
	return s
}

func mustRespondent(t *testing.T, db *gorm.DB, email, name string, adminID *uuid.UUID) *identity.User {
	t.Helper()
	u, err := identity.NewRespondent(email, name, adminID)
	require.NoError(t, err)
	require.NoError(t, NewGormUserRepository(db).Create(context.Background(), u))
	return u
}

func TestGormSubmissionRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	admin := mustAdmin(t, db, "crud@example.com")
	f := mustForm(t, db, admin, "CRUD")
	respondent := mustRespondent(t, db, "resp@example.com", "Resp", &admin.ID)
	repo := NewGormSubmissionRepository(db)

	s := mustSubmission(t, db, f, respondent, "Jane Doe", time.Now().UTC())

	t.Run("find loads values and files", func(t *testing.T) {
		found, err := repo.FindByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, f.ID, found.FormID)
		assert.Equal(t, respondent.ID, found.UserID)
		v, ok := found.ValueFor(f.Fields[0].ID)
		require.True(t, ok)
		assert.Equal(t, "Jane Doe", v)
		assert.Equal(t, 1, found.FileCount(f.Fields[1].ID))
		assert.Equal(t, "application/pdf", found.Files[0].ContentType)
	})

	t.Run("find by form and count", func(t *testing.T) {
		mustSubmission(t, db, f, respondent, "Second", time.Now().UTC().Add(time.Minute))

		list, err := repo.FindByForm(ctx, f.ID, shared.Page{Limit: 1})
		require.NoError(t, err)
		require.Len(t, list, 1)
		v, _ := list[0].ValueFor(f.Fields[0].ID)
		assert.Equal(t, "Second", v)

		count, err := repo.CountByForm(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("file lookups", func(t *testing.T) {
		files, err := NewGormFileRepository(db).FindByForm(ctx, f.ID)
		require.NoError(t, err)
		assert.Len(t, files, 2)

		file, err := NewGormFileRepository(db).FindByID(ctx, s.Files[0].ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, file.SubmissionID)
		assert.Equal(t, int64(1024), file.FileSize)
	})

	t.Run("delete removes values and files", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, s.ID))

		_, err := repo.FindByID(ctx, s.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		files, err := NewGormFileRepository(db).FindBySubmission(ctx, s.ID)
		require.NoError(t, err)
		assert.Empty(t, files)
		assert.ErrorIs(t, repo.Delete(ctx, s.ID), shared.ErrNotFound)
	})
}

func TestGormSubmissionRepository_Search(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormSubmissionRepository(db)

	admin := mustAdmin(t, db, "scope@example.com")
	other := mustAdmin(t, db, "stranger@example.com")
	ownForm := mustForm(t, db, admin, "Own form")
	foreignForm := mustForm(t, db, other, "Foreign form")

	alice := mustRespondent(t, db, "alice@example.com", "Alice Smith", &admin.ID)
	bob := mustRespondent(t, db, "bob@corp.example", "Bob Jones", &other.ID)
	linked := mustRespondent(t, db, "linked@example.com", "Linked Person", &admin.ID)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s1 := mustSubmission(t, db, ownForm, alice, "Alice 100%", base)
	s2 := mustSubmission(t, db, ownForm, bob, "Bob answer", base.Add(24*time.Hour))
	s3 := mustSubmission(t, db, foreignForm, linked, "Linked answer", base.Add(48*time.Hour))
	mustSubmission(t, db, foreignForm, bob, "Invisible", base.Add(72*time.Hour))

	ids := func(summaries []*submission.Summary) []uuid.UUID {
		out := make([]uuid.UUID, len(summaries))
		for i, s := range summaries {
			out[i] = s.ID
		}
		return out
	}

	t.Run("scope covers own forms and linked users, newest first", func(t *testing.T) {
		result, total, err := repo.Search(ctx, submission.SearchFilter{AdminID: admin.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, []uuid.UUID{s3.ID, s2.ID, s1.ID}, ids(result))
		assert.Equal(t, "Linked Person", result[0].UserName)
		assert.Equal(t, "linked@example.com", result[0].UserEmail)
		assert.Equal(t, "Foreign form", result[0].FormTitle)
		assert.Len(t, result[0].Values, 1)
		assert.Len(t, result[0].Files, 1)
	})

	t.Run("pagination keeps the full total", func(t *testing.T) {
		result, total, err := repo.Search(ctx, submission.SearchFilter{AdminID: admin.ID, Page: shared.Page{Skip: 1, Limit: 1}})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, []uuid.UUID{s2.ID}, ids(result))
	})

	t.Run("filters by form", func(t *testing.T) {
		result, _, err := repo.Search(ctx, submission.SearchFilter{AdminID: admin.ID, FormID: &ownForm.ID})
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{s1.ID, s2.ID}, ids(result))
	})

	t.Run("filters by date range", func(t *testing.T) {
		from := base.Add(12 * time.Hour)
		to := base.Add(36 * time.Hour)
		result, _, err := repo.Search(ctx, submission.SearchFilter{AdminID: admin.ID, DateFrom: &from, DateTo: &to})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{s2.ID}, ids(result))
	})

	t.Run("filters by user name and email case-insensitively", func(t *testing.T) {
		result, _, err := repo.Search(ctx, submission.SearchFilter{AdminID: admin.ID, UserName: "alice"})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{s1.ID}, ids(result))

		result, _, err = repo.Search(ctx, submission.SearchFilter{AdminID: admin.ID, UserEmail: "CORP.EXAMPLE"})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{s2.ID}, ids(result))
	})

	t.Run("field value search treats wildcards literally", func(t *testing.T) {
		result, _, err := repo.Search(ctx, submission.SearchFilter{AdminID: admin.ID, FieldValueSearch: "100%"})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{s1.ID}, ids(result))

		result, total, err := repo.Search(ctx, submission.SearchFilter{AdminID: admin.ID, FieldValueSearch: "%"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, result, 1)
	})

	t.Run("no match returns an empty slice", func(t *testing.T) {
		result, total, err := repo.Search(ctx, submission.SearchFilter{AdminID: admin.ID, UserName: "nobody"})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.NotNil(t, result)
		assert.Empty(t, result)
	})
}

func TestGormChannelRepository_Save(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	admin := mustAdmin(t, db, "channel@example.com")
	repo := NewGormChannelRepository(db)

	channel := notificationChannelFor(admin.ID, "12345", true)
	require.NoError(t, repo.Save(ctx, channel))

	found, err := repo.FindByUserAndType(ctx, admin.ID, channel.Type)
	require.NoError(t, err)
	assert.True(t, found.IsEnabled)
	assert.Equal(t, "12345", found.ChatID)

	// a second channel object for the same user and type updates the row
	again := notificationChannelFor(admin.ID, "67890", false)
	require.NoError(t, repo.Save(ctx, again))

	found, err = repo.FindByUserAndType(ctx, admin.ID, channel.Type)
	require.NoError(t, err)
	assert.False(t, found.IsEnabled)
	assert.Equal(t, "67890", found.ChatID)
	assert.Equal(t, channel.ID, found.ID)
}
