package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
	"github.com/noah-isme/coursework-api/pkg/storage"
)

var submissionNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func seededSubmissionStore() *fakeStore {
	store := newFakeStore()
	store.addUser(models.User{ID: "u-1", Username: "alumno1", FirstName: "Ana", LastName: "Ruiz", Role: models.RoleStudent})
	store.addUser(models.User{ID: "u-2", Username: "alumno2", FirstName: "Beto", LastName: "Soto", Role: models.RoleStudent})
	store.addTask(models.Task{ID: "t-1", Title: "Ensayo", Status: models.TaskActive, MaxGrade: 20})
	store.addTask(models.Task{ID: "t-2", Title: "Quiz", Status: models.TaskActive, MaxGrade: 20})
	return store
}

func newTestSubmissionService(store *fakeStore, files *FileService) *SubmissionService {
	svc := NewSubmissionService(store.submissionRepo(), store.userRepo(), store.taskRepo(), files, nil, NewMetricsService(), nil, zap.NewNop())
	svc.now = fixedClock(submissionNow)
	return svc
}

func TestSubmissionServiceCreateDefaults(t *testing.T) {
	store := seededSubmissionStore()
	svc := newTestSubmissionService(store, nil)

	sub, err := svc.Create(context.Background(), dto.SubmissionRequest{UserID: "u-1", TaskID: "t-1", Comments: strPtr("first draft")})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSubmitted, sub.Status)
	assert.Equal(t, submissionNow, sub.SubmissionDate)
	assert.Nil(t, sub.Grade)
	assert.Equal(t, 1, store.submissionCount())
}

func TestSubmissionServiceCreateMatchesStoredPrecision(t *testing.T) {
	store := seededSubmissionStore()
	svc := newTestSubmissionService(store, nil)
	svc.now = fixedClock(submissionNow.Add(987654321))

	sub, err := svc.Create(context.Background(), dto.SubmissionRequest{UserID: "u-1", TaskID: "t-1", Grade: floatPtr(15.556)})
	require.NoError(t, err)
	assert.Equal(t, 15.56, *sub.Grade)
	assert.Equal(t, submissionNow.Add(987654000), sub.SubmissionDate)
	assert.Equal(t, *sub, store.submissions[sub.ID])
}

func TestSubmissionServiceCreateDuplicatePair(t *testing.T) {
	store := seededSubmissionStore()
	svc := newTestSubmissionService(store, nil)
	req := dto.SubmissionRequest{UserID: "u-1", TaskID: "t-1"}

	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	require.ErrorIs(t, err, appErrors.ErrDuplicateKey)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 409, appErr.Status)
	assert.Equal(t, 1, store.submissionCount())
}

func TestSubmissionServiceConcurrentDuplicateCreate(t *testing.T) {
	store := seededSubmissionStore()
	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	store.pairCheckBarrier = barrier
	svc := newTestSubmissionService(store, nil)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), dto.SubmissionRequest{UserID: "u-1", TaskID: "t-1"})
		}(i)
	}
	wg.Wait()

	succeeded, duplicates := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, appErrors.ErrDuplicateKey):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, duplicates)
	assert.Equal(t, 1, store.submissionCount())
}

func TestSubmissionServiceCreateUnresolvedReferences(t *testing.T) {
	store := seededSubmissionStore()
	svc := newTestSubmissionService(store, nil)

	_, err := svc.Create(context.Background(), dto.SubmissionRequest{UserID: "ghost", TaskID: "t-1"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "user not found", appErr.Details["userId"])
	assert.Zero(t, store.submissionCount())

	_, err = svc.Create(context.Background(), dto.SubmissionRequest{UserID: "u-1", TaskID: "nope"})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "task not found", appErr.Details["taskId"])
	assert.Zero(t, store.submissionCount())
}

func TestSubmissionServiceCreateValidation(t *testing.T) {
	svc := newTestSubmissionService(seededSubmissionStore(), nil)
	future := time.Now().Add(time.Hour)

	_, err := svc.Create(context.Background(), dto.SubmissionRequest{
		SubmissionDate: &future,
		Grade:          floatPtr(21),
		Comments:       strPtr(strings.Repeat("x", 1001)),
	})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	for _, field := range []string{"submissionDate", "grade", "comments", "userId", "taskId"} {
		assert.Contains(t, appErr.Details, field)
	}
}

func TestSubmissionServiceUpdate(t *testing.T) {
	store := seededSubmissionStore()
	store.addSubmission(models.Submission{ID: "s-1", UserID: "u-1", TaskID: "t-1", Status: models.SubmissionSubmitted, FileName: strPtr("a.pdf"), SubmissionDate: submissionNow.Add(-time.Hour)})
	store.addSubmission(models.Submission{ID: "s-2", UserID: "u-2", TaskID: "t-1", Status: models.SubmissionSubmitted})
	svc := newTestSubmissionService(store, nil)

	updated, err := svc.Update(context.Background(), "s-1", dto.SubmissionRequest{
		UserID:   "u-1",
		TaskID:   "t-1",
		Status:   models.SubmissionGraded,
		Grade:    floatPtr(17.5),
		Comments: strPtr("good work"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionGraded, updated.Status)
	assert.Equal(t, 17.5, *updated.Grade)
	assert.Equal(t, "a.pdf", *updated.FileName)
	assert.Equal(t, submissionNow.Add(-time.Hour), updated.SubmissionDate)

	_, err = svc.Update(context.Background(), "s-2", dto.SubmissionRequest{UserID: "u-1", TaskID: "t-1"})
	require.ErrorIs(t, err, appErrors.ErrDuplicateKey)

	_, err = svc.Update(context.Background(), "missing", dto.SubmissionRequest{UserID: "u-1", TaskID: "t-2"})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSubmissionServiceDelete(t *testing.T) {
	store := seededSubmissionStore()
	store.addSubmission(models.Submission{ID: "s-1", UserID: "u-1", TaskID: "t-1"})
	svc := newTestSubmissionService(store, nil)

	require.NoError(t, svc.Delete(context.Background(), "s-1"))
	require.ErrorIs(t, svc.Delete(context.Background(), "s-1"), appErrors.ErrNotFound)
}

func TestSubmissionServiceQueries(t *testing.T) {
	store := seededSubmissionStore()
	day := func(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }
	store.addSubmission(models.Submission{ID: "s-1", UserID: "u-1", TaskID: "t-1", Status: models.SubmissionGraded, SubmissionDate: day(1)})
	store.addSubmission(models.Submission{ID: "s-2", UserID: "u-1", TaskID: "t-2", Status: models.SubmissionLate, SubmissionDate: day(3)})
	store.addSubmission(models.Submission{ID: "s-3", UserID: "u-2", TaskID: "t-1", Status: models.SubmissionPending, SubmissionDate: day(5)})
	svc := newTestSubmissionService(store, nil)
	ctx := context.Background()

	byUser, err := svc.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byTask, err := svc.ListByTask(ctx, "t-1")
	require.NoError(t, err)
	assert.Len(t, byTask, 2)

	_, err = svc.ListByUser(ctx, "ghost")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = svc.ListByTask(ctx, "ghost")
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	graded, err := svc.Graded(ctx)
	require.NoError(t, err)
	require.Len(t, graded, 1)
	assert.Equal(t, "s-1", graded[0].ID)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	late, err := svc.Late(ctx)
	require.NoError(t, err)
	assert.Len(t, late, 1)

	between, err := svc.Between(ctx, day(1), day(3))
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, []string{"s-1", "s-2"}, []string{between[0].ID, between[1].ID})

	_, err = svc.Between(ctx, day(3), day(1))
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSubmissionServiceAttachAndOpenFile(t *testing.T) {
	store := seededSubmissionStore()
	store.addSubmission(models.Submission{ID: "s-1", UserID: "u-1", TaskID: "t-1"})

	local, err := storage.NewLocalStorage(t.TempDir(), 1024)
	require.NoError(t, err)
	files := NewFileService(local, storage.NewSigner("test-secret", time.Hour), "/api")
	svc := newTestSubmissionService(store, files)

	sub, link, err := svc.AttachFile(context.Background(), "s-1", "mi ensayo.pdf", strings.NewReader("contents"))
	require.NoError(t, err)
	assert.Equal(t, "mi_ensayo.pdf", *sub.FileName)
	assert.Equal(t, int64(8), *sub.FileSize)
	assert.True(t, strings.HasPrefix(link.URL, "/api/files/"))
	assert.Equal(t, "/api/submissions/s-1/file", *store.submissions["s-1"].FileURL)
	assert.Equal(t, *sub.FileURL, *store.submissions["s-1"].FileURL)

	token := strings.TrimPrefix(link.URL, "/api/files/")
	file, name, err := svc.OpenFile(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "mi_ensayo.pdf", name)

	_, _, err = svc.OpenFile(token + "x")
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, _, err = svc.AttachFile(context.Background(), "s-1", "big.bin", strings.NewReader(strings.Repeat("x", 2048)))
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, _, err = svc.AttachFile(context.Background(), "missing", "a.txt", strings.NewReader("x"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSubmissionServiceFileLinkAfterExpiry(t *testing.T) {
	store := seededSubmissionStore()
	store.addSubmission(models.Submission{ID: "s-1", UserID: "u-1", TaskID: "t-1"})
	local, err := storage.NewLocalStorage(t.TempDir(), 0)
	require.NoError(t, err)

	shortLived := newTestSubmissionService(store, NewFileService(local, storage.NewSigner("test-secret", time.Nanosecond), "/api"))
	_, link, err := shortLived.AttachFile(context.Background(), "s-1", "ensayo.pdf", strings.NewReader("contents"))
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	_, _, err = shortLived.OpenFile(strings.TrimPrefix(link.URL, "/api/files/"))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	svc := newTestSubmissionService(store, NewFileService(local, storage.NewSigner("test-secret", time.Hour), "/api"))
	fresh, err := svc.FileLink(context.Background(), "s-1")
	require.NoError(t, err)
	assert.NotEqual(t, link.URL, fresh.URL)
	assert.True(t, fresh.ExpiresAt.After(time.Now()))

	file, name, err := svc.OpenFile(strings.TrimPrefix(fresh.URL, "/api/files/"))
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "ensayo.pdf", name)

	store.addSubmission(models.Submission{ID: "s-2", UserID: "u-2", TaskID: "t-1"})
	_, err = svc.FileLink(context.Background(), "s-2")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = svc.FileLink(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
