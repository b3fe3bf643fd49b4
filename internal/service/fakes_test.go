package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/repository"
)

// fakeStore is an in-memory stand-in for the three tables, enforcing the
// same unique and foreign key rules as the migrations.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]models.User
	tasks       map[string]models.Task
	submissions map[string]models.Submission

	// pairCheckBarrier, when set, holds every FindByTaskAndUser call until
	// all expected callers have arrived.
	pairCheckBarrier *sync.WaitGroup

	userErr       error
	submissionErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]models.User{},
		tasks:       map[string]models.Task{},
		submissions: map[string]models.Submission{},
	}
}

func (s *fakeStore) userRepo() *fakeUserRepo { return &fakeUserRepo{s} }
func (s *fakeStore) taskRepo() *fakeTaskRepo { return &fakeTaskRepo{s} }
func (s *fakeStore) submissionRepo() *fakeSubmissionRepo { return &fakeSubmissionRepo{s} }

func (s *fakeStore) addUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Date(2024, 1, 1, 0, 0, len(s.users), 0, time.UTC)
	}
	s.users[u.ID] = u
	return u
}

func (s *fakeStore) addTask(t models.Task) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Date(2024, 1, 1, 0, 0, len(s.tasks), 0, time.UTC)
	}
	s.tasks[t.ID] = t
	return t
}

func (s *fakeStore) addSubmission(sub models.Submission) models.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[sub.ID] = sub
	return sub
}

func (s *fakeStore) submissionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submissions)
}

type fakeUserRepo struct{ *fakeStore }

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findUser(func(u models.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findUser(func(u models.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findUser(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *fakeUserRepo) findUser(match func(models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userErr != nil {
		return nil, r.userErr
	}
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(filter.Name)
	users := []models.User{}
	for _, u := range r.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(u.FirstName), name) && !strings.Contains(strings.ToLower(u.LastName), name) {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].LastName != users[j].LastName {
			return users[i].LastName < users[j].LastName
		}
		if users[i].FirstName != users[j].FirstName {
			return users[i].FirstName < users[j].FirstName
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("insert user: %w", repository.ErrDuplicateKey)
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return sql.ErrNoRows
	}
	for _, sub := range r.submissions {
		if sub.UserID == id {
			return fmt.Errorf("delete user: %w", repository.ErrForeignKey)
		}
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) CountByRole(ctx context.Context) (map[models.UserRole]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[models.UserRole]int{}
	for _, u := range r.users {
		counts[u.Role]++
	}
	return counts, nil
}

type fakeTaskRepo struct{ *fakeStore }

func (r *fakeTaskRepo) FindByID(ctx context.Context, id string) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &task, nil
}

func (r *fakeTaskRepo) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	title := strings.ToLower(filter.Title)
	tasks := []models.Task{}
	for _, t := range r.tasks {
		switch {
		case filter.Status != nil && t.Status != *filter.Status:
			continue
		case filter.DueAfter != nil && !t.DueDate.After(*filter.DueAfter):
			continue
		case filter.DueBefore != nil && !t.DueDate.Before(*filter.DueBefore):
			continue
		case title != "" && !strings.Contains(strings.ToLower(t.Title), title):
			continue
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i].CreatedAt, tasks[j].CreatedAt
		if filter.OrderByDueDate {
			a, b = tasks[i].DueDate, tasks[j].DueDate
		}
		if !a.Equal(b) {
			return a.Before(b)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return sql.ErrNoRows
	}
	r.tasks[task.ID] = *task
	return nil
}

func (r *fakeTaskRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.tasks, id)
	for subID, sub := range r.submissions {
		if sub.TaskID == id {
			delete(r.submissions, subID)
		}
	}
	return nil
}

func (r *fakeTaskRepo) CountByStatus(ctx context.Context) (map[models.TaskStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[models.TaskStatus]int{}
	for _, t := range r.tasks {
		counts[t.Status]++
	}
	return counts, nil
}

type fakeSubmissionRepo struct{ *fakeStore }

func (r *fakeSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sub, nil
}

func (r *fakeSubmissionRepo) FindByTaskAndUser(ctx context.Context, taskID, userID string) (*models.Submission, error) {
	if r.pairCheckBarrier != nil {
		r.pairCheckBarrier.Done()
		r.pairCheckBarrier.Wait()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.submissions {
		if sub.TaskID == taskID && sub.UserID == userID {
			found := sub
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeSubmissionRepo) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := []models.Submission{}
	for _, sub := range r.submissions {
		switch {
		case filter.UserID != "" && sub.UserID != filter.UserID:
			continue
		case filter.TaskID != "" && sub.TaskID != filter.TaskID:
			continue
		case filter.Status != nil && sub.Status != *filter.Status:
			continue
		case filter.From != nil && sub.SubmissionDate.Before(*filter.From):
			continue
		case filter.To != nil && sub.SubmissionDate.After(*filter.To):
			continue
		}
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubmissionDate.Equal(subs[j].SubmissionDate) {
			return subs[i].SubmissionDate.Before(subs[j].SubmissionDate)
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (r *fakeSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submissionErr != nil {
		return r.submissionErr
	}
	if err := r.checkReferences(submission); err != nil {
		return err
	}
	for _, sub := range r.submissions {
		if sub.TaskID == submission.TaskID && sub.UserID == submission.UserID {
			return fmt.Errorf("insert submission: %w", repository.ErrDuplicateKey)
		}
	}
	r.submissions[submission.ID] = *submission
	return nil
}

func (r *fakeSubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.submissions[submission.ID]; !ok {
		return sql.ErrNoRows
	}
	if err := r.checkReferences(submission); err != nil {
		return err
	}
	for _, sub := range r.submissions {
		if sub.ID != submission.ID && sub.TaskID == submission.TaskID && sub.UserID == submission.UserID {
			return fmt.Errorf("update submission: %w", repository.ErrDuplicateKey)
		}
	}
	r.submissions[submission.ID] = *submission
	return nil
}

func (r *fakeSubmissionRepo) checkReferences(submission *models.Submission) error {
	if _, ok := r.users[submission.UserID]; !ok {
		return fmt.Errorf("write submission: %w", repository.ErrForeignKey)
	}
	if _, ok := r.tasks[submission.TaskID]; !ok {
		return fmt.Errorf("write submission: %w", repository.ErrForeignKey)
	}
	return nil
}

func (r *fakeSubmissionRepo) UpdateFile(ctx context.Context, id, fileName string, fileSize int64, fileURL string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.submissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	sub.FileName, sub.FileSize, sub.FileURL = &fileName, &fileSize, &fileURL
	sub.UpdatedAt = updatedAt
	r.submissions[id] = sub
	return nil
}

func (r *fakeSubmissionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.submissions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.submissions, id)
	return nil
}

func (r *fakeSubmissionRepo) scoped(scope models.GradeAverageScope) []models.Submission {
	subs := []models.Submission{}
	for _, sub := range r.submissions {
		if scope.UserID != "" && sub.UserID != scope.UserID {
			continue
		}
		if scope.TaskID != "" && sub.TaskID != scope.TaskID {
			continue
		}
		subs = append(subs, sub)
	}
	return subs
}

func (r *fakeSubmissionRepo) Count(ctx context.Context, scope models.GradeAverageScope) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scoped(scope)), nil
}

func (r *fakeSubmissionRepo) CountByStatus(ctx context.Context, scope models.GradeAverageScope) (map[models.SubmissionStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[models.SubmissionStatus]int{}
	for _, sub := range r.scoped(scope) {
		counts[sub.Status]++
	}
	return counts, nil
}

func (r *fakeSubmissionRepo) AverageGrade(ctx context.Context, scope models.GradeAverageScope) (*float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return average(r.scoped(scope)), nil
}

func (r *fakeSubmissionRepo) StudentAverages(ctx context.Context) ([]models.StudentAverage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	students := []models.User{}
	for _, u := range r.users {
		if u.Role == models.RoleStudent {
			students = append(students, u)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if !students[i].CreatedAt.Equal(students[j].CreatedAt) {
			return students[i].CreatedAt.Before(students[j].CreatedAt)
		}
		return students[i].ID < students[j].ID
	})
	rows := make([]models.StudentAverage, 0, len(students))
	for _, u := range students {
		rows = append(rows, models.StudentAverage{
			UserID:       u.ID,
			Username:     u.Username,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			AverageGrade: average(r.scoped(models.GradeAverageScope{UserID: u.ID})),
		})
	}
	return rows, nil
}

func average(subs []models.Submission) *float64 {
	var sum float64
	n := 0
	for _, sub := range subs {
		if sub.Grade != nil {
			sum += *sub.Grade
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func floatPtr(v float64) *float64 { return &v }

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
