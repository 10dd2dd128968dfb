package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

// fakeStore is an in-memory implementation of all three repositories.
// Each failure field, when set, is returned by the matching method so
// tests can simulate a broken database.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]*model.User // keyed by email
	courses     map[string]*model.Course
	enrollments []model.Enrollment
	nextID      int

	getUserErr   error
	createEnrErr error
	incrementErr error
	findEnrErr   error
	countErr     error

	increments int
	lastFilter model.CourseFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]*model.User),
		courses: make(map[string]*model.Course),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) bundle() *repository.Store {
	return &repository.Store{Users: f, Courses: f, Enrollments: f, Closer: io.NopCloser(nil)}
}

// addUser stores a user directly, bypassing the login flow.
func (f *fakeStore) addUser(email string, role model.Role) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &model.User{ID: f.id("user"), Email: email, Role: role, Status: model.UserActive}
	f.users[email] = u
	return u
}

func (f *fakeStore) addCourse(c model.Course) *model.Course {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id("course")
	f.courses[c.ID] = &c
	return &c
}

func (f *fakeStore) course(id string) model.Course {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.courses[id]
}

// --- users ---

func (f *fakeStore) UpsertLogin(_ context.Context, user *model.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[user.Email]; ok {
		u.Name, u.Photo = user.Name, user.Photo
		*user = *u
		return false, nil
	}
	user.ID = f.id("user")
	user.Role = model.RoleStudent
	user.Status = model.UserActive
	stored := *user
	f.users[user.Email] = &stored
	return true, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	u, ok := f.users[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) ListUsers(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakeStore) userByID(id string) *model.User {
	for _, u := range f.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (f *fakeStore) SetUserRole(_ context.Context, id string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.userByID(id)
	if u == nil {
		return apperror.NotFound("user", id)
	}
	u.Role = role
	return nil
}

func (f *fakeStore) SetUserStatus(_ context.Context, id string, status model.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.userByID(id)
	if u == nil {
		return apperror.NotFound("user", id)
	}
	u.Status = status
	return nil
}

func (f *fakeStore) CountUsers(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.users)), nil
}

// --- courses ---

func (f *fakeStore) CreateCourse(_ context.Context, c *model.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id("course")
	stored := *c
	f.courses[c.ID] = &stored
	return nil
}

func (f *fakeStore) GetCourse(_ context.Context, id string) (*model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, apperror.NotFound("course", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListCourses(_ context.Context, filter model.CourseFilter) ([]model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	var out []model.Course
	for _, c := range f.courses {
		if filter.Owner != "" && c.InstructorEmail != filter.Owner {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateCourse(_ context.Context, id string, in model.CourseInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return apperror.NotFound("course", id)
	}
	c.Title, c.Description, c.Category = in.Title, in.Description, in.Category
	c.Price, c.Image, c.InstructorName = in.Price, in.Image, in.InstructorName
	return nil
}

func (f *fakeStore) DeleteCourse(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courses[id]; !ok {
		return apperror.NotFound("course", id)
	}
	delete(f.courses, id)
	return nil
}

func (f *fakeStore) SetCourseStatus(_ context.Context, id string, status model.CourseStatus, feedback string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return apperror.NotFound("course", id)
	}
	c.Status, c.Feedback = status, feedback
	return nil
}

func (f *fakeStore) IncrementEnrolled(_ context.Context, id string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	c, ok := f.courses[id]
	if !ok {
		return apperror.NotFound("course", id)
	}
	c.TotalEnrolled += delta
	f.increments++
	return nil
}

func (f *fakeStore) CountCourses(_ context.Context, status model.CourseStatus) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.courses {
		if status == "" || c.Status == status {
			n++
		}
	}
	return n, nil
}

// --- enrollments ---

func (f *fakeStore) FindEnrollment(_ context.Context, userEmail, courseID string) (*model.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findEnrErr != nil {
		return nil, f.findEnrErr
	}
	for _, e := range f.enrollments {
		if e.UserEmail == userEmail && e.CourseID == courseID {
			cp := e
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("enrollment", userEmail+"/"+courseID)
}

func (f *fakeStore) CreateEnrollment(_ context.Context, e *model.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createEnrErr != nil {
		return f.createEnrErr
	}
	e.ID = f.id("enr")
	f.enrollments = append(f.enrollments, *e)
	return nil
}

func (f *fakeStore) ListEnrollmentsWithCourses(_ context.Context, userEmail string) ([]model.EnrollmentWithCourse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.EnrollmentWithCourse
	for i := len(f.enrollments) - 1; i >= 0; i-- {
		e := f.enrollments[i]
		c, ok := f.courses[e.CourseID]
		if e.UserEmail != userEmail || !ok {
			continue
		}
		out = append(out, model.EnrollmentWithCourse{Enrollment: e, Course: *c})
	}
	return out, nil
}

func (f *fakeStore) CountEnrollments(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.enrollments)), nil
}

func (f *fakeStore) SumEnrollmentPrice(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum float64
	for _, e := range f.enrollments {
		if e.Price != nil {
			sum += *e.Price
		}
	}
	return sum, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRoles(t *testing.T, store *fakeStore) *RoleAuthority {
	t.Helper()
	return NewRoleAuthority(store, testLogger())
}
