// Package repository declares the persistence contracts the services use.
//
// Two stores implement them: repository/sqlite (embedded, default) and
// repository/mongo (document store). Ids are opaque strings; a store must
// accept both its own canonical form and any raw string it was handed.
package repository

import (
	"context"
	"io"

	"github.com/sakif/learnloop/internal/model"
)

type UserRepository interface {
	// UpsertLogin creates the user on first login (role student, status
	// active) or refreshes name and photo. It reports whether a new
	// record was created and fills user with the stored state.
	UpsertLogin(ctx context.Context, user *model.User) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	SetUserRole(ctx context.Context, id string, role model.Role) error
	SetUserStatus(ctx context.Context, id string, status model.UserStatus) error
	CountUsers(ctx context.Context) (int64, error)
}

type CourseRepository interface {
	CreateCourse(ctx context.Context, course *model.Course) error
	GetCourse(ctx context.Context, id string) (*model.Course, error)
	ListCourses(ctx context.Context, filter model.CourseFilter) ([]model.Course, error)
	UpdateCourse(ctx context.Context, id string, in model.CourseInput) error
	DeleteCourse(ctx context.Context, id string) error
	// SetCourseStatus writes status and feedback in a single update.
	SetCourseStatus(ctx context.Context, id string, status model.CourseStatus, feedback string) error
	// IncrementEnrolled adds delta to totalEnrolled atomically in the store.
	IncrementEnrolled(ctx context.Context, id string, delta int64) error
	CountCourses(ctx context.Context, status model.CourseStatus) (int64, error)
}

type EnrollmentRepository interface {
	// FindEnrollment returns apperror.ErrNotFound when the pair is absent.
	FindEnrollment(ctx context.Context, userEmail, courseID string) (*model.Enrollment, error)
	// CreateEnrollment returns apperror.ErrConflict when the store's unique
	// index on (userEmail, courseId) rejects the insert.
	CreateEnrollment(ctx context.Context, e *model.Enrollment) error
	// ListEnrollmentsWithCourses inner-joins with courses; enrollments whose
	// course no longer exists are dropped.
	ListEnrollmentsWithCourses(ctx context.Context, userEmail string) ([]model.EnrollmentWithCourse, error)
	CountEnrollments(ctx context.Context) (int64, error)
	SumEnrollmentPrice(ctx context.Context) (float64, error)
}

// Store bundles one backend's repositories together with its lifecycle.
type Store struct {
	Users       UserRepository
	Courses     CourseRepository
	Enrollments EnrollmentRepository
	io.Closer
}
