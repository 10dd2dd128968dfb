package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/auth"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

// EnrollmentService runs the enroll protocol: duplicate check, insert,
// then the course counter bump.
type EnrollmentService struct {
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	logger      *slog.Logger
	now         func() time.Time
}

func NewEnrollmentService(
	courses repository.CourseRepository,
	enrollments repository.EnrollmentRepository,
	logger *slog.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		courses:     courses,
		enrollments: enrollments,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Enroll records userEmail in courseID and increments the course's
// totalEnrolled.
//
// The two writes are not a transaction. If the increment fails after the
// insert, the enrollment stays and the error is returned; the counter is
// then one behind until corrected by hand. Two concurrent calls for the
// same pair can both pass the lookup; the store's unique index turns the
// second insert into a Conflict.
func (s *EnrollmentService) Enroll(ctx context.Context, caller auth.Identity, userEmail, courseID string) (*model.Enrollment, error) {
	userEmail = strings.TrimSpace(userEmail)
	courseID = strings.TrimSpace(courseID)
	if userEmail == "" {
		return nil, apperror.ValidationFailed("userEmail", "userEmail is required")
	}
	if courseID == "" {
		return nil, apperror.ValidationFailed("courseId", "courseId is required")
	}
	if userEmail != caller.Email {
		return nil, apperror.Forbidden("you can only enroll yourself")
	}

	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, s.storeErr("loading course", courseID, err)
	}

	_, err = s.enrollments.FindEnrollment(ctx, userEmail, courseID)
	switch {
	case err == nil:
		return nil, apperror.Conflict("already enrolled in this course")
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, s.storeErr("checking enrollment", courseID, err)
	}

	price := course.Price
	enrollment := &model.Enrollment{
		UserEmail:  userEmail,
		CourseID:   courseID,
		Price:      &price,
		EnrolledAt: s.now(),
	}
	if err := s.enrollments.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, s.storeErr("creating enrollment", courseID, err)
	}

	if err := s.courses.IncrementEnrolled(ctx, courseID, 1); err != nil {
		s.logger.Error("enrollment recorded but counter not incremented",
			slog.String("enrollment_id", enrollment.ID),
			slog.String("course_id", courseID),
			slog.String("user", userEmail),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("incrementing enrollment count: %w", err)
	}

	s.logger.Info("user enrolled",
		slog.String("enrollment_id", enrollment.ID),
		slog.String("course_id", courseID),
		slog.String("user", userEmail),
	)
	return enrollment, nil
}

// ListForUser returns the caller's enrollments with their courses,
// newest first. Enrollments of deleted courses are left out.
func (s *EnrollmentService) ListForUser(ctx context.Context, caller auth.Identity, email string) ([]model.EnrollmentWithCourse, error) {
	email = strings.TrimSpace(email)
	if email != caller.Email {
		return nil, apperror.Forbidden("forbidden access")
	}

	out, err := s.enrollments.ListEnrollmentsWithCourses(ctx, email)
	if err != nil {
		return nil, s.storeErr("listing enrollments", email, err)
	}
	return out, nil
}

func (s *EnrollmentService) storeErr(op, key string, err error) error {
	if apperror.IsExpected(err) {
		return err
	}
	s.logger.Error("enrollment store failure",
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s: %w", op, err)
}
