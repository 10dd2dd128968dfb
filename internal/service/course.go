// Package service contains the business rules of the marketplace.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates, authorizes, orchestrates
//	Repository      → reads/writes a store (sqlite or mongo)
//
// Services take repository interfaces and return apperror values for every
// expected outcome, so they know nothing about HTTP or the storage engine.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/auth"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

const (
	MaxCourseTitleLength = 200
	MaxDescriptionLength = 10000
)

// CourseService owns the course lifecycle: a course is created pending
// and only an admin moves it to approved or rejected.
type CourseService struct {
	courses repository.CourseRepository
	roles   *RoleAuthority
	logger  *slog.Logger
	now     func() time.Time
}

func NewCourseService(courses repository.CourseRepository, roles *RoleAuthority, logger *slog.Logger) *CourseService {
	return &CourseService{
		courses: courses,
		roles:   roles,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new course owned by the caller. Whatever status or
// counter the client may have sent is ignored.
func (s *CourseService) Create(ctx context.Context, caller auth.Identity, in model.CourseInput) (*model.Course, error) {
	in, err := cleanCourseInput(in)
	if err != nil {
		return nil, err
	}
	if in.InstructorName == "" {
		in.InstructorName = caller.Name
	}

	course := &model.Course{
		Title:           in.Title,
		Description:     in.Description,
		Category:        in.Category,
		Price:           in.Price,
		Image:           in.Image,
		InstructorName:  in.InstructorName,
		InstructorEmail: caller.Email,
		Status:          model.CoursePending,
		Feedback:        "",
		TotalEnrolled:   0,
		CreatedAt:       s.now(),
	}

	if err := s.courses.CreateCourse(ctx, course); err != nil {
		s.logger.Error("failed to create course",
			slog.String("owner", caller.Email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating course: %w", err)
	}

	s.logger.Info("course created",
		slog.String("id", course.ID),
		slog.String("owner", course.InstructorEmail),
	)
	return course, nil
}

// List returns an owner's courses in every status, or else the approved
// catalogue, optionally narrowed to one category.
func (s *CourseService) List(ctx context.Context, owner, category string) ([]model.Course, error) {
	var filter model.CourseFilter
	if owner = strings.TrimSpace(owner); owner != "" {
		filter.Owner = owner
	} else {
		filter.Status = model.CourseApproved
		if c := strings.TrimSpace(category); c != "" && c != model.AllCategories {
			filter.Category = c
		}
	}

	courses, err := s.courses.ListCourses(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list courses", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	return courses, nil
}

func (s *CourseService) GetByID(ctx context.Context, id string) (*model.Course, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "course ID is required")
	}

	course, err := s.courses.GetCourse(ctx, id)
	if err != nil {
		return nil, s.storeErr("getting course", id, err)
	}
	return course, nil
}

// TransitionStatus is the admin moderation step. The route is gated by
// auth.RequireAdmin; status and feedback are written together.
func (s *CourseService) TransitionStatus(ctx context.Context, id string, status model.CourseStatus, feedback string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "course ID is required")
	}
	if !status.Valid() {
		return apperror.ValidationFailed("status", fmt.Sprintf("unknown status %q", status))
	}

	if err := s.courses.SetCourseStatus(ctx, id, status, strings.TrimSpace(feedback)); err != nil {
		return s.storeErr("setting course status", id, err)
	}

	s.logger.Info("course status changed",
		slog.String("id", id),
		slog.String("status", string(status)),
	)
	return nil
}

// Update replaces the client-writable fields. Only the owner or an admin
// may edit; moderation state and the enrollment counter are untouched.
func (s *CourseService) Update(ctx context.Context, caller auth.Identity, id string, in model.CourseInput) (*model.Course, error) {
	course, err := s.authorizeOwner(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	in, err = cleanCourseInput(in)
	if err != nil {
		return nil, err
	}
	if in.InstructorName == "" {
		in.InstructorName = course.InstructorName
	}

	if err := s.courses.UpdateCourse(ctx, course.ID, in); err != nil {
		return nil, s.storeErr("updating course", id, err)
	}

	s.logger.Info("course updated", slog.String("id", course.ID), slog.String("by", caller.Email))
	return s.GetByID(ctx, course.ID)
}

func (s *CourseService) Delete(ctx context.Context, caller auth.Identity, id string) error {
	course, err := s.authorizeOwner(ctx, caller, id)
	if err != nil {
		return err
	}

	if err := s.courses.DeleteCourse(ctx, course.ID); err != nil {
		return s.storeErr("deleting course", id, err)
	}

	s.logger.Info("course deleted", slog.String("id", course.ID), slog.String("by", caller.Email))
	return nil
}

func (s *CourseService) authorizeOwner(ctx context.Context, caller auth.Identity, id string) (*model.Course, error) {
	course, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if course.InstructorEmail == caller.Email {
		return course, nil
	}

	admin, err := s.roles.isAdmin(ctx, caller.Email)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, apperror.Forbidden("only the course owner or an admin can change this course")
	}
	return course, nil
}

func (s *CourseService) storeErr(op, id string, err error) error {
	if apperror.IsExpected(err) {
		return err
	}
	s.logger.Error("course store failure",
		slog.String("op", op),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s: %w", op, err)
}

func cleanCourseInput(in model.CourseInput) (model.CourseInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Image = strings.TrimSpace(in.Image)
	in.InstructorName = strings.TrimSpace(in.InstructorName)

	switch {
	case in.Title == "":
		return in, apperror.ValidationFailed("title", "course title is required")
	case len(in.Title) > MaxCourseTitleLength:
		return in, apperror.ValidationFailed("title",
			fmt.Sprintf("course title must be %d characters or less", MaxCourseTitleLength))
	case len(in.Description) > MaxDescriptionLength:
		return in, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	case in.Price < 0:
		return in, apperror.ValidationFailed("price", "price cannot be negative")
	}
	return in, nil
}
