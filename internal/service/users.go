package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/auth"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

// RoleAuthority answers authorization questions from the users collection.
//
// It never caches: every call reads the stored user, so a role change
// made by an admin applies to the very next request.
type RoleAuthority struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewRoleAuthority(users repository.UserRepository, logger *slog.Logger) *RoleAuthority {
	return &RoleAuthority{users: users, logger: logger}
}

var _ auth.AdminChecker = (*RoleAuthority)(nil)

// RequireAdmin returns nil only when email belongs to a stored admin.
// A missing user is Forbidden, not NotFound.
func (a *RoleAuthority) RequireAdmin(ctx context.Context, email string) error {
	role, err := a.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Forbidden("forbidden access")
		}
		return err
	}
	if role != model.RoleAdmin {
		return apperror.Forbidden("forbidden access")
	}
	return nil
}

// RoleOf reports the stored role of email. Unknown users read as students.
func (a *RoleAuthority) RoleOf(ctx context.Context, email string) (model.Role, error) {
	role, err := a.lookup(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return model.RoleStudent, nil
	}
	return role, err
}

// isAdmin is RequireAdmin as a boolean for ownership checks.
func (a *RoleAuthority) isAdmin(ctx context.Context, email string) (bool, error) {
	err := a.RequireAdmin(ctx, email)
	if errors.Is(err, apperror.ErrForbidden) {
		return false, nil
	}
	return err == nil, err
}

func (a *RoleAuthority) lookup(ctx context.Context, email string) (model.Role, error) {
	if strings.TrimSpace(email) == "" {
		return "", apperror.NotFound("user", email)
	}
	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			a.logger.Error("role lookup failed",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
			return "", fmt.Errorf("looking up role: %w", err)
		}
		return "", err
	}
	return user.Role, nil
}

// UserService covers login bookkeeping and the admin user screens.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// UpsertLogin records a login for the caller. The profile in the request
// body must describe the same email the token was issued for.
func (s *UserService) UpsertLogin(ctx context.Context, caller auth.Identity, profile auth.Identity) (*model.User, bool, error) {
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return nil, false, apperror.ValidationFailed("email", "email is required")
	}
	if email != caller.Email {
		return nil, false, apperror.Forbidden("forbidden access")
	}

	user := &model.User{
		Email: email,
		Name:  strings.TrimSpace(profile.Name),
		Photo: strings.TrimSpace(profile.Photo),
	}
	created, err := s.users.UpsertLogin(ctx, user)
	if err != nil {
		s.logger.Error("failed to upsert user",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, false, fmt.Errorf("upserting user: %w", err)
	}

	if created {
		s.logger.Info("user registered", slog.String("email", email))
	}
	return user, created, nil
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) SetRole(ctx context.Context, id string, role model.Role) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "user ID is required")
	}
	if !role.Valid() {
		return apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", role))
	}

	if err := s.users.SetUserRole(ctx, id, role); err != nil {
		return s.storeErr("setting user role", id, err)
	}
	s.logger.Info("user role changed", slog.String("id", id), slog.String("role", string(role)))
	return nil
}

func (s *UserService) SetStatus(ctx context.Context, id string, status model.UserStatus) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "user ID is required")
	}
	if !status.Valid() {
		return apperror.ValidationFailed("status", fmt.Sprintf("unknown status %q", status))
	}

	if err := s.users.SetUserStatus(ctx, id, status); err != nil {
		return s.storeErr("setting user status", id, err)
	}
	s.logger.Info("user status changed", slog.String("id", id), slog.String("status", string(status)))
	return nil
}

// storeErr passes typed errors through and logs the rest.
func (s *UserService) storeErr(op, id string, err error) error {
	if apperror.IsExpected(err) {
		return err
	}
	s.logger.Error("user store failure",
		slog.String("op", op),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s: %w", op, err)
}
