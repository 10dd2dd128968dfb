package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/learnloop/internal/auth"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/service"
)

type UserHandler struct {
	users  *service.UserService
	roles  *service.RoleAuthority
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, roles *service.RoleAuthority, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, roles: roles, logger: logger}
}

// HandleUpsert records a login.
//
// HTTP: PUT /users
// REQUEST BODY: {"email", "name", "photo"}; email must match the token.
func (h *UserHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var profile auth.Identity
	if err := decodeJSON(w, r, &profile); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, created, err := h.users.UpsertLogin(r.Context(), id, profile)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"created": created,
		"user":    user,
	})
}

// HandleList is the admin user table. GET /users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleRole reports a user's role; unknown users are students.
//
// HTTP: GET /users/role/{id}
//
// The segment is an email here; it shares its name with the admin PATCH
// route on the same path, which takes a user id.
func (h *UserHandler) HandleRole(w http.ResponseWriter, r *http.Request) {
	email, err := pathParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	role, err := h.roles.RoleOf(r.Context(), email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "role": string(role)})
}

// HandleSetRole: PATCH /users/role/{id} with {"role": "instructor"}
func (h *UserHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role model.Role `json:"role"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.users.SetRole(r.Context(), chi.URLParam(r, "id"), body.Role); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleSetStatus: PATCH /users/status/{id} with {"status": "suspended"}
func (h *UserHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.UserStatus `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.users.SetStatus(r.Context(), chi.URLParam(r, "id"), body.Status); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
