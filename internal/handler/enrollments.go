package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/service"
)

type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	logger      *slog.Logger
}

func NewEnrollmentHandler(enrollments *service.EnrollmentService, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, logger: logger}
}

type enrollResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// HandleEnroll: POST /enroll with {"userEmail", "courseId"}.
// 201 on success, 409 if the user is already enrolled.
func (h *EnrollmentHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var body struct {
		UserEmail string `json:"userEmail"`
		CourseID  string `json:"courseId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	e, err := h.enrollments.Enroll(r.Context(), id, body.UserEmail, body.CourseID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, enrollResponse{
		Success: true,
		ID:      e.ID,
		Message: "Enrolled successfully",
	})
}

// HandleListForUser: GET /enrolled/{email}, the caller's own enrollments
// joined with their courses.
func (h *EnrollmentHandler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	email, err := pathParam(r, "email")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out, err := h.enrollments.ListForUser(r.Context(), id, email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if out == nil {
		out = []model.EnrollmentWithCourse{}
	}
	writeJSON(w, http.StatusOK, out)
}
