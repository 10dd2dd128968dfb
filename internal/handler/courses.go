package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/service"
)

type CourseHandler struct {
	courses *service.CourseService
	logger  *slog.Logger
}

func NewCourseHandler(courses *service.CourseService, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{courses: courses, logger: logger}
}

// HandleList returns the approved catalogue, or one instructor's courses.
//
// HTTP: GET /courses?category=design
//
//	GET /courses?owner=teacher@x.com
func (h *CourseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	courses, err := h.courses.List(r.Context(), q.Get("owner"), q.Get("category"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// HandleGetByID: GET /courses/{id}
func (h *CourseHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// HandleCreate publishes a course for moderation. Status and counters in
// the body are ignored because CourseInput does not carry them.
//
// HTTP: POST /courses → 201 {"success": true, "data": {...}}
func (h *CourseHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var in model.CourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	course, err := h.courses.Create(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": course})
}

// HandleUpdate: PUT /courses/{id}, owner or admin.
func (h *CourseHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var in model.CourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	course, err := h.courses.Update(r.Context(), id, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// HandleDelete: DELETE /courses/{id}, owner or admin. 204 on success.
func (h *CourseHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.courses.Delete(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetStatus is the admin moderation call.
//
// HTTP: PATCH /courses/{id}/status
// REQUEST BODY: {"status": "rejected", "feedback": "add more exercises"}
func (h *CourseHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status   model.CourseStatus `json:"status"`
		Feedback string             `json:"feedback"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	err := h.courses.TransitionStatus(r.Context(), chi.URLParam(r, "id"), body.Status, body.Feedback)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
