package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/learnloop/internal/auth"
	"github.com/sakif/learnloop/internal/config"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
	"github.com/sakif/learnloop/internal/repository/sqlite"
	"github.com/sakif/learnloop/internal/server"
)

const testSecret = "server-test-secret-0123456789"

type testEnv struct {
	t       *testing.T
	handler http.Handler
	store   *repository.Store
	tokens  *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	store := db.Store()
	t.Cleanup(func() { store.Close() })

	cfg := config.Config{
		Port:        8080,
		TokenSecret: testSecret,
		StoreDriver: config.DriverSQLite,
		CORSOrigins: "https://learn-loop-edcf7.web.app",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := server.New(cfg, logger, store, nil)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	return &testEnv{t: t, handler: srv.Handler(), store: store, tokens: tokens}
}

// user creates a stored user with role and returns a bearer header for it.
func (e *testEnv) user(email string, role model.Role) string {
	e.t.Helper()
	ctx := context.Background()

	u := &model.User{Email: email, Name: email}
	_, err := e.store.Users.UpsertLogin(ctx, u)
	require.NoError(e.t, err)
	if role != model.RoleStudent {
		require.NoError(e.t, e.store.Users.SetUserRole(ctx, u.ID, role))
	}
	return e.bearer(email)
}

func (e *testEnv) bearer(email string) string {
	e.t.Helper()
	tok, err := e.tokens.Issue(auth.Identity{Email: email, Name: email})
	require.NoError(e.t, err)
	return "Bearer " + tok
}

func (e *testEnv) do(method, path, authHeader string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRootAndHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "API is working!", decode[map[string]string](t, rec)["message"])

	rec = env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestIssueToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/jwt", "", auth.Identity{Email: "a@x.com", Name: "A"})
	require.Equal(t, http.StatusOK, rec.Code)

	token := decode[map[string]string](t, rec)["token"]
	id, err := env.tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", id.Email)

	rec = env.do(http.MethodPost, "/jwt", "", map[string]string{"name": "no email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes_RequireCredentialThenRole(t *testing.T) {
	env := newTestEnv(t)
	adminAuth := env.user("admin@x.com", model.RoleAdmin)
	studentAuth := env.user("student@x.com", model.RoleStudent)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/users", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/users", "Bearer garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/users", studentAuth, nil).Code)
	// A valid token for an email with no user record is not an admin.
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/users", env.bearer("ghost@x.com"), nil).Code)

	rec := env.do(http.MethodGet, "/users", adminAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.User](t, rec), 2)
}

func TestUserLoginAndRoleManagement(t *testing.T) {
	env := newTestEnv(t)
	adminAuth := env.user("admin@x.com", model.RoleAdmin)
	newAuth := env.bearer("new@x.com")

	rec := env.do(http.MethodPut, "/users", newAuth, auth.Identity{Email: "new@x.com", Name: "New"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Created bool       `json:"created"`
		User    model.User `json:"user"`
	}](t, rec)
	assert.True(t, body.Created)
	assert.Equal(t, model.RoleStudent, body.User.Role)

	// Cannot record a login for someone else.
	rec = env.do(http.MethodPut, "/users", newAuth, auth.Identity{Email: "other@x.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/users/role/new@x.com", newAuth, nil)
	assert.Equal(t, "student", decode[map[string]string](t, rec)["role"])

	rec = env.do(http.MethodPatch, "/users/role/"+body.User.ID, adminAuth, map[string]string{"role": "instructor"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/users/role/new@x.com", newAuth, nil)
	assert.Equal(t, "instructor", decode[map[string]string](t, rec)["role"])

	rec = env.do(http.MethodPatch, "/users/role/"+body.User.ID, adminAuth, map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPatch, "/users/status/"+body.User.ID, adminAuth, map[string]string{"status": "suspended"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPatch, "/users/status/does-not-exist", adminAuth, map[string]string{"status": "active"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// An unknown email reads as a student.
	rec = env.do(http.MethodGet, "/users/role/nobody@x.com", newAuth, nil)
	assert.Equal(t, "student", decode[map[string]string](t, rec)["role"])
}

func createCourse(t *testing.T, env *testEnv, authHeader string, in map[string]any) model.Course {
	t.Helper()
	rec := env.do(http.MethodPost, "/courses", authHeader, in)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct {
		Data model.Course `json:"data"`
	}](t, rec).Data
}

func TestCourseLifecycle(t *testing.T) {
	env := newTestEnv(t)
	adminAuth := env.user("admin@x.com", model.RoleAdmin)
	instructorAuth := env.user("instructor@x.com", model.RoleInstructor)

	course := createCourse(t, env, instructorAuth, map[string]any{
		"title": "Go Concurrency", "category": "programming", "price": 30,
		// Clients cannot pre-approve or seed the counter.
		"status": "approved", "totalEnrolled": 500,
	})
	assert.Equal(t, model.CoursePending, course.Status)
	assert.Equal(t, int64(0), course.TotalEnrolled)
	assert.Equal(t, "instructor@x.com", course.InstructorEmail)

	assert.Empty(t, decode[[]model.Course](t, env.do(http.MethodGet, "/courses", "", nil)))
	assert.Len(t, decode[[]model.Course](t, env.do(http.MethodGet, "/courses?owner=instructor@x.com", "", nil)), 1)

	// Only admins moderate.
	rec := env.do(http.MethodPatch, "/courses/"+course.ID+"/status", instructorAuth, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPatch, "/courses/"+course.ID+"/status", adminAuth, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]model.Course](t, env.do(http.MethodGet, "/courses?category=all", "", nil))
	require.Len(t, list, 1)
	assert.Equal(t, course.ID, list[0].ID)
	assert.Empty(t, decode[[]model.Course](t, env.do(http.MethodGet, "/courses?category=design", "", nil)))

	rec = env.do(http.MethodPatch, "/courses/"+course.ID+"/status", adminAuth, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPatch, "/courses/"+course.ID+"/status", adminAuth,
		map[string]string{"status": "rejected", "feedback": "too short"})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[model.Course](t, env.do(http.MethodGet, "/courses/"+course.ID, "", nil))
	assert.Equal(t, model.CourseRejected, got.Status)
	assert.Equal(t, "too short", got.Feedback)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/courses/507f1f77bcf86cd799439011", "", nil).Code)
}

func TestCourseUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	instructorAuth := env.user("instructor@x.com", model.RoleInstructor)
	otherAuth := env.user("other@x.com", model.RoleInstructor)

	course := createCourse(t, env, instructorAuth, map[string]any{"title": "Draft", "price": 10})

	rec := env.do(http.MethodPut, "/courses/"+course.ID, otherAuth, map[string]any{"title": "Mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPut, "/courses/"+course.ID, instructorAuth, map[string]any{"title": "Final", "price": 12})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Final", decode[model.Course](t, rec).Title)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodDelete, "/courses/"+course.ID, "", nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/courses/"+course.ID, instructorAuth, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/courses/"+course.ID, "", nil).Code)
}

func TestEnrollFlow(t *testing.T) {
	env := newTestEnv(t)
	adminAuth := env.user("admin@x.com", model.RoleAdmin)
	instructorAuth := env.user("instructor@x.com", model.RoleInstructor)
	studentAuth := env.user("student@x.com", model.RoleStudent)

	course := createCourse(t, env, instructorAuth, map[string]any{"title": "Rust", "price": 25.5})
	env.do(http.MethodPatch, "/courses/"+course.ID+"/status", adminAuth, map[string]string{"status": "approved"})

	enroll := map[string]string{"userEmail": "student@x.com", "courseId": course.ID}

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/enroll", "", enroll).Code)

	rec := env.do(http.MethodPost, "/enroll", studentAuth, enroll)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[map[string]any](t, rec)
	assert.Equal(t, true, first["success"])
	assert.NotEmpty(t, first["id"])

	rec = env.do(http.MethodPost, "/enroll", studentAuth, enroll)
	assert.Equal(t, http.StatusConflict, rec.Code)

	got := decode[model.Course](t, env.do(http.MethodGet, "/courses/"+course.ID, "", nil))
	assert.Equal(t, int64(1), got.TotalEnrolled)

	// Enrolling someone else is refused.
	rec = env.do(http.MethodPost, "/enroll", instructorAuth, enroll)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/enroll", studentAuth,
		map[string]string{"userEmail": "student@x.com", "courseId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/enrolled/student@x.com", studentAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	enrolled := decode[[]model.EnrollmentWithCourse](t, rec)
	require.Len(t, enrolled, 1)
	assert.Equal(t, "Rust", enrolled[0].Course.Title)
	require.NotNil(t, enrolled[0].Price)
	assert.InDelta(t, 25.5, *enrolled[0].Price, 1e-9)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/enrolled/student@x.com", instructorAuth, nil).Code)

	rec = env.do(http.MethodGet, "/admin/stats", adminAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[model.Stats](t, rec)
	assert.Equal(t, model.Stats{TotalUsers: 3, ApprovedCourses: 1, TotalEnrollments: 1, TotalRevenue: 25.5}, stats)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/admin/stats", studentAuth, nil).Code)
}

func TestInvalidJSONIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	studentAuth := env.user("student@x.com", model.RoleStudent)

	req := httptest.NewRequest(http.MethodPost, "/enroll", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", studentAuth)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmailPathSegments_AcceptPercentEncoding(t *testing.T) {
	env := newTestEnv(t)
	adminAuth := env.user("admin@x.com", model.RoleAdmin)
	instructorAuth := env.user("instructor@x.com", model.RoleInstructor)
	studentAuth := env.user("student@x.com", model.RoleStudent)

	// Browsers send encodeURIComponent(email), which escapes the "@".
	rec := env.do(http.MethodGet, "/users/role/instructor%40x.com", studentAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		map[string]string{"email": "instructor@x.com", "role": "instructor"},
		decode[map[string]string](t, rec))

	course := createCourse(t, env, instructorAuth, map[string]any{"title": "Go", "price": 10})
	env.do(http.MethodPatch, "/courses/"+course.ID+"/status", adminAuth, map[string]string{"status": "approved"})
	rec = env.do(http.MethodPost, "/enroll", studentAuth,
		map[string]string{"userEmail": "student@x.com", "courseId": course.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/enrolled/student%40x.com", studentAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]model.EnrollmentWithCourse](t, rec), 1)

	assert.Equal(t, http.StatusForbidden,
		env.do(http.MethodGet, "/enrolled/student%40x.com", instructorAuth, nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/enroll", nil)
	req.Header.Set("Origin", "https://learn-loop-edcf7.web.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://learn-loop-edcf7.web.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_RejectsShortSecret(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = server.New(config.Config{TokenSecret: "short"}, slog.New(slog.NewTextHandler(io.Discard, nil)), db.Store(), nil)
	assert.Error(t, err)
}
