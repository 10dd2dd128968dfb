package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

var _ repository.CourseRepository = (*DB)(nil)

const courseColumns = `id, title, description, category, price, image, instructor_name,
	instructor_email, status, feedback, total_enrolled, created_at`

// CreateCourse inserts course and fills in its generated id.
// The caller has already forced the server-owned fields.
func (db *DB) CreateCourse(ctx context.Context, course *model.Course) error {
	course.ID = xid.New().String()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO courses (`+courseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		course.ID,
		course.Title,
		course.Description,
		course.Category,
		course.Price,
		course.Image,
		course.InstructorName,
		course.InstructorEmail,
		string(course.Status),
		course.Feedback,
		course.TotalEnrolled,
		course.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating course: %w", err)
	}
	return nil
}

// GetCourse looks a course up by id. SQLite ids are plain text, so a
// 24-hex id and an opaque string id are matched the same way.
func (db *DB) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	c, err := scanCourse(db.conn.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("course", id)
		}
		return nil, fmt.Errorf("sqlite: getting course %s: %w", id, err)
	}
	return c, nil
}

// ListCourses applies each non-empty filter field as an equality match.
// Visibility rules (owner vs approved) are decided by the service.
func (db *DB) ListCourses(ctx context.Context, filter model.CourseFilter) ([]model.Course, error) {
	var (
		where []string
		args  []any
	)
	if filter.Owner != "" {
		where = append(where, "instructor_email = ?")
		args = append(args, filter.Owner)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT ` + courseColumns + ` FROM courses`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing courses: %w", err)
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning course row: %w", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating courses: %w", err)
	}

	return courses, nil
}

// UpdateCourse rewrites the client-writable fields only.
func (db *DB) UpdateCourse(ctx context.Context, id string, in model.CourseInput) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE courses
		 SET title = ?, description = ?, category = ?, price = ?, image = ?, instructor_name = ?
		 WHERE id = ?`,
		in.Title, in.Description, in.Category, in.Price, in.Image, in.InstructorName, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating course %s: %w", id, err)
	}
	return requireAffected(result, "course", id)
}

func (db *DB) DeleteCourse(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting course %s: %w", id, err)
	}
	return requireAffected(result, "course", id)
}

func (db *DB) SetCourseStatus(ctx context.Context, id string, status model.CourseStatus, feedback string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE courses SET status = ?, feedback = ? WHERE id = ?`,
		string(status), feedback, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting course %s status: %w", id, err)
	}
	return requireAffected(result, "course", id)
}

// IncrementEnrolled lets SQLite do the arithmetic, so concurrent
// enrollments never lose an update the way read-modify-write would.
func (db *DB) IncrementEnrolled(ctx context.Context, id string, delta int64) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE courses SET total_enrolled = total_enrolled + ? WHERE id = ?`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing course %s enrollment: %w", id, err)
	}
	return requireAffected(result, "course", id)
}

// CountCourses counts courses in status, or all courses when status is empty.
func (db *DB) CountCourses(ctx context.Context, status model.CourseStatus) (int64, error) {
	query := `SELECT COUNT(*) FROM courses`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}

	var n int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting courses: %w", err)
	}
	return n, nil
}

func scanCourse(row rowScanner) (*model.Course, error) {
	var c model.Course
	var status string
	if err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Category, &c.Price, &c.Image,
		&c.InstructorName, &c.InstructorEmail, &status, &c.Feedback,
		&c.TotalEnrolled, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.Status = model.CourseStatus(status)
	return &c, nil
}

// requireAffected turns a zero-row UPDATE/DELETE into a NotFound.
func requireAffected(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
