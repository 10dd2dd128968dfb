package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

var _ repository.EnrollmentRepository = (*DB)(nil)

func (db *DB) FindEnrollment(ctx context.Context, userEmail, courseID string) (*model.Enrollment, error) {
	var (
		e     model.Enrollment
		price sql.NullFloat64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_email, course_id, price, enrolled_at
		 FROM enrollments WHERE user_email = ? AND course_id = ?`,
		userEmail, courseID,
	).Scan(&e.ID, &e.UserEmail, &e.CourseID, &price, &e.EnrolledAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("enrollment", userEmail+"/"+courseID)
		}
		return nil, fmt.Errorf("sqlite: finding enrollment %s/%s: %w", userEmail, courseID, err)
	}
	if price.Valid {
		e.Price = &price.Float64
	}
	return &e, nil
}

func (db *DB) CreateEnrollment(ctx context.Context, e *model.Enrollment) error {
	e.ID = xid.New().String()

	var price sql.NullFloat64
	if e.Price != nil {
		price = sql.NullFloat64{Float64: *e.Price, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO enrollments (id, user_email, course_id, price, enrolled_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserEmail, e.CourseID, price, e.EnrolledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("already enrolled in this course")
		}
		return fmt.Errorf("sqlite: creating enrollment: %w", err)
	}
	return nil
}

// ListEnrollmentsWithCourses uses an INNER JOIN: an enrollment whose course
// has been deleted produces no row.
func (db *DB) ListEnrollmentsWithCourses(ctx context.Context, userEmail string) ([]model.EnrollmentWithCourse, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT e.id, e.user_email, e.course_id, e.price, e.enrolled_at,
		        c.id, c.title, c.description, c.category, c.price, c.image, c.instructor_name,
		        c.instructor_email, c.status, c.feedback, c.total_enrolled, c.created_at
		 FROM enrollments e
		 JOIN courses c ON c.id = e.course_id
		 WHERE e.user_email = ?
		 ORDER BY e.enrolled_at DESC, e.id`,
		userEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing enrollments for %s: %w", userEmail, err)
	}
	defer rows.Close()

	out := []model.EnrollmentWithCourse{}
	for rows.Next() {
		var (
			row    model.EnrollmentWithCourse
			price  sql.NullFloat64
			status string
		)
		if err := rows.Scan(
			&row.ID, &row.UserEmail, &row.CourseID, &price, &row.EnrolledAt,
			&row.Course.ID, &row.Course.Title, &row.Course.Description, &row.Course.Category,
			&row.Course.Price, &row.Course.Image, &row.Course.InstructorName,
			&row.Course.InstructorEmail, &status, &row.Course.Feedback,
			&row.Course.TotalEnrolled, &row.Course.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning enrollment row: %w", err)
		}
		if price.Valid {
			p := price.Float64
			row.Price = &p
		}
		row.Course.Status = model.CourseStatus(status)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating enrollments: %w", err)
	}

	return out, nil
}

func (db *DB) CountEnrollments(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting enrollments: %w", err)
	}
	return n, nil
}

// SumEnrollmentPrice ignores enrollments without a price snapshot.
func (db *DB) SumEnrollmentPrice(ctx context.Context) (float64, error) {
	var total float64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(price), 0.0) FROM enrollments WHERE price IS NOT NULL`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sqlite: summing enrollment price: %w", err)
	}
	return total, nil
}
